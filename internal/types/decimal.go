package types

import (
	"math/big"
	"strings"
)

// Decimal is a fixed-point value: Unscaled * 10^-Scale. There is no
// third-party decimal library in the retrieval pack, so this is built
// directly on math/big (see DESIGN.md for why this stays on the standard
// library rather than reaching for an ecosystem crate).
type Decimal struct {
	Unscaled *big.Int
	Scale    int32
}

// ZeroDecimal is the canonical zero value at scale 0.
var ZeroDecimal = Decimal{Unscaled: big.NewInt(0), Scale: 0}

// NewDecimal builds a Decimal from an unscaled integer and a scale.
func NewDecimal(unscaled int64, scale int32) Decimal {
	return Decimal{Unscaled: big.NewInt(unscaled), Scale: scale}
}

// IsZero reports whether the value is exactly zero.
func (d Decimal) IsZero() bool {
	return d.Unscaled == nil || d.Unscaled.Sign() == 0
}

// Sign returns -1, 0 or 1.
func (d Decimal) Sign() int {
	if d.Unscaled == nil {
		return 0
	}
	return d.Unscaled.Sign()
}

// Rescale returns a copy scaled to newScale, padding or truncating (via
// truncation, not rounding) the unscaled mantissa as needed.
func (d Decimal) Rescale(newScale int32) Decimal {
	if d.Unscaled == nil {
		d.Unscaled = big.NewInt(0)
	}
	diff := newScale - d.Scale
	u := new(big.Int).Set(d.Unscaled)
	if diff > 0 {
		u.Mul(u, pow10(diff))
	} else if diff < 0 {
		u.Quo(u, pow10(-diff))
	}
	return Decimal{Unscaled: u, Scale: newScale}
}

func pow10(n int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Add, Mul implement the arithmetic the `+`/`*` scalar functions need. They
// do not clamp to a declared precision/scale; overflow/precision loss is
// the caller's concern (spec.md 7: arithmetic overflow is not trapped).
func (d Decimal) Add(o Decimal) Decimal {
	scale := d.Scale
	if o.Scale > scale {
		scale = o.Scale
	}
	a := d.Rescale(scale)
	b := o.Rescale(scale)
	return Decimal{Unscaled: new(big.Int).Add(a.Unscaled, b.Unscaled), Scale: scale}
}

func (d Decimal) Sub(o Decimal) Decimal {
	scale := d.Scale
	if o.Scale > scale {
		scale = o.Scale
	}
	a := d.Rescale(scale)
	b := o.Rescale(scale)
	return Decimal{Unscaled: new(big.Int).Sub(a.Unscaled, b.Unscaled), Scale: scale}
}

func (d Decimal) Mul(o Decimal) Decimal {
	u := new(big.Int).Mul(d.Unscaled, o.Unscaled)
	return Decimal{Unscaled: u, Scale: d.Scale + o.Scale}
}

// Div performs decimal division at the caller's resultScale, truncating
// any further digits; a zero divisor yields zero at that scale.
func (d Decimal) Div(o Decimal, resultScale int32) Decimal {
	if o.IsZero() {
		return Decimal{Unscaled: big.NewInt(0), Scale: resultScale}
	}
	// (d.Unscaled / 10^d.Scale) / (o.Unscaled / 10^o.Scale) at resultScale:
	// numerator * 10^(resultScale + o.Scale - d.Scale) / denominator
	shift := resultScale + o.Scale - d.Scale
	num := new(big.Int).Set(d.Unscaled)
	if shift > 0 {
		num.Mul(num, pow10(shift))
	}
	den := o.Unscaled
	if shift < 0 {
		den = new(big.Int).Mul(den, pow10(-shift))
	}
	q := new(big.Int).Quo(num, den)
	return Decimal{Unscaled: q, Scale: resultScale}
}

// Cmp compares d and o as real numbers regardless of scale.
func (d Decimal) Cmp(o Decimal) int {
	scale := d.Scale
	if o.Scale > scale {
		scale = o.Scale
	}
	a := d.Rescale(scale)
	b := o.Rescale(scale)
	return a.Unscaled.Cmp(b.Unscaled)
}

// normalize strips trailing zero digits from the unscaled mantissa,
// reducing scale accordingly; the represented value is unchanged. Used to
// get a canonical (sign, exponent, digits) form for sortable encoding.
func (d Decimal) normalize() (sign int, digits string, exponent int32) {
	if d.IsZero() {
		return 0, "", 0
	}
	u := new(big.Int).Abs(d.Unscaled)
	scale := d.Scale
	ten := big.NewInt(10)
	mod := new(big.Int)
	for u.Sign() != 0 {
		u.QuoRem(u, ten, mod)
		if mod.Sign() != 0 {
			u.Mul(u, ten)
			u.Add(u, mod)
			break
		}
		scale--
	}
	digits = u.String()
	exponent = int32(len(digits)) - scale
	return d.Sign(), digits, exponent
}

// String renders the decimal with its natural (unscaled/scale) precision,
// with no declared-scale zero padding; see render.go for SQL display.
func (d Decimal) String() string {
	if d.Unscaled == nil {
		return "0"
	}
	neg := d.Unscaled.Sign() < 0
	u := new(big.Int).Abs(d.Unscaled)
	s := u.String()
	if d.Scale <= 0 {
		if d.Scale < 0 {
			s += strings.Repeat("0", int(-d.Scale))
		}
		if neg {
			return "-" + s
		}
		return s
	}
	for int32(len(s)) <= d.Scale {
		s = "0" + s
	}
	whole := s[:int32(len(s))-d.Scale]
	frac := s[int32(len(s))-d.Scale:]
	out := whole + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
