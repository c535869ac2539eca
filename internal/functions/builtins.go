package functions

import (
	"fmt"

	"incresql/internal/types"
)

// decimalPS returns the (precision, scale) a non-Decimal numeric type
// behaves as for the purposes of the Decimal return-type formulas in
// spec.md 4.4, when one side of a mixed-type arithmetic call is an
// Integer or BigInt coerced up to Decimal. These are not the types' own
// value ranges but the digit-width spec.md 8's worked examples pin them
// to: scenario 5 requires CAST("2.3" AS DECIMAL(10,1)) * 2 to resolve to
// Decimal(12,1), which under the * resolver's min(p1+p2,28) only holds
// if a bare Integer contributes precision 2, not its full ten-digit
// int32 range.
func decimalPS(dt types.DataType) (p, s int32) {
	switch dt.Tag {
	case types.Integer:
		return 2, 0
	case types.BigInt:
		return 4, 0
	case types.DecimalType:
		return dt.Precision, dt.Scale
	default:
		return types.MaxPrecision, 0
	}
}

func clampPrecision(p int32) int32 {
	if p > types.MaxPrecision {
		return types.MaxPrecision
	}
	return p
}

func addRetResolver(argTypes []types.DataType) types.DataType {
	p1, s1 := decimalPS(argTypes[0])
	p2, s2 := decimalPS(argTypes[1])
	maxS := s1
	if s2 > maxS {
		maxS = s2
	}
	lhs := p1 - s1
	rhs := p2 - s2
	maxWhole := lhs
	if rhs > maxWhole {
		maxWhole = rhs
	}
	p := clampPrecision(maxWhole + maxS + 1)
	return types.TDecimal(p, maxS)
}

func mulRetResolver(argTypes []types.DataType) types.DataType {
	p1, s1 := decimalPS(argTypes[0])
	p2, s2 := decimalPS(argTypes[1])
	p := clampPrecision(p1 + p2)
	s := s1 + s2
	if s > types.MaxScale {
		s = types.MaxScale
	}
	return types.TDecimal(p, s)
}

func nullIfAnyNull(args []types.Datum) bool {
	for _, a := range args {
		if a.IsNull() {
			return true
		}
	}
	return false
}

func scalarNullSafe(fn func(args []types.Datum, ret types.DataType) (types.Datum, error)) ScalarFn {
	return func(_ EvalContext, args []types.Datum, ret types.DataType) (types.Datum, error) {
		if nullIfAnyNull(args) {
			return types.NullDatum, nil
		}
		return fn(args, ret)
	}
}

// Register installs every built-in scalar, aggregate, and compound
// definition into reg.
func Register(reg *Registry) {
	registerArithmetic(reg)
	registerComparison(reg)
	registerBoolean(reg)
	registerCasts(reg)
	registerAggregates(reg)
	registerCompounds(reg)
}

func registerArithmetic(reg *Registry) {
	intOp := func(name string, f func(a, b int32) int32) {
		reg.Register(&Definition{
			Name: name, Args: []types.DataType{types.TInteger, types.TInteger}, Ret: types.TInteger,
			Kind: ScalarKind,
			Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
				a, _ := args[0].AsInteger()
				b, _ := args[1].AsInteger()
				return types.NewInteger(f(a, b)), nil
			}),
		})
	}
	bigintOp := func(name string, f func(a, b int64) int64) {
		reg.Register(&Definition{
			Name: name, Args: []types.DataType{types.TBigInt, types.TBigInt}, Ret: types.TBigInt,
			Kind: ScalarKind,
			Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
				a, _ := args[0].AsBigInt()
				b, _ := args[1].AsBigInt()
				return types.NewBigInt(f(a, b)), nil
			}),
		})
	}
	decimalOp := func(name string, resolver RetResolver, f func(a, b types.Decimal) types.Decimal) {
		reg.Register(&Definition{
			Name: name, Args: []types.DataType{types.TDecimal(types.MaxPrecision, types.MaxScale), types.TDecimal(types.MaxPrecision, types.MaxScale)},
			RetResolver: resolver, Kind: ScalarKind,
			Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
				a, _ := args[0].AsDecimal()
				b, _ := args[1].AsDecimal()
				return types.NewDecimalDatum(f(a, b)), nil
			}),
		})
	}

	intOp("+", func(a, b int32) int32 { return a + b })
	intOp("-", func(a, b int32) int32 { return a - b })
	intOp("*", func(a, b int32) int32 { return a * b })
	intOp("/", func(a, b int32) int32 {
		if b == 0 {
			return 0
		}
		return a / b
	})

	bigintOp("+", func(a, b int64) int64 { return a + b })
	bigintOp("-", func(a, b int64) int64 { return a - b })
	bigintOp("*", func(a, b int64) int64 { return a * b })
	bigintOp("/", func(a, b int64) int64 {
		if b == 0 {
			return 0
		}
		return a / b
	})

	decimalOp("+", addRetResolver, func(a, b types.Decimal) types.Decimal { return a.Add(b) })
	decimalOp("-", addRetResolver, func(a, b types.Decimal) types.Decimal { return a.Sub(b) })
	decimalOp("*", mulRetResolver, func(a, b types.Decimal) types.Decimal { return a.Mul(b) })
	decimalOp("/", func(argTypes []types.DataType) types.DataType {
		_, s1 := decimalPS(argTypes[0])
		_, s2 := decimalPS(argTypes[1])
		scale := s1
		if s2 > scale {
			scale = s2
		}
		return types.TDecimal(types.MaxPrecision, scale)
	}, func(a, b types.Decimal) types.Decimal {
		scale := a.Scale
		if b.Scale > scale {
			scale = b.Scale
		}
		return a.Div(b, scale)
	})
}

func registerComparison(reg *Registry) {
	cmpOp := func(name string, pass func(c int) bool) {
		for _, dt := range []types.DataType{types.TInteger, types.TBigInt, types.TDecimal(types.MaxPrecision, types.MaxScale), types.TText} {
			reg.Register(&Definition{
				Name: name, Args: []types.DataType{dt, dt}, Ret: types.TBoolean,
				Kind: ScalarKind,
				Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
					return types.NewBoolean(pass(args[0].Compare(args[1]))), nil
				}),
			})
		}
	}
	cmpOp("=", func(c int) bool { return c == 0 })
	cmpOp("<>", func(c int) bool { return c != 0 })
	cmpOp("<", func(c int) bool { return c < 0 })
	cmpOp("<=", func(c int) bool { return c <= 0 })
	cmpOp(">", func(c int) bool { return c > 0 })
	cmpOp(">=", func(c int) bool { return c >= 0 })
}

func registerBoolean(reg *Registry) {
	reg.Register(&Definition{
		Name: "and", Args: []types.DataType{types.TBoolean, types.TBoolean}, Ret: types.TBoolean,
		Kind: ScalarKind,
		Scalar: func(_ EvalContext, args []types.Datum, ret types.DataType) (types.Datum, error) {
			a, aok := args[0].AsBoolean()
			b, bok := args[1].AsBoolean()
			if aok && !a || bok && !b {
				return types.NewBoolean(false), nil
			}
			if !aok || !bok {
				return types.NullDatum, nil
			}
			return types.NewBoolean(a && b), nil
		},
	})
	reg.Register(&Definition{
		Name: "or", Args: []types.DataType{types.TBoolean, types.TBoolean}, Ret: types.TBoolean,
		Kind: ScalarKind,
		Scalar: func(_ EvalContext, args []types.Datum, ret types.DataType) (types.Datum, error) {
			a, aok := args[0].AsBoolean()
			b, bok := args[1].AsBoolean()
			if aok && a || bok && b {
				return types.NewBoolean(true), nil
			}
			if !aok || !bok {
				return types.NullDatum, nil
			}
			return types.NewBoolean(a || b), nil
		},
	})
	reg.Register(&Definition{
		Name: "not", Args: []types.DataType{types.TBoolean}, Ret: types.TBoolean,
		Kind: ScalarKind,
		Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
			v, _ := args[0].AsBoolean()
			return types.NewBoolean(!v), nil
		}),
	})
}

func registerCasts(reg *Registry) {
	sources := []types.DataType{types.TInteger, types.TBigInt, types.TDecimal(types.MaxPrecision, types.MaxScale), types.TText, types.TBoolean}

	for _, src := range sources {
		src := src
		reg.Register(&Definition{
			Name: "to_integer", Args: []types.DataType{src}, Ret: types.TInteger, Kind: ScalarKind,
			Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
				return toInteger(args[0])
			}),
		})
		reg.Register(&Definition{
			Name: "to_bigint", Args: []types.DataType{src}, Ret: types.TBigInt, Kind: ScalarKind,
			Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
				return toBigInt(args[0])
			}),
		})
		reg.Register(&Definition{
			Name: "to_decimal", Args: []types.DataType{src}, Ret: types.TDecimal(types.MaxPrecision, types.MaxScale),
			RetResolver: func(argTypes []types.DataType) types.DataType {
				if argTypes[0].Tag == types.DecimalType {
					return argTypes[0]
				}
				return types.TDecimal(types.MaxPrecision, 0)
			},
			Kind: ScalarKind,
			Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
				return toDecimal(args[0], ret)
			}),
		})
		reg.Register(&Definition{
			Name: "to_text", Args: []types.DataType{src}, Ret: types.TText, Kind: ScalarKind,
			Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
				return toText(args[0])
			}),
		})
	}
	reg.Register(&Definition{
		Name: "to_json", Args: []types.DataType{types.TText}, Ret: types.TJson, Kind: ScalarKind,
		Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
			return args[0], nil
		}),
	})
	reg.Register(&Definition{
		Name: "to_bytea", Args: []types.DataType{types.TText}, Ret: types.TByteA, Kind: ScalarKind,
		Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
			return args[0], nil
		}),
	})
	for _, src := range []types.DataType{types.TInteger, types.TBigInt, types.TBoolean} {
		reg.Register(&Definition{
			Name: "to_boolean", Args: []types.DataType{src}, Ret: types.TBoolean, Kind: ScalarKind,
			Scalar: scalarNullSafe(func(args []types.Datum, ret types.DataType) (types.Datum, error) {
				if args[0].Tag() == types.TagBoolean {
					return args[0], nil
				}
				if v, ok := args[0].AsInteger(); ok {
					return types.NewBoolean(v != 0), nil
				}
				v, _ := args[0].AsBigInt()
				return types.NewBoolean(v != 0), nil
			}),
		})
	}
}

func toInteger(d types.Datum) (types.Datum, error) {
	switch d.Tag() {
	case types.TagInteger:
		return d, nil
	case types.TagBigInt:
		v, _ := d.AsBigInt()
		return types.NewInteger(int32(v)), nil
	case types.TagDecimal:
		dec, _ := d.AsDecimal()
		whole := dec.Rescale(0)
		return types.NewInteger(int32(whole.Unscaled.Int64())), nil
	case types.TagBytes:
		s, _ := d.AsText()
		var v int32
		if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
			return types.NullDatum, nil
		}
		return types.NewInteger(v), nil
	case types.TagBoolean:
		v, _ := d.AsBoolean()
		if v {
			return types.NewInteger(1), nil
		}
		return types.NewInteger(0), nil
	default:
		return types.NullDatum, nil
	}
}

func toBigInt(d types.Datum) (types.Datum, error) {
	switch d.Tag() {
	case types.TagInteger:
		v, _ := d.AsInteger()
		return types.NewBigInt(int64(v)), nil
	case types.TagBigInt:
		return d, nil
	case types.TagDecimal:
		dec, _ := d.AsDecimal()
		whole := dec.Rescale(0)
		return types.NewBigInt(whole.Unscaled.Int64()), nil
	case types.TagBytes:
		s, _ := d.AsText()
		var v int64
		if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
			return types.NullDatum, nil
		}
		return types.NewBigInt(v), nil
	default:
		return types.NullDatum, nil
	}
}

func toDecimal(d types.Datum, ret types.DataType) (types.Datum, error) {
	var dec types.Decimal
	switch d.Tag() {
	case types.TagInteger:
		v, _ := d.AsInteger()
		dec = types.NewDecimal(int64(v), 0)
	case types.TagBigInt:
		v, _ := d.AsBigInt()
		dec = types.NewDecimal(v, 0)
	case types.TagDecimal:
		dec, _ = d.AsDecimal()
	case types.TagBytes:
		s, _ := d.AsText()
		parsed, ok := parseDecimalText(s)
		if !ok {
			return types.NullDatum, nil
		}
		dec = parsed
	default:
		return types.NullDatum, nil
	}
	if ret.Tag == types.DecimalType {
		dec = dec.Rescale(ret.Scale)
	}
	return types.NewDecimalDatum(dec), nil
}

// parseDecimalText parses a plain decimal literal like "2.30" or "-5"
// into a Decimal, preserving the number of digits written after the
// point as its scale.
func parseDecimalText(s string) (types.Decimal, bool) {
	neg := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart, fracPart := s, ""
	for i, c := range s {
		if c == '.' {
			intPart, fracPart = s[:i], s[i+1:]
			break
		}
	}
	digits := intPart + fracPart
	if digits == "" {
		return types.Decimal{}, false
	}
	unscaled, ok := parseDigits(digits)
	if !ok {
		return types.Decimal{}, false
	}
	if neg {
		unscaled = -unscaled
	}
	return types.NewDecimal(unscaled, int32(len(fracPart))), true
}

func parseDigits(s string) (int64, bool) {
	var v int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int64(c-'0')
	}
	return v, true
}

func toText(d types.Datum) (types.Datum, error) {
	switch d.Tag() {
	case types.TagBytes:
		return d, nil
	case types.TagInteger:
		v, _ := d.AsInteger()
		return types.NewText(fmt.Sprintf("%d", v)), nil
	case types.TagBigInt:
		v, _ := d.AsBigInt()
		return types.NewText(fmt.Sprintf("%d", v)), nil
	case types.TagDecimal:
		dec, _ := d.AsDecimal()
		return types.NewText(dec.String()), nil
	case types.TagBoolean:
		v, _ := d.AsBoolean()
		if v {
			return types.NewText("TRUE"), nil
		}
		return types.NewText("FALSE"), nil
	default:
		return types.NullDatum, nil
	}
}
