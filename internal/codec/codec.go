// Package codec implements the order-preserving binary encoding of Datums
// and tuples described in spec.md 4.1: a single tag byte (1..=8 ascending,
// its bitwise complement 247..=254 descending) followed by a type-specific
// payload, such that byte-lexicographic order on the encoding matches the
// engine's total value order (types.Datum.Compare).
package codec

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"incresql/internal/types"
)

// Ascending tag bytes, spec.md 4.1 / original_source encoding_datum.rs.
const (
	tagNull    byte = 1
	tagFalse   byte = 2
	tagTrue    byte = 3
	tagInt     byte = 4
	tagBigInt  byte = 5
	tagDecimal byte = 6
	tagBytes   byte = 7
	tagJSONPth byte = 8
)

// RangeScanLowerBound and RangeScanUpperBound are the reserved tag bytes
// (spec.md 4.1: "0x00 and 0xFF are reserved for range-scan prefix bounds")
// storage uses to build half-open scan prefixes that never collide with a
// real encoded value.
const (
	RangeScanLowerBound byte = 0x00
	RangeScanUpperBound byte = 0xFF
)

func invert(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = ^c
	}
	return out
}

// Encode appends the sortable encoding of d in the given order to buf and
// returns the extended slice.
func Encode(d types.Datum, order types.SortOrder, buf []byte) []byte {
	desc := order == types.Descending
	var tag byte
	var payload []byte

	switch d.Tag() {
	case types.TagNull:
		tag = tagNull
	case types.TagBoolean:
		v, _ := d.AsBoolean()
		if v {
			tag = tagTrue
		} else {
			tag = tagFalse
		}
	case types.TagInteger:
		tag = tagInt
		v, _ := d.AsInteger()
		payload = make([]byte, 4)
		binary.BigEndian.PutUint32(payload, uint32(v)^0x80000000)
	case types.TagBigInt:
		tag = tagBigInt
		v, _ := d.AsBigInt()
		payload = make([]byte, 8)
		binary.BigEndian.PutUint64(payload, uint64(v)^0x8000000000000000)
	case types.TagDecimal:
		tag = tagDecimal
		v, _ := d.AsDecimal()
		payload = encodeTerminatedContent(decimalContent(v))
	case types.TagBytes:
		tag = tagBytes
		b, _ := d.AsBytes()
		payload = encodeTerminatedContent(b)
	case types.TagJsonPath:
		tag = tagJSONPth
		jp, _ := d.AsJsonPath()
		payload = encodeTerminatedContent([]byte(jp.Source))
	}

	if desc {
		tag = ^tag
		payload = invert(payload)
	}
	buf = append(buf, tag)
	buf = append(buf, payload...)
	return buf
}

// Decode reads one sortable-encoded Datum from the front of buf, returning
// the decoded value and the remaining, unconsumed bytes.
func Decode(buf []byte) (types.Datum, []byte, error) {
	if len(buf) == 0 {
		return types.Datum{}, nil, fmt.Errorf("codec: empty buffer")
	}
	tagByte := buf[0]
	rest := buf[1:]
	desc := tagByte >= 128
	origTag := tagByte
	if desc {
		origTag = ^tagByte
	}

	switch origTag {
	case tagNull:
		return types.NullDatum, rest, nil
	case tagFalse:
		return types.NewBoolean(false), rest, nil
	case tagTrue:
		return types.NewBoolean(true), rest, nil
	case tagInt:
		if len(rest) < 4 {
			return types.Datum{}, nil, fmt.Errorf("codec: truncated integer")
		}
		raw := rest[:4]
		if desc {
			raw = invert(raw)
		}
		u := binary.BigEndian.Uint32(raw) ^ 0x80000000
		return types.NewInteger(int32(u)), rest[4:], nil
	case tagBigInt:
		if len(rest) < 8 {
			return types.Datum{}, nil, fmt.Errorf("codec: truncated bigint")
		}
		raw := rest[:8]
		if desc {
			raw = invert(raw)
		}
		u := binary.BigEndian.Uint64(raw) ^ 0x8000000000000000
		return types.NewBigInt(int64(u)), rest[8:], nil
	case tagDecimal:
		content, newRest, err := decodeTerminatedContent(rest, desc)
		if err != nil {
			return types.Datum{}, nil, err
		}
		dec, err := decodeDecimalContent(content)
		if err != nil {
			return types.Datum{}, nil, err
		}
		return types.NewDecimalDatum(dec), newRest, nil
	case tagBytes:
		content, newRest, err := decodeTerminatedContent(rest, desc)
		if err != nil {
			return types.Datum{}, nil, err
		}
		return types.NewBytesBorrowed(content), newRest, nil
	case tagJSONPth:
		content, newRest, err := decodeTerminatedContent(rest, desc)
		if err != nil {
			return types.Datum{}, nil, err
		}
		jp, err := types.ParseJsonPath(string(content))
		if err != nil {
			return types.Datum{}, nil, err
		}
		return types.NewJsonPathOwned(jp), newRest, nil
	default:
		return types.Datum{}, nil, fmt.Errorf("codec: unexpected tag byte %d", tagByte)
	}
}

// encodeTerminatedContent escapes 0x00 bytes as 0x00 0xFF and appends the
// 0x00 0x01 terminator, guaranteeing prefix order (spec.md 4.1).
func encodeTerminatedContent(content []byte) []byte {
	out := make([]byte, 0, len(content)+2)
	for _, c := range content {
		if c == 0x00 {
			out = append(out, 0x00, 0xFF)
		} else {
			out = append(out, c)
		}
	}
	out = append(out, 0x00, 0x01)
	return out
}

// decodeTerminatedContent splits the raw (possibly bit-inverted, for
// descending order) terminated segment off the front of raw, and returns
// the unescaped original content plus the remaining bytes.
func decodeTerminatedContent(raw []byte, desc bool) (content []byte, rest []byte, err error) {
	term0, term1 := byte(0x00), byte(0x01)
	escB := byte(0xFF)
	if desc {
		term0, term1 = ^term0, ^term1
		escB = ^escB
	}
	i := 0
	var segEnd = -1
	for i < len(raw) {
		if raw[i] == term0 {
			if i+1 >= len(raw) {
				return nil, nil, fmt.Errorf("codec: truncated terminated string")
			}
			if raw[i+1] == term1 {
				segEnd = i
				break
			}
			if raw[i+1] == escB {
				i += 2
				continue
			}
			return nil, nil, fmt.Errorf("codec: invalid escape sequence")
		}
		i++
	}
	if segEnd < 0 {
		return nil, nil, fmt.Errorf("codec: unterminated string")
	}
	seg := raw[:segEnd]
	rest = raw[segEnd+2:]
	if desc {
		seg = invert(seg)
	}
	content, err = unescape(seg)
	return content, rest, err
}

func unescape(seg []byte) ([]byte, error) {
	out := make([]byte, 0, len(seg))
	i := 0
	for i < len(seg) {
		if seg[i] == 0x00 {
			if i+1 >= len(seg) || seg[i+1] != 0xFF {
				return nil, fmt.Errorf("codec: invalid escape in byte string")
			}
			out = append(out, 0x00)
			i += 2
			continue
		}
		out = append(out, seg[i])
		i++
	}
	return out, nil
}

// decimalContent builds the ascending (sign, exponent, mantissa) canonical
// form described in spec.md 4.1: normalized so ordering is preserved
// across differing scales, with ties broken by exponent.
const decimalExpBias = 128

func decimalContent(d types.Decimal) []byte {
	sign, digits, exponent := decimalNormalize(d)
	if sign == 0 {
		return []byte{2}
	}
	mag := make([]byte, 0, 1+len(digits))
	mag = append(mag, byte(int32(decimalExpBias)+exponent))
	mag = append(mag, []byte(digits)...)
	if sign > 0 {
		out := make([]byte, 0, len(mag)+1)
		out = append(out, 3)
		out = append(out, mag...)
		return out
	}
	// A trailing 0x00 (0xFF once inverted) makes a shorter digit string
	// sort after any longer one it prefixes, so -0.1 > -0.15 holds.
	mag = append(mag, 0x00)
	out := make([]byte, 0, len(mag)+1)
	out = append(out, 1)
	out = append(out, invert(mag)...)
	return out
}

func decodeDecimalContent(content []byte) (types.Decimal, error) {
	if len(content) == 0 {
		return types.Decimal{}, fmt.Errorf("codec: empty decimal content")
	}
	switch content[0] {
	case 2:
		return types.ZeroDecimal, nil
	case 3:
		if len(content) < 2 {
			return types.Decimal{}, fmt.Errorf("codec: truncated decimal")
		}
		exponent := int32(content[1]) - decimalExpBias
		digits := string(content[2:])
		return decimalFromDigits(1, digits, exponent)
	case 1:
		if len(content) < 3 {
			return types.Decimal{}, fmt.Errorf("codec: truncated decimal")
		}
		mag := invert(content[1:])
		mag = mag[:len(mag)-1] // drop the ordering sentinel
		exponent := int32(mag[0]) - decimalExpBias
		digits := string(mag[1:])
		return decimalFromDigits(-1, digits, exponent)
	default:
		return types.Decimal{}, fmt.Errorf("codec: bad decimal marker %d", content[0])
	}
}

func decimalFromDigits(sign int, digits string, exponent int32) (types.Decimal, error) {
	unscaled, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return types.Decimal{}, fmt.Errorf("codec: bad decimal digits %q", digits)
	}
	if sign < 0 {
		unscaled.Neg(unscaled)
	}
	scale := int32(len(digits)) - exponent
	return types.Decimal{Unscaled: unscaled, Scale: scale}, nil
}

// decimalNormalize strips trailing zero digits from the unscaled mantissa
// (decrementing scale to compensate, which preserves value) and returns
// the canonical (sign, digit-string, exponent) triple, where exponent is
// the power-of-ten position of the leading digit.
func decimalNormalize(d types.Decimal) (sign int, digits string, exponent int32) {
	if d.IsZero() {
		return 0, "", 0
	}
	u := new(big.Int).Abs(d.Unscaled)
	scale := d.Scale
	ten := big.NewInt(10)
	mod := new(big.Int)
	q := new(big.Int)
	for u.Sign() != 0 {
		q.QuoRem(u, ten, mod)
		if mod.Sign() != 0 {
			break
		}
		u.Set(q)
		scale--
	}
	digits = u.String()
	exponent = int32(len(digits)) - scale
	return d.Sign(), digits, exponent
}
