// Package types holds the in-memory value representation (Datum) and its
// declared type (DataType) used throughout the query engine.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag identifies the physical kind of a Datum, independent of the declared
// DataType. The same byte representation backs both Text and Json, for
// example; DataType is what tells a caller how to interpret it.
type Tag uint8

const (
	TagNull Tag = iota
	TagBoolean
	TagInteger
	TagBigInt
	TagDecimal
	TagBytes
	TagJsonPath
)

// TypeTag identifies a declared column/expression type.
type TypeTag uint8

const (
	Null TypeTag = iota
	Boolean
	Integer
	BigInt
	DecimalType
	Date
	Timestamp
	Text
	Json
	ByteA
	JsonPathType
)

func (t TypeTag) String() string {
	switch t {
	case Null:
		return "NULL"
	case Boolean:
		return "BOOLEAN"
	case Integer:
		return "INTEGER"
	case BigInt:
		return "BIGINT"
	case DecimalType:
		return "DECIMAL"
	case Date:
		return "DATE"
	case Timestamp:
		return "TIMESTAMP"
	case Text:
		return "TEXT"
	case Json:
		return "JSON"
	case ByteA:
		return "BYTEA"
	case JsonPathType:
		return "JSONPATH"
	default:
		return "UNKNOWN"
	}
}

// MaxPrecision and MaxScale bound Decimal declarations, per spec.
const (
	MaxPrecision = 28
	MaxScale     = 28
)

// DataType is a declared column or expression type. Precision/Scale are
// only meaningful when Tag == DecimalType.
type DataType struct {
	Tag       TypeTag
	Precision int32
	Scale     int32
}

var (
	TNull      = DataType{Tag: Null}
	TBoolean   = DataType{Tag: Boolean}
	TInteger   = DataType{Tag: Integer}
	TBigInt    = DataType{Tag: BigInt}
	TDate      = DataType{Tag: Date}
	TTimestamp = DataType{Tag: Timestamp}
	TText      = DataType{Tag: Text}
	TJson      = DataType{Tag: Json}
	TByteA     = DataType{Tag: ByteA}
	TJsonPath  = DataType{Tag: JsonPathType}
)

// TDecimal builds a Decimal(p,s) declared type, clamping to the spec's
// bounds (precision/scale <= 28).
func TDecimal(precision, scale int32) DataType {
	if precision > MaxPrecision {
		precision = MaxPrecision
	}
	if scale > MaxScale {
		scale = MaxScale
	}
	if scale > precision {
		scale = precision
	}
	return DataType{Tag: DecimalType, Precision: precision, Scale: scale}
}

func (t DataType) String() string {
	if t.Tag == DecimalType {
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	}
	return t.Tag.String()
}

// ParseDataType parses the text produced by DataType.String, used by the
// catalog to persist and reload column types through its JSON schema
// representation (spec.md 4.3).
func ParseDataType(s string) (DataType, error) {
	if strings.HasPrefix(s, "DECIMAL(") && strings.HasSuffix(s, ")") {
		body := s[len("DECIMAL(") : len(s)-1]
		parts := strings.SplitN(body, ",", 2)
		if len(parts) != 2 {
			return DataType{}, fmt.Errorf("types: bad decimal type %q", s)
		}
		p, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return DataType{}, fmt.Errorf("types: bad decimal precision in %q: %w", s, err)
		}
		sc, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return DataType{}, fmt.Errorf("types: bad decimal scale in %q: %w", s, err)
		}
		return TDecimal(int32(p), int32(sc)), nil
	}
	switch s {
	case "NULL":
		return TNull, nil
	case "BOOLEAN":
		return TBoolean, nil
	case "INTEGER":
		return TInteger, nil
	case "BIGINT":
		return TBigInt, nil
	case "DATE":
		return TDate, nil
	case "TIMESTAMP":
		return TTimestamp, nil
	case "TEXT":
		return TText, nil
	case "JSON":
		return TJson, nil
	case "BYTEA":
		return TByteA, nil
	case "JSONPATH":
		return TJsonPath, nil
	default:
		return DataType{}, fmt.Errorf("types: unknown data type %q", s)
	}
}

func (t DataType) Equals(o DataType) bool {
	if t.Tag != o.Tag {
		return false
	}
	if t.Tag == DecimalType {
		return t.Precision == o.Precision && t.Scale == o.Scale
	}
	return true
}

// IsNumeric reports whether the type participates in the numeric widening
// lattice (Integer -> BigInt -> Decimal).
func (t DataType) IsNumeric() bool {
	switch t.Tag {
	case Integer, BigInt, DecimalType:
		return true
	default:
		return false
	}
}

// numericRank orders numeric types in the widening lattice; higher wins.
func numericRank(t TypeTag) int {
	switch t {
	case Integer:
		return 1
	case BigInt:
		return 2
	case DecimalType:
		return 3
	default:
		return 0
	}
}

// Widen computes the common type two declared types should be coerced to,
// per spec.md 4.4: Null widens to anything; Integer -> BigInt -> Decimal;
// Text/Json never widen into each other implicitly.
func Widen(a, b DataType) (DataType, bool) {
	if a.Tag == Null {
		return b, true
	}
	if b.Tag == Null {
		return a, true
	}
	if a.Equals(b) {
		return a, true
	}
	if a.IsNumeric() && b.IsNumeric() {
		if numericRank(a.Tag) >= numericRank(b.Tag) {
			return widenTo(a, b), true
		}
		return widenTo(b, a), true
	}
	return DataType{}, false
}

// widenTo returns `hi` widened to accommodate the precision/scale of `lo`
// when hi is Decimal; hi is assumed to already outrank lo.
func widenTo(hi, lo DataType) DataType {
	if hi.Tag != DecimalType {
		return hi
	}
	p, s := hi.Precision, hi.Scale
	if lo.Tag == DecimalType {
		if lo.Precision > p {
			p = lo.Precision
		}
		if lo.Scale > s {
			s = lo.Scale
		}
	}
	return TDecimal(p, s)
}
