package types

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"
	"strings"
)

// byteForm tracks which of the three physical byte representations a
// Datum with Tag == TagBytes is using. Go's GC makes all three memory-safe
// to hold onto; the distinction exists to preserve the engine's borrow
// contract (spec.md 3, 5): a borrowed Datum aliases a buffer that the
// producing iterator may overwrite on its next Advance, so callers that
// need to retain a row across iterator steps must call IntoStatic first.
type byteForm uint8

const (
	formBorrowed byteForm = iota
	formOwned
	formInline
)

// maxInline is the inline byte-string capacity from spec.md 3/4.1.
const maxInline = 22

// Datum is the tagged, borrow-aware in-memory value representation.
// The zero value is Null.
type Datum struct {
	tag  Tag
	b    bool
	i32  int32
	i64  int64
	dec  Decimal
	form byteForm
	buf  []byte
	ilen uint8
	inl  [maxInline]byte
	jp   *JsonPath
}

// NullDatum is the canonical Null value.
var NullDatum = Datum{tag: TagNull}

func NewBoolean(v bool) Datum { return Datum{tag: TagBoolean, b: v} }
func NewInteger(v int32) Datum { return Datum{tag: TagInteger, i32: v} }
func NewBigInt(v int64) Datum { return Datum{tag: TagBigInt, i64: v} }
func NewDecimalDatum(v Decimal) Datum { return Datum{tag: TagDecimal, dec: v} }

// NewBytesBorrowed wraps a slice owned by someone else (e.g. a storage
// decode buffer); it is only valid until that owner's next step.
func NewBytesBorrowed(b []byte) Datum {
	return Datum{tag: TagBytes, form: formBorrowed, buf: b}
}

// NewBytesOwned copies b into a Datum-owned representation, inlining when
// short enough to avoid a heap allocation.
func NewBytesOwned(b []byte) Datum {
	if len(b) <= maxInline {
		d := Datum{tag: TagBytes, form: formInline, ilen: uint8(len(b))}
		copy(d.inl[:], b)
		return d
	}
	owned := make([]byte, len(b))
	copy(owned, b)
	return Datum{tag: TagBytes, form: formOwned, buf: owned}
}

// NewText is a convenience for constructing an owned text/json/bytea datum
// from a Go string (e.g. for constant expressions).
func NewText(s string) Datum { return NewBytesOwned([]byte(s)) }

func NewJsonPathBorrowed(p *JsonPath) Datum { return Datum{tag: TagJsonPath, jp: p} }
func NewJsonPathOwned(p *JsonPath) Datum    { return Datum{tag: TagJsonPath, jp: p} }

func (d Datum) Tag() Tag     { return d.tag }
func (d Datum) IsNull() bool { return d.tag == TagNull }

func (d Datum) AsBoolean() (bool, bool) {
	if d.tag != TagBoolean {
		return false, false
	}
	return d.b, true
}

func (d Datum) AsInteger() (int32, bool) {
	if d.tag != TagInteger {
		return 0, false
	}
	return d.i32, true
}

func (d Datum) AsBigInt() (int64, bool) {
	if d.tag != TagBigInt {
		return 0, false
	}
	return d.i64, true
}

func (d Datum) AsDecimal() (Decimal, bool) {
	if d.tag != TagDecimal {
		return Decimal{}, false
	}
	return d.dec, true
}

// AsBytes returns the byte-string payload regardless of physical form.
func (d Datum) AsBytes() ([]byte, bool) {
	if d.tag != TagBytes {
		return nil, false
	}
	if d.form == formInline {
		return d.inl[:d.ilen], true
	}
	return d.buf, true
}

// AsText is AsBytes with a string result, for display/rendering use.
func (d Datum) AsText() (string, bool) {
	b, ok := d.AsBytes()
	if !ok {
		return "", false
	}
	return string(b), true
}

func (d Datum) AsJsonPath() (*JsonPath, bool) {
	if d.tag != TagJsonPath {
		return nil, false
	}
	return d.jp, true
}

// IsBorrowed reports whether this Datum aliases a buffer it does not own.
func (d Datum) IsBorrowed() bool {
	return d.tag == TagBytes && d.form == formBorrowed
}

// IntoStatic promotes any borrowed byte payload to an owned/inline one so
// the Datum is safe to retain past the producing iterator's next step.
func (d Datum) IntoStatic() Datum {
	if d.tag != TagBytes || d.form != formBorrowed {
		return d
	}
	return NewBytesOwned(d.buf)
}

func ordinal(d Datum) int {
	switch d.tag {
	case TagNull:
		return 0
	case TagBoolean:
		if !d.b {
			return 1
		}
		return 2
	case TagInteger:
		return 3
	case TagBigInt:
		return 4
	case TagDecimal:
		return 5
	case TagBytes:
		return 6
	case TagJsonPath:
		return 7
	default:
		return 8
	}
}

// Compare implements the engine's total order (spec.md 3): Null is
// smallest, tag ordinals never mix, byte strings compare lexicographically.
// It is null-safe (Null compares equal to Null, less than everything else).
func (d Datum) Compare(o Datum) int {
	oa, ob := ordinal(d), ordinal(o)
	if oa != ob {
		return oa - ob
	}
	switch d.tag {
	case TagNull, TagBoolean:
		return 0
	case TagInteger:
		return int(d.i32) - int(o.i32)
	case TagBigInt:
		switch {
		case d.i64 < o.i64:
			return -1
		case d.i64 > o.i64:
			return 1
		default:
			return 0
		}
	case TagDecimal:
		return d.dec.Cmp(o.dec)
	case TagBytes:
		db, _ := d.AsBytes()
		ob, _ := o.AsBytes()
		return bytes.Compare(db, ob)
	case TagJsonPath:
		return strings.Compare(d.jp.Source, o.jp.Source)
	default:
		return 0
	}
}

// SqlEq implements spec.md 3's two equalities: with nullSafe == false this
// is SQL equality (Null != Null); with nullSafe == true it is null-safe
// equality (Null == Null).
func (d Datum) SqlEq(o Datum, nullSafe bool) bool {
	if d.tag == TagNull || o.tag == TagNull {
		return d.tag == TagNull && o.tag == TagNull && nullSafe
	}
	if d.tag != o.tag {
		return false
	}
	switch d.tag {
	case TagBoolean:
		return d.b == o.b
	case TagInteger:
		return d.i32 == o.i32
	case TagBigInt:
		return d.i64 == o.i64
	case TagDecimal:
		return d.dec.Cmp(o.dec) == 0
	case TagBytes:
		db, _ := d.AsBytes()
		ob, _ := o.AsBytes()
		return bytes.Equal(db, ob)
	case TagJsonPath:
		return d.jp.Source == o.jp.Source
	default:
		return false
	}
}

// Equal is SqlEq with nullSafe = true, matching Go's expected Eq semantics
// (used by maps/sets keyed on Datum values, e.g. hash-group keys).
func (d Datum) Equal(o Datum) bool { return d.SqlEq(o, true) }

// Hash is consistent with the null-safe equality used for group/join keys
// (spec.md 3: "Hashing uses the total-order semantics").
func (d Datum) Hash() uint64 {
	h := fnv.New64a()
	var scratch [9]byte
	scratch[0] = byte(ordinal(d))
	switch d.tag {
	case TagBoolean:
		if d.b {
			scratch[1] = 1
		}
		h.Write(scratch[:2])
	case TagInteger:
		binary.BigEndian.PutUint32(scratch[1:5], uint32(d.i32))
		h.Write(scratch[:5])
	case TagBigInt:
		binary.BigEndian.PutUint64(scratch[1:9], uint64(d.i64))
		h.Write(scratch[:9])
	case TagDecimal:
		h.Write(scratch[:1])
		h.Write([]byte(d.dec.String()))
	case TagBytes:
		h.Write(scratch[:1])
		b, _ := d.AsBytes()
		h.Write(b)
	case TagJsonPath:
		h.Write(scratch[:1])
		h.Write([]byte(d.jp.Source))
	default:
		h.Write(scratch[:1])
	}
	return h.Sum64()
}
