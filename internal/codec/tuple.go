package codec

import (
	"encoding/binary"

	"incresql/internal/types"
)

// EncodeTuple encodes a row's columns in order, one sort order per column
// (cycling the last order if fewer are given than columns, for
// convenience when every column shares one order).
func EncodeTuple(row types.Row, orders []types.SortOrder, buf []byte) []byte {
	for i, d := range row {
		o := types.Ascending
		if len(orders) > 0 {
			if i < len(orders) {
				o = orders[i]
			} else {
				o = orders[len(orders)-1]
			}
		}
		buf = Encode(d, o, buf)
	}
	return buf
}

// DecodeTuple decodes n columns from the front of buf.
func DecodeTuple(buf []byte, n int) (types.Row, []byte, error) {
	row := make(types.Row, n)
	for i := 0; i < n; i++ {
		d, rest, err := Decode(buf)
		if err != nil {
			return nil, nil, err
		}
		row[i] = d
		buf = rest
	}
	return row, buf, nil
}

// InvertedTimestamp encodes a LogicalTimestamp (ms since epoch) as an
// 8-byte big-endian, bitwise-inverted value, so that within one primary
// key a forward scan surfaces the newest version first (spec.md 3, 6).
func InvertedTimestamp(ms int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, ^uint64(ms))
	return buf
}

// DecodeInvertedTimestamp is the inverse of InvertedTimestamp.
func DecodeInvertedTimestamp(buf []byte) int64 {
	return int64(^binary.BigEndian.Uint64(buf))
}

// TableIDPrefix encodes a table id as a 4-byte big-endian prefix
// (spec.md 3, 6).
func TableIDPrefix(tableID uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, tableID)
	return buf
}
