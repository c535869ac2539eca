package exec

import (
	"incresql/internal/codec"
	"incresql/internal/types"
)

// encodeForKey appends d's ascending sortable encoding to buf. The
// sortable codec is injective over the value domain (spec.md 8: encode
// is a bijection with decode), so it is reused here as a cheap,
// allocation-light hash/equality key for distinct elimination, hash
// grouping, and hash joins -- all of which only need "same value", not
// "same order", over in-memory keys.
func encodeForKey(d types.Datum, buf []byte) []byte {
	return codec.Encode(d, types.Ascending, buf)
}

// rowKeyOf encodes the given offsets of row as one concatenated key.
func rowKeyOf(row types.Row, offsets []int) string {
	var buf []byte
	for _, off := range offsets {
		buf = encodeForKey(row[off], buf)
	}
	return string(buf)
}

// exprKeyOf encodes a row of already-evaluated datums as a key, used
// where the "columns" are evaluated expressions rather than plain
// offsets (HashGroup's KeyExpressions, HashJoin's LeftKeys/RightKeys).
func exprKeyOf(vals []types.Datum) string {
	var buf []byte
	for _, d := range vals {
		buf = encodeForKey(d, buf)
	}
	return string(buf)
}
