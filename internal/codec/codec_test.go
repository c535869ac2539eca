package codec

import (
	"bytes"
	"sort"
	"testing"

	"incresql/internal/types"
)

func roundTrip(t *testing.T, d types.Datum, order types.SortOrder) types.Datum {
	t.Helper()
	buf := Encode(d, order, nil)
	got, rest, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no trailing bytes, got %d", len(rest))
	}
	if !got.SqlEq(d, true) {
		t.Fatalf("round trip mismatch: got %#v want %#v", got, d)
	}
	return got
}

func TestRoundTripAllKinds(t *testing.T) {
	jp, err := types.ParseJsonPath("$.a[3].b")
	if err != nil {
		t.Fatal(err)
	}
	datums := []types.Datum{
		types.NullDatum,
		types.NewBoolean(false),
		types.NewBoolean(true),
		types.NewInteger(0),
		types.NewInteger(-12345),
		types.NewInteger(2147483647),
		types.NewBigInt(-9223372036854775808),
		types.NewBigInt(1234567890123),
		types.NewDecimalDatum(types.NewDecimal(0, 0)),
		types.NewDecimalDatum(types.NewDecimal(-32678, 2)),
		types.NewDecimalDatum(types.NewDecimal(67832, 2)),
		types.NewBytesOwned([]byte("")),
		types.NewBytesOwned([]byte("abcd")),
		types.NewBytesOwned([]byte{0x00, 0x01, 0xFF, 0x00}),
		types.NewJsonPathOwned(jp),
	}
	for _, d := range datums {
		roundTrip(t, d, types.Ascending)
		roundTrip(t, d, types.Descending)
	}
}

// TestEncodingOrderMatchesSeedScenario6 checks spec.md 8 seed scenario 6:
// for [Null, false, true, Integer(-1), Integer(0), Integer(1), "a", "b"],
// ascending encodings sort in the given order and descending encodings
// sort in reverse.
func TestEncodingOrderMatchesSeedScenario6(t *testing.T) {
	datums := []types.Datum{
		types.NullDatum,
		types.NewBoolean(false),
		types.NewBoolean(true),
		types.NewInteger(-1),
		types.NewInteger(0),
		types.NewInteger(1),
		types.NewBytesOwned([]byte("a")),
		types.NewBytesOwned([]byte("b")),
	}

	ascEncoded := make([][]byte, len(datums))
	descEncoded := make([][]byte, len(datums))
	for i, d := range datums {
		ascEncoded[i] = Encode(d, types.Ascending, nil)
		descEncoded[i] = Encode(d, types.Descending, nil)
	}

	sorted := append([][]byte{}, ascEncoded...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })
	for i := range sorted {
		if !bytes.Equal(sorted[i], ascEncoded[i]) {
			t.Fatalf("ascending encodings not already sorted at index %d", i)
		}
	}

	sortedDesc := append([][]byte{}, descEncoded...)
	sort.Slice(sortedDesc, func(i, j int) bool { return bytes.Compare(sortedDesc[i], sortedDesc[j]) < 0 })
	for i := range sortedDesc {
		want := descEncoded[len(descEncoded)-1-i]
		if !bytes.Equal(sortedDesc[i], want) {
			t.Fatalf("descending encodings not reverse-sorted at index %d", i)
		}
	}
}

func TestEncodeOrderConsistentWithCompare(t *testing.T) {
	pairs := []types.Datum{
		types.NullDatum,
		types.NewBoolean(false),
		types.NewBoolean(true),
		types.NewInteger(-100),
		types.NewInteger(0),
		types.NewInteger(100),
		types.NewBigInt(-1),
		types.NewBigInt(1),
		types.NewDecimalDatum(types.NewDecimal(-150, 2)),
		types.NewDecimalDatum(types.NewDecimal(0, 0)),
		types.NewDecimalDatum(types.NewDecimal(150, 2)),
		types.NewBytesOwned([]byte("aaa")),
		types.NewBytesOwned([]byte("aab")),
		types.NewBytesOwned([]byte("ab")),
	}
	for _, order := range []types.SortOrder{types.Ascending, types.Descending} {
		for i := range pairs {
			for j := range pairs {
				enc1 := Encode(pairs[i], order, nil)
				enc2 := Encode(pairs[j], order, nil)
				byteCmp := bytes.Compare(enc1, enc2)
				var valCmp int
				if order == types.Ascending {
					valCmp = pairs[i].Compare(pairs[j])
				} else {
					valCmp = pairs[j].Compare(pairs[i])
				}
				if sign(byteCmp) != sign(valCmp) {
					t.Fatalf("order mismatch for %v vs %v at order %v: byteCmp=%d valCmp=%d", pairs[i], pairs[j], order, byteCmp, valCmp)
				}
			}
		}
	}
}

func sign(i int) int {
	switch {
	case i < 0:
		return -1
	case i > 0:
		return 1
	default:
		return 0
	}
}
