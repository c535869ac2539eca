package types

import "testing"

func TestIntoStaticBorrowedBecomesOwned(t *testing.T) {
	src := []byte("hello world this is a borrowed value")
	borrowed := NewBytesBorrowed(src)
	static := borrowed.IntoStatic()

	if static.IsBorrowed() {
		t.Fatalf("expected static datum to not be borrowed")
	}
	// mutate the source buffer; static copy must be unaffected.
	for i := range src {
		src[i] = 'x'
	}
	b, _ := static.AsBytes()
	if string(b) != "hello world this is a borrowed value" {
		t.Fatalf("IntoStatic did not copy: got %q", b)
	}
}

func TestIntoStaticInlinesShortStrings(t *testing.T) {
	d := NewBytesBorrowed([]byte("short"))
	static := d.IntoStatic()
	b, _ := static.AsBytes()
	if string(b) != "short" {
		t.Fatalf("got %q", b)
	}
}

func TestSqlEqNullSafety(t *testing.T) {
	if NullDatum.SqlEq(NullDatum, false) {
		t.Fatal("Null should not equal Null under SQL equality")
	}
	if !NullDatum.SqlEq(NullDatum, true) {
		t.Fatal("Null should equal Null under null-safe equality")
	}
	if NullDatum.Equal(NewInteger(0)) {
		t.Fatal("Null should never equal a non-null value")
	}
}

func TestCompareOrdinalsDoNotMix(t *testing.T) {
	values := []Datum{
		NullDatum,
		NewBoolean(false),
		NewBoolean(true),
		NewInteger(-1),
		NewInteger(0),
		NewInteger(1),
		NewBytesOwned([]byte("a")),
		NewBytesOwned([]byte("b")),
	}
	for i := 0; i < len(values)-1; i++ {
		if values[i].Compare(values[i+1]) >= 0 {
			t.Fatalf("expected values[%d] < values[%d]", i, i+1)
		}
	}
}

func TestDecimalCompare(t *testing.T) {
	a := NewDecimalDatum(NewDecimal(150, 2)) // 1.50
	b := NewDecimalDatum(NewDecimal(15, 1))  // 1.5
	if a.Compare(b) != 0 {
		t.Fatalf("1.50 and 1.5 should compare equal, got %d", a.Compare(b))
	}
	c := NewDecimalDatum(NewDecimal(-5, 0))
	d := NewDecimalDatum(NewDecimal(-2, 0))
	if c.Compare(d) >= 0 {
		t.Fatalf("-5 should be less than -2")
	}
}
