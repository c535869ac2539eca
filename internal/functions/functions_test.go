package functions

import (
	"testing"

	"incresql/internal/types"
)

type fakeCtx struct{}

func (fakeCtx) NowMillis() int64                         { return 0 }
func (fakeCtx) Variable(name string) (types.Datum, bool) { return types.NullDatum, false }

func newTestRegistry() *Registry {
	reg := NewRegistry()
	Register(reg)
	return reg
}

func TestResolveIntegerAddition(t *testing.T) {
	reg := newTestRegistry()
	def, coerced, ret, err := reg.Resolve("+", []types.DataType{types.TInteger, types.TInteger})
	if err != nil {
		t.Fatal(err)
	}
	if !ret.Equals(types.TInteger) {
		t.Fatalf("expected Integer return, got %v", ret)
	}
	got, err := def.Scalar(fakeCtx{}, []types.Datum{types.NewInteger(1), types.NewInteger(2)}, coerced[0])
	if err != nil {
		t.Fatal(err)
	}
	v, _ := got.AsInteger()
	if v != 3 {
		t.Fatalf("expected 3, got %d", v)
	}
}

// TestDecimalMultiplyPrecisionScale checks spec.md 4.4's `*` formula:
// p = min(p1+p2, 28), s = min(s1+s2, 28).
func TestDecimalMultiplyPrecisionScale(t *testing.T) {
	reg := newTestRegistry()
	a := types.TDecimal(10, 2)
	b := types.TDecimal(10, 2)
	def, _, ret, err := reg.Resolve("*", []types.DataType{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if ret.Precision != 20 || ret.Scale != 4 {
		t.Fatalf("expected Decimal(20,4), got %v", ret)
	}
	res, err := def.Scalar(fakeCtx{}, []types.Datum{
		types.NewDecimalDatum(types.NewDecimal(230, 2)),
		types.NewDecimalDatum(types.NewDecimal(100, 2)),
	}, ret)
	if err != nil {
		t.Fatal(err)
	}
	dec, _ := res.AsDecimal()
	if dec.String() != "2.3000" {
		t.Fatalf("expected 2.3000, got %s", dec.String())
	}
}

// TestDecimalAddPrecisionScale checks spec.md 4.4's `+` formula:
// p = min(max(p1-s1, p2-s2) + max(s1,s2) + 1, 28), s = max(s1,s2).
func TestDecimalAddPrecisionScale(t *testing.T) {
	reg := newTestRegistry()
	a := types.TDecimal(10, 2)
	b := types.TDecimal(12, 4)
	_, _, ret, err := reg.Resolve("+", []types.DataType{a, b})
	if err != nil {
		t.Fatal(err)
	}
	// max(10-2, 12-4) + max(2,4) + 1 = max(8,8) + 4 + 1 = 13
	if ret.Precision != 13 || ret.Scale != 4 {
		t.Fatalf("expected Decimal(13,4), got %v", ret)
	}
}

func TestNullPropagation(t *testing.T) {
	reg := newTestRegistry()
	def, _, _, err := reg.Resolve("+", []types.DataType{types.TInteger, types.TInteger})
	if err != nil {
		t.Fatal(err)
	}
	got, err := def.Scalar(fakeCtx{}, []types.Datum{types.NullDatum, types.NewInteger(2)}, types.TInteger)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsNull() {
		t.Fatalf("expected null result, got %v", got)
	}
}

func TestComparisonAndBoolean(t *testing.T) {
	reg := newTestRegistry()
	def, _, _, err := reg.Resolve("<", []types.DataType{types.TInteger, types.TInteger})
	if err != nil {
		t.Fatal(err)
	}
	got, err := def.Scalar(fakeCtx{}, []types.Datum{types.NewInteger(1), types.NewInteger(2)}, types.TBoolean)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := got.AsBoolean(); !v {
		t.Fatal("expected true")
	}

	andDef, _, _, err := reg.Resolve("and", []types.DataType{types.TBoolean, types.TBoolean})
	if err != nil {
		t.Fatal(err)
	}
	res, err := andDef.Scalar(fakeCtx{}, []types.Datum{types.NewBoolean(false), types.NullDatum}, types.TBoolean)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := res.AsBoolean(); !ok || v {
		t.Fatalf("expected false (short-circuit), got %v", res)
	}
}

func TestCastIntegerToText(t *testing.T) {
	reg := newTestRegistry()
	def, _, ret, err := reg.Resolve("to_text", []types.DataType{types.TInteger})
	if err != nil {
		t.Fatal(err)
	}
	got, err := def.Scalar(fakeCtx{}, []types.Datum{types.NewInteger(42)}, ret)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := got.AsText(); s != "42" {
		t.Fatalf("expected \"42\", got %q", s)
	}
}

func TestAggregateCountSumAvg(t *testing.T) {
	reg := newTestRegistry()

	countDef, _, _, err := reg.Resolve("count", nil)
	if err != nil {
		t.Fatal(err)
	}
	state := countDef.Aggregate.Initialize()
	state = countDef.Aggregate.Apply(state, nil)
	state = countDef.Aggregate.Apply(state, nil)
	if v, _ := countDef.Aggregate.Finalize(state, types.TBigInt).AsBigInt(); v != 2 {
		t.Fatalf("expected count 2, got %d", v)
	}
	state = countDef.Aggregate.Retract(state, nil)
	if v, _ := countDef.Aggregate.Finalize(state, types.TBigInt).AsBigInt(); v != 1 {
		t.Fatalf("expected count 1 after retract, got %d", v)
	}

	numeric := types.TDecimal(types.MaxPrecision, types.MaxScale)
	sumDef, _, sumRet, err := reg.Resolve("sum", []types.DataType{numeric})
	if err != nil {
		t.Fatal(err)
	}
	sumState := sumDef.Aggregate.Initialize()
	sumState = sumDef.Aggregate.Apply(sumState, []types.Datum{types.NewDecimalDatum(types.NewDecimal(100, 2))})
	sumState = sumDef.Aggregate.Apply(sumState, []types.Datum{types.NewDecimalDatum(types.NewDecimal(200, 2))})
	sumRes := sumDef.Aggregate.Finalize(sumState, sumRet)
	dec, _ := sumRes.AsDecimal()
	if dec.String() != "3.00" {
		t.Fatalf("expected 3.00, got %s", dec.String())
	}

	avgDef, _, avgRet, err := reg.Resolve("avg", []types.DataType{numeric})
	if err != nil {
		t.Fatal(err)
	}
	avgState := avgDef.Aggregate.Initialize()
	avgState = avgDef.Aggregate.Apply(avgState, []types.Datum{types.NewDecimalDatum(types.NewDecimal(100, 2))})
	avgState = avgDef.Aggregate.Apply(avgState, []types.Datum{types.NewDecimalDatum(types.NewDecimal(300, 2))})
	avgRes := avgDef.Aggregate.Finalize(avgState, avgRet)
	adec, _ := avgRes.AsDecimal()
	if adec.Cmp(types.NewDecimal(200, 2)) != 0 {
		t.Fatalf("expected avg 2.00, got %s", adec.String())
	}
}

func TestAggregateMinMax(t *testing.T) {
	reg := newTestRegistry()
	minDef, _, _, err := reg.Resolve("min", []types.DataType{types.TInteger})
	if err != nil {
		t.Fatal(err)
	}
	state := minDef.Aggregate.Initialize()
	state = minDef.Aggregate.Apply(state, []types.Datum{types.NewInteger(5)})
	state = minDef.Aggregate.Apply(state, []types.Datum{types.NewInteger(2)})
	state = minDef.Aggregate.Apply(state, []types.Datum{types.NewInteger(9)})
	got := minDef.Aggregate.Finalize(state, types.TInteger)
	if v, _ := got.AsInteger(); v != 2 {
		t.Fatalf("expected min 2, got %d", v)
	}
}

func TestCompoundBetweenRewrite(t *testing.T) {
	reg := newTestRegistry()
	numeric := types.TDecimal(types.MaxPrecision, types.MaxScale)
	def, _, _, err := reg.Resolve("between", []types.DataType{numeric, numeric, numeric})
	if err != nil {
		t.Fatal(err)
	}
	if def.Kind != CompoundKind {
		t.Fatalf("expected CompoundKind, got %v", def.Kind)
	}
	if def.Compound.Rewrite.Name != "and" || len(def.Compound.Rewrite.Args) != 2 {
		t.Fatalf("unexpected rewrite tree: %+v", def.Compound.Rewrite)
	}
	ge := def.Compound.Rewrite.Args[0].Call
	if ge.Name != ">=" || ge.Args[0].Index != 0 || ge.Args[1].Index != 1 {
		t.Fatalf("unexpected lower-bound rewrite: %+v", ge)
	}
}

func TestFunctionNotFound(t *testing.T) {
	reg := newTestRegistry()
	if _, _, _, err := reg.Resolve("nope", []types.DataType{types.TInteger}); err == nil {
		t.Fatal("expected ErrFunctionNotFound")
	}
}
