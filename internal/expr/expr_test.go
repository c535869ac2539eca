package expr

import (
	"testing"

	"incresql/internal/functions"
	"incresql/internal/types"
)

type fakeCtx struct{}

func (fakeCtx) NowMillis() int64                         { return 0 }
func (fakeCtx) Variable(name string) (types.Datum, bool) { return types.NullDatum, false }

func newRegistry() *functions.Registry {
	reg := functions.NewRegistry()
	functions.Register(reg)
	return reg
}

func TestCompiledFunctionCallEval(t *testing.T) {
	reg := newRegistry()
	def, _, ret, err := reg.Resolve("+", []types.DataType{types.TInteger, types.TInteger})
	if err != nil {
		t.Fatal(err)
	}
	call := NewCompiledFunctionCall("+", def, []Expr{
		&Constant{Value: types.NewInteger(1), Typ: types.TInteger},
		&Constant{Value: types.NewInteger(2), Typ: types.TInteger},
	}, ret)

	got, err := call.Eval(fakeCtx{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := got.AsInteger()
	if v != 3 {
		t.Fatalf("expected 3, got %d", v)
	}
	if call.Display() != "+(1, 2)" {
		t.Fatalf("unexpected display: %s", call.Display())
	}
}

func TestColumnReferenceEval(t *testing.T) {
	col := &CompiledColumnReference{Offset: 1, Typ: types.TInteger, DisplayName: "b"}
	row := types.Row{types.NewInteger(10), types.NewInteger(20)}
	got := col.Eval(row)
	v, _ := got.AsInteger()
	if v != 20 {
		t.Fatalf("expected 20, got %d", v)
	}
}

func TestEvalRow(t *testing.T) {
	reg := newRegistry()
	def, _, ret, err := reg.Resolve("+", []types.DataType{types.TInteger, types.TInteger})
	if err != nil {
		t.Fatal(err)
	}
	col := &CompiledColumnReference{Offset: 0, Typ: types.TInteger, DisplayName: "a"}
	call := NewCompiledFunctionCall("+", def, []Expr{col, &Constant{Value: types.NewInteger(1), Typ: types.TInteger}}, ret)

	row := types.Row{types.NewInteger(41)}
	out, err := EvalRow(fakeCtx{}, []Expr{col, call}, row)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := out[0].AsInteger(); v != 41 {
		t.Fatalf("expected 41, got %d", v)
	}
	if v, _ := out[1].AsInteger(); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestQuoteIdentifierDisplay(t *testing.T) {
	ref := &ColumnReference{Alias: "Weird Name"}
	if ref.Display() != "`Weird Name`" {
		t.Fatalf("expected backtick quoting, got %s", ref.Display())
	}
	plain := &ColumnReference{Alias: "plain"}
	if plain.Display() != "plain" {
		t.Fatalf("expected bare identifier, got %s", plain.Display())
	}
}

func TestDecimalLiteralPadding(t *testing.T) {
	c := &Constant{Value: types.NewDecimalDatum(types.NewDecimal(46, 1)), Typ: types.TDecimal(12, 1)}
	if c.Display() != "4.6" {
		t.Fatalf("expected 4.6, got %s", c.Display())
	}
}
