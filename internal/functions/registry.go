// Package functions implements the scalar/aggregate/compound function
// catalog described in spec.md 4.4: definitions are indexed by (name,
// arity), resolved by coercing arguments to the nearest acceptable
// declared type along the widening lattice in internal/types.
//
// The registry pattern (a map guarded by a RWMutex, with Register/Resolve
// entry points) follows the same shape as the teacher's dialect registry
// (internal/dialect.RegisterDialect/GetDialect), except that each Registry
// value built by NewRegistry holds its own map and lock.
package functions

import (
	"fmt"
	"sync"

	"incresql/internal/types"
)

// EvalContext is the minimal session surface a scalar or aggregate body
// needs (spec.md 4.5: eval_scalar(session, row)). Session lives in
// internal/session; functions only depends on this interface to avoid an
// import cycle, and *session.Session satisfies it structurally.
type EvalContext interface {
	NowMillis() int64
	Variable(name string) (types.Datum, bool)
}

// Kind distinguishes the three function body variants from spec.md 4.4.
type Kind int

const (
	ScalarKind Kind = iota
	AggregateKind
	CompoundKind
)

// ScalarFn evaluates a resolved scalar call against already-evaluated
// argument Datums, returning the result (spec.md 4.4/4.5). Scalar
// evaluation errors become Null per spec.md 7's three-valued logic; a
// non-nil error here is reserved for genuinely unrecoverable faults.
type ScalarFn func(ctx EvalContext, args []types.Datum, ret types.DataType) (types.Datum, error)

// AggregateState is opaque accumulator state owned by one compiled
// aggregate node.
type AggregateState interface{}

// AggregateDef implements spec.md 4.4's aggregate body: state
// initialization, incorporation of one row's arguments, merge of two
// partial states, and finalization into a Datum. Retract is present only
// when SupportsRetract is true, undoing one prior Apply for retraction
// streams.
type AggregateDef struct {
	Initialize      func() AggregateState
	Apply           func(state AggregateState, args []types.Datum) AggregateState
	Merge           func(a, b AggregateState) AggregateState
	Finalize        func(state AggregateState, ret types.DataType) types.Datum
	SupportsRetract bool
	Retract         func(state AggregateState, args []types.Datum) AggregateState
}

// ArgSpec is one argument of a CompoundCall: either a literal reference
// to the original call's Nth argument, or a nested compound call.
type ArgSpec struct {
	Index int
	Call  *CompoundCall
}

// CompoundCall is the rewrite target of a CompoundDef (spec.md 4.4: "a
// rewriting macro... the planner substitutes the tree and re-resolves").
type CompoundCall struct {
	Name string
	Args []ArgSpec
}

// CompoundDef holds the rewrite tree a compound function expands into.
// The logical-plan validator (internal/logical) walks Rewrite,
// substituting ArgSpec.Index references with the original call's
// argument expressions.
type CompoundDef struct {
	Rewrite CompoundCall
}

// RetResolver computes a definition's actual return type from its
// resolved, post-coercion argument types -- used for Decimal
// precision/scale propagation (spec.md 4.4).
type RetResolver func(argTypes []types.DataType) types.DataType

// Definition is one entry in the registry: a signature plus a body.
type Definition struct {
	Name string
	Args []types.DataType
	Ret  types.DataType

	RetResolver RetResolver

	Kind      Kind
	Scalar    ScalarFn
	Aggregate *AggregateDef
	Compound  *CompoundDef
}

type key struct {
	name  string
	arity int
}

// Registry indexes Definitions by (name, arity), matching spec.md 4.4.
type Registry struct {
	mu   sync.RWMutex
	defs map[key][]*Definition
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: map[key][]*Definition{}}
}

// Register adds a definition, indexed by its name and declared arity.
func (r *Registry) Register(def *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{name: def.Name, arity: len(def.Args)}
	r.defs[k] = append(r.defs[k], def)
}

// ErrFunctionNotFound is returned by Resolve when no definition matches
// the given name and arity, or none of the candidates' argument types
// can be widened to match (spec.md 7: PlannerError.FunctionNotFound).
type ErrFunctionNotFound struct {
	Name  string
	Arity int
}

func (e *ErrFunctionNotFound) Error() string {
	return fmt.Sprintf("functions: no definition for %s/%d", e.Name, e.Arity)
}

// Resolve finds the best definition for name given the types of its
// already-typed arguments, per spec.md 4.4: match by (name, arity), then
// coerce each argument to the nearest acceptable declared type along the
// widening lattice. Decimal parameters are ignored during matching (any
// Decimal argument type matches a Decimal-typed parameter); the actual
// return type is computed from RetResolver when present.
//
// It returns the matched definition, the coerced argument types (the
// caller wraps each original argument in a to_<type> cast where it
// differs from the input type), and the resolved return type.
func (r *Registry) Resolve(name string, argTypes []types.DataType) (*Definition, []types.DataType, types.DataType, error) {
	r.mu.RLock()
	candidates := append([]*Definition{}, r.defs[key{name: name, arity: len(argTypes)}]...)
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, nil, types.DataType{}, &ErrFunctionNotFound{Name: name, Arity: len(argTypes)}
	}

	var best *Definition
	var bestCoerced []types.DataType
	bestCost := -1
	for _, cand := range candidates {
		coerced, cost, ok := matchArgs(cand.Args, argTypes)
		if !ok {
			continue
		}
		if bestCost == -1 || cost < bestCost {
			best, bestCoerced, bestCost = cand, coerced, cost
		}
	}
	if best == nil {
		return nil, nil, types.DataType{}, &ErrFunctionNotFound{Name: name, Arity: len(argTypes)}
	}

	ret := best.Ret
	if best.RetResolver != nil {
		// The resolver needs the original, uncoerced argument types: the
		// Decimal precision/scale formulas (spec.md 4.4) read p1,s1,p2,s2
		// off the actual inputs, not off a matched template parameter.
		ret = best.RetResolver(argTypes)
	}
	return best, bestCoerced, ret, nil
}

// matchArgs reports whether each input type can be coerced to the
// corresponding parameter type, returning the coerced types and a widen
// distance used to break ties between overloaded candidates.
func matchArgs(params []types.DataType, inputs []types.DataType) ([]types.DataType, int, bool) {
	coerced := make([]types.DataType, len(params))
	cost := 0
	for i, param := range params {
		in := inputs[i]
		if in.Tag == types.Null {
			coerced[i] = param
			continue
		}
		if param.Tag == types.DecimalType && in.Tag == types.DecimalType {
			coerced[i] = in
			continue
		}
		if in.Equals(param) {
			coerced[i] = param
			continue
		}
		widened, ok := types.Widen(in, param)
		if !ok || !widened.Equals(param) && param.Tag != types.DecimalType {
			// Parameter types outside the numeric lattice must match
			// exactly (spec.md 4.4: "Text <-> Json conversion requires
			// explicit cast").
			return nil, 0, false
		}
		coerced[i] = param
		cost++
	}
	return coerced, cost, true
}
