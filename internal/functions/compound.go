package functions

import "incresql/internal/types"

// registerCompounds installs the rewriting macros from spec.md 4.4. A
// compound definition carries no Scalar/Aggregate body of its own; the
// planner re-resolves the Rewrite tree against the original call's
// arguments and never evaluates the compound name directly.
func registerCompounds(reg *Registry) {
	numeric := types.TDecimal(types.MaxPrecision, types.MaxScale)

	// between(x, lo, hi) => and(>=(x, lo), <=(x, hi))
	reg.Register(&Definition{
		Name: "between",
		Args: []types.DataType{numeric, numeric, numeric},
		Kind: CompoundKind,
		Compound: &CompoundDef{
			Rewrite: CompoundCall{
				Name: "and",
				Args: []ArgSpec{
					{Call: &CompoundCall{
						Name: ">=",
						Args: []ArgSpec{{Index: 0}, {Index: 1}},
					}},
					{Call: &CompoundCall{
						Name: "<=",
						Args: []ArgSpec{{Index: 0}, {Index: 2}},
					}},
				},
			},
		},
	})
}
