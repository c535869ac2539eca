package functions

import "incresql/internal/types"

// countState/sumState etc. hold the running accumulator for each
// aggregate definition (spec.md 4.4: Initialize/Apply/Merge/Finalize,
// plus Retract for retraction-aware streaming aggregation).

type countState struct{ n int64 }

func registerCountAggregate(reg *Registry) {
	reg.Register(&Definition{
		Name: "count",
		Args: []types.DataType{},
		Ret:  types.TBigInt,
		Kind: AggregateKind,
		Aggregate: &AggregateDef{
			Initialize: func() AggregateState { return &countState{} },
			Apply: func(state AggregateState, args []types.Datum) AggregateState {
				state.(*countState).n++
				return state
			},
			Merge: func(a, b AggregateState) AggregateState {
				as, bs := a.(*countState), b.(*countState)
				return &countState{n: as.n + bs.n}
			},
			Finalize: func(state AggregateState, ret types.DataType) types.Datum {
				return types.NewBigInt(state.(*countState).n)
			},
			SupportsRetract: true,
			Retract: func(state AggregateState, args []types.Datum) AggregateState {
				state.(*countState).n--
				return state
			},
		},
	})
}

type sumState struct {
	dec     types.Decimal
	present bool
}

func registerSumAndAvgAggregates(reg *Registry) {
	numeric := types.TDecimal(types.MaxPrecision, types.MaxScale)

	reg.Register(&Definition{
		Name: "sum",
		Args: []types.DataType{numeric},
		RetResolver: func(argTypes []types.DataType) types.DataType {
			_, s := decimalPS(argTypes[0])
			return types.TDecimal(types.MaxPrecision, s)
		},
		Kind: AggregateKind,
		Aggregate: &AggregateDef{
			Initialize: func() AggregateState { return &sumState{dec: types.ZeroDecimal} },
			Apply: func(state AggregateState, args []types.Datum) AggregateState {
				s := state.(*sumState)
				if args[0].IsNull() {
					return s
				}
				v, _ := args[0].AsDecimal()
				s.dec = s.dec.Add(v)
				s.present = true
				return s
			},
			Merge: func(a, b AggregateState) AggregateState {
				as, bs := a.(*sumState), b.(*sumState)
				return &sumState{dec: as.dec.Add(bs.dec), present: as.present || bs.present}
			},
			Finalize: func(state AggregateState, ret types.DataType) types.Datum {
				s := state.(*sumState)
				if !s.present {
					return types.NullDatum
				}
				return types.NewDecimalDatum(s.dec)
			},
			SupportsRetract: true,
			Retract: func(state AggregateState, args []types.Datum) AggregateState {
				s := state.(*sumState)
				if args[0].IsNull() {
					return s
				}
				v, _ := args[0].AsDecimal()
				s.dec = s.dec.Sub(v)
				return s
			},
		},
	})

	type avgState struct {
		sum   types.Decimal
		count int64
	}
	reg.Register(&Definition{
		Name: "avg",
		Args: []types.DataType{numeric},
		Ret:  numeric,
		Kind: AggregateKind,
		Aggregate: &AggregateDef{
			Initialize: func() AggregateState { return &avgState{sum: types.ZeroDecimal} },
			Apply: func(state AggregateState, args []types.Datum) AggregateState {
				s := state.(*avgState)
				if args[0].IsNull() {
					return s
				}
				v, _ := args[0].AsDecimal()
				s.sum = s.sum.Add(v)
				s.count++
				return s
			},
			Merge: func(a, b AggregateState) AggregateState {
				as, bs := a.(*avgState), b.(*avgState)
				return &avgState{sum: as.sum.Add(bs.sum), count: as.count + bs.count}
			},
			Finalize: func(state AggregateState, ret types.DataType) types.Datum {
				s := state.(*avgState)
				if s.count == 0 {
					return types.NullDatum
				}
				scale := ret.Scale
				return types.NewDecimalDatum(s.sum.Div(types.NewDecimal(s.count, 0), scale))
			},
			SupportsRetract: true,
			Retract: func(state AggregateState, args []types.Datum) AggregateState {
				s := state.(*avgState)
				if args[0].IsNull() {
					return s
				}
				v, _ := args[0].AsDecimal()
				s.sum = s.sum.Sub(v)
				s.count--
				return s
			},
		},
	})
}

type minMaxState struct {
	val     types.Datum
	present bool
}

func registerMinMaxAggregates(reg *Registry) {
	minMax := func(name string, replace func(cmp int) bool) {
		for _, dt := range []types.DataType{types.TInteger, types.TBigInt, types.TDecimal(types.MaxPrecision, types.MaxScale), types.TText} {
			dt := dt
			reg.Register(&Definition{
				Name: name, Args: []types.DataType{dt}, Ret: dt, Kind: AggregateKind,
				Aggregate: &AggregateDef{
					Initialize: func() AggregateState { return &minMaxState{} },
					Apply: func(state AggregateState, args []types.Datum) AggregateState {
						s := state.(*minMaxState)
						if args[0].IsNull() {
							return s
						}
						if !s.present || replace(s.val.Compare(args[0])) {
							s.val = args[0].IntoStatic()
							s.present = true
						}
						return s
					},
					Merge: func(a, b AggregateState) AggregateState {
						as, bs := a.(*minMaxState), b.(*minMaxState)
						if !bs.present {
							return as
						}
						if !as.present || replace(as.val.Compare(bs.val)) {
							return bs
						}
						return as
					},
					Finalize: func(state AggregateState, ret types.DataType) types.Datum {
						s := state.(*minMaxState)
						if !s.present {
							return types.NullDatum
						}
						return s.val
					},
				},
			})
		}
	}
	minMax("min", func(cmp int) bool { return cmp > 0 })
	minMax("max", func(cmp int) bool { return cmp < 0 })
}

func registerAggregates(reg *Registry) {
	registerCountAggregate(reg)
	registerSumAndAvgAggregates(reg)
	registerMinMaxAggregates(reg)
}
