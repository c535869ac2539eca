package exec

import (
	"fmt"

	"incresql/internal/functions"
	"incresql/internal/kv"
	"incresql/internal/physical"
	"incresql/internal/storage"
)

// Build lowers one physical.Node into a runnable Executor tree, one node
// at a time, exactly as physical.Lower lowers logical into physical
// (spec.md 4.8). txn supplies the point-in-time read handle every
// TableScan needs; batch is non-nil only for statements that write
// (TableInsert), since a read-only SELECT never touches a WriteBatch.
func Build(n physical.Node, ctx functions.EvalContext, txn *kv.Txn, batch *storage.WriteBatch) (Executor, error) {
	switch t := n.(type) {
	case physical.Single:
		return NewSingle(), nil
	case *physical.Values:
		return NewValues(t.Data, len(t.Columns)), nil
	case *physical.Project:
		source, err := Build(t.Source, ctx, txn, batch)
		if err != nil {
			return nil, err
		}
		p := NewProject(ctx, t.Expressions, source)
		if t.Distinct {
			return NewDistinct(p), nil
		}
		return p, nil
	case *physical.Filter:
		source, err := Build(t.Source, ctx, txn, batch)
		if err != nil {
			return nil, err
		}
		return NewFilter(ctx, t.Predicate, source), nil
	case *physical.Limit:
		source, err := Build(t.Source, ctx, txn, batch)
		if err != nil {
			return nil, err
		}
		return NewLimit(t.Offset, t.Limit, t.HasLimit, source), nil
	case *physical.Sort:
		source, err := Build(t.Source, ctx, txn, batch)
		if err != nil {
			return nil, err
		}
		return NewSort(ctx, t.SortExpressions, source), nil
	case *physical.UnionAll:
		sources := make([]Executor, len(t.Sources))
		for i, s := range t.Sources {
			built, err := Build(s, ctx, txn, batch)
			if err != nil {
				return nil, err
			}
			sources[i] = built
		}
		return NewUnionAll(sources), nil
	case *physical.TableScan:
		return NewTableScan(txn, t.Table, t.Timestamp)
	case *physical.TableInsert:
		if batch == nil {
			return nil, fmt.Errorf("exec: build: TableInsert requires a write batch")
		}
		source, err := Build(t.Source, ctx, txn, batch)
		if err != nil {
			return nil, err
		}
		return NewTableInsert(t.Table, source, batch), nil
	case *physical.NegateFreq:
		source, err := Build(t.Source, ctx, txn, batch)
		if err != nil {
			return nil, err
		}
		return NewNegateFreq(source), nil
	case *physical.FileScan:
		return NewFileScan(t.Directory, t.SerdeOptions)
	case *physical.SortedGroup:
		source, err := Build(t.Source, ctx, txn, batch)
		if err != nil {
			return nil, err
		}
		return NewSortedGroup(ctx, t.KeyExpressions, t.Aggregates, source), nil
	case *physical.HashGroup:
		source, err := Build(t.Source, ctx, txn, batch)
		if err != nil {
			return nil, err
		}
		return NewHashGroup(ctx, t.KeyExpressions, t.Aggregates, source), nil
	case *physical.HashJoin:
		left, err := Build(t.Left, ctx, txn, batch)
		if err != nil {
			return nil, err
		}
		right, err := Build(t.Right, ctx, txn, batch)
		if err != nil {
			return nil, err
		}
		return NewHashJoin(ctx, left, right, t.LeftKeys, t.RightKeys, t.Residual, t.Type), nil
	default:
		return nil, fmt.Errorf("exec: build: unhandled physical node %T", n)
	}
}
