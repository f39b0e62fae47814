package execution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intLess(a, b any) bool { return a.(int64) < b.(int64) }

func TestAggregationGroupsAndCombines(t *testing.T) {
	child := newSliceOp(
		Row{"produce", int64(3)},
		Row{"produce", int64(5)},
		Row{"dairy", int64(7)},
	)
	agg := NewAggregation(child,
		[]ValueExpr{func(r Row) any { return r[0] }},
		[]AggExpr{
			{Func: AggCountStar},
			{Func: AggSum, Value: func(r Row) any { return r[1] }},
			{Func: AggMax, Value: func(r Row) any { return r[1] }},
		},
	)

	rows := drainRows(t, agg)
	require.Len(t, rows, 2)

	byGroup := map[string]Row{}
	for _, r := range rows {
		byGroup[r[0].(string)] = r
	}
	require.Equal(t, int64(2), byGroup["produce"][1])
	require.Equal(t, float64(8), byGroup["produce"][2])
	require.Equal(t, int64(5), byGroup["produce"][3])
	require.Equal(t, int64(1), byGroup["dairy"][1])
}

func TestAggregationNoGroupByEmptyInputEmitsOneDefaultRow(t *testing.T) {
	child := newSliceOp()
	agg := NewAggregation(child, nil, []AggExpr{{Func: AggCountStar}})
	rows := drainRows(t, agg)
	require.Len(t, rows, 1)
	require.Equal(t, int64(0), rows[0][0])
}

func TestSortOrdersByKeysDescending(t *testing.T) {
	child := newSliceOp(Row{int64(3)}, Row{int64(1)}, Row{int64(2)})
	s := NewSort(child, []SortKey{{Value: func(r Row) any { return r[0] }, Less: intLess, Desc: true}})
	rows := drainRows(t, s)
	require.Equal(t, []Row{{int64(3)}, {int64(2)}, {int64(1)}}, rows)
}

func TestTopNKeepsSmallestNAscending(t *testing.T) {
	child := newSliceOp(Row{int64(5)}, Row{int64(1)}, Row{int64(9)}, Row{int64(3)}, Row{int64(7)})
	top := NewTopN(child, []SortKey{{Value: func(r Row) any { return r[0] }, Less: intLess}}, 2)
	rows := drainRows(t, top)
	require.Equal(t, []Row{{int64(1)}, {int64(3)}}, rows)
}

// TestTopNTiesBreakLikeStableSortPlusLimit pins down the exact
// counterexample a bounded max-heap gets wrong if it only compares an
// incoming row against the current root: rows A(1),B(2),C(1),D(1) fed in
// that order with N=2. A full stable Sort(asc) then Limit(2) keeps A and
// C (the two earliest arrivals among the tied key-1 rows), in that
// order; TopN must match it exactly, not the reverse.
func TestTopNTiesBreakLikeStableSortPlusLimit(t *testing.T) {
	child := newSliceOp(
		Row{int64(1), "A"},
		Row{int64(2), "B"},
		Row{int64(1), "C"},
		Row{int64(1), "D"},
	)
	top := NewTopN(child, []SortKey{{Value: func(r Row) any { return r[0] }, Less: intLess}}, 2)
	rows := drainRows(t, top)
	require.Equal(t, []Row{{int64(1), "A"}, {int64(1), "C"}}, rows)
}

func TestTopNWithNZeroYieldsNoRows(t *testing.T) {
	child := newSliceOp(Row{int64(1)})
	top := NewTopN(child, []SortKey{{Value: func(r Row) any { return r[0] }, Less: intLess}}, 0)
	rows := drainRows(t, top)
	require.Empty(t, rows)
}

func TestLimitSkipsOffsetThenBoundsCount(t *testing.T) {
	child := newSliceOp(Row{int64(1)}, Row{int64(2)}, Row{int64(3)}, Row{int64(4)})
	lim := NewLimit(child, 2, 1)
	rows := drainRows(t, lim)
	require.Equal(t, []Row{{int64(2)}, {int64(3)}}, rows)
}
