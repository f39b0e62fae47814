package execution

import (
	"fmt"
	"sort"

	"github.com/Afeather2017/reldb/storage/page"
)

// WindowFunc names the supported window functions.
type WindowFunc int

const (
	WinRowNumber WindowFunc = iota
	WinRank
	WinDenseRank
	WinSum
	WinCount
	WinMin
	WinMax
)

// Window is a pipeline breaker: Init drains child, partitions by
// PartitionBy, sorts each partition by OrderBy, and appends one
// computed column per row, per spec §4.7. Aggregate functions (Sum,
// Count, Min, Max) run over the unbounded-preceding frame — every row
// up to and including the current one in partition order.
type Window struct {
	BaseOperator
	child       Operator
	partitionBy []ValueExpr
	orderBy     []SortKey
	fn          WindowFunc
	value       ValueExpr

	rows []Row
	idx  int
}

// NewWindow returns a Window executor over child.
func NewWindow(child Operator, partitionBy []ValueExpr, orderBy []SortKey, fn WindowFunc, value ValueExpr) *Window {
	return &Window{BaseOperator: newBase(child), child: child, partitionBy: partitionBy, orderBy: orderBy, fn: fn, value: value}
}

func (op *Window) Init() error {
	if err := op.BaseOperator.Init(); err != nil {
		return err
	}

	order := make([]string, 0)
	partitions := make(map[string][]Row)
	for {
		row, _, ok, err := op.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		k := op.partitionKey(row)
		if _, seen := partitions[k]; !seen {
			order = append(order, k)
		}
		partitions[k] = append(partitions[k], row)
	}

	op.rows = nil
	for _, k := range order {
		op.rows = append(op.rows, op.computePartition(partitions[k])...)
	}
	op.idx = 0
	return nil
}

func (op *Window) partitionKey(row Row) string {
	key := make(Row, len(op.partitionBy))
	for i, p := range op.partitionBy {
		key[i] = p(row)
	}
	return fmt.Sprint(key)
}

func (op *Window) orderKey(row Row) string {
	key := make(Row, len(op.orderBy))
	for i, k := range op.orderBy {
		key[i] = k.Value(row)
	}
	return fmt.Sprint(key)
}

func (op *Window) computePartition(rows []Row) []Row {
	sort.SliceStable(rows, func(i, j int) bool { return op.orderLess(rows[i], rows[j]) })

	out := make([]Row, len(rows))
	st := &aggState{}
	// runningRank holds the rank assigned at the last row whose order
	// key differed from the current one; a tie reuses it unchanged
	// instead of advancing to the current row's position.
	runningRank, denseRank := 0, 0
	var lastKey string

	for i, row := range rows {
		k := op.orderKey(row)
		tie := i > 0 && k == lastKey

		switch op.fn {
		case WinRowNumber:
			out[i] = append(append(Row{}, row...), i+1)
		case WinRank:
			if !tie {
				runningRank = i + 1
			}
			out[i] = append(append(Row{}, row...), runningRank)
		case WinDenseRank:
			if !tie {
				denseRank++
			}
			out[i] = append(append(Row{}, row...), denseRank)
		case WinSum, WinCount, WinMin, WinMax:
			st.add(op.value(row))
			out[i] = append(append(Row{}, row...), op.aggValue(st))
		}
		lastKey = k
	}
	return out
}

func (op *Window) aggValue(st *aggState) any {
	switch op.fn {
	case WinSum:
		return st.sum
	case WinCount:
		return st.count
	case WinMin:
		return st.min
	case WinMax:
		return st.max
	default:
		return nil
	}
}

func (op *Window) orderLess(a, b Row) bool {
	for _, k := range op.orderBy {
		av, bv := k.Value(a), k.Value(b)
		switch {
		case k.Less(av, bv):
			return !k.Desc
		case k.Less(bv, av):
			return k.Desc
		}
	}
	return false
}

func (op *Window) Next() (Row, page.RID, bool, error) {
	if op.idx >= len(op.rows) {
		return nil, page.RID{}, false, nil
	}
	row := op.rows[op.idx]
	op.idx++
	return row, page.RID{}, true, nil
}

func (op *Window) Close() error { return op.BaseOperator.Close() }
