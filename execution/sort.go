package execution

import (
	"sort"

	"github.com/Afeather2017/reldb/storage/page"
)

// SortKey is one ORDER BY term.
type SortKey struct {
	Value ValueExpr
	Less  Less
	Desc  bool
}

// Sort is a pipeline breaker: Init drains child and orders the result
// with sort.SliceStable over the ordered SortKey list, per spec §4.7.
type Sort struct {
	BaseOperator
	child Operator
	keys  []SortKey

	rows []Row
	idx  int
}

// NewSort returns a Sort executor over child ordered by keys, most
// significant first.
func NewSort(child Operator, keys []SortKey) *Sort {
	return &Sort{BaseOperator: newBase(child), child: child, keys: keys}
}

func (op *Sort) Init() error {
	if err := op.BaseOperator.Init(); err != nil {
		return err
	}

	op.rows = nil
	for {
		row, _, ok, err := op.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		op.rows = append(op.rows, row)
	}

	sort.SliceStable(op.rows, func(i, j int) bool {
		return op.less(op.rows[i], op.rows[j])
	})
	op.idx = 0
	return nil
}

func (op *Sort) less(a, b Row) bool {
	for _, k := range op.keys {
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

func (op *Sort) Next() (Row, page.RID, bool, error) {
	if op.idx >= len(op.rows) {
		return nil, page.RID{}, false, nil
	}
	row := op.rows[op.idx]
	op.idx++
	return row, page.RID{}, true, nil
}

func (op *Sort) Close() error { return op.BaseOperator.Close() }
