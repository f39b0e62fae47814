package execution

import "github.com/Afeather2017/reldb/storage/page"

// Limit passes through at most n rows from child, skipping the first
// offset, per spec §4.7.
type Limit struct {
	BaseOperator
	child  Operator
	n      int
	offset int

	emittedOffset bool
	skipped       int
	returned      int
}

// NewLimit returns a Limit executor yielding up to n rows after
// skipping offset rows of child.
func NewLimit(child Operator, n, offset int) *Limit {
	return &Limit{BaseOperator: newBase(child), child: child, n: n, offset: offset}
}

func (op *Limit) Init() error {
	op.skipped = 0
	op.returned = 0
	return op.BaseOperator.Init()
}

func (op *Limit) Next() (Row, page.RID, bool, error) {
	if op.returned >= op.n {
		return nil, page.RID{}, false, nil
	}
	for op.skipped < op.offset {
		_, _, ok, err := op.child.Next()
		if err != nil {
			return nil, page.RID{}, false, err
		}
		if !ok {
			return nil, page.RID{}, false, nil
		}
		op.skipped++
	}

	row, rid, ok, err := op.child.Next()
	if err != nil || !ok {
		return nil, page.RID{}, false, err
	}
	op.returned++
	return row, rid, true, nil
}

func (op *Limit) Close() error { return op.BaseOperator.Close() }
