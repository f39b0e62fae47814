package execution

import "github.com/Afeather2017/reldb/storage/page"

type nljState int

const (
	nljInit nljState = iota
	nljFirst
	nljMulti
)

// NestedLoopJoin is the three-state join of spec §4.7: load one left
// tuple, restart right, emit all right matches; on no match and a LEFT
// join, emit left padded with nulls; advance to the next left tuple.
type NestedLoopJoin struct {
	left, right Operator
	pred        func(left, right Row) bool
	leftJoin    bool
	rightCols   int

	state     nljState
	leftRow   Row
	leftMatch bool
}

// NewNestedLoopJoin returns a join over left/right matched by pred.
// rightCols is the column count right emits, used to build the
// null-padded row on an unmatched LEFT join.
func NewNestedLoopJoin(left, right Operator, pred func(left, right Row) bool, leftJoin bool, rightCols int) *NestedLoopJoin {
	return &NestedLoopJoin{left: left, right: right, pred: pred, leftJoin: leftJoin, rightCols: rightCols}
}

func (j *NestedLoopJoin) Init() error {
	j.state = nljInit
	if err := j.left.Init(); err != nil {
		return err
	}
	return j.right.Init()
}

func (j *NestedLoopJoin) Next() (Row, page.RID, bool, error) {
	for {
		switch j.state {
		case nljInit, nljMulti:
			row, _, ok, err := j.left.Next()
			if err != nil {
				return nil, page.RID{}, false, err
			}
			if !ok {
				return nil, page.RID{}, false, nil
			}
			j.leftRow = row
			j.leftMatch = false
			if err := j.right.Init(); err != nil {
				return nil, page.RID{}, false, err
			}
			j.state = nljFirst
			fallthrough

		case nljFirst:
			for {
				rightRow, _, ok, err := j.right.Next()
				if err != nil {
					return nil, page.RID{}, false, err
				}
				if !ok {
					if !j.leftMatch && j.leftJoin {
						j.state = nljMulti
						return concatRows(j.leftRow, make(Row, j.rightCols)), page.RID{}, true, nil
					}
					j.state = nljMulti
					break
				}
				if j.pred(j.leftRow, rightRow) {
					j.leftMatch = true
					return concatRows(j.leftRow, rightRow), page.RID{}, true, nil
				}
			}
		}
	}
}

func concatRows(a, b Row) Row {
	out := make(Row, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func (j *NestedLoopJoin) Close() error {
	if err := j.left.Close(); err != nil {
		return err
	}
	return j.right.Close()
}
