package execution

import (
	"fmt"

	"github.com/Afeather2017/reldb/storage/page"
)

// HashJoin builds a hash table over the right child keyed by its join
// key, then probes with each left tuple, per spec §4.7.
type HashJoin struct {
	left, right       Operator
	leftKey, rightKey ValueExpr
	leftJoin          bool
	rightCols         int

	built   map[string][]Row
	probing []Row
	idx     int
	leftRow Row
	matched bool
}

// NewHashJoin returns a join keyed by leftKey/rightKey.
func NewHashJoin(left, right Operator, leftKey, rightKey ValueExpr, leftJoin bool, rightCols int) *HashJoin {
	return &HashJoin{left: left, right: right, leftKey: leftKey, rightKey: rightKey, leftJoin: leftJoin, rightCols: rightCols}
}

func (j *HashJoin) Init() error {
	if err := j.left.Init(); err != nil {
		return err
	}
	if err := j.right.Init(); err != nil {
		return err
	}

	j.built = make(map[string][]Row)
	for {
		row, _, ok, err := j.right.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		k := fmt.Sprint(j.rightKey(row))
		j.built[k] = append(j.built[k], row)
	}

	j.probing = nil
	j.idx = 0
	return nil
}

func (j *HashJoin) Next() (Row, page.RID, bool, error) {
	for {
		if j.idx < len(j.probing) {
			r := j.probing[j.idx]
			j.idx++
			j.matched = true
			return concatRows(j.leftRow, r), page.RID{}, true, nil
		}

		if j.leftRow != nil && !j.matched && j.leftJoin {
			padded := concatRows(j.leftRow, make(Row, j.rightCols))
			j.leftRow = nil
			return padded, page.RID{}, true, nil
		}

		row, _, ok, err := j.left.Next()
		if err != nil {
			return nil, page.RID{}, false, err
		}
		if !ok {
			return nil, page.RID{}, false, nil
		}
		j.leftRow = row
		j.matched = false
		j.probing = j.built[fmt.Sprint(j.leftKey(row))]
		j.idx = 0
	}
}

func (j *HashJoin) Close() error {
	if err := j.left.Close(); err != nil {
		return err
	}
	return j.right.Close()
}
