package execution

import (
	"fmt"

	"github.com/Afeather2017/reldb/storage/page"
)

// AggFunc names the supported combiners.
type AggFunc int

const (
	AggCountStar AggFunc = iota
	AggCount
	AggSum
	AggMin
	AggMax
)

// AggExpr is one aggregate in the output: Func combines Value(row)
// across every row in a group. Value is ignored for AggCountStar.
type AggExpr struct {
	Func  AggFunc
	Value ValueExpr
}

type aggState struct {
	count int64
	sum   float64
	min   any
	max   any
	seen  bool
}

func (s *aggState) add(v any) {
	s.seen = true
	s.count++
	if f, ok := toFloat(v); ok {
		s.sum += f
	}
	if s.min == nil || less(v, s.min) {
		s.min = v
	}
	if s.max == nil || less(s.max, v) {
		s.max = v
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func less(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// Aggregation is a pipeline breaker: Init fully drains child, grouping
// by GroupBy and folding each AggExprs entry, per spec §4.7. With no
// GroupBy columns and no input rows it still emits one default row
// (COUNT(*) and COUNT = 0, other aggregates null), matching standard SQL
// semantics.
type Aggregation struct {
	BaseOperator
	child   Operator
	groupBy []ValueExpr
	aggs    []AggExpr

	rows []Row
	idx  int
}

// NewAggregation returns an Aggregation executor over child.
func NewAggregation(child Operator, groupBy []ValueExpr, aggs []AggExpr) *Aggregation {
	return &Aggregation{BaseOperator: newBase(child), child: child, groupBy: groupBy, aggs: aggs}
}

func (op *Aggregation) Init() error {
	if err := op.BaseOperator.Init(); err != nil {
		return err
	}

	order := make([]string, 0)
	groups := make(map[string]Row)
	states := make(map[string][]*aggState)

	for {
		row, _, ok, err := op.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		key := make(Row, len(op.groupBy))
		for i, g := range op.groupBy {
			key[i] = g(row)
		}
		k := fmt.Sprint(key)

		if _, seen := groups[k]; !seen {
			order = append(order, k)
			groups[k] = key
			st := make([]*aggState, len(op.aggs))
			for i := range st {
				st[i] = &aggState{}
			}
			states[k] = st
		}
		for i, a := range op.aggs {
			if a.Func != AggCountStar {
				states[k][i].add(a.Value(row))
			} else {
				states[k][i].add(nil)
			}
		}
	}

	if len(order) == 0 && len(op.groupBy) == 0 {
		op.rows = []Row{op.finish(nil, make([]*aggState, len(op.aggs)))}
	} else {
		op.rows = make([]Row, 0, len(order))
		for _, k := range order {
			op.rows = append(op.rows, op.finish(groups[k], states[k]))
		}
	}
	op.idx = 0
	return nil
}

func (op *Aggregation) finish(key Row, states []*aggState) Row {
	out := make(Row, 0, len(key)+len(op.aggs))
	out = append(out, key...)
	for i, a := range op.aggs {
		st := states[i]
		if st == nil {
			st = &aggState{}
		}
		switch a.Func {
		case AggCountStar, AggCount:
			out = append(out, st.count)
		case AggSum:
			if st.seen {
				out = append(out, st.sum)
			} else {
				out = append(out, nil)
			}
		case AggMin:
			out = append(out, st.min)
		case AggMax:
			out = append(out, st.max)
		}
	}
	return out
}

func (op *Aggregation) Next() (Row, page.RID, bool, error) {
	if op.idx >= len(op.rows) {
		return nil, page.RID{}, false, nil
	}
	row := op.rows[op.idx]
	op.idx++
	return row, page.RID{}, true, nil
}

func (op *Aggregation) Close() error { return op.BaseOperator.Close() }
