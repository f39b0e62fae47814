package execution

import (
	"container/heap"
	"sort"

	"github.com/Afeather2017/reldb/storage/page"
)

// TopN is Sort+Limit fused into a single pipeline breaker: it keeps a
// bounded max-heap of the N smallest rows seen so far, per spec §4.7's
// optimizer rule folding Limit(N, Sort(...)) into one operator.
type TopN struct {
	BaseOperator
	child Operator
	keys  []SortKey
	n     int

	rows []Row
	idx  int
}

// NewTopN returns a TopN executor yielding at most n rows ordered by
// keys.
func NewTopN(child Operator, keys []SortKey, n int) *TopN {
	return &TopN{BaseOperator: newBase(child), child: child, keys: keys, n: n}
}

// rankedRow pairs a row with its position in child's output order, so
// ties on every sort key can still be broken the same way a full
// Sort+Limit would break them: in favor of whichever row arrived first.
type rankedRow struct {
	row Row
	seq int
}

func (op *TopN) Init() error {
	if err := op.BaseOperator.Init(); err != nil {
		return err
	}

	if op.n <= 0 {
		op.rows = nil
		op.idx = 0
		return nil
	}

	h := &topNHeap{less: op.less}
	seq := 0
	for {
		row, _, ok, err := op.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rr := rankedRow{row: row, seq: seq}
		seq++
		if h.Len() < op.n {
			heap.Push(h, rr)
			continue
		}
		// h.rows[0] is the current worst (last-sorting, by key then
		// seq) of the kept set; a row that sorts before it displaces
		// it. A later-arriving row that only ties the root on every
		// key never displaces it: its higher seq makes it sort after
		// the tied root, so the earlier arrival is the one Limit(N,
		// Sort(...)) would have kept.
		if op.less(rr, h.rows[0]) {
			h.rows[0] = rr
			heap.Fix(h, 0)
		}
	}

	ranked := h.rows
	sort.SliceStable(ranked, func(i, j int) bool { return op.less(ranked[i], ranked[j]) })
	op.rows = make([]Row, len(ranked))
	for i, rr := range ranked {
		op.rows[i] = rr.row
	}
	op.idx = 0
	return nil
}

// less orders by op.keys exactly as sort.go's comparator does, then by
// original input position so ties resolve identically to a stable sort
// over the whole input.
func (op *TopN) less(a, b rankedRow) bool {
	for _, k := range op.keys {
		av, bv := k.Value(a.row), k.Value(b.row)
		switch {
		case k.Less(av, bv):
			return !k.Desc
		case k.Less(bv, av):
			return k.Desc
		}
	}
	return a.seq < b.seq
}

func (op *TopN) Next() (Row, page.RID, bool, error) {
	if op.idx >= len(op.rows) {
		return nil, page.RID{}, false, nil
	}
	row := op.rows[op.idx]
	op.idx++
	return row, page.RID{}, true, nil
}

func (op *TopN) Close() error { return op.BaseOperator.Close() }

// topNHeap is a max-heap over the ordering defined by less, so the
// current worst of the kept set always sits at the root.
type topNHeap struct {
	rows []rankedRow
	less func(a, b rankedRow) bool
}

func (h *topNHeap) Len() int           { return len(h.rows) }
func (h *topNHeap) Less(i, j int) bool { return h.less(h.rows[j], h.rows[i]) }
func (h *topNHeap) Swap(i, j int)      { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *topNHeap) Push(x any)         { h.rows = append(h.rows, x.(rankedRow)) }
func (h *topNHeap) Pop() any {
	n := len(h.rows)
	last := h.rows[n-1]
	h.rows = h.rows[:n-1]
	return last
}
