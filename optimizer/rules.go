package optimizer

import (
	"fmt"

	"github.com/Afeather2017/reldb/catalog"
	"github.com/Afeather2017/reldb/execution"
	"github.com/Afeather2017/reldb/logger"
)

// Optimize rewrites plan bottom-up, per spec §4.9, in the order that
// lets earlier rules feed later ones: chain decomposition runs on an
// NLJ's raw children before they are optimized (it needs to see the
// chain before any step converts to a HashJoin), then children are
// optimized, then pushdown strips non-equality conditions out of what
// remains, then equi-join conversion sees a clean HashJoin candidate,
// and index-pushdown/TopN fusion apply last since they match leaf- and
// root-shaped patterns respectively.
func Optimize(p Plan) Plan {
	// Decomposition must see the raw, not-yet-optimized chain: it only
	// recognizes a left child that is itself still an equality-only
	// NLJPlan, and that shape is exactly what nljToHashJoin below would
	// otherwise convert away first if children were optimized before
	// their parent ever got a look at them.
	if n, ok := p.(*NLJPlan); ok {
		p = decomposeMultiwayNLJ(n)
	}

	children := p.Children()
	optimized := make([]Plan, len(children))
	for i, c := range children {
		optimized[i] = Optimize(c)
	}
	p.SetChildren(optimized)

	switch n := p.(type) {
	case *NLJPlan:
		n.Left, n.Right = n.Children()[0], n.Children()[1]
		p = pushdownFilter(n)
		// pushdownFilter either returns n unchanged (try converting it
		// directly) or wraps it in a FilterPlan (try converting the
		// now residual-free join underneath, so rule 5 feeding rule 1
		// in the same pass actually takes effect instead of stopping
		// at the FilterPlan wrapper).
		if nlj, ok := p.(*NLJPlan); ok {
			p = nljToHashJoin(nlj)
		} else if outer, ok := p.(*FilterPlan); ok {
			if nlj, ok := outer.Child.(*NLJPlan); ok {
				outer.Child = nljToHashJoin(nlj)
				outer.SetChildren([]Plan{outer.Child})
			}
		}
	case *FilterPlan:
		n.Child = n.Children()[0]
		p = scanToIndexScan(n)
	case *LimitPlan:
		n.Child = n.Children()[0]
		p = sortLimitToTopN(n)
	}
	return p
}

// nljToHashJoin implements rule 1: an NLJ whose predicate is purely a
// conjunction of equalities (no residual) becomes a HashJoin keyed by
// those columns.
func nljToHashJoin(n *NLJPlan) Plan {
	if len(n.Conditions) == 0 || n.Residual != nil {
		return n
	}
	logger.Debugf("optimizer: rewriting equality-only nested-loop join (%d conditions) to hash join", len(n.Conditions))
	leftKey := compositeKey(columnsOf(n.Conditions, true))
	rightKey := compositeKey(columnsOf(n.Conditions, false))
	hj := &HashJoinPlan{Left: n.Left, Right: n.Right, LeftKey: leftKey, RightKey: rightKey, LeftJoin: n.LeftJoin, RightCols: n.RightCols}
	hj.SetChildren([]Plan{n.Left, n.Right})
	return hj
}

func columnsOf(conds []Equality, left bool) []int {
	cols := make([]int, len(conds))
	for i, c := range conds {
		if left {
			cols[i] = c.LeftCol
		} else {
			cols[i] = c.RightCol
		}
	}
	return cols
}

func compositeKey(cols []int) execution.ValueExpr {
	if len(cols) == 1 {
		col := cols[0]
		return func(r execution.Row) any { return r[col] }
	}
	return func(r execution.Row) any {
		vals := make(execution.Row, len(cols))
		for i, c := range cols {
			vals[i] = r[c]
		}
		return fmt.Sprint(vals)
	}
}

// sortLimitToTopN implements rule 2: Limit(N, Sort(keys, child)) with
// no offset becomes TopN(N, keys, child).
func sortLimitToTopN(l *LimitPlan) Plan {
	sort, ok := l.Child.(*SortPlan)
	if !ok || l.Offset != 0 {
		return l
	}
	logger.Debugf("optimizer: fusing sort+limit(%d) into top-N", l.N)
	top := &TopNPlan{Child: sort.Child, Keys: sort.Keys, N: l.N}
	top.SetChildren([]Plan{sort.Child})
	return top
}

// scanToIndexScan implements rule 3: a Filter directly over a SeqScan
// whose conditions contain exactly one equality against an indexed
// column, with no non-equality condition narrowing the scan, becomes
// an IndexScan. Any remaining equality conditions (on other columns)
// stay behind as a Filter over the IndexScan.
func scanToIndexScan(f *FilterPlan) Plan {
	scan, ok := f.Child.(*SeqScanPlan)
	if !ok {
		return f
	}
	for _, c := range f.Conditions {
		if !c.Equal {
			return f // a non-equality condition narrows the scan; rule does not apply
		}
	}
	return matchIndexedEquality(f, scan)
}

func matchIndexedEquality(f *FilterPlan, scan *SeqScanPlan) Plan {
	indexed := 0
	for _, c := range f.Conditions {
		if scan.indexOn(c.Col) != nil {
			indexed++
		}
	}
	if indexed != 1 {
		return f
	}
	for i, c := range f.Conditions {
		idx := scan.indexOn(c.Col)
		if idx == nil {
			continue
		}
		logger.Debugf("optimizer: rewriting sequential scan on %q to index scan via column %d", scan.Table.Name, idx.Column)
		key := make(execution.Row, idx.Column+1)
		key[idx.Column] = c.Value
		is := &IndexScanPlan{Table: scan.Table, Index: idx, Key: key, Width: scan.Width}

		remaining := make([]ColumnCond, 0, len(f.Conditions)-1)
		remaining = append(remaining, f.Conditions[:i]...)
		remaining = append(remaining, f.Conditions[i+1:]...)
		if len(remaining) == 0 {
			return is
		}
		out := &FilterPlan{Child: is, Conditions: remaining}
		out.SetChildren([]Plan{is})
		return out
	}
	return f
}

// decomposeMultiwayNLJ implements rule 4, scoped to left-deep chains:
// an NLJ whose left child is itself an equality-only, non-left-join NLJ
// (and whose own predicate is equality-only) is flattened into a single
// chain of leaves with every equality condition re-pushed to the
// shallowest join step that already has both of its referenced columns
// in scope — the deepest join that can evaluate it, since later steps
// only add columns. Joins involving LEFT join semantics or a residual
// predicate are left as chain boundaries; composing further would
// change which side's nulls propagate.
func decomposeMultiwayNLJ(n *NLJPlan) Plan {
	leftNLJ, ok := n.Left.(*NLJPlan)
	if !ok || leftNLJ.LeftJoin || leftNLJ.Residual != nil || n.LeftJoin || n.Residual != nil {
		return n
	}

	leaves, widths, allConds := flattenChain(n)
	logger.Debugf("optimizer: decomposing %d-way left-deep join chain", len(leaves))
	// widths[i] is the column count contributed by leaves[i]; offset[i]
	// is where leaves[i]'s columns start in the fully concatenated row.
	offsets := make([]int, len(widths))
	total := 0
	for i, w := range widths {
		offsets[i] = total
		total += w
	}

	// Rebuild left-deep, attaching to each step only the conditions
	// whose right-hand column first becomes available at that step and
	// whose left-hand column is already in scope.
	var cur Plan = leaves[0]
	curWidth := widths[0]
	for i := 1; i < len(leaves); i++ {
		var here []Equality
		var rest []Equality
		for _, c := range allConds {
			if c.RightCol >= offsets[i] && c.RightCol < offsets[i]+widths[i] && c.LeftCol < offsets[i] {
				here = append(here, Equality{LeftCol: c.LeftCol, RightCol: c.RightCol - offsets[i]})
			} else {
				rest = append(rest, c)
			}
		}
		allConds = rest

		step := &NLJPlan{Left: cur, Right: leaves[i], Conditions: here, RightCols: widths[i]}
		step.SetChildren([]Plan{cur, leaves[i]})
		cur = step
		curWidth += widths[i]
	}
	_ = curWidth
	return cur
}

// flattenChain walks a left-deep chain of equality-only NLJs, returning
// its leaves left-to-right, each leaf's column width, and every
// equality condition found anywhere in the chain with its column
// indices rewritten against the fully concatenated row.
func flattenChain(n *NLJPlan) (leaves []Plan, widths []int, conds []Equality) {
	var walk func(p Plan) int
	walk = func(p Plan) int {
		nlj, ok := p.(*NLJPlan)
		if !ok || nlj.LeftJoin || nlj.Residual != nil {
			leaves = append(leaves, p)
			w := planWidth(p)
			widths = append(widths, w)
			return w
		}
		leftWidth := walk(nlj.Left)
		for _, c := range nlj.Conditions {
			conds = append(conds, Equality{LeftCol: c.LeftCol, RightCol: leftWidth + c.RightCol})
		}
		return leftWidth + walk(nlj.Right)
	}
	walk(n)
	return leaves, widths, conds
}

// planWidth is the number of columns p's rows carry, computed
// recursively from the leaf plans' explicit Width fields — this core
// has no schema to derive column counts from (spec §1), so every leaf
// plan type that can appear here (SeqScanPlan, IndexScanPlan) carries
// its own Width, set by whatever built the plan, the same way HashJoin/
// NLJ already carry an explicit RightCols rather than deriving it.
func planWidth(p Plan) int {
	switch v := p.(type) {
	case *SeqScanPlan:
		return v.Width
	case *IndexScanPlan:
		return v.Width
	case *FilterPlan:
		return planWidth(v.Child)
	case *NLJPlan:
		return planWidth(v.Left) + planWidth(v.Right)
	case *HashJoinPlan:
		return planWidth(v.Left) + planWidth(v.Right)
	case *SortPlan:
		return planWidth(v.Child)
	case *LimitPlan:
		return planWidth(v.Child)
	case *TopNPlan:
		return planWidth(v.Child)
	case *AggregationPlan:
		return len(v.GroupBy) + len(v.Aggs)
	case *WindowPlan:
		return planWidth(v.Child) + 1
	default:
		return 0
	}
}

// pushdownFilter implements rule 5: an NLJ that still carries a
// residual (non-equality) predicate has that predicate extracted into
// an outer FilterPlan, leaving only the equi-join conditions on the
// join itself so a later nljToHashJoin call can convert it.
func pushdownFilter(n *NLJPlan) Plan {
	if n.Residual == nil {
		return n
	}
	logger.Debugf("optimizer: extracting residual predicate from nested-loop join into a filter")
	residual := n.Residual
	n.Residual = nil
	filtered := &FilterPlan{
		Child: n,
		Conditions: []ColumnCond{{
			Equal: false,
			Pred:  residual,
		}},
	}
	filtered.SetChildren([]Plan{n})
	return filtered
}

// indexOn returns the index built on scan's table keyed at column col,
// or nil. Exposed as a method on SeqScanPlan so scanToIndexScan stays a
// pure pattern match over Plan nodes rather than threading a Catalog
// through every rule; the caller that builds the initial plan attaches
// the candidate indexes once, up front.
func (s *SeqScanPlan) indexOn(col int) *catalog.IndexInfo {
	for _, idx := range s.Indexes {
		if idx.Column == col {
			return idx
		}
	}
	return nil
}
