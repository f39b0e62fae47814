// Package optimizer rewrites a logical plan tree into a cheaper
// equivalent before it is built into an execution.Operator tree, per
// spec §4.9: five bottom-up pattern-matching rules over join, scan,
// sort/limit and filter nodes. Grounded on
// server/innodb/plan/optimizer.go and index_pushdown_optimizer.go — a
// type-switch over LogicalPlan node kinds, each holding a Children()
// slice rewritten before the local pattern match runs.
package optimizer

import (
	"github.com/Afeather2017/reldb/catalog"
	"github.com/Afeather2017/reldb/execution"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/Afeather2017/reldb/txn"
)

// Plan is one node of the logical tree the optimizer rewrites. Build
// lowers a (possibly already-optimized) node into the execution
// operator it denotes, binding it to a live transaction.
type Plan interface {
	Children() []Plan
	SetChildren([]Plan)
	Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error)
}

// BasePlan implements the Children/SetChildren bookkeeping every
// concrete node embeds, mirroring BaseLogicalPlan in
// server/innodb/plan/optimizer.go.
type BasePlan struct {
	children []Plan
}

func (b *BasePlan) Children() []Plan     { return b.children }
func (b *BasePlan) SetChildren(c []Plan) { b.children = c }

// Equality is a structured join condition: left child's column Left
// equals right child's column Right. Plans carry conditions this way,
// rather than as an opaque predicate, because this core has no
// expression evaluator (spec §1) to introspect an arbitrary closure —
// whatever builds the plan above this core is expected to hand the
// optimizer already-decomposed column references for every condition
// it wants pattern-matched, falling back to Residual for anything it
// cannot decompose.
type Equality struct {
	LeftCol  int
	RightCol int
}

// ColumnCond is a structured single-column condition used by FilterPlan:
// either an equality against a constant (Equal=true, Value set) or some
// other, opaque narrowing condition over the same column (Pred set).
type ColumnCond struct {
	Col   int
	Equal bool
	Value any
	Pred  execution.Predicate // always set; evaluates the full row
}

// SeqScanPlan is a full scan of Table. Indexes lists the candidate
// indexes the index-pushdown rule may rewrite this scan against;
// whatever builds the initial plan attaches them from the Catalog.
type SeqScanPlan struct {
	BasePlan
	Table   *catalog.TableInfo
	Filter  execution.Predicate // nil once residual conditions move into a FilterPlan
	Indexes []*catalog.IndexInfo
	Width   int // column count Table.Decode produces; this core has no schema to derive it from
}

func (p *SeqScanPlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	return execution.NewSeqScan(p.Table, txnMgr, tx, p.Filter), nil
}

// IndexScanPlan looks up a single row by an equality key.
type IndexScanPlan struct {
	BasePlan
	Table *catalog.TableInfo
	Index *catalog.IndexInfo
	Key   execution.Row
	Width int
}

func (p *IndexScanPlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	return execution.NewIndexScan(p.Table, p.Index, p.Key, txnMgr, tx), nil
}

// FilterPlan evaluates Conditions against its child's rows. Conditions
// is kept structured (rather than a single opaque closure) so the
// index-pushdown rule can inspect it.
type FilterPlan struct {
	BasePlan
	Child      Plan
	Conditions []ColumnCond
}

func (p *FilterPlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	child, err := p.Child.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	return &filterOperator{child: child, pred: andConditions(p.Conditions)}, nil
}

func andConditions(conds []ColumnCond) execution.Predicate {
	return func(r execution.Row) bool {
		for _, c := range conds {
			if !c.Pred(r) {
				return false
			}
		}
		return true
	}
}

// NLJPlan is a nested-loop join: Conditions is the equi-join part,
// Residual any leftover non-equality predicate over the concatenated
// row (nil once pushdown has run).
type NLJPlan struct {
	BasePlan
	Left, Right Plan
	Conditions  []Equality
	Residual    execution.Predicate
	LeftJoin    bool
	RightCols   int
}

func (p *NLJPlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	left, err := p.Left.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	right, err := p.Right.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	pred := nljPredicate(p.Conditions, p.Residual)
	return execution.NewNestedLoopJoin(left, right, pred, p.LeftJoin, p.RightCols), nil
}

func nljPredicate(conds []Equality, residual execution.Predicate) func(l, r execution.Row) bool {
	return func(l, r execution.Row) bool {
		for _, c := range conds {
			if l[c.LeftCol] != r[c.RightCol] {
				return false
			}
		}
		if residual != nil {
			return residual(concatRows(l, r))
		}
		return true
	}
}

func concatRows(a, b execution.Row) execution.Row {
	out := make(execution.Row, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// HashJoinPlan is a build/probe join keyed by LeftKey/RightKey.
type HashJoinPlan struct {
	BasePlan
	Left, Right       Plan
	LeftKey, RightKey execution.ValueExpr
	LeftJoin          bool
	RightCols         int
}

func (p *HashJoinPlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	left, err := p.Left.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	right, err := p.Right.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	return execution.NewHashJoin(left, right, p.LeftKey, p.RightKey, p.LeftJoin, p.RightCols), nil
}

// SortPlan materializes and orders its child.
type SortPlan struct {
	BasePlan
	Child Plan
	Keys  []execution.SortKey
}

func (p *SortPlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	child, err := p.Child.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	return execution.NewSort(child, p.Keys), nil
}

// LimitPlan bounds its child to N rows after Offset.
type LimitPlan struct {
	BasePlan
	Child  Plan
	N      int
	Offset int
}

func (p *LimitPlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	child, err := p.Child.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	return execution.NewLimit(child, p.N, p.Offset), nil
}

// TopNPlan fuses Sort+Limit into a single bounded-heap pass, per §4.9's
// rewrite rule; also constructible directly when a plan already knows
// it only needs the top N.
type TopNPlan struct {
	BasePlan
	Child Plan
	Keys  []execution.SortKey
	N     int
}

func (p *TopNPlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	child, err := p.Child.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	return execution.NewTopN(child, p.Keys, p.N), nil
}

// AggregationPlan, WindowPlan, InsertPlan, DeletePlan, UpdatePlan carry
// no rewrite-rule-relevant structure; they pass straight through to the
// matching execution constructor.

type AggregationPlan struct {
	BasePlan
	Child   Plan
	GroupBy []execution.ValueExpr
	Aggs    []execution.AggExpr
}

func (p *AggregationPlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	child, err := p.Child.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	return execution.NewAggregation(child, p.GroupBy, p.Aggs), nil
}

type WindowPlan struct {
	BasePlan
	Child       Plan
	PartitionBy []execution.ValueExpr
	OrderBy     []execution.SortKey
	Func        execution.WindowFunc
	Value       execution.ValueExpr
}

func (p *WindowPlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	child, err := p.Child.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	return execution.NewWindow(child, p.PartitionBy, p.OrderBy, p.Func, p.Value), nil
}

type InsertPlan struct {
	BasePlan
	Child   Plan
	Table   *catalog.TableInfo
	PKIndex *catalog.IndexInfo
	Indexes []*catalog.IndexInfo
}

func (p *InsertPlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	child, err := p.Child.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	return execution.NewInsert(child, p.Table, p.PKIndex, p.Indexes, txnMgr, tx), nil
}

type DeletePlan struct {
	BasePlan
	Child   Plan
	Table   *catalog.TableInfo
	Indexes []*catalog.IndexInfo
}

func (p *DeletePlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	child, err := p.Child.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	return execution.NewDelete(child, p.Table, p.Indexes, txnMgr, tx), nil
}

type UpdatePlan struct {
	BasePlan
	Child   Plan
	Table   *catalog.TableInfo
	Indexes []*catalog.IndexInfo
}

func (p *UpdatePlan) Build(txnMgr *txn.Manager, tx *txn.Transaction) (execution.Operator, error) {
	child, err := p.Child.Build(txnMgr, tx)
	if err != nil {
		return nil, err
	}
	return execution.NewUpdate(child, p.Table, p.Indexes, txnMgr, tx), nil
}

// filterOperator is FilterPlan's runtime counterpart: no rewrite rule
// produces it directly as a named execution type (spec §4.7 does not
// list a bare Filter operator among the named executors, only as the
// optimizer's predicate-pushdown target), so it lives here rather than
// in execution.
type filterOperator struct {
	child execution.Operator
	pred  execution.Predicate
}

func (f *filterOperator) Init() error { return f.child.Init() }

func (f *filterOperator) Next() (execution.Row, page.RID, bool, error) {
	for {
		row, rid, ok, err := f.child.Next()
		if err != nil || !ok {
			return nil, page.RID{}, ok, err
		}
		if f.pred(row) {
			return row, rid, true, nil
		}
	}
}

func (f *filterOperator) Close() error { return f.child.Close() }
