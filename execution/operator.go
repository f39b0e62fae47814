// Package execution implements the Volcano-model executor framework of
// spec §4.7: each operator exposes Init/Next/Close, Next pulling one row
// at a time until the stream ends. Grounded directly on
// server/innodb/engine/volcano_executor.go — its Operator interface
// (there Open/Next/Close), BaseOperator child-fanout helper, and
// closure-based FilterOperator/ProjectionOperator — renamed to §4.7's
// Init/Next contract and filled in against real table heaps, indexes and
// the MVCC snapshot instead of that file's stubbed, fixed-cursor
// placeholders.
package execution

import (
	"github.com/Afeather2017/reldb/catalog"
	"github.com/Afeather2017/reldb/storage/page"
)

// Row is one decoded tuple, per the catalog package's closure-based
// schema model.
type Row = catalog.Row

// Predicate filters a row, e.g. a SeqScan's WHERE clause or a join's ON
// clause; supplied by whatever built the plan (spec §1 excludes the
// expression evaluator from this core).
type Predicate func(Row) bool

// ValueExpr projects a single value out of a row — a join key, a
// group-by key, an order-by key.
type ValueExpr func(Row) any

// Less compares two projected values for ordering; callers supply one
// per value type since this core has no built-in comparison semantics
// for arbitrary values.
type Less func(a, b any) bool

// Operator is the Volcano iterator contract of spec §4.7.
type Operator interface {
	// Init resets state and initializes children.
	Init() error
	// Next returns one row per call until the stream ends (ok=false).
	Next() (row Row, rid page.RID, ok bool, err error)
	Close() error
}

// BaseOperator fans Init/Close out to children, the shape
// volcano_executor.go's BaseOperator uses for Open/Close.
type BaseOperator struct {
	children []Operator
}

func newBase(children ...Operator) BaseOperator {
	return BaseOperator{children: children}
}

func (b *BaseOperator) Init() error {
	for _, c := range b.children {
		if err := c.Init(); err != nil {
			return err
		}
	}
	return nil
}

func (b *BaseOperator) Close() error {
	for _, c := range b.children {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}
