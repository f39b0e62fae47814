package execution

import (
	"github.com/Afeather2017/reldb/catalog"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/Afeather2017/reldb/txn"
	"github.com/juju/errors"
)

// ErrKeyConflict is returned by Insert when a row's primary key already
// identifies a live row.
var ErrKeyConflict = errors.New("execution: primary key conflict")

// Insert pulls rows from child and writes them to table, maintaining
// every secondary index, per spec §4.7. If pkIndex is non-nil, a key
// already present in it either collides with a live row (fails the
// whole statement) or reclaims a deleted slot.
type Insert struct {
	BaseOperator
	child   Operator
	table   *catalog.TableInfo
	pkIndex *catalog.IndexInfo
	indexes []*catalog.IndexInfo
	txnMgr  *txn.Manager
	tx      *txn.Transaction

	emitted  bool
	inserted int64
}

// NewInsert returns an Insert executor over child's rows.
func NewInsert(child Operator, table *catalog.TableInfo, pkIndex *catalog.IndexInfo, indexes []*catalog.IndexInfo, txnMgr *txn.Manager, tx *txn.Transaction) *Insert {
	return &Insert{
		BaseOperator: newBase(child),
		child:        child,
		table:        table,
		pkIndex:      pkIndex,
		indexes:      indexes,
		txnMgr:       txnMgr,
		tx:           tx,
	}
}

func (op *Insert) Init() error {
	op.emitted = false
	op.inserted = 0
	return op.BaseOperator.Init()
}

func (op *Insert) Next() (Row, page.RID, bool, error) {
	if op.emitted {
		return nil, page.RID{}, false, nil
	}

	for {
		row, _, ok, err := op.child.Next()
		if err != nil {
			return nil, page.RID{}, false, err
		}
		if !ok {
			break
		}
		if err := op.insertOne(row); err != nil {
			return nil, page.RID{}, false, err
		}
		op.inserted++
	}

	op.emitted = true
	return Row{op.inserted}, page.RID{}, true, nil
}

func (op *Insert) insertOne(row Row) error {
	tuple := op.table.Encode(row)

	if op.pkIndex != nil {
		if existing, found, err := op.pkIndex.ScanKey(row); err != nil {
			return err
		} else if found {
			meta, err := op.table.Heap.GetTupleMeta(existing)
			if err != nil {
				return err
			}
			if !meta.IsDeleted {
				return ErrKeyConflict
			}
			if err := op.txnMgr.ReviveTuple(op.tx, op.table.Name, op.table.Heap, existing, tuple); err != nil {
				return err
			}
			return op.insertSecondaryIndexes(row, existing)
		}
	}

	rid, err := op.txnMgr.InsertTuple(op.tx, op.table.Name, op.table.Heap, tuple)
	if err != nil {
		return err
	}
	if op.pkIndex != nil {
		if err := op.pkIndex.InsertEntry(row, rid); err != nil {
			return err
		}
	}
	return op.insertSecondaryIndexes(row, rid)
}

func (op *Insert) insertSecondaryIndexes(row Row, rid page.RID) error {
	for _, idx := range op.indexes {
		if err := idx.InsertEntry(row, rid); err != nil {
			return err
		}
	}
	return nil
}

func (op *Insert) Close() error { return op.BaseOperator.Close() }
