package execution

import (
	"github.com/Afeather2017/reldb/catalog"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/Afeather2017/reldb/txn"
)

// Delete pulls RIDs from child and marks each deleted, maintaining every
// index, per spec §4.7.
type Delete struct {
	BaseOperator
	child   Operator
	table   *catalog.TableInfo
	indexes []*catalog.IndexInfo
	txnMgr  *txn.Manager
	tx      *txn.Transaction

	emitted bool
	deleted int64
}

// NewDelete returns a Delete executor over child's rows.
func NewDelete(child Operator, table *catalog.TableInfo, indexes []*catalog.IndexInfo, txnMgr *txn.Manager, tx *txn.Transaction) *Delete {
	return &Delete{BaseOperator: newBase(child), child: child, table: table, indexes: indexes, txnMgr: txnMgr, tx: tx}
}

func (op *Delete) Init() error {
	op.emitted = false
	op.deleted = 0
	return op.BaseOperator.Init()
}

func (op *Delete) Next() (Row, page.RID, bool, error) {
	if op.emitted {
		return nil, page.RID{}, false, nil
	}

	for {
		row, rid, ok, err := op.child.Next()
		if err != nil {
			return nil, page.RID{}, false, err
		}
		if !ok {
			break
		}
		if err := op.txnMgr.DeleteTuple(op.tx, op.table.Name, op.table.Heap, rid); err != nil {
			return nil, page.RID{}, false, err
		}
		for _, idx := range op.indexes {
			if err := idx.DeleteEntry(row); err != nil {
				return nil, page.RID{}, false, err
			}
		}
		op.deleted++
	}

	op.emitted = true
	return Row{op.deleted}, page.RID{}, true, nil
}

func (op *Delete) Close() error { return op.BaseOperator.Close() }
