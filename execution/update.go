package execution

import (
	"github.com/Afeather2017/reldb/catalog"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/Afeather2017/reldb/txn"
)

// Update overwrites each RID from child with its freshly computed row,
// semantically delete+insert on the same RID, per spec §4.7.
// Primary-key-changing updates are expected to arrive as separate
// Delete+Insert nodes from the plan instead of through this operator.
type Update struct {
	BaseOperator
	child   Operator
	table   *catalog.TableInfo
	indexes []*catalog.IndexInfo
	txnMgr  *txn.Manager
	tx      *txn.Transaction

	emitted bool
	updated int64
}

// NewUpdate returns an Update executor; child yields each row's new
// values alongside the RID being overwritten.
func NewUpdate(child Operator, table *catalog.TableInfo, indexes []*catalog.IndexInfo, txnMgr *txn.Manager, tx *txn.Transaction) *Update {
	return &Update{BaseOperator: newBase(child), child: child, table: table, indexes: indexes, txnMgr: txnMgr, tx: tx}
}

func (op *Update) Init() error {
	op.emitted = false
	op.updated = 0
	return op.BaseOperator.Init()
}

func (op *Update) Next() (Row, page.RID, bool, error) {
	if op.emitted {
		return nil, page.RID{}, false, nil
	}

	for {
		newRow, rid, ok, err := op.child.Next()
		if err != nil {
			return nil, page.RID{}, false, err
		}
		if !ok {
			break
		}

		_, oldTuple, err := op.table.Heap.GetTuple(rid)
		if err != nil {
			return nil, page.RID{}, false, err
		}
		oldRow := op.table.Decode(oldTuple)

		if err := op.txnMgr.UpdateTuple(op.tx, op.table.Name, op.table.Heap, rid, op.table.Encode(newRow)); err != nil {
			return nil, page.RID{}, false, err
		}
		for _, idx := range op.indexes {
			if err := idx.DeleteEntry(oldRow); err != nil {
				return nil, page.RID{}, false, err
			}
			if err := idx.InsertEntry(newRow, rid); err != nil {
				return nil, page.RID{}, false, err
			}
		}
		op.updated++
	}

	op.emitted = true
	return Row{op.updated}, page.RID{}, true, nil
}

func (op *Update) Close() error { return op.BaseOperator.Close() }
