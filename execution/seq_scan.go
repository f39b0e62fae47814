package execution

import (
	"github.com/Afeather2017/reldb/catalog"
	"github.com/Afeather2017/reldb/heap"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/Afeather2017/reldb/txn"
)

// SeqScan iterates a table heap, reconstructing each tuple's visible
// version and applying filter, per spec §4.7.
type SeqScan struct {
	table  *catalog.TableInfo
	txnMgr *txn.Manager
	tx     *txn.Transaction
	filter Predicate

	it *heap.Iterator
}

// NewSeqScan returns a SeqScan over table, visible as of tx's snapshot.
// filter may be nil to emit every visible row.
func NewSeqScan(table *catalog.TableInfo, txnMgr *txn.Manager, tx *txn.Transaction, filter Predicate) *SeqScan {
	return &SeqScan{table: table, txnMgr: txnMgr, tx: tx, filter: filter}
}

func (s *SeqScan) Init() error {
	s.it = s.table.Heap.NewIterator()
	if s.tx.Isolation == txn.Serializable && s.filter != nil {
		s.txnMgr.RecordScanPredicate(s.tx, s.table.Name, func(t heap.Tuple) bool {
			return s.filter(s.table.Decode(t))
		})
	}
	return nil
}

func (s *SeqScan) Next() (Row, page.RID, bool, error) {
	for {
		entry, ok, err := s.it.Next()
		if err != nil {
			return nil, page.RID{}, false, err
		}
		if !ok {
			return nil, page.RID{}, false, nil
		}
		visible, live, err := s.txnMgr.ReadVisible(s.tx, entry.Meta, entry.Tuple)
		if err != nil {
			return nil, page.RID{}, false, err
		}
		if !live {
			continue
		}
		row := s.table.Decode(visible)
		if s.filter != nil && !s.filter(row) {
			continue
		}
		return row, entry.RID, true, nil
	}
}

func (s *SeqScan) Close() error { return nil }
