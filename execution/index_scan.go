package execution

import (
	"github.com/Afeather2017/reldb/catalog"
	"github.com/Afeather2017/reldb/heap"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/Afeather2017/reldb/txn"
)

// IndexScan looks up a single RID by a constant key via a unique-key hash
// index, emits the corresponding tuple once, then ends, per spec §4.7.
type IndexScan struct {
	table  *catalog.TableInfo
	idx    *catalog.IndexInfo
	key    Row
	txnMgr *txn.Manager
	tx     *txn.Transaction

	done bool
}

// NewIndexScan returns an IndexScan for idx's key projected from key.
func NewIndexScan(table *catalog.TableInfo, idx *catalog.IndexInfo, key Row, txnMgr *txn.Manager, tx *txn.Transaction) *IndexScan {
	return &IndexScan{table: table, idx: idx, key: key, txnMgr: txnMgr, tx: tx}
}

func (s *IndexScan) Init() error {
	s.done = false
	// A point lookup is itself an equality predicate on idx's column: under
	// Serializable, any row a concurrent transaction commits with a matching
	// key is exactly the anti-dependency validateSerializable needs to see,
	// the same way SeqScan.Init registers its filter.
	if s.tx.Isolation == txn.Serializable {
		target := s.idx.KeyOf(s.key)
		s.txnMgr.RecordScanPredicate(s.tx, s.table.Name, func(t heap.Tuple) bool {
			return s.idx.KeyOf(s.table.Decode(t)) == target
		})
	}
	return nil
}

func (s *IndexScan) Next() (Row, page.RID, bool, error) {
	if s.done {
		return nil, page.RID{}, false, nil
	}
	s.done = true

	rid, found, err := s.idx.ScanKey(s.key)
	if err != nil || !found {
		return nil, page.RID{}, false, err
	}

	meta, tuple, err := s.table.Heap.GetTuple(rid)
	if err != nil {
		return nil, page.RID{}, false, err
	}
	visible, live, err := s.txnMgr.ReadVisible(s.tx, meta, tuple)
	if err != nil || !live {
		return nil, page.RID{}, false, err
	}
	return s.table.Decode(visible), rid, true, nil
}

func (s *IndexScan) Close() error { return nil }
