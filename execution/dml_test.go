package execution

import (
	"testing"

	"github.com/Afeather2017/reldb/catalog"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/Afeather2017/reldb/txn"
	"github.com/stretchr/testify/require"
)

func (s *sliceOp) withRID(rid page.RID) *sliceOp {
	s.rids = []page.RID{rid}
	return s
}

func drain(op Operator) error {
	if err := op.Init(); err != nil {
		return err
	}
	for {
		_, _, ok, err := op.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

func TestInsertWritesRowsAndMaintainsPKIndex(t *testing.T) {
	table := newTestTable(t, "widgets")
	pk := newTestPKIndex(t, "widgets")
	m := txn.New()
	tx := m.Begin(txn.Snapshot)

	child := newSliceOp(Row{int64(1), "alpha"}, Row{int64(2), "beta"})
	ins := NewInsert(child, table, pk, nil, m, tx)
	require.NoError(t, ins.Init())

	row, _, ok, err := ins.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Row{int64(2)}, row)
	require.NoError(t, m.Commit(tx))

	rid, found, err := pk.ScanKey(Row{int64(1), nil})
	require.NoError(t, err)
	require.True(t, found)
	_, tuple, err := table.Heap.GetTuple(rid)
	require.NoError(t, err)
	require.Equal(t, "alpha", table.Decode(tuple)[1])
}

func TestInsertRejectsDuplicateLiveKey(t *testing.T) {
	table := newTestTable(t, "widgets")
	pk := newTestPKIndex(t, "widgets")
	m := txn.New()

	setup := m.Begin(txn.Snapshot)
	require.NoError(t, drain(NewInsert(newSliceOp(Row{int64(1), "alpha"}), table, pk, nil, m, setup)))
	require.NoError(t, m.Commit(setup))

	tx := m.Begin(txn.Snapshot)
	ins := NewInsert(newSliceOp(Row{int64(1), "dup"}), table, pk, nil, m, tx)
	require.NoError(t, ins.Init())
	_, _, _, err := ins.Next()
	require.ErrorIs(t, err, ErrKeyConflict)
}

func TestInsertReclaimsDeletedSlotOnKeyConflict(t *testing.T) {
	table := newTestTable(t, "widgets")
	pk := newTestPKIndex(t, "widgets")
	m := txn.New()

	setup := m.Begin(txn.Snapshot)
	require.NoError(t, drain(NewInsert(newSliceOp(Row{int64(1), "alpha"}), table, pk, nil, m, setup)))
	require.NoError(t, m.Commit(setup))

	rid, found, err := pk.ScanKey(Row{int64(1), nil})
	require.NoError(t, err)
	require.True(t, found)

	deleter := m.Begin(txn.Snapshot)
	del := NewDelete(newSliceOp(Row{int64(1), "alpha"}).withRID(rid), table, nil, m, deleter)
	require.NoError(t, drain(del))
	require.NoError(t, m.Commit(deleter))

	// "redid" matches "alpha"'s length so the reclaim fits the slot's
	// original capacity (heap.HeapPage.UpdateTupleInPlace never grows a
	// slot past its allocation-time size).
	reviver := m.Begin(txn.Snapshot)
	require.NoError(t, drain(NewInsert(newSliceOp(Row{int64(1), "redid"}), table, pk, nil, m, reviver)))
	require.NoError(t, m.Commit(reviver))

	rid2, found, err := pk.ScanKey(Row{int64(1), nil})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rid, rid2)
	_, tuple, err := table.Heap.GetTuple(rid2)
	require.NoError(t, err)
	require.Equal(t, "redid", table.Decode(tuple)[1])
}

func TestDeleteRemovesRowAndIndexEntries(t *testing.T) {
	table := newTestTable(t, "widgets")
	pk := newTestPKIndex(t, "widgets")
	m := txn.New()

	setup := m.Begin(txn.Snapshot)
	require.NoError(t, drain(NewInsert(newSliceOp(Row{int64(1), "alpha"}), table, pk, nil, m, setup)))
	require.NoError(t, m.Commit(setup))

	rid, found, err := pk.ScanKey(Row{int64(1), nil})
	require.NoError(t, err)
	require.True(t, found)

	tx := m.Begin(txn.Snapshot)
	del := NewDelete(newSliceOp(Row{int64(1), "alpha"}).withRID(rid), table, []*catalog.IndexInfo{pk}, m, tx)
	require.NoError(t, del.Init())
	row, _, ok, err := del.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Row{int64(1)}, row)
	require.NoError(t, m.Commit(tx))

	_, found, err = pk.ScanKey(Row{int64(1), nil})
	require.NoError(t, err)
	require.False(t, found)
}

func TestUpdateRewritesRowAndReindexesChangedKey(t *testing.T) {
	table := newTestTable(t, "widgets")
	pk := newTestPKIndex(t, "widgets")
	m := txn.New()

	setup := m.Begin(txn.Snapshot)
	require.NoError(t, drain(NewInsert(newSliceOp(Row{int64(1), "alpha"}), table, pk, nil, m, setup)))
	require.NoError(t, m.Commit(setup))

	rid, found, err := pk.ScanKey(Row{int64(1), nil})
	require.NoError(t, err)
	require.True(t, found)

	// "beta1" matches "alpha"'s length, within the slot's original
	// capacity.
	tx := m.Begin(txn.Snapshot)
	upd := NewUpdate(newSliceOp(Row{int64(2), "beta1"}).withRID(rid), table, []*catalog.IndexInfo{pk}, m, tx)
	require.NoError(t, upd.Init())
	_, _, ok, err := upd.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, m.Commit(tx))

	_, found, err = pk.ScanKey(Row{int64(1), nil})
	require.NoError(t, err)
	require.False(t, found, "old key must be removed")

	rid2, found, err := pk.ScanKey(Row{int64(2), nil})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rid, rid2)
}
