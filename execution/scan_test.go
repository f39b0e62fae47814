package execution

import (
	"testing"

	"github.com/Afeather2017/reldb/txn"
	"github.com/stretchr/testify/require"
)

func TestSeqScanSkipsInvisibleAndAppliesFilter(t *testing.T) {
	table := newTestTable(t, "widgets")
	m := txn.New()

	setup := m.Begin(txn.Snapshot)
	_, err := m.InsertTuple(setup, table.Name, table.Heap, table.Encode(Row{int64(1), "alpha"}))
	require.NoError(t, err)
	_, err = m.InsertTuple(setup, table.Name, table.Heap, table.Encode(Row{int64(2), "beta"}))
	require.NoError(t, err)
	require.NoError(t, m.Commit(setup))

	uncommitted := m.Begin(txn.Snapshot)
	_, err = m.InsertTuple(uncommitted, table.Name, table.Heap, table.Encode(Row{int64(3), "gamma"}))
	require.NoError(t, err)

	reader := m.Begin(txn.Snapshot)
	scan := NewSeqScan(table, m, reader, func(r Row) bool { return r[0].(int64) >= 2 })
	require.NoError(t, scan.Init())

	var names []string
	for {
		row, _, ok, err := scan.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, row[1].(string))
	}
	require.Equal(t, []string{"beta"}, names, "uncommitted gamma is invisible, alpha is filtered out")
	require.NoError(t, scan.Close())
}

func TestIndexScanFindsKeyOnceThenEnds(t *testing.T) {
	table := newTestTable(t, "widgets")
	idx := newTestPKIndex(t, "widgets")
	m := txn.New()

	setup := m.Begin(txn.Snapshot)
	rid, err := m.InsertTuple(setup, table.Name, table.Heap, table.Encode(Row{int64(7), "widget"}))
	require.NoError(t, err)
	require.NoError(t, idx.InsertEntry(Row{int64(7), "widget"}, rid))
	require.NoError(t, m.Commit(setup))

	reader := m.Begin(txn.Snapshot)
	scan := NewIndexScan(table, idx, Row{int64(7), nil}, m, reader)
	require.NoError(t, scan.Init())

	row, gotRID, ok, err := scan.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rid, gotRID)
	require.Equal(t, "widget", row[1])

	_, _, ok, err = scan.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndexScanUnderSerializableRegistersScanPredicate(t *testing.T) {
	table := newTestTable(t, "widgets")
	idx := newTestPKIndex(t, "widgets")
	m := txn.New()

	setup := m.Begin(txn.Snapshot)
	rid, err := m.InsertTuple(setup, table.Name, table.Heap, table.Encode(Row{int64(7), "widget"}))
	require.NoError(t, err)
	require.NoError(t, idx.InsertEntry(Row{int64(7), "widget"}, rid))
	require.NoError(t, m.Commit(setup))

	reader := m.Begin(txn.Serializable)
	scan := NewIndexScan(table, idx, Row{int64(7), nil}, m, reader)
	require.NoError(t, scan.Init())
	require.Len(t, reader.ScanPredicates, 1, "a point lookup under Serializable must register an anti-dependency predicate, the way SeqScan's filter does")

	_, _, ok, err := scan.Next()
	require.NoError(t, err)
	require.True(t, ok)
}

// TestIndexScanAntiDependencyFailsSerializableCommit mirrors the
// primary-key-indexed write-skew shape (SerializableTest4): txn2 looks up
// key 9 (finding nothing) and then writes key 1; txn3 looks up key 1
// (finding nothing) and then writes key 9 and commits first. txn3's write
// lands exactly on the key txn2's lookup scanned, so txn2's commit must
// fail — without IndexScan registering that lookup as a scan predicate,
// txn2 would never notice and both transactions would commit.
func TestIndexScanAntiDependencyFailsSerializableCommit(t *testing.T) {
	table := newTestTable(t, "widgets")
	idx := newTestPKIndex(t, "widgets")
	m := txn.New()

	txn2 := m.Begin(txn.Serializable)
	txn3 := m.Begin(txn.Serializable)

	scan2 := NewIndexScan(table, idx, Row{int64(9), nil}, m, txn2)
	require.NoError(t, scan2.Init())
	_, _, ok, err := scan2.Next()
	require.NoError(t, err)
	require.False(t, ok)
	rid2, err := m.InsertTuple(txn2, table.Name, table.Heap, table.Encode(Row{int64(1), "from-txn2"}))
	require.NoError(t, err)
	require.NoError(t, idx.InsertEntry(Row{int64(1), "from-txn2"}, rid2))

	scan3 := NewIndexScan(table, idx, Row{int64(1), nil}, m, txn3)
	require.NoError(t, scan3.Init())
	_, _, ok, err = scan3.Next()
	require.NoError(t, err)
	require.False(t, ok)
	rid3, err := m.InsertTuple(txn3, table.Name, table.Heap, table.Encode(Row{int64(9), "from-txn3"}))
	require.NoError(t, err)
	require.NoError(t, idx.InsertEntry(Row{int64(9), "from-txn3"}, rid3))

	require.NoError(t, m.Commit(txn3))

	// txn2's lookup of key 9 matches the row txn3 just committed at that
	// key, inside (txn2.ReadTs, commitTs]: the anti-dependency the
	// IndexScan predicate exists to catch.
	err = m.Commit(txn2)
	require.ErrorIs(t, err, txn.ErrSerializationFailure)
}

func TestIndexScanMissingKeyYieldsNoRows(t *testing.T) {
	table := newTestTable(t, "widgets")
	idx := newTestPKIndex(t, "widgets")
	m := txn.New()

	reader := m.Begin(txn.Snapshot)
	scan := NewIndexScan(table, idx, Row{int64(99), nil}, m, reader)
	require.NoError(t, scan.Init())

	_, _, ok, err := scan.Next()
	require.NoError(t, err)
	require.False(t, ok)
}
