package catalog

import (
	"path/filepath"
	"testing"

	"github.com/Afeather2017/reldb/heap"
	"github.com/Afeather2017/reldb/index/hash"
	"github.com/Afeather2017/reldb/storage/buffer"
	"github.com/Afeather2017/reldb/storage/disk"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/stretchr/testify/require"
)

func newTestBPM(t *testing.T) *buffer.Manager {
	t.Helper()
	dir := t.TempDir()
	dm, err := disk.NewFileManager(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	sched := disk.NewScheduler(dm, 16)
	t.Cleanup(func() {
		sched.Shutdown()
		dm.Close()
	})
	return buffer.New(32, 2, sched)
}

func TestStaticCatalogLooksUpByNameAndOID(t *testing.T) {
	bpm := newTestBPM(t)
	h, err := heap.New(bpm)
	require.NoError(t, err)

	cat := NewStatic()
	cat.AddTable(&TableInfo{OID: 1, Name: "widgets", Heap: h})

	byName, ok := cat.GetTableByName("widgets")
	require.True(t, ok)
	require.Equal(t, uint32(1), byName.OID)

	byOID, ok := cat.GetTableByOID(1)
	require.True(t, ok)
	require.Equal(t, "widgets", byOID.Name)

	_, ok = cat.GetTableByName("missing")
	require.False(t, ok)
}

func TestIndexInfoRoundTripsThroughUnderlyingHashTable(t *testing.T) {
	bpm := newTestBPM(t)
	idxTable, err := hash.New(bpm, hash.MaxDepth, hash.BucketMaxSize)
	require.NoError(t, err)

	idx := &IndexInfo{
		Name:      "widgets_pk",
		TableName: "widgets",
		Index:     idxTable,
		KeyOf:     func(r Row) hash.Key { return hash.Key(r[0].(int64)) },
	}

	row := Row{int64(42), "gizmo"}
	rid := page.RID{PageID: 7, Slot: 3}
	require.NoError(t, idx.InsertEntry(row, rid))

	got, ok, err := idx.ScanKey(row)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rid, got)

	require.NoError(t, idx.DeleteEntry(row))
	_, ok, err = idx.ScanKey(row)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetTableIndexesReturnsOnlyThatTablesIndexes(t *testing.T) {
	bpm := newTestBPM(t)
	widgetsIdx, err := hash.New(bpm, hash.MaxDepth, hash.BucketMaxSize)
	require.NoError(t, err)
	gadgetsIdx, err := hash.New(bpm, hash.MaxDepth, hash.BucketMaxSize)
	require.NoError(t, err)

	cat := NewStatic()
	cat.AddIndex(&IndexInfo{Name: "widgets_pk", TableName: "widgets", Index: widgetsIdx})
	cat.AddIndex(&IndexInfo{Name: "gadgets_pk", TableName: "gadgets", Index: gadgetsIdx})

	got := cat.GetTableIndexes("widgets")
	require.Len(t, got, 1)
	require.Equal(t, "widgets_pk", got[0].Name)
}
