package hash

import (
	"path/filepath"
	"testing"

	"github.com/Afeather2017/reldb/storage/buffer"
	"github.com/Afeather2017/reldb/storage/disk"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, bucketMaxSize uint32) *Table {
	dir := t.TempDir()
	dm, err := disk.NewFileManager(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	sched := disk.NewScheduler(dm, 16)
	t.Cleanup(func() {
		sched.Shutdown()
		dm.Close()
	})
	bpm := buffer.New(64, 2, sched)
	tbl, err := New(bpm, MaxDepth, bucketMaxSize)
	require.NoError(t, err)
	return tbl
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	tbl := newTestTable(t, 4)

	require.NoError(t, tbl.Insert(Key(1), page.RID{PageID: 10, Slot: 0}))
	require.NoError(t, tbl.Insert(Key(2), page.RID{PageID: 10, Slot: 1}))

	v, ok, err := tbl.Get(Key(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, page.RID{PageID: 10, Slot: 0}, v)

	_, ok, err = tbl.Get(Key(99))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	tbl := newTestTable(t, 4)
	require.NoError(t, tbl.Insert(Key(1), page.RID{PageID: 1}))
	require.ErrorIs(t, tbl.Insert(Key(1), page.RID{PageID: 2}), ErrKeyExists)
}

func TestInsertTriggersSplitAndAllKeysRemainReachable(t *testing.T) {
	tbl := newTestTable(t, 2)

	for i := Key(0); i < 40; i++ {
		require.NoError(t, tbl.Insert(i, page.RID{PageID: page.ID(i), Slot: 0}))
	}

	for i := Key(0); i < 40; i++ {
		v, ok, err := tbl.Get(i)
		require.NoError(t, err)
		require.True(t, ok, "key %d should be reachable", i)
		require.Equal(t, page.ID(i), v.PageID)
	}
}

func TestRemoveThenMissingKeyNotFound(t *testing.T) {
	tbl := newTestTable(t, 4)
	require.NoError(t, tbl.Insert(Key(5), page.RID{PageID: 5}))
	require.NoError(t, tbl.Remove(Key(5)))

	_, ok, err := tbl.Get(Key(5))
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, tbl.Remove(Key(5)), ErrKeyNotFound)
}

func TestInsertRemoveManyKeysSurviveChurn(t *testing.T) {
	tbl := newTestTable(t, 3)

	const n = 60
	for i := Key(0); i < n; i++ {
		require.NoError(t, tbl.Insert(i, page.RID{PageID: page.ID(i)}))
	}
	for i := Key(0); i < n; i += 2 {
		require.NoError(t, tbl.Remove(i))
	}
	for i := Key(0); i < n; i++ {
		v, ok, err := tbl.Get(i)
		require.NoError(t, err)
		if i%2 == 0 {
			require.False(t, ok)
		} else {
			require.True(t, ok)
			require.Equal(t, page.ID(i), v.PageID)
		}
	}
}
