package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Afeather2017/reldb/config"
	"github.com/Afeather2017/reldb/heap"
	"github.com/Afeather2017/reldb/index/hash"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/stretchr/testify/require"
)

func testCfg(t *testing.T) *config.Cfg {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "store")
	return cfg
}

func TestOpenCreatesDataDirAndBackingFile(t *testing.T) {
	cfg := testCfg(t)

	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(cfg.DataDir, dataFileName))
	require.NoError(t, err)
}

func TestOpenTwiceReusesExistingDataDir(t *testing.T) {
	cfg := testCfg(t)

	s1, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()
}

func TestStoreBuildsTableHeapAndHashIndex(t *testing.T) {
	s, err := Open(testCfg(t))
	require.NoError(t, err)
	defer s.Close()

	th, err := s.NewTableHeap()
	require.NoError(t, err)
	rid, err := th.InsertTuple(heap.TupleMeta{}, heap.Tuple("row"))
	require.NoError(t, err)
	_, tuple, err := th.GetTuple(rid)
	require.NoError(t, err)
	require.Equal(t, heap.Tuple("row"), tuple)

	idx, err := s.NewHashIndex()
	require.NoError(t, err)
	loc := page.RID{PageID: 7, Slot: 1}
	require.NoError(t, idx.Insert(hash.Key(42), loc))
	v, ok, err := idx.Get(hash.Key(42))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, loc, v)
}
