package execution

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/Afeather2017/reldb/catalog"
	"github.com/Afeather2017/reldb/heap"
	"github.com/Afeather2017/reldb/index/hash"
	"github.com/Afeather2017/reldb/storage/buffer"
	"github.com/Afeather2017/reldb/storage/disk"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/stretchr/testify/require"
)

// sliceOp is a canned Operator over a fixed list of rows, standing in
// for whatever plan node would otherwise feed a given executor.
type sliceOp struct {
	rows []Row
	rids []page.RID
	idx  int
}

func newSliceOp(rows ...Row) *sliceOp { return &sliceOp{rows: rows} }

func (s *sliceOp) Init() error { s.idx = 0; return nil }

func (s *sliceOp) Next() (Row, page.RID, bool, error) {
	if s.idx >= len(s.rows) {
		return nil, page.RID{}, false, nil
	}
	row := s.rows[s.idx]
	var rid page.RID
	if s.idx < len(s.rids) {
		rid = s.rids[s.idx]
	}
	s.idx++
	return row, rid, true, nil
}

func (s *sliceOp) Close() error { return nil }

// encodeRow/decodeRow give test tables a trivial [int64 id, string
// name] schema, playing the role of whatever Encode/Decode closures a
// real plan would supply per the catalog package's schema model.
func encodeRow(r Row) heap.Tuple {
	id := r[0].(int64)
	name := r[1].(string)
	buf := make([]byte, 8+len(name))
	binary.BigEndian.PutUint64(buf[:8], uint64(id))
	copy(buf[8:], name)
	return heap.Tuple(buf)
}

func decodeRow(t heap.Tuple) Row {
	id := int64(binary.BigEndian.Uint64(t[:8]))
	name := string(t[8:])
	return Row{id, name}
}

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

func newTestTable(t *testing.T, name string) *catalog.TableInfo {
	t.Helper()
	h, err := heap.New(newTestBPM(t))
	require.NoError(t, err)
	return &catalog.TableInfo{Name: name, Heap: h, Decode: decodeRow, Encode: encodeRow}
}

func newTestPKIndex(t *testing.T, tableName string) *catalog.IndexInfo {
	t.Helper()
	idxTable, err := hash.New(newTestBPM(t), hash.MaxDepth, hash.BucketMaxSize)
	require.NoError(t, err)
	return &catalog.IndexInfo{
		Name:      tableName + "_pk",
		TableName: tableName,
		Index:     idxTable,
		KeyOf:     func(r Row) hash.Key { return hash.Key(r[0].(int64)) },
	}
}
