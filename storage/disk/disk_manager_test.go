package disk

import (
	"path/filepath"
	"testing"

	"github.com/Afeather2017/reldb/storage/page"
	"github.com/stretchr/testify/require"
)

func TestFileManagerReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileManager(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	var buf [page.Size]byte
	buf[0] = 0xAB
	buf[page.Size-1] = 0xCD
	require.NoError(t, dm.WritePage(3, &buf))

	var got [page.Size]byte
	require.NoError(t, dm.ReadPage(3, &got))
	require.Equal(t, buf, got)
}

func TestFileManagerReadUnwrittenPageIsZero(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileManager(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	var got [page.Size]byte
	got[0] = 0x42
	require.NoError(t, dm.ReadPage(5, &got))
	for _, b := range got {
		require.Equal(t, byte(0), b)
	}
}

func TestFileManagerRejectsInvalidPageID(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileManager(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	var buf [page.Size]byte
	require.Error(t, dm.ReadPage(page.Invalid, &buf))
	require.Error(t, dm.WritePage(page.Invalid, &buf))
}
