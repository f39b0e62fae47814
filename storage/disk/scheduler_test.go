package disk

import (
	"path/filepath"
	"testing"

	"github.com/Afeather2017/reldb/storage/page"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileManager(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	s := NewScheduler(dm, 4)
	defer s.Shutdown()

	var buf [page.Size]byte
	buf[10] = 7
	writeDone := make(chan error, 1)
	s.Schedule(&Request{IsWrite: true, Buf: &buf, PageID: 1, Completion: writeDone})
	require.NoError(t, <-writeDone)

	var got [page.Size]byte
	readDone := make(chan error, 1)
	s.Schedule(&Request{IsWrite: false, Buf: &got, PageID: 1, Completion: readDone})
	require.NoError(t, <-readDone)
	require.Equal(t, buf, got)
}

func TestSchedulerOrderingAndShutdownDrains(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewFileManager(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	s := NewScheduler(dm, 16)

	const n = 20
	completions := make([]chan error, n)
	for i := 0; i < n; i++ {
		var buf [page.Size]byte
		buf[0] = byte(i)
		completions[i] = make(chan error, 1)
		s.Schedule(&Request{IsWrite: true, Buf: &buf, PageID: page.ID(i), Completion: completions[i]})
	}
	s.Shutdown()

	for i := 0; i < n; i++ {
		require.NoError(t, <-completions[i])
	}
}
