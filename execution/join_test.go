package execution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func drainRows(t *testing.T, op Operator) []Row {
	t.Helper()
	require.NoError(t, op.Init())
	var rows []Row
	for {
		row, _, ok, err := op.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	require.NoError(t, op.Close())
	return rows
}

func TestNestedLoopJoinInnerEmitsOnlyMatches(t *testing.T) {
	left := newSliceOp(Row{int64(1), "a"}, Row{int64(2), "b"}, Row{int64(3), "c"})
	right := newSliceOp(Row{int64(2), "B"}, Row{int64(4), "D"})
	pred := func(l, r Row) bool { return l[0].(int64) == r[0].(int64) }

	join := NewNestedLoopJoin(left, right, pred, false, 2)
	rows := drainRows(t, join)
	require.Len(t, rows, 1)
	require.Equal(t, Row{int64(2), "b", int64(2), "B"}, rows[0])
}

func TestNestedLoopJoinLeftPadsUnmatched(t *testing.T) {
	left := newSliceOp(Row{int64(1), "a"}, Row{int64(2), "b"})
	right := newSliceOp(Row{int64(2), "B"})
	pred := func(l, r Row) bool { return l[0].(int64) == r[0].(int64) }

	join := NewNestedLoopJoin(left, right, pred, true, 2)
	rows := drainRows(t, join)
	require.Len(t, rows, 2)
	require.Equal(t, Row{int64(1), "a", nil, nil}, rows[0])
	require.Equal(t, Row{int64(2), "b", int64(2), "B"}, rows[1])
}

func TestNestedLoopJoinEmitsAllRightMatchesPerLeftRow(t *testing.T) {
	left := newSliceOp(Row{int64(1), "a"})
	right := newSliceOp(Row{int64(1), "x"}, Row{int64(1), "y"}, Row{int64(2), "z"})
	pred := func(l, r Row) bool { return l[0].(int64) == r[0].(int64) }

	join := NewNestedLoopJoin(left, right, pred, false, 2)
	rows := drainRows(t, join)
	require.Len(t, rows, 2)
	require.Equal(t, "x", rows[0][3])
	require.Equal(t, "y", rows[1][3])
}

func TestHashJoinMatchesOnEqualKeys(t *testing.T) {
	left := newSliceOp(Row{int64(1), "a"}, Row{int64(2), "b"}, Row{int64(3), "c"})
	right := newSliceOp(Row{int64(2), "B"}, Row{int64(3), "C"}, Row{int64(3), "C2"})

	join := NewHashJoin(left, right, func(r Row) any { return r[0] }, func(r Row) any { return r[0] }, false, 2)
	rows := drainRows(t, join)
	require.Len(t, rows, 3)
}

func TestHashJoinLeftPadsUnmatched(t *testing.T) {
	left := newSliceOp(Row{int64(1), "a"}, Row{int64(2), "b"})
	right := newSliceOp(Row{int64(2), "B"})

	join := NewHashJoin(left, right, func(r Row) any { return r[0] }, func(r Row) any { return r[0] }, true, 2)
	rows := drainRows(t, join)
	require.Len(t, rows, 2)
	require.Equal(t, Row{int64(1), "a", nil, nil}, rows[0])
	require.Equal(t, Row{int64(2), "b", int64(2), "B"}, rows[1])
}
