// Package txn implements MVCC transactions, version-chain reads, and
// first-writer-wins writes, per spec §4.8. Grounded on
// manager/transaction_manager.go for the Transaction struct shape and
// mutex-guarded manager idiom, and manager/undo_log_manager.go for the
// per-transaction undo arena and reverse-order rollback walk — rewritten
// from InnoDB's redo/undo-log-file model to an in-memory version-chain
// model, since this layer excludes logging and crash recovery.
package txn

import (
	"github.com/Afeather2017/reldb/heap"
	"github.com/Afeather2017/reldb/storage/page"
)

// State is a transaction's lifecycle state.
type State int

const (
	Running State = iota
	Committed
	Aborted
	// Tainted marks a transaction that must abort: a write conflict was
	// detected mid-transaction, but the caller may still want to keep
	// driving it (e.g. to unwind cleanly) before the inevitable Abort.
	Tainted
)

// Isolation is the isolation level a transaction runs under. Only
// Snapshot and Serializable affect executor-visible behavior (spec §4.8
// names these two); ReadUncommitted and ReadCommitted are accepted and
// treated identically to Snapshot — RecordScanPredicate and commit-time
// validation both gate on "== Serializable" / "!= Serializable" and
// ignore every other value — included so this core can classify where
// SNAPSHOT sits in the wider isolation spectrum without changing §4.8's
// two-level semantics.
type Isolation int

const (
	Snapshot Isolation = iota
	Serializable
	ReadUncommitted
	ReadCommitted
)

// activeBit marks a txn_id within the shared id/commit-ts counter space,
// per spec §4.8: "active txn ids and commit timestamps share the same
// monotonic counter space but are distinguished by a high bit."
const activeBit = uint64(1) << 63

// IsTxnID reports whether ts is a transaction id (high bit set) rather
// than a commit timestamp.
func IsTxnID(ts uint64) bool { return ts&activeBit != 0 }

// UndoRecord is one entry in a transaction's undo arena, per spec §4.8.
// Identified by (txn_id, index) — a heap.Link.
type UndoRecord struct {
	Ts             uint64
	ModifiedFields []bool
	Tuple          heap.Tuple
	Prev           heap.Link
}

// ScanPredicate is a serializable-isolation read's visibility check,
// recorded so commit-time validation can ask "would this predicate have
// matched a version written after my snapshot." TableID scopes it to one
// table so unrelated commits elsewhere never trigger a false conflict.
type ScanPredicate struct {
	TableID string
	Match   func(heap.Tuple) bool
}

// Transaction is the MVCC transaction record of spec §4.8.
type Transaction struct {
	ID        uint64
	ReadTs    uint64
	CommitTs  uint64
	State     State
	Isolation Isolation

	UndoLog []UndoRecord
	// undoRID parallels UndoLog: the RID each record was captured
	// against, needed to restore it on abort. Not part of UndoRecord's
	// own shape (§4.8), kept alongside it instead of inside it.
	undoRID []page.RID
	// undoHeap parallels UndoLog: which table heap owns undoRID[i].
	undoHeap []*heap.TableHeap

	WriteSet       map[writeKey]*heap.TableHeap
	ScanPredicates []ScanPredicate

	// inserted lists rows this transaction created fresh (no prior
	// version to roll back to); Abort hides them instead of restoring an
	// undo record.
	inserted []insertedRow
}

type writeKey struct {
	TableID string
	RID     page.RID
}

// Active reports whether the transaction is still running (not committed,
// aborted, or tainted).
func (t *Transaction) Active() bool { return t.State == Running }

// addToWriteSet records that this transaction modified rid in h, tagged
// with tableID for later predicate-scoped validation.
func (t *Transaction) addToWriteSet(tableID string, rid page.RID, h *heap.TableHeap) {
	t.WriteSet[writeKey{TableID: tableID, RID: rid}] = h
}

// pushUndo appends an undo record and returns the Link addressing it.
func (t *Transaction) pushUndo(rid page.RID, h *heap.TableHeap, rec UndoRecord) heap.Link {
	idx := len(t.UndoLog)
	t.UndoLog = append(t.UndoLog, rec)
	t.undoRID = append(t.undoRID, rid)
	t.undoHeap = append(t.undoHeap, h)
	return heap.Link{TxnID: t.ID, Index: int32(idx)}
}
