package txn

import (
	"sync"
	"sync/atomic"

	"github.com/Afeather2017/reldb/heap"
	"github.com/Afeather2017/reldb/logger"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/juju/errors"
)

// ErrWriteConflict is returned when a writer finds a base tuple already
// stamped by a different active transaction — first writer wins per key.
var ErrWriteConflict = errors.New("txn: write-write conflict")

// ErrTainted is returned by Commit on a transaction that was tainted by an
// earlier conflict; it aborts instead.
var ErrTainted = errors.New("txn: transaction tainted, commit aborted")

// ErrSerializationFailure is returned by Commit when serializable
// validation finds an unsafe read-write dependency.
var ErrSerializationFailure = errors.New("txn: serialization failure")

// ErrAlreadyCommitted guards against aborting a committed transaction.
var ErrAlreadyCommitted = errors.New("txn: transaction already committed")

// ErrTupleDeleted is returned when a writer targets an already-deleted
// tuple.
var ErrTupleDeleted = errors.New("txn: tuple already deleted")

type commitRecord struct {
	ts     uint64
	tuples map[writeKey]heap.Tuple
}

type insertedRow struct {
	key writeKey
	h   *heap.TableHeap
}

// Manager is the transaction manager of spec §4.8: id allocation,
// commit-ts allocation, the watermark, and the in-memory commit log used
// for serializable validation. Grounded on
// manager/transaction_manager.go — Begin/Commit/Rollback entry points, a
// mutex-guarded active-transaction map, an atomic id counter — generalized
// from InnoDB's ReadView model to §4.8's version-chain visibility rule.
// Write conflicts and serialization failures log through the logger
// package at debug level.
type Manager struct {
	mu           sync.RWMutex
	counter      uint64 // atomic: shared id/commit-ts space
	active       map[uint64]*Transaction
	allTxns      map[uint64]*Transaction // retained for undo-log lookups by other readers
	watermark    *Watermark
	lastCommitTs uint64

	commitMu  sync.Mutex
	commitLog []commitRecord
}

// New returns a ready Manager with no active transactions.
func New() *Manager {
	return &Manager{
		active:    make(map[uint64]*Transaction),
		allTxns:   make(map[uint64]*Transaction),
		watermark: NewWatermark(0),
	}
}

// Watermark exposes the manager's watermark for garbage collection
// decisions made above this package.
func (m *Manager) Watermark() *Watermark { return m.watermark }

// Begin starts a new transaction at read_ts = last_committed_ts.
func (m *Manager) Begin(isolation Isolation) *Transaction {
	m.mu.Lock()
	readTs := m.lastCommitTs
	id := activeBit | (atomic.AddUint64(&m.counter, 1))
	txn := &Transaction{
		ID:        id,
		ReadTs:    readTs,
		State:     Running,
		Isolation: isolation,
		WriteSet:  make(map[writeKey]*heap.TableHeap),
	}
	m.active[id] = txn
	m.allTxns[id] = txn
	m.mu.Unlock()

	m.watermark.AddTxn(readTs)
	return txn
}

// RecordScanPredicate registers a read done under serializable isolation
// so Commit can later check whether a concurrent commit would have
// invalidated it.
func (m *Manager) RecordScanPredicate(txn *Transaction, tableID string, match func(heap.Tuple) bool) {
	if txn.Isolation != Serializable {
		return
	}
	txn.ScanPredicates = append(txn.ScanPredicates, ScanPredicate{TableID: tableID, Match: match})
}

func (m *Manager) lookupUndo(link heap.Link) (UndoRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.allTxns[link.TxnID]
	if !ok || int(link.Index) >= len(t.UndoLog) {
		return UndoRecord{}, errors.New("txn: dangling undo link")
	}
	return t.UndoLog[link.Index], nil
}

// ReadVisible reconstructs the version of (meta, tuple) visible to txn,
// per spec §4.8: own writes are visible; committed versions with
// ts <= read_ts are visible; otherwise walk prev_version undo records
// until one qualifies. ok is false if no visible version exists (the row
// did not exist yet, or only a tombstone is visible).
func (m *Manager) ReadVisible(txn *Transaction, meta heap.TupleMeta, tuple heap.Tuple) (heap.Tuple, bool, error) {
	curTs, curDeleted, curTuple, curPrev := meta.Ts, meta.IsDeleted, tuple, meta.Prev

	for {
		if IsTxnID(curTs) {
			if curTs == txn.ID {
				return curTuple, !curDeleted, nil
			}
			// Foreign in-flight write: not visible, walk back.
		} else if curTs <= txn.ReadTs {
			return curTuple, !curDeleted, nil
		}

		if !curPrev.Valid() {
			return nil, false, nil
		}
		rec, err := m.lookupUndo(curPrev)
		if err != nil {
			return nil, false, errors.Trace(err)
		}
		curTs = rec.Ts
		curDeleted = len(rec.Tuple) == 0
		curTuple = rec.Tuple
		curPrev = rec.Prev
	}
}

// InsertTuple inserts tuple into h, stamping it with txn's id and
// recording it in the write set (and the transaction's own insert log, so
// Abort can hide it again).
func (m *Manager) InsertTuple(txn *Transaction, tableID string, h *heap.TableHeap, tuple heap.Tuple) (page.RID, error) {
	meta := heap.TupleMeta{Ts: txn.ID, Prev: heap.InvalidLink}
	rid, err := h.InsertTuple(meta, tuple)
	if err != nil {
		return page.RID{}, errors.Trace(err)
	}
	txn.addToWriteSet(tableID, rid, h)
	txn.inserted = append(txn.inserted, insertedRow{key: writeKey{TableID: tableID, RID: rid}, h: h})
	return rid, nil
}

// DeleteTuple marks rid deleted, linking the prior version into txn's
// undo log. Returns ErrWriteConflict if another active transaction holds
// the base tuple.
func (m *Manager) DeleteTuple(txn *Transaction, tableID string, h *heap.TableHeap, rid page.RID) error {
	meta, tuple, err := h.GetTuple(rid)
	if err != nil {
		return errors.Trace(err)
	}
	if err := m.checkWriteConflict(txn, meta); err != nil {
		return err
	}
	if meta.IsDeleted {
		return ErrTupleDeleted
	}

	link := txn.pushUndo(rid, h, UndoRecord{Ts: meta.Ts, Tuple: tuple, Prev: meta.Prev})
	if err := h.UpdateTupleMeta(heap.TupleMeta{Ts: txn.ID, IsDeleted: true, Prev: link}, rid); err != nil {
		return errors.Trace(err)
	}
	txn.addToWriteSet(tableID, rid, h)
	return nil
}

// UpdateTuple overwrites rid's tuple bytes in place with newTuple, linking
// the prior version into txn's undo log. Fails if newTuple is larger than
// the slot's original capacity — the caller's plan should materialize
// such updates as delete+insert instead, per spec §4.7.
func (m *Manager) UpdateTuple(txn *Transaction, tableID string, h *heap.TableHeap, rid page.RID, newTuple heap.Tuple) error {
	meta, tuple, err := h.GetTuple(rid)
	if err != nil {
		return errors.Trace(err)
	}
	if err := m.checkWriteConflict(txn, meta); err != nil {
		return err
	}
	if meta.IsDeleted {
		return ErrTupleDeleted
	}

	link := txn.pushUndo(rid, h, UndoRecord{Ts: meta.Ts, Tuple: tuple, Prev: meta.Prev})
	if err := h.UpdateTupleInPlace(heap.TupleMeta{Ts: txn.ID, Prev: link}, newTuple, rid); err != nil {
		return errors.Trace(err)
	}
	txn.addToWriteSet(tableID, rid, h)
	return nil
}

// ReviveTuple reclaims a deleted slot for a fresh insert, per spec §4.7's
// Insert contract: "on primary-key conflict... reclaims a deleted slot
// (succeed with version-chain link)". Unlike UpdateTuple it accepts only
// an already-deleted base tuple (a live one is an error), and the undo
// record it pushes is a tombstone with no tuple bytes.
func (m *Manager) ReviveTuple(txn *Transaction, tableID string, h *heap.TableHeap, rid page.RID, newTuple heap.Tuple) error {
	meta, tuple, err := h.GetTuple(rid)
	if err != nil {
		return errors.Trace(err)
	}
	if err := m.checkWriteConflict(txn, meta); err != nil {
		return err
	}
	if !meta.IsDeleted {
		return errors.New("txn: ReviveTuple called on a live tuple")
	}
	_ = tuple // on-disk bytes predate the delete and are not the tombstone's content

	link := txn.pushUndo(rid, h, UndoRecord{Ts: meta.Ts, Tuple: nil, Prev: meta.Prev})
	if err := h.UpdateTupleInPlace(heap.TupleMeta{Ts: txn.ID, Prev: link}, newTuple, rid); err != nil {
		return errors.Trace(err)
	}
	txn.addToWriteSet(tableID, rid, h)
	return nil
}

func (m *Manager) checkWriteConflict(txn *Transaction, meta heap.TupleMeta) error {
	if IsTxnID(meta.Ts) && meta.Ts != txn.ID {
		logger.Debugf("txn: %d write-write conflict with in-flight txn %d, tainting", txn.ID, meta.Ts)
		txn.State = Tainted
		return ErrWriteConflict
	}
	return nil
}

// Commit atomically takes a commit_ts, validates (for serializable
// isolation), rewrites every write-set tuple's ts stamp, and marks the
// transaction committed, per spec §4.8.
func (m *Manager) Commit(txn *Transaction) error {
	if txn.State == Tainted {
		_ = m.Abort(txn)
		return ErrTainted
	}

	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	commitTs := atomic.AddUint64(&m.counter, 1)

	if txn.Isolation == Serializable {
		if err := m.validateSerializable(txn, commitTs); err != nil {
			_ = m.Abort(txn)
			return err
		}
	}

	for wk, h := range txn.WriteSet {
		meta, err := h.GetTupleMeta(wk.RID)
		if err != nil {
			continue
		}
		meta.Ts = commitTs
		_ = h.UpdateTupleMeta(meta, wk.RID)
	}

	txn.CommitTs = commitTs
	txn.State = Committed

	m.mu.Lock()
	m.commitLog = append(m.commitLog, m.snapshotCommit(txn, commitTs))
	delete(m.active, txn.ID)
	m.lastCommitTs = commitTs
	m.mu.Unlock()

	m.watermark.RemoveTxn(txn.ReadTs)
	m.watermark.SetLastCommit(commitTs)
	return nil
}

func (m *Manager) snapshotCommit(txn *Transaction, ts uint64) commitRecord {
	cr := commitRecord{
		ts:     ts,
		tuples: make(map[writeKey]heap.Tuple, len(txn.WriteSet)),
	}
	for wk, h := range txn.WriteSet {
		if _, tuple, err := h.GetTuple(wk.RID); err == nil {
			cr.tuples[wk] = tuple
		}
	}
	return cr
}

// validateSerializable checks spec §4.8's commit-time rule: a read-only
// transaction can always be serialized before any concurrent writer (it has
// no outgoing rw-edge, so it is never the pivot of a dangerous structure)
// and is exempt. A transaction that also wrote something fails if any other
// transaction committed, in (read_ts, commit_ts], a version satisfying one
// of txn's recorded scan predicates — regardless of which key that version
// lives at. This is the classic write-skew shape: two transactions each scan
// a predicate the other is about to falsify and write to disjoint keys, so
// requiring the matched key to also sit in txn's own write set (as an
// earlier revision of this check did) misses it entirely.
func (m *Manager) validateSerializable(txn *Transaction, commitTs uint64) error {
	if len(txn.WriteSet) == 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, cr := range m.commitLog {
		if cr.ts <= txn.ReadTs || cr.ts > commitTs {
			continue
		}
		for wk, tuple := range cr.tuples {
			for _, sp := range txn.ScanPredicates {
				if sp.TableID == wk.TableID && sp.Match(tuple) {
					logger.Debugf("txn: %d serialization failure, predicate on %s matched a version committed at %d",
						txn.ID, wk.TableID, cr.ts)
					return ErrSerializationFailure
				}
			}
		}
	}
	return nil
}

// Abort walks txn's undo log in reverse, restoring each base tuple, hides
// any rows it inserted, and marks it aborted.
func (m *Manager) Abort(txn *Transaction) error {
	if txn.State == Committed {
		return ErrAlreadyCommitted
	}

	for i := len(txn.UndoLog) - 1; i >= 0; i-- {
		rec := txn.UndoLog[i]
		rid := txn.undoRID[i]
		h := txn.undoHeap[i]
		restored := heap.TupleMeta{Ts: rec.Ts, IsDeleted: len(rec.Tuple) == 0, Prev: rec.Prev}
		_ = h.UpdateTupleInPlace(restored, rec.Tuple, rid)
	}

	for _, ins := range txn.inserted {
		_ = ins.h.UpdateTupleMeta(heap.TupleMeta{Ts: 0, IsDeleted: true, Prev: heap.InvalidLink}, ins.key.RID)
	}

	txn.State = Aborted

	m.mu.Lock()
	delete(m.active, txn.ID)
	m.mu.Unlock()

	m.watermark.RemoveTxn(txn.ReadTs)
	return nil
}
