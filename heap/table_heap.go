package heap

import (
	"sync"

	"github.com/Afeather2017/reldb/storage/buffer"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/juju/errors"
)

// ErrTupleTooLarge is returned by InsertTuple when a tuple cannot fit in a
// single page even when empty.
var ErrTupleTooLarge = errors.New("heap: tuple too large for a page")

// TableHeap is an ordered sequence of heap pages, per spec §4.6.
type TableHeap struct {
	bpm *buffer.Manager

	mu      sync.Mutex
	firstID page.ID
	lastID  page.ID
}

// New allocates the heap's first page and returns a ready TableHeap.
func New(bpm *buffer.Manager) (*TableHeap, error) {
	id, pg, err := bpm.NewPage()
	if err != nil {
		return nil, errors.Trace(err)
	}
	InitHeapPage(pg.Data())
	if err := bpm.UnpinPage(id, true); err != nil {
		return nil, errors.Trace(err)
	}
	return &TableHeap{bpm: bpm, firstID: id, lastID: id}, nil
}

// Open wraps an existing heap whose first page id is known (e.g. from a
// catalog entry).
func Open(bpm *buffer.Manager, firstPageID, lastPageID page.ID) *TableHeap {
	return &TableHeap{bpm: bpm, firstID: firstPageID, lastID: lastPageID}
}

func (t *TableHeap) FirstPageID() page.ID { return t.firstID }
func (t *TableHeap) LastPageID() page.ID  { return t.lastID }

// InsertTuple appends tuple to the last page, allocating a new page if it
// does not fit. Fails if tuple cannot fit even in an empty page.
func (t *TableHeap) InsertTuple(meta TupleMeta, tuple Tuple) (page.RID, error) {
	if slotWidth+len(tuple) > page.Size-headerWidth {
		return page.RID{}, ErrTupleTooLarge
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	wg, err := t.bpm.FetchPageWrite(t.lastID)
	if err != nil {
		return page.RID{}, errors.Trace(err)
	}
	hp := WrapHeapPage(wg.Page().Data())
	slot, ok := hp.InsertTuple(meta, tuple)
	if ok {
		rid := page.RID{PageID: t.lastID, Slot: slot}
		wg.Drop()
		return rid, nil
	}
	wg.Drop()

	newID, pg, err := t.bpm.NewPage()
	if err != nil {
		return page.RID{}, errors.Trace(err)
	}
	InitHeapPage(pg.Data())

	oldWG, err := t.bpm.FetchPageWrite(t.lastID)
	if err != nil {
		_ = t.bpm.UnpinPage(newID, true)
		return page.RID{}, errors.Trace(err)
	}
	WrapHeapPage(oldWG.Page().Data()).SetNextPageID(newID)
	oldWG.Drop()

	newHP := WrapHeapPage(pg.Data())
	slot, ok = newHP.InsertTuple(meta, tuple)
	if !ok {
		_ = t.bpm.UnpinPage(newID, true)
		return page.RID{}, ErrTupleTooLarge
	}
	t.lastID = newID
	if err := t.bpm.UnpinPage(newID, true); err != nil {
		return page.RID{}, errors.Trace(err)
	}
	return page.RID{PageID: newID, Slot: slot}, nil
}

// GetTuple returns the metadata and bytes for rid.
func (t *TableHeap) GetTuple(rid page.RID) (TupleMeta, Tuple, error) {
	rg, err := t.bpm.FetchPageRead(rid.PageID)
	if err != nil {
		return TupleMeta{}, nil, errors.Trace(err)
	}
	defer rg.Drop()
	hp := WrapHeapPage(rg.Page().Data())
	return hp.GetTupleMeta(rid.Slot), hp.GetTuple(rid.Slot), nil
}

// GetTupleMeta returns just the metadata for rid.
func (t *TableHeap) GetTupleMeta(rid page.RID) (TupleMeta, error) {
	rg, err := t.bpm.FetchPageRead(rid.PageID)
	if err != nil {
		return TupleMeta{}, errors.Trace(err)
	}
	defer rg.Drop()
	return WrapHeapPage(rg.Page().Data()).GetTupleMeta(rid.Slot), nil
}

// UpdateTupleMeta overwrites rid's metadata in place.
func (t *TableHeap) UpdateTupleMeta(meta TupleMeta, rid page.RID) error {
	wg, err := t.bpm.FetchPageWrite(rid.PageID)
	if err != nil {
		return errors.Trace(err)
	}
	defer wg.Drop()
	WrapHeapPage(wg.Page().Data()).SetTupleMeta(rid.Slot, meta)
	return nil
}

// UpdateTupleInPlace overwrites rid's tuple bytes and metadata, failing if
// the new tuple is larger than the slot's original capacity.
func (t *TableHeap) UpdateTupleInPlace(meta TupleMeta, tuple Tuple, rid page.RID) error {
	wg, err := t.bpm.FetchPageWrite(rid.PageID)
	if err != nil {
		return errors.Trace(err)
	}
	defer wg.Drop()
	if !WrapHeapPage(wg.Page().Data()).UpdateTupleInPlace(rid.Slot, meta, tuple) {
		return errors.New("heap: tuple grew past its slot capacity")
	}
	return nil
}

// Entry is one row yielded by an Iterator.
type Entry struct {
	Meta TupleMeta
	Tuple Tuple
	RID   page.RID
}

// Iterator walks every slot of every page in page-then-slot order, fixed
// to the heap's last page id at the moment the iterator was created (spec
// §4.6).
type Iterator struct {
	heap    *TableHeap
	stopAt  page.ID
	curID   page.ID
	curSlot uint32
	done    bool
}

// NewIterator snapshots the heap's current last page and returns an
// iterator over everything up to and including it.
func (t *TableHeap) NewIterator() *Iterator {
	t.mu.Lock()
	stop := t.lastID
	t.mu.Unlock()
	return &Iterator{heap: t, stopAt: stop, curID: t.firstID}
}

// Next returns the next (meta, tuple, rid) triple, including deleted rows;
// callers filter on Meta.IsDeleted. Returns ok=false at end of stream.
func (it *Iterator) Next() (Entry, bool, error) {
	for {
		if it.done || it.curID == page.Invalid {
			return Entry{}, false, nil
		}

		rg, err := it.heap.bpm.FetchPageRead(it.curID)
		if err != nil {
			return Entry{}, false, errors.Trace(err)
		}
		hp := WrapHeapPage(rg.Page().Data())
		n := hp.NumSlots()

		if it.curSlot < uint32(n) {
			slot := it.curSlot
			entry := Entry{
				Meta:  hp.GetTupleMeta(slot),
				Tuple: hp.GetTuple(slot),
				RID:   page.RID{PageID: it.curID, Slot: slot},
			}
			it.curSlot++
			rg.Drop()
			return entry, true, nil
		}

		next := hp.NextPageID()
		reachedStop := it.curID == it.stopAt
		rg.Drop()
		if reachedStop {
			it.done = true
			return Entry{}, false, nil
		}
		it.curID = next
		it.curSlot = 0
	}
}
