// Package heap implements the table heap of spec §4.6: an ordered sequence
// of slotted pages holding (TupleMeta, Tuple) pairs, located by RID. The
// slotted layout is grounded on the page-relative slot-offset idiom visible
// in manager/page.go and manager/page_manager.go (a fixed header, a
// growing slot directory, tuple bytes packed from the tail).
package heap

import "github.com/Afeather2017/reldb/storage/page"

// Link identifies an UndoRecord by (txn_id, index), per spec §4.7. It is
// the value TupleMeta.Prev holds instead of a literal page/slot RID: undo
// records live in each transaction's in-memory arena (spec §4.8), not in
// table heap pages.
type Link struct {
	TxnID uint64
	Index int32
}

// InvalidLink is the sentinel meaning "no previous version".
var InvalidLink = Link{Index: -1}

func (l Link) Valid() bool { return l.Index >= 0 }

// TupleMeta is the per-RID metadata stored alongside a tuple, per spec
// §4.6.
type TupleMeta struct {
	Ts        uint64
	IsDeleted bool
	Prev      Link
}

// Tuple is an opaque byte payload; schema interpretation happens above this
// package.
type Tuple []byte

const (
	headerNumSlotsOff  = 0
	headerNextPageOff  = 2
	headerFreeSpaceOff = 6
	headerWidth        = 8

	slotTupleOffOff  = 0
	slotTupleLenOff  = 2
	slotCapacityOff  = 4
	slotTsOff        = 6
	slotIsDeletedOff = 14
	slotPrevTxnOff   = 15
	slotPrevIdxOff   = 23
	slotWidth        = 27
)

// HeapPage is a thin view over a slotted heap page's bytes.
type HeapPage struct {
	buf *[page.Size]byte
}

// InitHeapPage formats buf as an empty heap page with no next page.
func InitHeapPage(buf *[page.Size]byte) HeapPage {
	h := HeapPage{buf: buf}
	putU16(buf, headerNumSlotsOff, 0)
	putI32(buf, headerNextPageOff, int32(page.Invalid))
	putU16(buf, headerFreeSpaceOff, uint16(page.Size))
	return h
}

func WrapHeapPage(buf *[page.Size]byte) HeapPage {
	return HeapPage{buf: buf}
}

func (h HeapPage) NumSlots() uint16 { return getU16(h.buf, headerNumSlotsOff) }

func (h HeapPage) NextPageID() page.ID { return page.ID(getI32(h.buf, headerNextPageOff)) }

func (h HeapPage) SetNextPageID(id page.ID) { putI32(h.buf, headerNextPageOff, int32(id)) }

func (h HeapPage) freeSpaceOffset() uint16 { return getU16(h.buf, headerFreeSpaceOff) }

func (h HeapPage) slotOff(slot uint32) int { return headerWidth + int(slot)*slotWidth }

// FreeBytes is the space left for a new slot entry plus its tuple bytes.
func (h HeapPage) FreeBytes() int {
	used := headerWidth + int(h.NumSlots())*slotWidth
	return int(h.freeSpaceOffset()) - used
}

// InsertTuple appends a new slot if there is room, returning its slot
// index. Returns ok=false ("tuple too large" / page full) otherwise.
func (h HeapPage) InsertTuple(meta TupleMeta, tuple Tuple) (uint32, bool) {
	need := slotWidth + len(tuple)
	if need > h.FreeBytes() {
		return 0, false
	}

	newFree := h.freeSpaceOffset() - uint16(len(tuple))
	copy(h.buf[newFree:], tuple)

	slot := uint32(h.NumSlots())
	off := h.slotOff(slot)
	putU16(h.buf, off+slotTupleOffOff, newFree)
	putU16(h.buf, off+slotTupleLenOff, uint16(len(tuple)))
	putU16(h.buf, off+slotCapacityOff, uint16(len(tuple)))
	h.writeMeta(off, meta)

	putU16(h.buf, headerFreeSpaceOff, newFree)
	putU16(h.buf, headerNumSlotsOff, uint16(slot)+1)
	return slot, true
}

func (h HeapPage) writeMeta(slotOff int, meta TupleMeta) {
	putU64(h.buf, slotOff+slotTsOff, meta.Ts)
	if meta.IsDeleted {
		h.buf[slotOff+slotIsDeletedOff] = 1
	} else {
		h.buf[slotOff+slotIsDeletedOff] = 0
	}
	putU64(h.buf, slotOff+slotPrevTxnOff, meta.Prev.TxnID)
	putI32(h.buf, slotOff+slotPrevIdxOff, meta.Prev.Index)
}

func (h HeapPage) readMeta(slotOff int) TupleMeta {
	return TupleMeta{
		Ts:        getU64(h.buf, slotOff+slotTsOff),
		IsDeleted: h.buf[slotOff+slotIsDeletedOff] != 0,
		Prev: Link{
			TxnID: getU64(h.buf, slotOff+slotPrevTxnOff),
			Index: getI32(h.buf, slotOff+slotPrevIdxOff),
		},
	}
}

// GetTupleMeta returns the metadata for slot.
func (h HeapPage) GetTupleMeta(slot uint32) TupleMeta {
	return h.readMeta(h.slotOff(slot))
}

// SetTupleMeta overwrites the metadata for slot in place.
func (h HeapPage) SetTupleMeta(slot uint32, meta TupleMeta) {
	h.writeMeta(h.slotOff(slot), meta)
}

// GetTuple returns the raw tuple bytes for slot, regardless of its deleted
// flag (callers check TupleMeta.IsDeleted themselves).
func (h HeapPage) GetTuple(slot uint32) Tuple {
	off := h.slotOff(slot)
	tOff := getU16(h.buf, off+slotTupleOffOff)
	tLen := getU16(h.buf, off+slotTupleLenOff)
	out := make(Tuple, tLen)
	copy(out, h.buf[tOff:int(tOff)+int(tLen)])
	return out
}

// UpdateTupleInPlace overwrites slot's tuple bytes and metadata. Only
// valid when the new tuple is no larger than the slot's capacity at
// allocation time (the tail region between this slot's offset and the
// next one down is not reclaimed by this package); shrinking and later
// growing back within that original capacity — e.g. an abort restoring a
// pre-update version — is always safe, which is why capacity is recorded
// once at InsertTuple rather than derived from the current tuple length.
func (h HeapPage) UpdateTupleInPlace(slot uint32, meta TupleMeta, tuple Tuple) bool {
	off := h.slotOff(slot)
	capacity := getU16(h.buf, off+slotCapacityOff)
	if len(tuple) > int(capacity) {
		return false
	}
	tOff := getU16(h.buf, off+slotTupleOffOff)
	copy(h.buf[tOff:], tuple)
	putU16(h.buf, off+slotTupleLenOff, uint16(len(tuple)))
	h.writeMeta(off, meta)
	return true
}

func putU16(buf *[page.Size]byte, off int, v uint16) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
}

func getU16(buf *[page.Size]byte, off int) uint16 {
	return uint16(buf[off]) | uint16(buf[off+1])<<8
}

func putU64(buf *[page.Size]byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		buf[off+i] = byte(v >> (8 * i))
	}
}

func getU64(buf *[page.Size]byte, off int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(buf[off+i]) << (8 * i)
	}
	return v
}

func putI32(buf *[page.Size]byte, off int, v int32) {
	u := uint32(v)
	buf[off] = byte(u)
	buf[off+1] = byte(u >> 8)
	buf[off+2] = byte(u >> 16)
	buf[off+3] = byte(u >> 24)
}

func getI32(buf *[page.Size]byte, off int) int32 {
	u := uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
	return int32(u)
}
