package hash

import "github.com/Afeather2017/reldb/storage/page"

// Layout: size(u32) | max_size(u32) | entries[...]; each entry is key(u64) +
// value.PageID(i32) + value.Slot(u32) = 16 bytes.
const (
	bucketSizeOff    = 0
	bucketMaxSizeOff = 4
	bucketEntriesOff = 8
	entryWidth       = 16
)

// BucketMaxSize is the largest max_size a bucket page can hold.
const BucketMaxSize = (page.Size - bucketEntriesOff) / entryWidth

// BucketPage is a thin view over a bucket page's bytes: a dense, unsorted
// array of (key, value) pairs.
type BucketPage struct {
	buf *[page.Size]byte
}

// InitBucketPage formats buf as an empty bucket with the given capacity
// (capped at BucketMaxSize).
func InitBucketPage(buf *[page.Size]byte, maxSize uint32) BucketPage {
	if maxSize > BucketMaxSize {
		maxSize = BucketMaxSize
	}
	b := BucketPage{buf: buf}
	putU32(buf, bucketSizeOff, 0)
	putU32(buf, bucketMaxSizeOff, maxSize)
	return b
}

func WrapBucketPage(buf *[page.Size]byte) BucketPage {
	return BucketPage{buf: buf}
}

func (b BucketPage) Size() uint32    { return getU32(b.buf, bucketSizeOff) }
func (b BucketPage) MaxSize() uint32 { return getU32(b.buf, bucketMaxSizeOff) }
func (b BucketPage) IsFull() bool    { return b.Size() >= b.MaxSize() }
func (b BucketPage) IsEmpty() bool   { return b.Size() == 0 }

func (b BucketPage) entryOff(i uint32) int {
	return bucketEntriesOff + int(i)*entryWidth
}

func (b BucketPage) KeyAt(i uint32) Key {
	off := b.entryOff(i)
	lo := uint64(getU32(b.buf, off))
	hi := uint64(getU32(b.buf, off+4))
	return Key(lo | hi<<32)
}

func (b BucketPage) ValueAt(i uint32) Value {
	off := b.entryOff(i) + 8
	return Value{PageID: page.ID(getI32(b.buf, off)), Slot: getU32(b.buf, off+4)}
}

func (b BucketPage) setEntry(i uint32, k Key, v Value) {
	off := b.entryOff(i)
	putU32(b.buf, off, uint32(k))
	putU32(b.buf, off+4, uint32(k>>32))
	putI32(b.buf, off+8, int32(v.PageID))
	putU32(b.buf, off+12, v.Slot)
}

// Find returns the value for key and whether it was present.
func (b BucketPage) Find(key Key) (Value, bool) {
	n := b.Size()
	for i := uint32(0); i < n; i++ {
		if b.KeyAt(i) == key {
			return b.ValueAt(i), true
		}
	}
	return Value{}, false
}

// Insert appends (key, value). Fails if key is already present or the
// bucket is full.
func (b BucketPage) Insert(key Key, value Value) bool {
	if _, ok := b.Find(key); ok {
		return false
	}
	if b.IsFull() {
		return false
	}
	n := b.Size()
	b.setEntry(n, key, value)
	putU32(b.buf, bucketSizeOff, n+1)
	return true
}

// Remove deletes key, compacting the entry array. Reports whether the key
// was present.
func (b BucketPage) Remove(key Key) bool {
	n := b.Size()
	for i := uint32(0); i < n; i++ {
		if b.KeyAt(i) != key {
			continue
		}
		last := n - 1
		if i != last {
			k := b.KeyAt(last)
			v := b.ValueAt(last)
			b.setEntry(i, k, v)
		}
		putU32(b.buf, bucketSizeOff, last)
		return true
	}
	return false
}

// All returns every (key, value) pair currently in the bucket.
func (b BucketPage) All() []struct {
	Key   Key
	Value Value
} {
	n := b.Size()
	out := make([]struct {
		Key   Key
		Value Value
	}, n)
	for i := uint32(0); i < n; i++ {
		out[i].Key = b.KeyAt(i)
		out[i].Value = b.ValueAt(i)
	}
	return out
}

// Clear empties the bucket without changing its capacity.
func (b BucketPage) Clear() {
	putU32(b.buf, bucketSizeOff, 0)
}
