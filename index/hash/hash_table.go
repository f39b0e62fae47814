package hash

import (
	"encoding/binary"
	"sync"

	"github.com/Afeather2017/reldb/logger"
	"github.com/Afeather2017/reldb/storage/buffer"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/Afeather2017/reldb/util"
	"github.com/juju/errors"
)

// ErrKeyExists is returned by Insert when the key already has a live
// mapping.
var ErrKeyExists = errors.New("hash: key already present")

// ErrKeyNotFound is returned by Remove when the key has no mapping.
var ErrKeyNotFound = errors.New("hash: key not found")

// ErrHashQuality is returned when a split leaves both resulting buckets
// still overfull — every key in the original bucket collided on the new
// routing bit, which extendible hashing cannot recover from, per spec
// §4.5's "pathological collision" fatal case.
var ErrHashQuality = errors.New("hash: pathological collision, cannot split further")

// Table is the extendible hash index of spec §4.5: a header page fanning
// out to directory pages, each routing to bucket pages. Grounded on
// manager/bplus_tree_manager.go's manager-wraps-pages shape; the structure
// here is §4.5's three-level routing instead of a B+tree. Splits, merges,
// and pathological-collision failures log through the logger package.
type Table struct {
	mu sync.Mutex

	bpm           *buffer.Manager
	headerPageID  page.ID
	maxDepth      uint32
	bucketMaxSize uint32
}

// New allocates a fresh header page and returns a ready Table.
func New(bpm *buffer.Manager, maxDepth uint32, bucketMaxSize uint32) (*Table, error) {
	if maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}
	id, pg, err := bpm.NewPage()
	if err != nil {
		return nil, errors.Trace(err)
	}
	InitHeaderPage(pg.Data(), maxDepth)
	if err := bpm.UnpinPage(id, true); err != nil {
		return nil, errors.Trace(err)
	}
	return &Table{bpm: bpm, headerPageID: id, maxDepth: maxDepth, bucketMaxSize: bucketMaxSize}, nil
}

// Open wraps an existing header page id (e.g. recovered from a catalog
// entry) as a Table.
func Open(bpm *buffer.Manager, headerPageID page.ID, maxDepth uint32, bucketMaxSize uint32) *Table {
	return &Table{bpm: bpm, headerPageID: headerPageID, maxDepth: maxDepth, bucketMaxSize: bucketMaxSize}
}

func hashKey(key Key) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(key))
	return util.HashCode(b[:])
}

// Get looks up key, returning its value and whether it was found.
func (t *Table) Get(key Key) (Value, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := hashKey(key)

	hg, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return Value{}, false, errors.Trace(err)
	}
	header := WrapHeaderPage(hg.Page().Data())
	dirID := header.DirectoryPageID(header.HashToDirectoryIndex(h))
	hg.Drop()
	if dirID == page.Invalid {
		return Value{}, false, nil
	}

	dg, err := t.bpm.FetchPageRead(dirID)
	if err != nil {
		return Value{}, false, errors.Trace(err)
	}
	dir := WrapDirectoryPage(dg.Page().Data())
	bucketID := dir.BucketPageID(dir.HashToBucketIndex(h))
	dg.Drop()
	if bucketID == page.Invalid {
		return Value{}, false, nil
	}

	bg, err := t.bpm.FetchPageRead(bucketID)
	if err != nil {
		return Value{}, false, errors.Trace(err)
	}
	defer bg.Drop()
	v, ok := WrapBucketPage(bg.Page().Data()).Find(key)
	return v, ok, nil
}

// Insert adds (key, value), splitting buckets and growing the directory as
// needed per spec §4.5. Returns ErrKeyExists if the key is already mapped.
func (t *Table) Insert(key Key, value Value) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := hashKey(key)

	hg, err := t.bpm.FetchPageWrite(t.headerPageID)
	if err != nil {
		return errors.Trace(err)
	}
	header := WrapHeaderPage(hg.Page().Data())
	dirIdx := header.HashToDirectoryIndex(h)
	dirID := header.DirectoryPageID(dirIdx)

	if dirID == page.Invalid {
		newDirID, pg, err := t.bpm.NewPage()
		if err != nil {
			hg.Drop()
			return errors.Trace(err)
		}
		InitDirectoryPage(pg.Data(), t.maxDepth)
		header.SetDirectoryPageID(dirIdx, newDirID)
		hg.Drop()
		if err := t.bpm.UnpinPage(newDirID, true); err != nil {
			return errors.Trace(err)
		}
		dirID = newDirID
	} else {
		hg.Drop()
	}

	return t.insertIntoDirectory(dirID, h, key, value)
}

func (t *Table) insertIntoDirectory(dirID page.ID, h uint64, key Key, value Value) error {
	for {
		dg, err := t.bpm.FetchPageWrite(dirID)
		if err != nil {
			return errors.Trace(err)
		}
		dir := WrapDirectoryPage(dg.Page().Data())
		idx := dir.HashToBucketIndex(h)
		bucketID := dir.BucketPageID(idx)

		if bucketID == page.Invalid {
			newBucketID, pg, err := t.bpm.NewPage()
			if err != nil {
				dg.Drop()
				return errors.Trace(err)
			}
			InitBucketPage(pg.Data(), t.bucketMaxSize)
			dir.RepointBucket(uint8(dir.GlobalDepth()), idx, newBucketID)
			if err := t.bpm.UnpinPage(newBucketID, true); err != nil {
				dg.Drop()
				return errors.Trace(err)
			}
			bucketID = newBucketID
		}

		bg, err := t.bpm.FetchPageWrite(bucketID)
		if err != nil {
			dg.Drop()
			return errors.Trace(err)
		}
		bucket := WrapBucketPage(bg.Page().Data())

		if _, exists := bucket.Find(key); exists {
			bg.Drop()
			dg.Drop()
			return ErrKeyExists
		}

		if !bucket.IsFull() {
			bucket.Insert(key, value)
			bg.Drop()
			dg.Drop()
			return nil
		}

		// Split. Must grow the directory first if the bucket's local
		// depth has caught up with the global depth.
		ld := dir.LocalDepth(idx)
		if uint32(ld) == dir.GlobalDepth() {
			if err := dir.IncrGlobalDepth(); err != nil {
				bg.Drop()
				dg.Drop()
				return errors.Trace(err)
			}
			idx = dir.HashToBucketIndex(h)
			ld = dir.LocalDepth(idx)
		}

		newBucketID, newPg, err := t.bpm.NewPage()
		if err != nil {
			bg.Drop()
			dg.Drop()
			return errors.Trace(err)
		}
		newLD := ld + 1
		logger.Debugf("hash: splitting bucket %d at local depth %d", bucketID, ld)
		InitBucketPage(newPg.Data(), t.bucketMaxSize)
		newBucket := WrapBucketPage(newPg.Data())

		imageIdx := dir.GetSplitImageIndex(idx, newLD)
		// Repoint the image half to the new bucket first, then the
		// staying half back onto the original bucket at the bumped
		// depth — both calls only touch slots matching their own
		// low newLD bits, so order does not matter here.
		dir.RepointBucket(newLD, imageIdx, newBucketID)
		dir.RepointBucket(newLD, idx, bucketID)

		entries := bucket.All()
		bucket.Clear()
		splitBit := uint32(1) << (newLD - 1)
		imageSide := imageIdx & splitBit
		for _, e := range entries {
			eh := hashKey(e.Key)
			if uint32(eh)&splitBit == imageSide {
				newBucket.Insert(e.Key, e.Value)
			} else {
				bucket.Insert(e.Key, e.Value)
			}
		}

		bg.Drop()
		if err := t.bpm.UnpinPage(newBucketID, true); err != nil {
			dg.Drop()
			return errors.Trace(err)
		}
		dg.Drop()

		if bucket.IsFull() && newBucket.IsFull() {
			logger.Errorf("hash: bucket %d pathological collision, cannot split further", bucketID)
			return ErrHashQuality
		}
		// Retry the insert now that the bucket has room on one side.
	}
}

// Remove deletes key's mapping, merging the emptied bucket with its split
// image when possible and shrinking the directory, per spec §4.5.
func (t *Table) Remove(key Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := hashKey(key)

	hg, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return errors.Trace(err)
	}
	header := WrapHeaderPage(hg.Page().Data())
	dirID := header.DirectoryPageID(header.HashToDirectoryIndex(h))
	hg.Drop()
	if dirID == page.Invalid {
		return ErrKeyNotFound
	}

	dg, err := t.bpm.FetchPageWrite(dirID)
	if err != nil {
		return errors.Trace(err)
	}
	defer dg.Drop()
	dir := WrapDirectoryPage(dg.Page().Data())
	idx := dir.HashToBucketIndex(h)
	bucketID := dir.BucketPageID(idx)
	if bucketID == page.Invalid {
		return ErrKeyNotFound
	}

	bg, err := t.bpm.FetchPageWrite(bucketID)
	if err != nil {
		return errors.Trace(err)
	}
	bucket := WrapBucketPage(bg.Page().Data())
	if !bucket.Remove(key) {
		bg.Drop()
		return ErrKeyNotFound
	}

	if !bucket.IsEmpty() {
		bg.Drop()
		return nil
	}

	t.tryMerge(dir, idx, bucketID, bg)

	for dir.CanShrink() && dir.GlobalDepth() > 0 {
		dir.DecrGlobalDepth()
	}
	return nil
}

// tryMerge recursively merges an emptied bucket into its split image while
// their local depths match and the image is also empty, per spec §4.5.
// bg guards bucketID and is always dropped before returning.
func (t *Table) tryMerge(dir DirectoryPage, idx uint32, bucketID page.ID, bg buffer.WritePageGuard) {
	bg.Drop()

	for {
		ld := dir.LocalDepth(idx)
		if ld == 0 {
			return
		}
		imageIdx := dir.GetSplitImageIndex(idx, ld)
		imageID := dir.BucketPageID(imageIdx)
		if imageID == page.Invalid || imageID == bucketID {
			return
		}
		if dir.LocalDepth(imageIdx) != ld {
			return
		}

		ig, err := t.bpm.FetchPageRead(imageID)
		if err != nil {
			return
		}
		imageEmpty := WrapBucketPage(ig.Page().Data()).IsEmpty()
		ig.Drop()
		if !imageEmpty {
			return
		}

		logger.Debugf("hash: merging empty bucket %d into split image %d", bucketID, imageID)
		dir.RepointBucket(ld-1, idx, imageID)
		_ = t.bpm.DeletePage(bucketID)

		bucketID = imageID
		idx = idx & (uint32(1)<<(ld-1) - 1)
	}
}
