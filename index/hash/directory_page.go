package hash

import "github.com/Afeather2017/reldb/storage/page"

// Layout: max_depth(u32) | global_depth(u32) | local_depths[DirSlots](u8
// each) | bucket_page_ids[DirSlots](i32 each).
const (
	dirMaxDepthOff    = 0
	dirGlobalDepthOff = 4
	dirLocalDepthsOff = 8
	dirBucketIDsOff   = dirLocalDepthsOff + DirSlots
)

// DirectoryPage is a thin view over a directory page's bytes.
type DirectoryPage struct {
	buf *[page.Size]byte
}

// InitDirectoryPage formats buf as a fresh, empty directory: global depth
// 0, a single logical slot with no bucket yet.
func InitDirectoryPage(buf *[page.Size]byte, maxDepth uint32) DirectoryPage {
	d := DirectoryPage{buf: buf}
	putU32(buf, dirMaxDepthOff, maxDepth)
	putU32(buf, dirGlobalDepthOff, 0)
	for i := 0; i < DirSlots; i++ {
		buf[dirLocalDepthsOff+i] = 0
		putI32(buf, dirBucketIDsOff+i*4, int32(page.Invalid))
	}
	return d
}

func WrapDirectoryPage(buf *[page.Size]byte) DirectoryPage {
	return DirectoryPage{buf: buf}
}

func (d DirectoryPage) MaxDepth() uint32    { return getU32(d.buf, dirMaxDepthOff) }
func (d DirectoryPage) GlobalDepth() uint32 { return getU32(d.buf, dirGlobalDepthOff) }

func (d DirectoryPage) setGlobalDepth(gd uint32) {
	putU32(d.buf, dirGlobalDepthOff, gd)
}

// Size is the directory's current logical size, 1 << global_depth.
func (d DirectoryPage) Size() uint32 {
	return 1 << d.GlobalDepth()
}

// HashToBucketIndex masks hash to the directory's current global depth,
// per spec §4.5.
func (d DirectoryPage) HashToBucketIndex(hash uint64) uint32 {
	gd := d.GlobalDepth()
	if gd == 0 {
		return 0
	}
	return uint32(hash) & ((1 << gd) - 1)
}

func (d DirectoryPage) LocalDepth(idx uint32) uint8 {
	return d.buf[dirLocalDepthsOff+int(idx)]
}

func (d DirectoryPage) BucketPageID(idx uint32) page.ID {
	return page.ID(getI32(d.buf, dirBucketIDsOff+int(idx)*4))
}

func (d DirectoryPage) setBucketPageIDRaw(idx uint32, id page.ID) {
	putI32(d.buf, dirBucketIDsOff+int(idx)*4, int32(id))
}

// RepointBucket sets bucket id and local depth for every directory slot
// whose low `depth` bits equal pattern's low `depth` bits. This is the
// building block for both split (depth = new local depth, called once per
// side with the respective bucket id) and merge (depth = ld-1, called once
// with the surviving bucket id, since both merging groups already share
// those low bits): it preserves the invariant that every slot sharing a
// bucket id has identical local depth and that the bucket occupies exactly
// 2^(global-local) slots.
func (d DirectoryPage) RepointBucket(depth uint8, pattern uint32, id page.ID) {
	mask := uint32(1)<<depth - 1
	want := pattern & mask
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		if i&mask == want {
			d.buf[dirLocalDepthsOff+int(i)] = depth
			d.setBucketPageIDRaw(i, id)
		}
	}
}

// GetSplitImageIndex returns the directory slot that is idx's split image:
// the slot reached by flipping the bit that distinguishes the two
// post-split buckets, at the (new) local depth ld.
func (d DirectoryPage) GetSplitImageIndex(idx uint32, ld uint8) uint32 {
	mask := uint32(1)<<d.GlobalDepth() - 1
	return (idx & mask) ^ (1 << (ld - 1))
}

// IncrGlobalDepth doubles the directory by copying the lower half into the
// upper half verbatim (same local depths, same bucket ids), per spec §4.5.
// Fails if already at MaxDepth.
func (d DirectoryPage) IncrGlobalDepth() error {
	gd := d.GlobalDepth()
	if gd >= d.MaxDepth() {
		return errGlobalDepthAtMax
	}
	size := uint32(1) << gd
	for i := uint32(0); i < size; i++ {
		d.buf[dirLocalDepthsOff+int(size+i)] = d.buf[dirLocalDepthsOff+int(i)]
		d.setBucketPageIDRaw(size+i, d.BucketPageID(i))
	}
	d.setGlobalDepth(gd + 1)
	return nil
}

// DecrGlobalDepth halves the directory logically; the upper half's entries
// become unreachable (not cleared — the next IncrGlobalDepth overwrites
// them).
func (d DirectoryPage) DecrGlobalDepth() {
	gd := d.GlobalDepth()
	if gd == 0 {
		return
	}
	d.setGlobalDepth(gd - 1)
}

// CanShrink reports whether every local depth among the directory's live
// slots is strictly less than the global depth, per the decided reading of
// the invariant (see design notes): the `==` revision is the intended one,
// so strict `<` against global depth is required for every slot, not just
// "not equal".
func (d DirectoryPage) CanShrink() bool {
	gd := d.GlobalDepth()
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		if uint32(d.LocalDepth(i)) >= gd {
			return false
		}
	}
	return true
}
