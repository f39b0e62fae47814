// Package hash implements the extendible hash index described in spec §4.5
// and its on-disk page layouts from spec §6. No available source file
// implements extendible hashing directly (server/innodb indexes with a
// B+tree, see manager/bplus_tree_manager.go); this package borrows that
// file's manager-wraps-pages shape — a manager type holding a
// *storage/buffer.Manager and fetching/pinning pages per operation — and
// routes with util.HashCode (xxhash).
package hash

import (
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/Afeather2017/reldb/util"
	"github.com/juju/errors"
)

var errGlobalDepthAtMax = errors.New("hash: directory already at max depth")

// MaxDepth bounds both the header's fan-out and every directory's global
// depth, per spec §6 (max_depth ≤ 9).
const MaxDepth = 9

// DirSlots is the fixed capacity of every header/directory array: 1 <<
// MaxDepth. Only the first 1<<max_depth entries of a given page are live;
// the rest keep the values the page's Init function wrote (page.Invalid
// ids, zero local depths).
const DirSlots = 1 << MaxDepth

// Key is the routed index key. Composite/variable-length keys are hashed
// down to this width by the caller before Insert/Remove/Get.
type Key uint64

// Value is a tuple locator, per spec §4.5's (k, v) bucket entries.
type Value = page.RID

// putU32 and getU32 back every fixed-width field in the header/directory/
// bucket page layouts below with util's little-endian codec
// (util/buffer_writer.go, util/buffer_reader.go) instead of a page-local
// reimplementation. util.WriteUB4 appends to a slice; slicing buf
// three-index-style at [off:off:page.Size] hands it a zero-length,
// full-capacity window onto buf's backing array, so the append writes the
// 4 bytes in place at off rather than growing a new slice.
func putU32(buf *[page.Size]byte, off int, v uint32) {
	util.WriteUB4(buf[off:off:page.Size], v)
}

func getU32(buf *[page.Size]byte, off int) uint32 {
	_, v := util.ReadUB4(buf[:], off)
	return v
}

func putI32(buf *[page.Size]byte, off int, v int32) {
	putU32(buf, off, uint32(v))
}

func getI32(buf *[page.Size]byte, off int) int32 {
	return int32(getU32(buf, off))
}
