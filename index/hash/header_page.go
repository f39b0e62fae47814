package hash

import "github.com/Afeather2017/reldb/storage/page"

// Layout: max_depth(u32) | directory_page_ids[DirSlots](i32 each).
const (
	headerMaxDepthOff = 0
	headerDirIDsOff   = 4
)

// HeaderPage is a thin view over a page's bytes; callers hold the
// corresponding page guard for the lifetime of the view.
type HeaderPage struct {
	buf *[page.Size]byte
}

// InitHeaderPage formats buf as a fresh header page with the given depth,
// all directory slots unset.
func InitHeaderPage(buf *[page.Size]byte, maxDepth uint32) HeaderPage {
	h := HeaderPage{buf: buf}
	putU32(buf, headerMaxDepthOff, maxDepth)
	for i := 0; i < DirSlots; i++ {
		putI32(buf, headerDirIDsOff+i*4, int32(page.Invalid))
	}
	return h
}

// WrapHeaderPage views an already-formatted header page.
func WrapHeaderPage(buf *[page.Size]byte) HeaderPage {
	return HeaderPage{buf: buf}
}

func (h HeaderPage) MaxDepth() uint32 {
	return getU32(h.buf, headerMaxDepthOff)
}

// HashToDirectoryIndex routes the high MaxDepth bits of hash to a
// directory slot, per spec §4.5.
func (h HeaderPage) HashToDirectoryIndex(hash uint64) uint32 {
	depth := h.MaxDepth()
	if depth == 0 {
		return 0
	}
	return uint32(hash >> (64 - depth))
}

func (h HeaderPage) DirectoryPageID(idx uint32) page.ID {
	return page.ID(getI32(h.buf, headerDirIDsOff+int(idx)*4))
}

func (h HeaderPage) SetDirectoryPageID(idx uint32, id page.ID) {
	putI32(h.buf, headerDirIDsOff+int(idx)*4, int32(id))
}
