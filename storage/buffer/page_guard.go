package buffer

import (
	"github.com/Afeather2017/reldb/storage/page"
)

// BasicPageGuard is a scoped pin over a fetched frame: it unpins on Drop
// and otherwise leaves the page's own latch untouched. Guards are
// move-only — Move transfers ownership and leaves the source inert, per
// spec §4.4. The zero value is inert.
type BasicPageGuard struct {
	bpm   *Manager
	pg    *page.Page
	id    page.ID
	dirty bool
}

func newBasicGuard(bpm *Manager, pg *page.Page, id page.ID) BasicPageGuard {
	return BasicPageGuard{bpm: bpm, pg: pg, id: id}
}

// PageID returns the guarded page's id, or page.Invalid if the guard is
// inert.
func (g *BasicPageGuard) PageID() page.ID {
	if g.pg == nil {
		return page.Invalid
	}
	return g.id
}

// Page returns the raw page for direct access to its data.
func (g *BasicPageGuard) Page() *page.Page {
	return g.pg
}

// MarkDirty flags the underlying page dirty; it is unpinned with this flag
// set when the guard drops.
func (g *BasicPageGuard) MarkDirty() {
	g.dirty = true
}

// Move transfers ownership to a new guard value and leaves g inert.
func (g *BasicPageGuard) Move() BasicPageGuard {
	moved := *g
	g.bpm, g.pg = nil, nil
	return moved
}

// Drop unpins the page. Safe to call on an inert guard.
func (g *BasicPageGuard) Drop() {
	if g.pg == nil {
		return
	}
	_ = g.bpm.UnpinPage(g.id, g.dirty)
	g.bpm, g.pg = nil, nil
}

// Upgrade acquires the page's shared latch while still holding the pin,
// then returns a ReadPageGuard and invalidates g.
func (g *BasicPageGuard) Upgrade() ReadPageGuard {
	g.pg.RLock()
	rg := ReadPageGuard{bpm: g.bpm, pg: g.pg, id: g.id}
	g.bpm, g.pg = nil, nil
	return rg
}

// UpgradeWrite acquires the page's exclusive latch while still holding the
// pin, then returns a WritePageGuard and invalidates g.
func (g *BasicPageGuard) UpgradeWrite() WritePageGuard {
	g.pg.Lock()
	wg := WritePageGuard{bpm: g.bpm, pg: g.pg, id: g.id}
	g.bpm, g.pg = nil, nil
	return wg
}

// ReadPageGuard holds a pin plus the page's shared latch.
type ReadPageGuard struct {
	bpm *Manager
	pg  *page.Page
	id  page.ID
}

func (g *ReadPageGuard) PageID() page.ID {
	if g.pg == nil {
		return page.Invalid
	}
	return g.id
}

func (g *ReadPageGuard) Page() *page.Page {
	return g.pg
}

func (g *ReadPageGuard) Move() ReadPageGuard {
	moved := *g
	g.bpm, g.pg = nil, nil
	return moved
}

// Drop releases the shared latch and unpins. Safe on an inert guard.
func (g *ReadPageGuard) Drop() {
	if g.pg == nil {
		return
	}
	g.pg.RUnlock()
	_ = g.bpm.UnpinPage(g.id, false)
	g.bpm, g.pg = nil, nil
}

// WritePageGuard holds a pin plus the page's exclusive latch. Any access
// through it is assumed to mutate the page, so dropping marks it dirty.
type WritePageGuard struct {
	bpm *Manager
	pg  *page.Page
	id  page.ID
}

func (g *WritePageGuard) PageID() page.ID {
	if g.pg == nil {
		return page.Invalid
	}
	return g.id
}

func (g *WritePageGuard) Page() *page.Page {
	return g.pg
}

func (g *WritePageGuard) Move() WritePageGuard {
	moved := *g
	g.bpm, g.pg = nil, nil
	return moved
}

// Drop releases the exclusive latch and unpins, marking the page dirty.
// Safe on an inert guard.
func (g *WritePageGuard) Drop() {
	if g.pg == nil {
		return
	}
	g.pg.Unlock()
	_ = g.bpm.UnpinPage(g.id, true)
	g.bpm, g.pg = nil, nil
}

// FetchPageBasic fetches id and wraps it in a BasicPageGuard.
func (m *Manager) FetchPageBasic(id page.ID) (BasicPageGuard, error) {
	pg, err := m.FetchPage(id)
	if err != nil {
		return BasicPageGuard{}, err
	}
	return newBasicGuard(m, pg, id), nil
}

// FetchPageRead fetches id, pins it and acquires its shared latch.
func (m *Manager) FetchPageRead(id page.ID) (ReadPageGuard, error) {
	g, err := m.FetchPageBasic(id)
	if err != nil {
		return ReadPageGuard{}, err
	}
	return g.Upgrade(), nil
}

// FetchPageWrite fetches id, pins it and acquires its exclusive latch.
func (m *Manager) FetchPageWrite(id page.ID) (WritePageGuard, error) {
	g, err := m.FetchPageBasic(id)
	if err != nil {
		return WritePageGuard{}, err
	}
	return g.UpgradeWrite(), nil
}

// NewPageGuarded allocates a fresh page and wraps it in a BasicPageGuard.
func (m *Manager) NewPageGuarded() (page.ID, BasicPageGuard, error) {
	id, pg, err := m.NewPage()
	if err != nil {
		return page.Invalid, BasicPageGuard{}, err
	}
	return id, newBasicGuard(m, pg, id), nil
}
