// Package replacer implements the LRU-K eviction policy used by the buffer
// pool to pick a victim frame. Grounded on the container/list + stats idiom
// in server/innodb/buffer_pool/buffer_lru.go, rewritten from that file's
// generational young/old split to §4.4's strict K-distance policy: a frame
// with fewer than K recorded accesses has "infinite" K-distance and is
// evicted before any frame with K or more accesses, ranked among
// themselves by earliest access; frames with K or more accesses are ranked
// by their K-th-most-recent access time.
package replacer

import (
	"container/list"
	"sync"

	"github.com/juju/errors"
)

// FrameID indexes a frame in the buffer pool.
type FrameID int32

type history struct {
	accesses  *list.List // back = most recent
	evictable bool
}

// LRUKReplacer tracks up to size frames, each with a bounded history of its
// last k accesses.
type LRUKReplacer struct {
	mu sync.Mutex

	k         int
	size      int
	clock     uint64
	frames    map[FrameID]*history
	evictable int
}

// New returns a replacer that tracks at most size frames using K-distance k.
func New(size int, k int) *LRUKReplacer {
	return &LRUKReplacer{
		k:      k,
		size:   size,
		frames: make(map[FrameID]*history, size),
	}
}

func (r *LRUKReplacer) tick() uint64 {
	r.clock++
	return r.clock
}

func (r *LRUKReplacer) entry(id FrameID) *history {
	h, ok := r.frames[id]
	if !ok {
		h = &history{accesses: list.New()}
		r.frames[id] = h
	}
	return h
}

// RecordAccess records a new access to frame id at the current logical
// time, trimming its history to the last k entries.
func (r *LRUKReplacer) RecordAccess(id FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.entry(id)
	h.accesses.PushBack(r.tick())
	for h.accesses.Len() > r.k {
		h.accesses.Remove(h.accesses.Front())
	}
}

// SetEvictable marks frame id evictable or not, adjusting the evictable
// count. Frames outside the tracked set are recorded with no history.
func (r *LRUKReplacer) SetEvictable(id FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.entry(id)
	if h.evictable == evictable {
		return
	}
	h.evictable = evictable
	if evictable {
		r.evictable++
	} else {
		r.evictable--
	}
}

// Evict picks a victim frame among the evictable ones: first preference to
// any frame with fewer than k recorded accesses (ties broken by the
// smallest earliest-access time), otherwise the frame with the smallest
// k-th-most-recent access time. Removes the victim's history.
func (r *LRUKReplacer) Evict() (FrameID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.evictable == 0 {
		return 0, errors.New("replacer: no evictable frame")
	}

	var (
		haveInf      bool
		infVictim    FrameID
		infEarliest  uint64
		haveFinite   bool
		finVictim    FrameID
		finKDistance uint64
	)

	for id, h := range r.frames {
		if !h.evictable {
			continue
		}
		if h.accesses.Len() < r.k {
			earliest := h.accesses.Front().Value.(uint64)
			if !haveInf || earliest < infEarliest {
				haveInf = true
				infVictim = id
				infEarliest = earliest
			}
			continue
		}
		kth := h.accesses.Front().Value.(uint64)
		if !haveFinite || kth < finKDistance {
			haveFinite = true
			finVictim = id
			finKDistance = kth
		}
	}

	var victim FrameID
	if haveInf {
		victim = infVictim
	} else {
		victim = finVictim
	}

	delete(r.frames, victim)
	r.evictable--
	return victim, nil
}

// Remove drops all history for an evictable frame id without evicting
// through the normal policy. Fails if the frame is not evictable; an
// untracked frame is a no-op and returns nil.
func (r *LRUKReplacer) Remove(id FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.frames[id]
	if !ok {
		return nil
	}
	if !h.evictable {
		return errors.Errorf("replacer: frame %d is not evictable", id)
	}
	delete(r.frames, id)
	r.evictable--
	return nil
}

// Size returns the number of evictable frames currently tracked.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictable
}
