package disk

import (
	"sync"

	"github.com/Afeather2017/reldb/logger"
	"github.com/Afeather2017/reldb/storage/page"
	"github.com/juju/errors"
)

// Request is one unit of scheduled disk I/O. Completion is a single-shot
// channel the caller blocks on; the worker sends exactly one value (nil on
// success) and closes it.
type Request struct {
	IsWrite    bool
	Buf        *[page.Size]byte
	PageID     page.ID
	Completion chan error
}

// Scheduler serializes access to a Manager through a bounded queue served
// by a single background worker, per spec §4.1. Requests are served in
// strict enqueue order; concurrent callers may enqueue in any order.
type Scheduler struct {
	dm    Manager
	queue chan *Request
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewScheduler starts the worker goroutine and returns a ready Scheduler.
func NewScheduler(dm Manager, queueDepth int) *Scheduler {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	s := &Scheduler{
		dm:    dm,
		queue: make(chan *Request, queueDepth),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Schedule enqueues req and returns immediately; the caller awaits
// req.Completion for the result.
func (s *Scheduler) Schedule(req *Request) {
	s.queue <- req
}

// Shutdown signals the worker to stop once it has drained any requests
// already enqueued, and waits for it to exit.
func (s *Scheduler) Shutdown() {
	close(s.done)
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case req := <-s.queue:
			s.serve(req)
		case <-s.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case req := <-s.queue:
					s.serve(req)
				default:
					return
				}
			}
		}
	}
}

func (s *Scheduler) serve(req *Request) {
	var err error
	if req.IsWrite {
		err = s.dm.WritePage(req.PageID, req.Buf)
	} else {
		err = s.dm.ReadPage(req.PageID, req.Buf)
	}
	if err != nil {
		logger.Errorf("disk scheduler: page %d: %v", req.PageID, err)
		err = errors.Trace(err)
	}
	req.Completion <- err
	close(req.Completion)
}
