// Package engine wires the storage and transaction stack together from a
// config.Cfg: one construction site that opens the backing file, starts
// the disk scheduler and buffer pool, and returns a ready-to-use Store,
// instead of every caller assembling those collaborators by hand.
package engine

import (
	"path/filepath"

	"github.com/Afeather2017/reldb/config"
	"github.com/Afeather2017/reldb/heap"
	"github.com/Afeather2017/reldb/index/hash"
	"github.com/Afeather2017/reldb/logger"
	"github.com/Afeather2017/reldb/storage/buffer"
	"github.com/Afeather2017/reldb/storage/disk"
	"github.com/Afeather2017/reldb/txn"
	"github.com/Afeather2017/reldb/util"
	"github.com/juju/errors"
)

// dataFileName is the single backing file every page in the store lives in,
// addressed by page id — spec §1 excludes a multi-tablespace on-disk byte
// layout, so there is exactly one file rather than one per table.
const dataFileName = "reldb.db"

// schedulerQueueDepth is not a Cfg knob: it bounds the disk scheduler's
// in-flight request queue, not anything storage-shape-affecting spec §4.1
// exposes as tunable.
const schedulerQueueDepth = 64

// Store bundles the constructed storage and transaction stack: everything a
// Catalog implementation needs to hand out TableInfo/IndexInfo backed by
// real pages.
type Store struct {
	Cfg *config.Cfg

	Disk  *disk.FileManager
	Sched *disk.Scheduler
	BPM   *buffer.Manager
	Txn   *txn.Manager
}

// Open builds a Store from cfg: ensures the data directory exists, opens
// the backing file, and starts the scheduler, buffer pool, and transaction
// manager sized per cfg's knobs.
func Open(cfg *config.Cfg) (*Store, error) {
	if err := logger.InitLogger(logger.LogConfig{
		InfoLogPath:  cfg.LogPath,
		ErrorLogPath: cfg.LogPath,
		LogLevel:     cfg.LogLevel,
	}); err != nil {
		return nil, errors.Trace(err)
	}

	if err := util.CreateDataBaseDir("", cfg.DataDir); err != nil {
		return nil, errors.Annotatef(err, "engine: create data dir %s", cfg.DataDir)
	}
	if existing := util.ListFileDirByPath(cfg.DataDir); len(existing) > 0 {
		logger.Infof("engine: data dir %s already has %d subdirectory entries", cfg.DataDir, len(existing))
	}

	dm, err := disk.NewFileManager(filepath.Join(cfg.DataDir, dataFileName))
	if err != nil {
		return nil, errors.Trace(err)
	}

	sched := disk.NewScheduler(dm, schedulerQueueDepth)
	bpm := buffer.New(cfg.BufferPoolPages, cfg.ReplacerK, sched)

	return &Store{
		Cfg:   cfg,
		Disk:  dm,
		Sched: sched,
		BPM:   bpm,
		Txn:   txn.New(),
	}, nil
}

// NewTableHeap allocates a fresh table heap backed by the store's buffer
// pool.
func (s *Store) NewTableHeap() (*heap.TableHeap, error) {
	return heap.New(s.BPM)
}

// NewHashIndex allocates a fresh extendible hash index sized per the
// store's configured bucket capacity and max depth.
func (s *Store) NewHashIndex() (*hash.Table, error) {
	return hash.New(s.BPM, uint32(s.Cfg.HashMaxDepth), uint32(s.Cfg.HashBucketCapacity))
}

// Close flushes every dirty page, stops the scheduler, and closes the
// backing file.
func (s *Store) Close() error {
	if err := s.BPM.FlushAllPages(); err != nil {
		return errors.Trace(err)
	}
	s.Sched.Shutdown()
	return s.Disk.Close()
}
