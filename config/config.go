// Package config loads engine-wide tuning knobs (buffer pool size, page
// size, LRU-K K, hash index bucket capacity and max depth, data directory,
// log path and level) from an ini file, falling back to defaults when no
// file is present.
package config

import (
	"os"
	"strings"

	"github.com/Afeather2017/reldb/logger"

	"gopkg.in/ini.v1"
)

// Cfg holds the tunables consumed by the storage and execution core.
type Cfg struct {
	Raw *ini.File

	DataDir string

	BufferPoolPages int // number of frames in the buffer pool
	PageSize        int // bytes per page
	ReplacerK       int // K for the LRU-K replacer

	HashBucketCapacity int // (key,value) pairs per extendible hash bucket
	HashMaxDepth       int // maximum global/local depth for the hash index

	LogPath  string
	LogLevel string
}

// Default returns the configuration used when no ini file is supplied.
func Default() *Cfg {
	return &Cfg{
		Raw:                ini.Empty(),
		DataDir:            "data",
		BufferPoolPages:    64,
		PageSize:           4096,
		ReplacerK:          2,
		HashBucketCapacity: 64,
		HashMaxDepth:       9,
		LogPath:            "",
		LogLevel:           "info",
	}
}

// Load reads configPath if it exists, overlaying values onto the defaults.
// A missing file is not an error: the caller gets Default().
func Load(configPath string) (*Cfg, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Debugf("config file %s not found, using defaults", configPath)
		return cfg, nil
	}

	raw, err := ini.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Raw = raw

	section := raw.Section("storage")
	cfg.BufferPoolPages = section.Key("buffer_pool_pages").MustInt(cfg.BufferPoolPages)
	cfg.PageSize = section.Key("page_size").MustInt(cfg.PageSize)
	cfg.ReplacerK = section.Key("replacer_k").MustInt(cfg.ReplacerK)
	cfg.DataDir = section.Key("data_dir").MustString(cfg.DataDir)

	hashSection := raw.Section("hash_index")
	cfg.HashBucketCapacity = hashSection.Key("bucket_capacity").MustInt(cfg.HashBucketCapacity)
	cfg.HashMaxDepth = hashSection.Key("max_depth").MustInt(cfg.HashMaxDepth)

	logSection := raw.Section("logs")
	cfg.LogPath = logSection.Key("path").MustString(cfg.LogPath)
	cfg.LogLevel = strings.ToLower(logSection.Key("level").MustString(cfg.LogLevel))

	return cfg, nil
}
