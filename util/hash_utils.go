package util

import (
	"github.com/OneOfOne/xxhash"
)

// HashCode hashes key with xxHash64, the hash function behind the
// extendible hash index's directory and bucket routing.
func HashCode(key []byte) uint64 {
	h := xxhash.New64()
	h.Write(key)
	return h.Sum64()
}
