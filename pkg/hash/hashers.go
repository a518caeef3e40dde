package hash

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/cespare/xxhash"
	"github.com/go-faster/errors"
	"github.com/spaolacci/murmur3"
)

// HashFunc computes the raw 32 bit hash of a record key.
type HashFunc func(key []byte) uint32

// FNVHasher is FNV-1 over the key bytes, 32 bit.
func FNVHasher(key []byte) uint32 {
	h := fnv.New32()
	_, _ = h.Write(key)
	return h.Sum32()
}

// XxHasher is xxHash64 of the key folded to 32 bits.
func XxHasher(key []byte) uint32 {
	sum := xxhash.Sum64(key)
	return uint32(sum) ^ uint32(sum>>32)
}

// MurmurHasher is the 32 bit MurmurHash3 of the key.
func MurmurHasher(key []byte) uint32 {
	return murmur3.Sum32(key)
}

// Bytes4Hasher uses the first 4 key bytes (zero padded) as the hash.
// Only useful for keys that are already well distributed.
func Bytes4Hasher(key []byte) uint32 {
	var b [4]byte
	copy(b[:], key)
	return binary.BigEndian.Uint32(b[:])
}

// HasherByName maps a configured hash name to its function.
func HasherByName(name string) (HashFunc, error) {
	switch name {
	case "", "fnv":
		return FNVHasher, nil
	case "xxhash":
		return XxHasher, nil
	case "murmur3":
		return MurmurHasher, nil
	case "bytes4":
		return Bytes4Hasher, nil
	default:
		return nil, errors.Errorf("unknown hash function %q", name)
	}
}
