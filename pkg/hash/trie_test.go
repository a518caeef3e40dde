package hash

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrieKeyHandComputed(t *testing.T) {
	tests := map[string]struct {
		raw  uint32
		want uint32
	}{
		"Zero":      {0, 0},
		"Bit0":      {1, 0x40000000},
		"Bit1":      {2, 0x20000000},
		"Bits01":    {3, 0x60000000},
		"Bit31Drop": {0x80000000, 0},
		"AllOnes":   {0xFFFFFFFF, 0x7FFFFFFF},
		"Nibble":    {0xD, 0x58000000},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, TrieKey(tc.raw))
		})
	}
}

func TestTriePrefixHandComputed(t *testing.T) {
	full := TrieKey(0xD) // raw ...1101 reads as trie 1011...
	assert.Equal(t, uint32(0), TriePrefix(full, 0))
	assert.Equal(t, uint32(0x1), TriePrefix(full, 1))
	assert.Equal(t, uint32(0x2), TriePrefix(full, 2))
	assert.Equal(t, uint32(0x5), TriePrefix(full, 3))
	assert.Equal(t, uint32(0xB), TriePrefix(full, 4))
	assert.Equal(t, uint32(0x16), TriePrefix(full, 5))
	assert.Equal(t, uint32(0x7FFFFFFF), TriePrefix(TrieKey(0xFFFFFFFF), MAX_TRIE_BITS))
	assert.Equal(t, uint32(1), TriePrefix(0x40000000, 1), "shift is 31-bitLen, not 32-bitLen")
}

// Lengthening the prefix only ever appends a bit.
func TestTriePrefixRefines(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for range 1000 {
		full := TrieKey(rng.Uint32())
		for l := 0; l < MAX_TRIE_BITS; l++ {
			longer := TriePrefix(full, l+1)
			assert.Equal(t, TriePrefix(full, l), longer>>1)
			for l2 := l + 1; l2 <= MAX_TRIE_BITS; l2++ {
				assert.Equal(t, TriePrefix(full, l), TriePrefix(full, l2)>>(l2-l))
			}
		}
	}
}

func TestSlotPrefix(t *testing.T) {
	// Directory of 3 bits, bucket of 1 bit: slots 4..7 belong to prefix 1.
	for idx := uint32(0); idx < 8; idx++ {
		assert.Equal(t, idx>>2, slotPrefix(idx, 3, 1))
	}
	assert.Equal(t, uint32(0), slotPrefix(5, 3, 0))
}

func TestHasherByName(t *testing.T) {
	key := []byte("the quick brown fox")
	for _, name := range []string{"", "fnv", "xxhash", "murmur3", "bytes4"} {
		f, err := HasherByName(name)
		assert.NoError(t, err)
		assert.Equal(t, f(key), f(key), "deterministic")
	}
	_, err := HasherByName("md5")
	assert.Error(t, err)

	// FNV-1 32 bit reference values.
	assert.Equal(t, uint32(0x811c9dc5), FNVHasher(nil))
	assert.Equal(t, uint32(0x050c5d7e), FNVHasher([]byte("a")))
	assert.Equal(t, uint32(0x01020304), Bytes4Hasher([]byte{1, 2, 3, 4, 5}))
	assert.Equal(t, uint32(0x01000000), Bytes4Hasher([]byte{1}))
}
