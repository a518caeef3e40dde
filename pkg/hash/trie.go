package hash

import (
	"math/bits"
)

// The directory is a bit-trie over the hash, stored as an array.
// Bits are revealed in decreasing significance as the directory grows, and
// the hash is bit reversed first so that the low bits of the raw hash, which
// vary most for small or sequential keys, are the first ones the trie branches on.
//
// Example with hex digits instead of bits, raw hash 0xABCD:
//   length 1 => trie D
//   length 2 => trie DC, D still most significant,
// so every slot DC, DB, ... inherits what slot D pointed to.

// TrieKey converts a raw hash into a 31 bit trie value. Bit 0 of the raw hash
// becomes the most significant trie bit; bit 31 is dropped.
func TrieKey(rawHash uint32) uint32 {
	return bits.Reverse32(rawHash) >> 1
}

// TriePrefix returns the top bitLen bits of a 31 bit trie value, which is the
// directory index at that bit length. bitLen must be in [0, MAX_TRIE_BITS].
func TriePrefix(fullTrie uint32, bitLen int) uint32 {
	return fullTrie >> (MAX_TRIE_BITS - bitLen)
}

// slotPrefix converts a directory index at dirBitLen into the prefix of length bitLen.
func slotPrefix(idx uint32, dirBitLen, bitLen int) uint32 {
	return idx >> (dirBitLen - bitLen)
}
