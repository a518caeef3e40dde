package hash

import (
	"exthash/pkg/config"
)

/////////////////////////////////////////////////////////////////////////////
////////////////////////// Low-level Constants //////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// Bucket block header: element count, trie value, trie bit length (big-endian uint32 each).
const (
	COUNT_OFFSET       int = 0
	COUNT_SIZE         int = 4
	TRIE_VALUE_OFFSET  int = COUNT_OFFSET + COUNT_SIZE
	TRIE_VALUE_SIZE    int = 4
	TRIE_BITLEN_OFFSET int = TRIE_VALUE_OFFSET + TRIE_VALUE_SIZE
	TRIE_BITLEN_SIZE   int = 4
	BUCKET_HEADER_SIZE int = COUNT_SIZE + TRIE_VALUE_SIZE + TRIE_BITLEN_SIZE
)

// Each directory slot is a big-endian uint32 bucket id.
const DIRECTORY_ENTRY_SIZE int = 4

// Number of hash bits the trie can consume.
const MAX_TRIE_BITS int = config.MaxTrieBits

// The id the first bucket of a fresh index must get.
const ROOT_BUCKET_ID int64 = 0
