// Global index and CLI defaults.
package config

import (
	"github.com/ncw/directio"
)

// Name of the index engine.
const DBName = "exthash"

// Prompt printed by REPL.
const Prompt = DBName + "> "

// Default size of one bucket block in bytes (one direct-io block).
const DefaultBlockSize = directio.BlockSize

// The maximum number of blocks the file store buffers in memory at once.
const DefaultBufferFrames = 32

// Default record layout used by the CLI: int64 key, int64 value.
const (
	DefaultKeyLen   = 8
	DefaultValueLen = 8
)

// Hash bits available to the trie (array indexes are kept non-negative int32).
const MaxTrieBits = 31

// File name suffixes for the files backing one index.
const (
	BucketFileSuffix    = ".bkt"
	DirectoryFileSuffix = ".dir"
	OpLogFileSuffix     = ".log"
)

// Return prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
