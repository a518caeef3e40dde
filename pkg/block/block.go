// Package block supplies fixed-size blocks addressed by integer id.
// Blocks are handed out pinned by Get and Create and must be returned with Put.
package block

import (
	"sync/atomic"

	"github.com/go-faster/errors"
)

// NoBlock is the id of a frame that holds no block.
const NoBlock int64 = -1

var (
	// ErrRanOutOfFrames is returned when every buffer frame is pinned.
	ErrRanOutOfFrames = errors.New("no available buffer frames")
	// ErrInvalidID is returned for ids outside [0, NumBlocks).
	ErrInvalidID = errors.New("invalid block id")
	// ErrClosed is returned by any call on a closed store.
	ErrClosed = errors.New("block store is closed")
)

// Store is the block manager an index is built on.
type Store interface {
	// BlockSize is the number of bytes in every block.
	BlockSize() int
	// NumBlocks is the number of blocks allocated so far.
	NumBlocks() int64
	// Get pins and returns the existing block with the given id.
	Get(id int64) (*Block, error)
	// Create allocates, pins and returns a zeroed block with the next free id.
	Create() (*Block, error)
	// Put releases one pin on the block.
	Put(b *Block) error
	// Sync writes every dirty block to stable storage.
	Sync() error
	// Close syncs and releases the underlying storage.
	Close() error
}

// Block is one fixed-size byte region held in memory.
type Block struct {
	id       int64
	pinCount atomic.Int64
	dirty    bool
	data     []byte
}

// ID returns the block's id.
func (b *Block) ID() int64 {
	return b.id
}

// Data returns the block's bytes. Writers must call SetDirty or use Update.
func (b *Block) Data() []byte {
	return b.data
}

// IsDirty reports whether the block changed since it was last written out.
func (b *Block) IsDirty() bool {
	return b.dirty
}

// SetDirty changes the dirty status of the block.
func (b *Block) SetDirty(dirty bool) {
	b.dirty = dirty
}

// Update copies data into the block at offset and marks the block dirty.
func (b *Block) Update(data []byte, offset int) {
	b.dirty = true
	copy(b.data[offset:], data)
}

// PinCount returns the number of outstanding Get/Create calls not yet Put.
func (b *Block) PinCount() int64 {
	return b.pinCount.Load()
}
