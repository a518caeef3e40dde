package block

import (
	"github.com/go-faster/errors"
)

// MemStore keeps every block in memory. Nothing is ever evicted or persisted.
type MemStore struct {
	blockSize int
	blocks    []*Block
	closed    bool
}

// NewMemStore returns an empty in-memory store of blockSize byte blocks.
func NewMemStore(blockSize int) *MemStore {
	return &MemStore{blockSize: blockSize}
}

// BlockSize implements Store.
func (s *MemStore) BlockSize() int {
	return s.blockSize
}

// NumBlocks implements Store.
func (s *MemStore) NumBlocks() int64 {
	return int64(len(s.blocks))
}

// Get implements Store.
func (s *MemStore) Get(id int64) (*Block, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if id < 0 || id >= int64(len(s.blocks)) {
		return nil, errors.Wrapf(ErrInvalidID, "get %d of %d", id, len(s.blocks))
	}
	b := s.blocks[id]
	b.pinCount.Add(1)
	return b, nil
}

// Create implements Store.
func (s *MemStore) Create() (*Block, error) {
	if s.closed {
		return nil, ErrClosed
	}
	b := &Block{id: int64(len(s.blocks)), data: make([]byte, s.blockSize), dirty: true}
	b.pinCount.Store(1)
	s.blocks = append(s.blocks, b)
	return b, nil
}

// Put implements Store.
func (s *MemStore) Put(b *Block) error {
	if b.pinCount.Add(-1) < 0 {
		b.pinCount.Store(0)
		return errors.Errorf("pin count for block %d is < 0", b.id)
	}
	return nil
}

// Sync implements Store.
func (s *MemStore) Sync() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Store.
func (s *MemStore) Close() error {
	s.closed = true
	return nil
}
