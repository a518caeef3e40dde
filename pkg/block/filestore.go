package block

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
	"github.com/ncw/directio"

	"exthash/pkg/list"
)

// FileOptions configures a FileStore.
type FileOptions struct {
	BlockSize int  // bytes per block; a multiple of directio.BlockSize when Direct is set
	Frames    int  // number of blocks buffered in memory
	Direct    bool // open the file with O_DIRECT
}

// FileStore is a buffer pool of blocks over a single file.
type FileStore struct {
	file      *os.File
	blockSize int
	numBlocks int64
	closed    bool

	freeList     *list.List[*Block] // frames holding no block
	unpinnedList *list.List[*Block] // resident blocks nobody holds, eviction candidates
	pinnedList   *list.List[*Block] // resident blocks in use
	// Maps block ids to the link of the list the block currently sits in.
	blockTable map[int64]*list.Link[*Block]
	mtx        sync.Mutex
}

// OpenFile opens (creating if needed) the block file at path.
// An existing file whose size is not a multiple of the block size is rejected.
func OpenFile(path string, opts FileOptions) (*FileStore, error) {
	if opts.BlockSize <= 0 || opts.Frames <= 0 {
		return nil, errors.Errorf("invalid file store options: %+v", opts)
	}
	if opts.Direct && opts.BlockSize%directio.BlockSize != 0 {
		return nil, errors.Errorf("block size %d is not aligned to %d", opts.BlockSize, directio.BlockSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0775); err != nil {
		return nil, errors.Wrap(err, "create block file folder")
	}

	var (
		file *os.File
		err  error
	)
	if opts.Direct {
		file, err = directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	} else {
		file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open block file")
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "stat block file")
	}
	if info.Size()%int64(opts.BlockSize) != 0 {
		_ = file.Close()
		return nil, errors.Errorf("block file %s has been corrupted: size %d", path, info.Size())
	}

	store := &FileStore{
		file:         file,
		blockSize:    opts.BlockSize,
		numBlocks:    info.Size() / int64(opts.BlockSize),
		freeList:     list.New[*Block](),
		unpinnedList: list.New[*Block](),
		pinnedList:   list.New[*Block](),
		blockTable:   make(map[int64]*list.Link[*Block]),
	}
	frames := directio.AlignedBlock(opts.BlockSize * opts.Frames)
	for i := 0; i < opts.Frames; i++ {
		store.freeList.PushTail(&Block{
			id:   NoBlock,
			data: frames[i*opts.BlockSize : (i+1)*opts.BlockSize],
		})
	}
	return store, nil
}

// FileName returns the path of the backing file.
func (s *FileStore) FileName() string {
	return s.file.Name()
}

// BlockSize implements Store.
func (s *FileStore) BlockSize() int {
	return s.blockSize
}

// NumBlocks implements Store.
func (s *FileStore) NumBlocks() int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.numBlocks
}

// newFrame returns an unused frame from the free or unpinned list, flushing
// an evicted block first. The mutex must be held.
func (s *FileStore) newFrame(id int64) (*Block, error) {
	var b *Block
	if link := s.freeList.PeekHead(); link != nil {
		link.PopSelf()
		b = link.GetValue()
	} else if link := s.unpinnedList.PeekHead(); link != nil {
		link.PopSelf()
		b = link.GetValue()
		if err := s.flush(b); err != nil {
			s.blockTable[b.id] = s.unpinnedList.PushHead(b)
			return nil, err
		}
		delete(s.blockTable, b.id)
	} else {
		return nil, ErrRanOutOfFrames
	}
	b.id = id
	b.dirty = false
	b.pinCount.Store(1)
	return b, nil
}

// Create implements Store.
func (s *FileStore) Create() (*Block, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	b, err := s.newFrame(s.numBlocks)
	if err != nil {
		return nil, err
	}
	clear(b.data)
	b.dirty = true
	s.blockTable[b.id] = s.pinnedList.PushTail(b)
	s.numBlocks++
	return b, nil
}

// Get implements Store.
func (s *FileStore) Get(id int64) (*Block, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if id < 0 || id >= s.numBlocks {
		return nil, errors.Wrapf(ErrInvalidID, "get %d of %d", id, s.numBlocks)
	}
	if link, ok := s.blockTable[id]; ok {
		b := link.GetValue()
		if link.GetList() == s.unpinnedList {
			link.PopSelf()
			s.blockTable[id] = s.pinnedList.PushTail(b)
		}
		b.pinCount.Add(1)
		return b, nil
	}

	b, err := s.newFrame(id)
	if err != nil {
		return nil, err
	}
	if err := s.fill(b); err != nil {
		b.id = NoBlock
		s.freeList.PushTail(b)
		return nil, err
	}
	s.blockTable[id] = s.pinnedList.PushTail(b)
	return b, nil
}

// Put implements Store.
func (s *FileStore) Put(b *Block) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	ret := b.pinCount.Add(-1)
	if ret < 0 {
		b.pinCount.Store(0)
		return errors.Errorf("pin count for block %d is < 0", b.id)
	}
	if ret == 0 {
		link, ok := s.blockTable[b.id]
		if !ok {
			return errors.Errorf("block %d is not resident", b.id)
		}
		link.PopSelf()
		s.blockTable[b.id] = s.unpinnedList.PushTail(b)
	}
	return nil
}

// Sync implements Store.
func (s *FileStore) Sync() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.flushAll(); err != nil {
		return err
	}
	if err := s.file.Sync(); err != nil {
		return errors.Wrap(err, "sync block file")
	}
	return nil
}

// Close flushes every dirty block and closes the file.
// It fails if any block is still pinned.
func (s *FileStore) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return nil
	}
	if s.pinnedList.PeekHead() != nil {
		return errors.Errorf("%d blocks are still pinned on close", s.pinnedList.Len())
	}
	if err := s.flushAll(); err != nil {
		return err
	}
	s.closed = true
	if err := s.file.Close(); err != nil {
		return errors.Wrap(err, "close block file")
	}
	return nil
}

// fill reads the block's bytes from disk. Bytes past the end of the file read as zero.
func (s *FileStore) fill(b *Block) error {
	n, err := s.file.ReadAt(b.data, b.id*int64(s.blockSize))
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "read block %d", b.id)
	}
	clear(b.data[n:])
	return nil
}

// flush writes the block to disk if it is dirty.
func (s *FileStore) flush(b *Block) error {
	if !b.dirty {
		return nil
	}
	if _, err := s.file.WriteAt(b.data, b.id*int64(s.blockSize)); err != nil {
		return errors.Wrapf(err, "write block %d", b.id)
	}
	b.dirty = false
	return nil
}

func (s *FileStore) flushAll() error {
	var err error
	writer := func(link *list.Link[*Block]) {
		if err == nil {
			err = s.flush(link.GetValue())
		}
	}
	s.pinnedList.Map(writer)
	s.unpinnedList.Map(writer)
	return err
}
