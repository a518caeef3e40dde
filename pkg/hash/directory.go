package hash

import (
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/spf13/afero"
)

// Directory maps trie prefixes of the current bit length to bucket ids.
// It is held in memory as the exact byte image of its backing file:
// 2^bitLen big-endian uint32 bucket ids.
type Directory struct {
	file   afero.File
	buf    []byte
	bitLen int
	dirty  bool
}

// OpenDirectory loads the directory stored in file. An empty file yields an
// uninitialized directory (see IsNew).
func OpenDirectory(file afero.File) (*Directory, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, storageErr("stat directory", err)
	}
	size := info.Size()
	dir := &Directory{file: file}
	if size == 0 {
		return dir, nil
	}
	if size%int64(DIRECTORY_ENTRY_SIZE) != 0 {
		return nil, corruption("directory file size %d is not a multiple of %d", size, DIRECTORY_ENTRY_SIZE)
	}
	slots := uint64(size / int64(DIRECTORY_ENTRY_SIZE))
	if bits.OnesCount64(slots) != 1 || bits.TrailingZeros64(slots) > MAX_TRIE_BITS {
		return nil, corruption("directory has %d slots, expected a power of two up to 2^%d", slots, MAX_TRIE_BITS)
	}
	dir.buf = make([]byte, size)
	n, err := file.ReadAt(dir.buf, 0)
	if err != nil && !(err == io.EOF && n == len(dir.buf)) {
		return nil, storageErr("read directory", err)
	}
	dir.bitLen = bits.TrailingZeros64(slots)
	return dir, nil
}

// IsNew reports whether the directory has no slots yet.
func (dir *Directory) IsNew() bool {
	return len(dir.buf) == 0
}

// initialize gives a new directory its single slot.
func (dir *Directory) initialize(bucketID int64) {
	dir.buf = make([]byte, DIRECTORY_ENTRY_SIZE)
	dir.bitLen = 0
	dir.Put(0, bucketID)
}

// BitLen returns the number of trie bits addressed by the directory.
func (dir *Directory) BitLen() int {
	return dir.bitLen
}

// Size returns the number of slots, 2^BitLen.
func (dir *Directory) Size() int {
	return len(dir.buf) / DIRECTORY_ENTRY_SIZE
}

// Get returns the bucket id in slot idx.
func (dir *Directory) Get(idx uint32) int64 {
	return int64(readSlot(dir.buf, int(idx)))
}

// Put points slot idx at the given bucket id.
func (dir *Directory) Put(idx uint32, bucketID int64) {
	writeSlot(dir.buf, int(idx), uint32(bucketID))
	dir.dirty = true
}

// Resize doubles the directory. Slots 2i and 2i+1 of the new directory both
// hold what slot i held, so no existing mapping is lost.
func (dir *Directory) Resize() {
	oldSize := dir.Size()
	// Extends in place when the backing array has room.
	dir.buf = append(dir.buf, make([]byte, oldSize*DIRECTORY_ENTRY_SIZE)...)
	expandSlots(dir.buf, oldSize)
	dir.bitLen++
	dir.dirty = true
}

// Sync writes the directory image to its file and syncs it.
func (dir *Directory) Sync() error {
	if !dir.dirty {
		return nil
	}
	if _, err := dir.file.WriteAt(dir.buf, 0); err != nil {
		return storageErr("write directory", err)
	}
	if err := dir.file.Sync(); err != nil {
		return storageErr("sync directory", err)
	}
	dir.dirty = false
	return nil
}

// Close syncs and closes the backing file.
func (dir *Directory) Close() error {
	if err := dir.Sync(); err != nil {
		return err
	}
	return storageErr("close directory", dir.file.Close())
}

// expandSlots spreads the first oldSize slots of buf over 2*oldSize slots,
// slot i going to 2i and 2i+1. buf already has room for 2*oldSize slots and the
// old slots are still at the front, so the pass runs from high to low: every
// destination 2i, 2i+1 is at or above i and has been read before it is overwritten.
func expandSlots(buf []byte, oldSize int) {
	for i := oldSize - 1; i >= 0; i-- {
		v := readSlot(buf, i)
		writeSlot(buf, 2*i, v)
		writeSlot(buf, 2*i+1, v)
	}
}

func readSlot(buf []byte, idx int) uint32 {
	pos := idx * DIRECTORY_ENTRY_SIZE
	return binary.BigEndian.Uint32(buf[pos : pos+DIRECTORY_ENTRY_SIZE])
}

func writeSlot(buf []byte, idx int, v uint32) {
	pos := idx * DIRECTORY_ENTRY_SIZE
	binary.BigEndian.PutUint32(buf[pos:pos+DIRECTORY_ENTRY_SIZE], v)
}
