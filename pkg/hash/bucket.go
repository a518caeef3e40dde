package hash

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"exthash/pkg/block"
	"exthash/pkg/record"
)

// HashBucket is a key-sorted array of records stored inside one block,
// tagged with the trie prefix all of its records share.
type HashBucket struct {
	trieValue  uint32       // The trie prefix of this bucket; only the low trieBitLen bits are meaningful
	trieBitLen int          // The number of trie bits this bucket is keyed on
	count      int          // The number of records in the bucket
	capacity   int          // The maximum number of records the block can hold
	codec      record.Codec // Record layout inside the block
	block      *block.Block // The block containing the bucket's data
}

// ID returns the id of the block backing the bucket.
func (bucket *HashBucket) ID() int64 {
	return bucket.block.ID()
}

// TrieValue returns the bucket's trie prefix.
func (bucket *HashBucket) TrieValue() uint32 {
	return bucket.trieValue
}

// TrieBitLen returns the number of trie bits the bucket is keyed on.
func (bucket *HashBucket) TrieBitLen() int {
	return bucket.trieBitLen
}

// Count returns the number of records in the bucket.
func (bucket *HashBucket) Count() int {
	return bucket.count
}

// Capacity returns the maximum number of records in the bucket.
func (bucket *HashBucket) Capacity() int {
	return bucket.capacity
}

// IsFull reports whether another new key would overflow the bucket.
func (bucket *HashBucket) IsFull() bool {
	return bucket.count >= bucket.capacity
}

// IsEmpty reports whether the bucket holds no records.
func (bucket *HashBucket) IsEmpty() bool {
	return bucket.count == 0
}

// Find returns the record in the bucket with the key of target.
func (bucket *HashBucket) Find(target record.Record) (record.Record, bool) {
	idx, found := bucket.search(target)
	if !found {
		return record.Record{}, false
	}
	return bucket.Get(idx), true
}

// Put inserts r in key order, or overwrites the record with the same key in place.
// Returns whether the bucket grew. A new key in a full bucket returns errBucketFull
// and leaves the bucket unchanged.
func (bucket *HashBucket) Put(r record.Record) (bool, error) {
	idx, found := bucket.search(r)
	if found {
		bucket.set(idx, r)
		return false, nil
	}
	if bucket.IsFull() {
		return false, errBucketFull
	}
	data := bucket.block.Data()
	copy(data[bucket.slotPos(idx+1):bucket.slotPos(bucket.count+1)], data[bucket.slotPos(idx):bucket.slotPos(bucket.count)])
	bucket.set(idx, r)
	bucket.updateCount(bucket.count + 1)
	return true, nil
}

// RemoveByKey deletes the record with the key of target, shifting later records down.
// Returns false if no such record exists.
// NOTE: buckets are never merged, an emptied bucket stays in the directory.
func (bucket *HashBucket) RemoveByKey(target record.Record) bool {
	idx, found := bucket.search(target)
	if !found {
		return false
	}
	data := bucket.block.Data()
	copy(data[bucket.slotPos(idx):bucket.slotPos(bucket.count-1)], data[bucket.slotPos(idx+1):bucket.slotPos(bucket.count)])
	clear(data[bucket.slotPos(bucket.count-1):bucket.slotPos(bucket.count)])
	bucket.updateCount(bucket.count - 1)
	return true
}

// Get returns the record in the given slot.
func (bucket *HashBucket) Get(slot int) record.Record {
	pos := bucket.slotPos(slot)
	return bucket.codec.Decode(bucket.block.Data()[pos : pos+bucket.codec.RecordLen()])
}

// Records returns copies of all records in key order.
func (bucket *HashBucket) Records() []record.Record {
	ret := make([]record.Record, 0, bucket.count)
	for i := 0; i < bucket.count; i++ {
		ret = append(ret, bucket.Get(i))
	}
	return ret
}

// String summarises the bucket header.
func (bucket *HashBucket) String() string {
	return fmt.Sprintf("bucket %d: trie 0x%X/%d, %d/%d records",
		bucket.ID(), bucket.trieValue, bucket.trieBitLen, bucket.count, bucket.capacity)
}

// Print writes a string-representation of this bucket and its records to the specified writer.
func (bucket *HashBucket) Print(w io.Writer) {
	fmt.Fprintf(w, "%s\n", bucket)
	io.WriteString(w, "records:")
	for i := 0; i < bucket.count; i++ {
		bucket.Get(i).Print(w)
	}
	io.WriteString(w, "\n")
}

/////////////////////////////////////////////////////////////////////////////
///////////////////// HashBucket Helper Functions ///////////////////////////
/////////////////////////////////////////////////////////////////////////////

// search returns the slot holding the key of target, or the slot it would be inserted at.
func (bucket *HashBucket) search(target record.Record) (int, bool) {
	idx := sort.Search(bucket.count, func(i int) bool {
		return bucket.codec.Compare(bucket.Get(i), target) >= 0
	})
	return idx, idx < bucket.count && bucket.codec.Compare(bucket.Get(idx), target) == 0
}

// slotPos gets the byte-position of the given slot.
func (bucket *HashBucket) slotPos(slot int) int {
	return BUCKET_HEADER_SIZE + slot*bucket.codec.RecordLen()
}

// set writes r into the given slot without touching the count. Used by Put and split.
func (bucket *HashBucket) set(slot int, r record.Record) {
	pos := bucket.slotPos(slot)
	bucket.codec.Encode(bucket.block.Data()[pos:pos+bucket.codec.RecordLen()], r)
	bucket.block.SetDirty(true)
}

// clearFrom zeroes every slot from the given one up to the current count.
func (bucket *HashBucket) clearFrom(slot int) {
	if slot >= bucket.count {
		return
	}
	clear(bucket.block.Data()[bucket.slotPos(slot):bucket.slotPos(bucket.count)])
	bucket.block.SetDirty(true)
}

// isClear reports whether the given slot is all zero bytes.
func (bucket *HashBucket) isClear(slot int) bool {
	for _, b := range bucket.block.Data()[bucket.slotPos(slot):bucket.slotPos(slot+1)] {
		if b != 0 {
			return false
		}
	}
	return true
}

// incTrieBitLen lengthens the bucket's trie by one bit. Only used by split.
func (bucket *HashBucket) incTrieBitLen() {
	bucket.updateTrieBitLen(bucket.trieBitLen + 1)
}

// setTrieValue changes the bucket's trie prefix. Only used by split.
func (bucket *HashBucket) setTrieValue(v uint32) {
	bucket.trieValue = v
	bucket.putHeader(TRIE_VALUE_OFFSET, v)
}

func (bucket *HashBucket) updateTrieBitLen(n int) {
	bucket.trieBitLen = n
	bucket.putHeader(TRIE_BITLEN_OFFSET, uint32(n))
}

func (bucket *HashBucket) updateCount(n int) {
	bucket.count = n
	bucket.putHeader(COUNT_OFFSET, uint32(n))
}

func (bucket *HashBucket) putHeader(offset int, v uint32) {
	binary.BigEndian.PutUint32(bucket.block.Data()[offset:offset+4], v)
	bucket.block.SetDirty(true)
}

// blockToBucket reads the bucket header out of the given block.
func blockToBucket(b *block.Block, codec record.Codec, capacity int) *HashBucket {
	data := b.Data()
	return &HashBucket{
		count:      int(binary.BigEndian.Uint32(data[COUNT_OFFSET:])),
		trieValue:  binary.BigEndian.Uint32(data[TRIE_VALUE_OFFSET:]),
		trieBitLen: int(binary.BigEndian.Uint32(data[TRIE_BITLEN_OFFSET:])),
		capacity:   capacity,
		codec:      codec,
		block:      b,
	}
}
