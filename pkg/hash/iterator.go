package hash

import (
	"github.com/bits-and-blooms/bitset"

	"exthash/pkg/record"
)

// Iterator walks every record of an index exactly once. Directory slots are
// visited in order and a bucket reachable from several slots is read only at
// the first of them. It is not restartable; once Next returns false the
// iterator drops its references to the index.
type Iterator struct {
	index   *ExtHash
	dictIdx int            // next directory slot to resolve
	seen    *bitset.BitSet // bucket ids already visited
	records []record.Record
	pos     int
	cur     record.Record
	err     error
}

func newIterator(e *ExtHash) *Iterator {
	return &Iterator{index: e, seen: bitset.New(uint(e.buckets.Store().NumBlocks()))}
}

// Next advances to the next record. Returns false at the end or on error.
func (it *Iterator) Next() bool {
	for {
		if it.pos < len(it.records) {
			it.cur = it.records[it.pos]
			it.pos++
			return true
		}
		if it.index == nil {
			return false
		}
		if it.dictIdx >= it.index.dir.Size() {
			it.Close()
			return false
		}
		id := it.index.dir.Get(uint32(it.dictIdx))
		it.dictIdx++
		if it.seen.Test(uint(id)) {
			continue
		}
		it.seen.Set(uint(id))

		bucket, err := it.index.buckets.Get(id)
		if err != nil {
			it.err = err
			it.Close()
			return false
		}
		it.records = bucket.Records()
		it.pos = 0
		if err := it.index.buckets.Put(bucket); err != nil {
			it.err = err
			it.Close()
			return false
		}
	}
}

// Record returns the record Next moved to.
func (it *Iterator) Record() record.Record {
	return it.cur
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the iterator's references. Next returns false afterwards.
func (it *Iterator) Close() {
	it.index = nil
	it.seen = nil
	it.records = nil
	it.pos = 0
}
