package hash

import (
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/go-faster/errors"
)

// forEachBucket calls f once per distinct bucket, with the first directory slot
// that reaches it. The bucket is released after f returns.
func (e *ExtHash) forEachBucket(f func(idx int, bucket *HashBucket) error) error {
	seen := bitset.New(uint(e.buckets.Store().NumBlocks()))
	for i := 0; i < e.dir.Size(); i++ {
		id := e.dir.Get(uint32(i))
		if seen.Test(uint(id)) {
			continue
		}
		seen.Set(uint(id))
		if !e.buckets.Valid(id) {
			return e.fail(corruption("[%d] bucket id %d is not allocated", i, id))
		}
		bucket, err := e.buckets.Get(id)
		if err != nil {
			return err
		}
		err = f(i, bucket)
		if putErr := e.buckets.Put(bucket); err == nil {
			err = putErr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// BucketCount returns the number of distinct buckets reachable from the directory.
func (e *ExtHash) BucketCount() (int, error) {
	n := 0
	err := e.forEachBucket(func(int, *HashBucket) error {
		n++
		return nil
	})
	return n, err
}

// Check validates the whole structure and returns an ErrStructuralCorruption
// error naming the first offending slot and bucket.
func (e *ExtHash) Check() error {
	bitLen := e.dir.BitLen()
	if want := 1 << bitLen; e.dir.Size() != want {
		return e.fail(corruption("directory size = %d : expected = %d", e.dir.Size(), want))
	}
	var count int64
	err := e.forEachBucket(func(idx int, bucket *HashBucket) error {
		count += int64(bucket.Count())
		return e.checkBucket(idx, bucket)
	})
	if err != nil {
		return err
	}
	if count != e.size {
		return e.fail(corruption("size counter %d, buckets hold %d records", e.size, count))
	}
	return nil
}

func (e *ExtHash) checkBucket(idx int, bucket *HashBucket) error {
	bitLen := e.dir.BitLen()
	if bucket.TrieBitLen() > bitLen {
		return e.fail(corruption("[%d] bucket %d has bit length longer than the directory's (%d, %d)",
			idx, bucket.ID(), bucket.TrieBitLen(), bitLen))
	}
	if want := slotPrefix(uint32(idx), bitLen, bucket.TrieBitLen()); want != bucket.TrieValue() {
		return e.fail(corruption("[%d] bucket %d : hash prefix 0x%X, expected 0x%X : %s",
			idx, bucket.ID(), bucket.TrieValue(), want, bucket))
	}
	// Every slot of the bucket's fan-out range must point at it.
	gap := bitLen - bucket.TrieBitLen()
	first := bucket.TrieValue() << gap
	for j := uint32(0); j < 1<<gap; j++ {
		if id := e.dir.Get(first | j); id != bucket.ID() {
			return e.fail(corruption("[%d] slot 0x%X in the range of bucket %d points to bucket %d",
				idx, first|j, bucket.ID(), id))
		}
	}
	for i := 0; i < bucket.Count(); i++ {
		rec := bucket.Get(i)
		if i > 0 && e.codec.Compare(bucket.Get(i-1), rec) >= 0 {
			return e.fail(corruption("[%d] bucket %d: not sorted (slot %d) : %s", idx, bucket.ID(), i, bucket))
		}
		if x := TriePrefix(e.trieKey(rec), bucket.TrieBitLen()); x != bucket.TrieValue() {
			return e.fail(corruption("[%d] bucket %d: key (0x%X) does not match the hash (0x%X) : %s",
				idx, bucket.ID(), x, bucket.TrieValue(), bucket))
		}
	}
	for i := bucket.Count(); i < bucket.Capacity(); i++ {
		if !bucket.isClear(i) {
			return e.fail(corruption("[%d] bucket %d : overspill at [%d]: %s", idx, bucket.ID(), i, bucket))
		}
	}
	return nil
}

// Print dumps the directory and every slot's bucket to w.
func (e *ExtHash) Print(w io.Writer) error {
	fmt.Fprintf(w, "bitlen     = %d\n", e.dir.BitLen())
	fmt.Fprintf(w, "directory  = %d\n", e.dir.Size())
	fmt.Fprintf(w, "records    = %d\n", e.size)
	for i := 0; i < e.dir.Size(); i++ {
		id := e.dir.Get(uint32(i))
		bucket, err := e.buckets.Get(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "    [%d] %02d %s\n", i, id, bucket)
		if err := e.buckets.Put(bucket); err != nil {
			return err
		}
	}
	return nil
}

// PrintBucket dumps one bucket, with its records, to w.
func (e *ExtHash) PrintBucket(id int64, w io.Writer) error {
	if !e.buckets.Valid(id) {
		return errors.Errorf("bucket %d out of bounds", id)
	}
	bucket, err := e.buckets.Get(id)
	if err != nil {
		return err
	}
	bucket.Print(w)
	return e.buckets.Put(bucket)
}
