package hash

import (
	"github.com/go-faster/errors"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"exthash/pkg/block"
	"exthash/pkg/record"
)

// Options tune a single ExtHash instance.
type Options struct {
	HashFunc  HashFunc     // Raw key hash; FNVHasher if nil
	Logger    *zap.Logger  // Nop logger if nil
	Checking  bool         // Run Check after every mutation and verify splits
	Logging   bool         // Trace operations at debug level
	MaxBitLen int          // Cap on the directory bit length; MAX_TRIE_BITS if 0
	Meter     metric.Meter // Global otel meter if nil
}

// ExtHash is an extendible hashing index: a directory of bucket ids addressed
// by a bit-trie prefix of each record's reversed hash, over fixed-capacity buckets.
// It does no locking; callers serialize access.
type ExtHash struct {
	dir       *Directory
	buckets   *BucketManager
	codec     record.Codec
	hashFunc  HashFunc
	log       *zap.Logger
	checking  bool
	logging   bool
	maxBitLen int
	size      int64
	metrics   *indexMetrics
}

// Open builds an index over the given bucket store and directory file.
// Both empty means a new index: bucket 0 is created with trie length 0.
func Open(store block.Store, dirFile afero.File, codec record.Codec, opts Options) (*ExtHash, error) {
	buckets, err := NewBucketManager(store, codec)
	if err != nil {
		return nil, err
	}
	dir, err := OpenDirectory(dirFile)
	if err != nil {
		return nil, err
	}
	if opts.MaxBitLen < 0 || opts.MaxBitLen > MAX_TRIE_BITS {
		return nil, errors.Errorf("max bit length %d out of range [0, %d]", opts.MaxBitLen, MAX_TRIE_BITS)
	}
	metrics, err := newIndexMetrics(opts.Meter)
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}

	e := &ExtHash{
		dir:       dir,
		buckets:   buckets,
		codec:     codec,
		hashFunc:  opts.HashFunc,
		log:       opts.Logger,
		checking:  opts.Checking,
		logging:   opts.Logging,
		maxBitLen: opts.MaxBitLen,
		metrics:   metrics,
	}
	if e.hashFunc == nil {
		e.hashFunc = FNVHasher
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.maxBitLen == 0 {
		e.maxBitLen = MAX_TRIE_BITS
	}

	switch {
	case store.NumBlocks() == 0 && dir.IsNew():
		bucket, err := buckets.Create(0, 0)
		if err != nil {
			return nil, err
		}
		if bucket.ID() != ROOT_BUCKET_ID {
			_ = buckets.Put(bucket)
			return nil, corruption("first bucket got id %d", bucket.ID())
		}
		dir.initialize(bucket.ID())
		if err := buckets.Put(bucket); err != nil {
			return nil, err
		}
	case dir.IsNew():
		return nil, corruption("directory is empty but %d buckets exist", store.NumBlocks())
	case store.NumBlocks() == 0:
		return nil, corruption("directory has %d slots but no buckets exist", dir.Size())
	}

	if e.size, err = e.Count(); err != nil {
		return nil, err
	}
	if e.checking {
		if err := e.Check(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// CreateMem returns an index held entirely in memory, for tests and scratch use.
func CreateMem(codec record.Codec, blockSize int, opts Options) (*ExtHash, error) {
	file, err := afero.NewMemMapFs().Create("exthash.dir")
	if err != nil {
		return nil, storageErr("create directory", err)
	}
	return Open(block.NewMemStore(blockSize), file, codec, opts)
}

// Codec returns the record layout the index stores.
func (e *ExtHash) Codec() record.Codec {
	return e.codec
}

// BitLen returns the directory bit length.
func (e *ExtHash) BitLen() int {
	return e.dir.BitLen()
}

// DirectorySize returns the number of directory slots.
func (e *ExtHash) DirectorySize() int {
	return e.dir.Size()
}

// BucketCapacity returns the number of records one bucket holds.
func (e *ExtHash) BucketCapacity() int {
	return e.buckets.Capacity()
}

// BucketID returns the bucket id in directory slot idx.
func (e *ExtHash) BucketID(idx int) int64 {
	return e.dir.Get(uint32(idx))
}

// GetBucket fetches a bucket by id. The caller must release it with PutBucket.
func (e *ExtHash) GetBucket(id int64) (*HashBucket, error) {
	return e.buckets.Get(id)
}

// PutBucket releases a bucket obtained from GetBucket.
func (e *ExtHash) PutBucket(bucket *HashBucket) error {
	return e.buckets.Put(bucket)
}

// trieKey is the full 31 bit trie value of a record.
func (e *ExtHash) trieKey(r record.Record) uint32 {
	return TrieKey(e.hashFunc(r.Key))
}

// Contains reports whether a record with the key of target is stored.
func (e *ExtHash) Contains(target record.Record) (bool, error) {
	_, found, err := e.Find(target)
	return found, err
}

// Find returns the stored record with the key of target.
func (e *ExtHash) Find(target record.Record) (r record.Record, found bool, err error) {
	if err := e.checkKey(target); err != nil {
		return record.Record{}, false, err
	}
	idx := TriePrefix(e.trieKey(target), e.dir.BitLen())
	bucket, err := e.buckets.Get(e.dir.Get(idx))
	if err != nil {
		return record.Record{}, false, err
	}
	defer func() {
		err = multierr.Combine(err, e.buckets.Put(bucket))
	}()
	r, found = bucket.Find(target)
	if e.logging {
		e.log.Debug("find", zap.Binary("key", target.Key), zap.Uint32("slot", idx),
			zap.Int64("bucket", bucket.ID()), zap.Bool("found", found))
	}
	return r, found, nil
}

// checkKey rejects keys whose width differs from the stored layout.
func (e *ExtHash) checkKey(r record.Record) error {
	if len(r.Key) != e.codec.KeyLen() {
		return errors.Wrapf(ErrInvalidKey, "key length %d, expected %d", len(r.Key), e.codec.KeyLen())
	}
	return nil
}

// Add inserts r, or replaces the stored record with the same key.
// Returns true if the key was new.
func (e *ExtHash) Add(r record.Record) (bool, error) {
	if err := e.checkKey(r); err != nil {
		return false, err
	}
	h := e.trieKey(r)
	if e.logging {
		e.log.Debug(">> add", zap.Binary("key", r.Key), zap.Uint32("trie", h))
	}
	grew, err := e.put(r, h)
	if err != nil {
		return false, err
	}
	if grew {
		e.size++
		e.metrics.inc(e.metrics.adds)
	}
	if e.logging {
		e.log.Debug("<< add", zap.Binary("key", r.Key), zap.Bool("new", grew))
	}
	return grew, e.internalCheck()
}

// put inserts r with trie value h, growing the directory or splitting the target
// bucket until it fits. Each pass either inserts, lengthens the directory, or
// lengthens the target bucket's trie, both bounded by maxBitLen.
func (e *ExtHash) put(r record.Record, h uint32) (bool, error) {
	maxAttempts := 2*e.maxBitLen + 2
	for attempt := 0; attempt < maxAttempts; attempt++ {
		dictIdx := TriePrefix(h, e.dir.BitLen())
		bucketID := e.dir.Get(dictIdx)
		bucket, err := e.buckets.Get(bucketID)
		if err != nil {
			return false, err
		}

		grew, err := bucket.Put(r)
		if err == nil {
			return grew, e.buckets.Put(bucket)
		}
		if !errors.Is(err, errBucketFull) {
			_ = e.buckets.Put(bucket)
			return false, err
		}

		if bucket.TrieBitLen() < e.dir.BitLen() {
			if err := e.splitAndReorganise(bucket, dictIdx, h); err != nil {
				return false, err
			}
			continue
		}

		// Full length bucket: only a longer directory can separate its records.
		if err := e.checkSplittable(bucket, h); err != nil {
			_ = e.buckets.Put(bucket)
			return false, err
		}
		if err := e.buckets.Put(bucket); err != nil {
			return false, err
		}
		e.resizeDirectory()
	}
	return false, corruption("add: no room after %d attempts, directory bit length %d", maxAttempts, e.dir.BitLen())
}

// checkSplittable fails with ErrCapacityExhausted when growing the directory
// cannot make room in a full bucket for a record with trie value h.
func (e *ExtHash) checkSplittable(bucket *HashBucket, h uint32) error {
	if e.dir.BitLen() >= e.maxBitLen {
		e.log.Error("directory at maximum bit length",
			zap.Int("bitLen", e.dir.BitLen()), zap.Int64("bucket", bucket.ID()))
		return errors.Wrapf(ErrCapacityExhausted, "bucket %d is full at maximum directory bit length %d",
			bucket.ID(), e.maxBitLen)
	}
	for i := 0; i < bucket.Count(); i++ {
		if e.trieKey(bucket.Get(i)) != h {
			return nil
		}
	}
	e.log.Error("bucket holds only colliding hashes",
		zap.Int64("bucket", bucket.ID()), zap.Uint32("trie", h))
	return errors.Wrapf(ErrCapacityExhausted, "bucket %d: all %d records share trie key 0x%X",
		bucket.ID(), bucket.Count(), h)
}

// resizeDirectory doubles the directory.
func (e *ExtHash) resizeDirectory() {
	if e.logging {
		e.log.Debug("resize", zap.Int("from", e.dir.Size()), zap.Int("to", 2*e.dir.Size()))
	}
	e.dir.Resize()
	e.metrics.inc(e.metrics.resizes)
}

// splitAndReorganise splits a bucket whose trie is shorter than the directory's
// and repoints the directory slots of the new upper half. Takes ownership of bucket.
func (e *ExtHash) splitAndReorganise(bucket *HashBucket, dictIdx uint32, h uint32) (err error) {
	bitLen := e.dir.BitLen()
	if e.logging {
		e.log.Debug("split", zap.Uint32("slot", dictIdx), zap.Int64("bucket", bucket.ID()),
			zap.Int("bitLen", bitLen), zap.Int("bucketBitLen", bucket.TrieBitLen()))
	}
	if e.checking {
		if bucket.TrieBitLen() >= bitLen {
			_ = e.buckets.Put(bucket)
			return e.fail(corruption("split: slot 0x%X: bucket %d trie length %d not shorter than %d",
				dictIdx, bucket.ID(), bucket.TrieBitLen(), bitLen))
		}
		if TriePrefix(h, bucket.TrieBitLen()) != bucket.TrieValue() {
			_ = e.buckets.Put(bucket)
			return e.fail(corruption("split: slot 0x%X: hash 0x%X[0x%X] does not match bucket %d trie 0x%X",
				dictIdx, h, TriePrefix(h, bucket.TrieBitLen()), bucket.ID(), bucket.TrieValue()))
		}
	}

	// Remember before split changes them.
	oldHash := bucket.TrieValue()
	oldLen := bucket.TrieBitLen()

	upper, err := e.split(bucket)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, e.buckets.Put(bucket), e.buckets.Put(upper))
	}()

	// Slots whose newly exposed bit is 1 move to the upper bucket; the rest keep
	// pointing at the original, now the lower bucket.
	gap := bitLen - (oldLen + 1)
	upperRoot := ((oldHash << 1) | 1) << gap
	for j := uint32(0); j < 1<<gap; j++ {
		k := upperRoot | j
		if id := e.dir.Get(k); id != bucket.ID() {
			return e.fail(corruption("split: slot 0x%X (root 0x%X, sub %d) points to bucket %d, expected %d",
				k, upperRoot, j, id, bucket.ID()))
		}
		e.dir.Put(k, upper.ID())
	}
	e.metrics.inc(e.metrics.splits)
	return nil
}

// split lengthens the bucket's trie by one bit and moves records whose new bit
// is 1 into a new upper bucket. The header of bucket is only changed once the
// upper bucket exists. On error both buckets are released.
func (e *ExtHash) split(bucket *HashBucket) (*HashBucket, error) {
	hash1 := bucket.TrieValue() << 1
	hash2 := hash1 | 1
	upper, err := e.buckets.Create(hash2, bucket.TrieBitLen()+1)
	if err != nil {
		_ = e.buckets.Put(bucket)
		return nil, err
	}
	bucket.incTrieBitLen()
	bucket.setTrieValue(hash1)

	kept := 0
	moved := 0
	for i := 0; i < bucket.Count(); i++ {
		r := bucket.Get(i)
		switch TriePrefix(e.trieKey(r), bucket.TrieBitLen()) {
		case hash1:
			// kept <= i, so compaction never overwrites an unread slot.
			if kept != i {
				bucket.set(kept, r)
			}
			kept++
		case hash2:
			upper.set(moved, r)
			moved++
		default:
			_ = e.buckets.Put(bucket)
			_ = e.buckets.Put(upper)
			return nil, e.fail(corruption("split: bucket %d slot %d: record trie 0x%X is neither 0x%X nor 0x%X",
				bucket.ID(), i, TriePrefix(e.trieKey(r), bucket.TrieBitLen()), hash1, hash2))
		}
	}
	bucket.clearFrom(kept)
	bucket.updateCount(kept)
	upper.updateCount(moved)

	if e.logging {
		e.log.Debug("split done", zap.Stringer("lower", bucket), zap.Stringer("upper", upper))
	}
	return upper, nil
}

// Delete removes the record with the key of target. Returns false if it was absent.
// Buckets are never merged and the directory never shrinks.
func (e *ExtHash) Delete(target record.Record) (bool, error) {
	if err := e.checkKey(target); err != nil {
		return false, err
	}
	idx := TriePrefix(e.trieKey(target), e.dir.BitLen())
	bucket, err := e.buckets.Get(e.dir.Get(idx))
	if err != nil {
		return false, err
	}
	removed := bucket.RemoveByKey(target)
	if err := e.buckets.Put(bucket); err != nil {
		return false, err
	}
	if removed {
		e.size--
		e.metrics.inc(e.metrics.deletes)
	}
	if e.logging {
		e.log.Debug("delete", zap.Binary("key", target.Key), zap.Bool("removed", removed))
	}
	return removed, e.internalCheck()
}

// Size returns the number of records, kept as a running counter.
func (e *ExtHash) Size() int64 {
	return e.size
}

// IsEmpty reports whether the index holds no records.
func (e *ExtHash) IsEmpty() bool {
	return e.size == 0
}

// Count explicitly sums the record counts of every distinct bucket.
func (e *ExtHash) Count() (int64, error) {
	var count int64
	err := e.forEachBucket(func(_ int, bucket *HashBucket) error {
		count += int64(bucket.Count())
		return nil
	})
	return count, err
}

// Clear is not supported.
func (e *ExtHash) Clear() error {
	return errors.Wrap(ErrUnsupported, "exthash: clear")
}

// Iterator returns a forward-only iterator over every record.
func (e *ExtHash) Iterator() *Iterator {
	return newIterator(e)
}

// Select returns all records in the index.
func (e *ExtHash) Select() ([]record.Record, error) {
	ret := make([]record.Record, 0, e.size)
	it := e.Iterator()
	defer it.Close()
	for it.Next() {
		ret = append(ret, it.Record())
	}
	return ret, it.Err()
}

// Sync flushes all dirty buckets and the directory.
func (e *ExtHash) Sync() error {
	return multierr.Combine(e.buckets.Sync(), e.dir.Sync())
}

// Close flushes and releases the bucket store and the directory file.
func (e *ExtHash) Close() error {
	return multierr.Combine(e.buckets.Close(), e.dir.Close())
}

// fail logs a structural error before it is returned.
func (e *ExtHash) fail(err error) error {
	e.log.Error("exthash", zap.Error(err))
	return err
}

func (e *ExtHash) internalCheck() error {
	if !e.checking {
		return nil
	}
	return e.Check()
}
