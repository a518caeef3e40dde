package hash

import (
	"github.com/go-faster/errors"

	"exthash/pkg/block"
	"exthash/pkg/record"
)

// BucketManager converts between blocks of a store and HashBuckets.
// Every bucket returned by Create or Get holds a pin and must be given back with Put.
type BucketManager struct {
	store    block.Store
	codec    record.Codec
	capacity int
}

// NewBucketManager computes the bucket capacity for the store's block size.
func NewBucketManager(store block.Store, codec record.Codec) (*BucketManager, error) {
	capacity := (store.BlockSize() - BUCKET_HEADER_SIZE) / codec.RecordLen()
	if capacity < 1 {
		return nil, errors.Errorf("block size %d cannot hold a %d byte record", store.BlockSize(), codec.RecordLen())
	}
	return &BucketManager{store: store, codec: codec, capacity: capacity}, nil
}

// Capacity returns the number of records per bucket.
func (mgr *BucketManager) Capacity() int {
	return mgr.capacity
}

// Store returns the underlying block store.
func (mgr *BucketManager) Store() block.Store {
	return mgr.store
}

// Valid reports whether id names an allocated block.
func (mgr *BucketManager) Valid(id int64) bool {
	return id >= 0 && id < mgr.store.NumBlocks()
}

// Create allocates a new, empty bucket with the given trie prefix.
func (mgr *BucketManager) Create(trieValue uint32, trieBitLen int) (*HashBucket, error) {
	b, err := mgr.store.Create()
	if err != nil {
		return nil, storageErr("create bucket", err)
	}
	bucket := &HashBucket{capacity: mgr.capacity, codec: mgr.codec, block: b}
	bucket.updateCount(0)
	bucket.setTrieValue(trieValue)
	bucket.updateTrieBitLen(trieBitLen)
	return bucket, nil
}

// Get fetches the bucket stored in block id.
func (mgr *BucketManager) Get(id int64) (*HashBucket, error) {
	b, err := mgr.store.Get(id)
	if err != nil {
		return nil, storageErr("get bucket", err)
	}
	bucket := blockToBucket(b, mgr.codec, mgr.capacity)
	if bucket.count > mgr.capacity || bucket.trieBitLen > MAX_TRIE_BITS {
		_ = mgr.store.Put(b)
		return nil, corruption("bucket %d header: count %d of %d, trie bit length %d",
			id, bucket.count, mgr.capacity, bucket.trieBitLen)
	}
	return bucket, nil
}

// Put releases the bucket's block back to the store.
func (mgr *BucketManager) Put(bucket *HashBucket) error {
	return storageErr("put bucket", mgr.store.Put(bucket.block))
}

// Sync flushes every dirty bucket.
func (mgr *BucketManager) Sync() error {
	return storageErr("sync buckets", mgr.store.Sync())
}

// Close releases the block store.
func (mgr *BucketManager) Close() error {
	return storageErr("close buckets", mgr.store.Close())
}
