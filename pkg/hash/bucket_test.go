package hash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exthash/pkg/block"
	"exthash/pkg/record"
)

// blockSizeFor returns a block size holding exactly capacity 8+8 byte records.
func blockSizeFor(capacity int) int {
	return BUCKET_HEADER_SIZE + capacity*16
}

func newTestCodec(t *testing.T) *record.Factory {
	t.Helper()
	codec, err := record.NewFactory(8, 8)
	require.NoError(t, err)
	return codec
}

func newTestBucketManager(t *testing.T, capacity int) *BucketManager {
	t.Helper()
	mgr, err := NewBucketManager(block.NewMemStore(blockSizeFor(capacity)), newTestCodec(t))
	require.NoError(t, err)
	require.Equal(t, capacity, mgr.Capacity())
	return mgr
}

func bucketKeys(bucket *HashBucket) []int64 {
	var keys []int64
	for _, r := range bucket.Records() {
		k, _ := record.ToInt64(r)
		keys = append(keys, k)
	}
	return keys
}

func TestBucketManagerCapacity(t *testing.T) {
	codec := newTestCodec(t)
	mgr, err := NewBucketManager(block.NewMemStore(4096), codec)
	require.NoError(t, err)
	assert.Equal(t, (4096-BUCKET_HEADER_SIZE)/16, mgr.Capacity())

	_, err = NewBucketManager(block.NewMemStore(BUCKET_HEADER_SIZE+15), codec)
	assert.Error(t, err)
}

func TestBucketPutKeepsKeyOrder(t *testing.T) {
	mgr := newTestBucketManager(t, 4)
	bucket, err := mgr.Create(0, 0)
	require.NoError(t, err)
	defer mgr.Put(bucket)

	for _, k := range []int64{30, 10, 20} {
		grew, err := bucket.Put(record.FromInt64(k, k*100))
		require.NoError(t, err)
		assert.True(t, grew)
	}
	assert.Equal(t, []int64{10, 20, 30}, bucketKeys(bucket))
	assert.Equal(t, 3, bucket.Count())

	grew, err := bucket.Put(record.FromInt64(20, 7))
	require.NoError(t, err)
	assert.False(t, grew, "overwrite does not grow the bucket")
	r, found := bucket.Find(record.FromInt64(20, 0))
	require.True(t, found)
	_, v := record.ToInt64(r)
	assert.Equal(t, int64(7), v)
	assert.Equal(t, 3, bucket.Count())
}

func TestBucketFull(t *testing.T) {
	mgr := newTestBucketManager(t, 4)
	bucket, err := mgr.Create(0, 0)
	require.NoError(t, err)
	defer mgr.Put(bucket)

	for _, k := range []int64{4, 3, 2, 1} {
		_, err := bucket.Put(record.FromInt64(k, k))
		require.NoError(t, err)
	}
	require.True(t, bucket.IsFull())
	before := bytes.Clone(bucket.block.Data())

	_, err = bucket.Put(record.FromInt64(5, 5))
	assert.ErrorIs(t, err, errBucketFull)
	assert.Equal(t, before, bucket.block.Data(), "a rejected put leaves the bucket unchanged")

	grew, err := bucket.Put(record.FromInt64(1, 11))
	require.NoError(t, err, "existing keys can be overwritten in a full bucket")
	assert.False(t, grew)
}

func TestBucketRemoveByKey(t *testing.T) {
	mgr := newTestBucketManager(t, 4)
	bucket, err := mgr.Create(0, 0)
	require.NoError(t, err)
	defer mgr.Put(bucket)

	for _, k := range []int64{1, 2, 3, 4} {
		_, err := bucket.Put(record.FromInt64(k, k))
		require.NoError(t, err)
	}
	assert.True(t, bucket.RemoveByKey(record.FromInt64(2, 0)))
	assert.False(t, bucket.RemoveByKey(record.FromInt64(2, 0)))
	assert.False(t, bucket.RemoveByKey(record.FromInt64(99, 0)))
	assert.Equal(t, []int64{1, 3, 4}, bucketKeys(bucket))
	assert.True(t, bucket.isClear(3), "vacated slot is zeroed")

	for _, k := range []int64{1, 3, 4} {
		assert.True(t, bucket.RemoveByKey(record.FromInt64(k, 0)))
	}
	assert.True(t, bucket.IsEmpty())
	for slot := 0; slot < bucket.Capacity(); slot++ {
		assert.True(t, bucket.isClear(slot))
	}
}

func TestBucketHeaderRoundTrip(t *testing.T) {
	mgr := newTestBucketManager(t, 4)
	bucket, err := mgr.Create(0x5, 3)
	require.NoError(t, err)
	_, err = bucket.Put(record.FromInt64(42, 1))
	require.NoError(t, err)
	id := bucket.ID()
	require.NoError(t, mgr.Put(bucket))

	bucket, err = mgr.Get(id)
	require.NoError(t, err)
	defer mgr.Put(bucket)
	assert.Equal(t, uint32(0x5), bucket.TrieValue())
	assert.Equal(t, 3, bucket.TrieBitLen())
	assert.Equal(t, 1, bucket.Count())
	assert.Equal(t, []int64{42}, bucketKeys(bucket))
}

func TestBucketManagerRejectsBadHeader(t *testing.T) {
	mgr := newTestBucketManager(t, 4)
	bucket, err := mgr.Create(0, 0)
	require.NoError(t, err)
	bucket.putHeader(COUNT_OFFSET, 99)
	id := bucket.ID()
	require.NoError(t, mgr.Put(bucket))

	_, err = mgr.Get(id)
	assert.ErrorIs(t, err, ErrStructuralCorruption)
}
