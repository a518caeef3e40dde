package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryLayout(t *testing.T) {
	f, err := NewFactory(4, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, f.RecordLen())

	buf := make([]byte, 10)
	for i := range buf {
		buf[i] = 0xEE
	}
	f.Encode(buf, Record{Key: []byte{1, 2, 3, 4}, Value: []byte{9}})
	assert.Equal(t, []byte{1, 2, 3, 4, 9, 0, 0xEE, 0xEE, 0xEE, 0xEE}, buf)

	r := f.Decode(buf)
	assert.Equal(t, []byte{1, 2, 3, 4}, r.Key)
	assert.Equal(t, []byte{9, 0}, r.Value)

	// Decoded records must not alias the block.
	buf[0] = 7
	assert.Equal(t, byte(1), r.Key[0])
}

func TestFactoryRejectsBadLayouts(t *testing.T) {
	_, err := NewFactory(0, 8)
	assert.Error(t, err)
	_, err = NewFactory(8, -1)
	assert.Error(t, err)

	f, err := NewFactory(8, 0)
	require.NoError(t, err)
	_, err = f.Create([]byte{1}, nil)
	assert.Error(t, err)
	r, err := f.Create(Int64Key(5), []byte{})
	require.NoError(t, err)
	assert.Nil(t, f.Decode(make([]byte, 8)).Value)
	assert.Len(t, r.Key, 8)
}

func TestCompareOrdersByKey(t *testing.T) {
	f, err := NewFactory(8, 8)
	require.NoError(t, err)
	assert.Negative(t, f.Compare(FromInt64(1, 100), FromInt64(2, 0)))
	assert.Positive(t, f.Compare(FromInt64(300, 0), FromInt64(2, 0)))
	assert.Zero(t, f.Compare(FromInt64(5, 1), FromInt64(5, 2)))
}

func TestInt64RoundTrip(t *testing.T) {
	k, v := ToInt64(FromInt64(-42, 1<<40))
	assert.EqualValues(t, -42, k)
	assert.EqualValues(t, 1<<40, v)
}
