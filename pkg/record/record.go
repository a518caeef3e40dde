// Package record defines the fixed-width key/value records stored in index buckets.
package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-faster/errors"
)

// Record is a key-value pair. Records with equal keys are the same record.
type Record struct {
	Key   []byte
	Value []byte
}

// Print writes the record to the specified writer in the following format: (<key>, <value>)
func (r Record) Print(w io.Writer) {
	fmt.Fprintf(w, "(%x, %x), ", r.Key, r.Value)
}

// Codec describes how records are laid out inside a bucket block.
type Codec interface {
	KeyLen() int
	RecordLen() int
	// Compare orders records by key bytes.
	Compare(a, b Record) int
	// Encode writes r into dst[:RecordLen()].
	Encode(dst []byte, r Record)
	// Decode reads a record from src[:RecordLen()]. The result does not alias src.
	Decode(src []byte) Record
}

// Factory is a Codec for records with fixed key and value widths.
type Factory struct {
	keyLen   int
	valueLen int
}

// NewFactory returns a record factory. keyLen must be positive, valueLen may be zero.
func NewFactory(keyLen, valueLen int) (*Factory, error) {
	if keyLen <= 0 || valueLen < 0 {
		return nil, errors.Errorf("invalid record layout: key %d, value %d", keyLen, valueLen)
	}
	return &Factory{keyLen: keyLen, valueLen: valueLen}, nil
}

// KeyLen implements Codec.
func (f *Factory) KeyLen() int {
	return f.keyLen
}

// ValueLen returns the value width.
func (f *Factory) ValueLen() int {
	return f.valueLen
}

// RecordLen implements Codec.
func (f *Factory) RecordLen() int {
	return f.keyLen + f.valueLen
}

// Compare implements Codec.
func (f *Factory) Compare(a, b Record) int {
	return bytes.Compare(a.Key, b.Key)
}

// Encode implements Codec. Short keys and values are zero padded, long ones truncated.
func (f *Factory) Encode(dst []byte, r Record) {
	dst = dst[:f.RecordLen()]
	clear(dst)
	copy(dst[:f.keyLen], r.Key)
	copy(dst[f.keyLen:], r.Value)
}

// Decode implements Codec.
func (f *Factory) Decode(src []byte) Record {
	r := Record{Key: bytes.Clone(src[:f.keyLen])}
	if f.valueLen > 0 {
		r.Value = bytes.Clone(src[f.keyLen:f.RecordLen()])
	}
	return r
}

// Create builds a record, checking that key and value have this factory's widths.
func (f *Factory) Create(key, value []byte) (Record, error) {
	if len(key) != f.keyLen {
		return Record{}, errors.Errorf("key length %d, expected %d", len(key), f.keyLen)
	}
	if len(value) != f.valueLen {
		return Record{}, errors.Errorf("value length %d, expected %d", len(value), f.valueLen)
	}
	return Record{Key: key, Value: value}, nil
}

// Int64Key encodes k as an 8 byte big-endian key so byte order matches numeric order
// for non-negative keys.
func Int64Key(k int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(k))
	return b
}

// FromInt64 builds a record from an int64 key and value for 8+8 byte layouts.
func FromInt64(key, value int64) Record {
	return Record{Key: Int64Key(key), Value: Int64Key(value)}
}

// ToInt64 decodes a record built by FromInt64.
func ToInt64(r Record) (key, value int64) {
	return int64(binary.BigEndian.Uint64(r.Key)), int64(binary.BigEndian.Uint64(r.Value))
}
