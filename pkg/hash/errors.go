package hash

import (
	"github.com/go-faster/errors"
)

var (
	// ErrStorage marks failures of the block store or the directory file.
	ErrStorage = errors.New("storage failure")
	// ErrStructuralCorruption marks a violated directory or bucket invariant.
	ErrStructuralCorruption = errors.New("structural corruption")
	// ErrCapacityExhausted is returned when a bucket cannot be split because its
	// records collide at every trie length the directory can reach.
	ErrCapacityExhausted = errors.New("bucket capacity exhausted")
	// ErrUnsupported is returned by operations the index does not implement.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrInvalidKey is returned for a record key of the wrong width.
	ErrInvalidKey = errors.New("invalid key")

	errBucketFull = errors.New("bucket full")
)

// StorageError wraps an error from the underlying storage with the failed operation.
type StorageError struct {
	Op  string
	Err error
}

// Error - describes the failed storage operation.
func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the storage layer's error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func corruption(format string, args ...any) error {
	return errors.Wrapf(ErrStructuralCorruption, format, args...)
}
