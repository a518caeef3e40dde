package hash

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"exthash/pkg/block"
	"exthash/pkg/config"
	"exthash/pkg/record"
)

// HashIndex is an ExtHash backed by files: <path>.bkt holds the buckets and
// <path>.dir the directory.
type HashIndex struct {
	*ExtHash
	path  string
	store *block.FileStore
}

// OpenIndex opens or creates the index rooted at path using the configured layout.
// Both files live on the OS filesystem.
func OpenIndex(path string, cfg config.Config, log *zap.Logger) (*HashIndex, error) {
	fs := afero.NewOsFs()
	codec, err := record.NewFactory(cfg.KeyLen, cfg.ValueLen)
	if err != nil {
		return nil, err
	}
	hasher, err := HasherByName(cfg.Hash)
	if err != nil {
		return nil, err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0775); err != nil {
		return nil, storageErr("create index folder", err)
	}

	store, err := block.OpenFile(path+config.BucketFileSuffix, block.FileOptions{
		BlockSize: cfg.BlockSize,
		Frames:    cfg.BufferFrames,
		Direct:    cfg.DirectIO,
	})
	if err != nil {
		return nil, storageErr("open bucket file", err)
	}
	dirFile, err := fs.OpenFile(path+config.DirectoryFileSuffix, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		_ = store.Close()
		return nil, storageErr("open directory file", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	e, err := Open(store, dirFile, codec, Options{
		HashFunc:  hasher,
		Logger:    log.With(zap.String("index", filepath.Base(path))),
		Checking:  cfg.Checking,
		Logging:   cfg.Logging,
		MaxBitLen: cfg.MaxBitLen,
	})
	if err != nil {
		_ = store.Close()
		_ = dirFile.Close()
		return nil, err
	}
	return &HashIndex{ExtHash: e, path: path, store: store}, nil
}

// GetName returns the base name of the index.
func (index *HashIndex) GetName() string {
	return filepath.Base(index.path)
}

// GetPath returns the path the index files are rooted at.
func (index *HashIndex) GetPath() string {
	return index.path
}

// GetStore returns the block store backing the buckets.
func (index *HashIndex) GetStore() *block.FileStore {
	return index.store
}
