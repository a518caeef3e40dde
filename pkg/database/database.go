package database

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/otiai10/copy"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"exthash/pkg/config"
	"exthash/pkg/hash"
	"exthash/pkg/oplog"
)

var (
	ErrIndexExists   = errors.New("index already exists")
	ErrIndexNotFound = errors.New("index not found")
	ErrInvalidName   = errors.New("index name must be alphanumeric")
)

var nonWord = regexp.MustCompile(`\W`)

// Database is a folder of named hash indexes sharing one configuration.
type Database struct {
	basepath string
	fs       afero.Fs
	cfg      config.Config
	log      *zap.Logger
	session  uuid.UUID
	indexes  map[string]*Index
	mtx      sync.Mutex
}

// Opens a database given a data folder.
func Open(folder string, cfg config.Config, log *zap.Logger) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Ensure folder is of the form */
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(folder, 0775); err != nil {
		return nil, errors.Wrap(err, "create data folder")
	}
	if log == nil {
		log = zap.NewNop()
	}
	db := &Database{
		basepath: folder,
		fs:       fs,
		cfg:      cfg,
		session:  uuid.New(),
		indexes:  make(map[string]*Index),
	}
	db.log = log.With(zap.Stringer("session", db.session))
	db.log.Info("database opened", zap.String("folder", folder))
	return db, nil
}

// Close each index in the database.
func (db *Database) Close() error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	var err error
	for name, index := range db.indexes {
		if closeErr := index.Close(); closeErr != nil {
			err = multierr.Append(err, errors.Wrapf(closeErr, "close %s", name))
		}
	}
	db.indexes = make(map[string]*Index)
	db.log.Info("database closed")
	return err
}

// Sync flushes every open index.
func (db *Database) Sync() error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	return db.syncLocked()
}

func (db *Database) syncLocked() error {
	var eg errgroup.Group
	for name, index := range db.indexes {
		eg.Go(func() error {
			if err := index.Sync(); err != nil {
				return errors.Wrapf(err, "sync %s", name)
			}
			return nil
		})
	}
	return eg.Wait()
}

// CreateIndex creates a new, empty index.
func (db *Database) CreateIndex(name string) (*Index, error) {
	if nonWord.MatchString(name) || name == "" {
		return nil, ErrInvalidName
	}
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if _, ok := db.indexes[name]; ok {
		return nil, errors.Wrap(ErrIndexExists, name)
	}
	exists, err := afero.Exists(db.fs, db.path(name)+config.DirectoryFileSuffix)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Wrap(ErrIndexExists, name)
	}
	return db.openLocked(name)
}

// GetIndex returns an open index, or opens it from disk.
func (db *Database) GetIndex(name string) (*Index, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if index, ok := db.indexes[name]; ok {
		return index, nil
	}
	if nonWord.MatchString(name) || name == "" {
		return nil, ErrInvalidName
	}
	exists, err := afero.Exists(db.fs, db.path(name)+config.DirectoryFileSuffix)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Wrap(ErrIndexNotFound, name)
	}
	return db.openLocked(name)
}

func (db *Database) openLocked(name string) (*Index, error) {
	path := db.path(name)
	hi, err := hash.OpenIndex(path, db.cfg, db.log)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	journal, err := oplog.Open(db.fs, path+config.OpLogFileSuffix, db.session)
	if err != nil {
		_ = hi.Close()
		return nil, errors.Wrapf(err, "open %s", name)
	}
	index := &Index{HashIndex: hi, journal: journal}
	db.indexes[name] = index
	db.log.Debug("index opened", zap.String("index", name), zap.Int64("size", hi.Size()),
		zap.Int("bitLen", hi.BitLen()))
	return index, nil
}

// Indexes returns the sorted names of every index stored in the folder.
func (db *Database) Indexes() ([]string, error) {
	matches, err := afero.Glob(db.fs, filepath.Join(db.basepath, "*"+config.DirectoryFileSuffix))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), config.DirectoryFileSuffix))
	}
	sort.Strings(names)
	return names, nil
}

// Backup syncs every open index and copies the data folder to dst.
// dst must not be inside the data folder.
func (db *Database) Backup(dst string) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	src, err := filepath.Abs(db.basepath)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	if abs == src || strings.HasPrefix(abs, src+string(filepath.Separator)) {
		return errors.Errorf("backup folder %s is inside the data folder", dst)
	}
	if err := db.syncLocked(); err != nil {
		return err
	}
	if err := copy.Copy(src, abs); err != nil {
		return errors.Wrap(err, "copy data folder")
	}
	db.log.Info("backup written", zap.String("to", abs))
	return nil
}

// Returns the basepath of the database.
func (db *Database) GetBasePath() string {
	return db.basepath
}

// Session returns the id journaled with every mutation made through this database.
func (db *Database) Session() uuid.UUID {
	return db.session
}

func (db *Database) path(name string) string {
	return filepath.Join(db.basepath, name)
}
