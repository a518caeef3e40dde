package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"exthash/pkg/config"
	"exthash/pkg/hash"
	"exthash/pkg/record"
	"exthash/pkg/repl"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.BlockSize = 12 + 4*16
	cfg.BufferFrames = 8
	cfg.Checking = true
	return cfg
}

func openTestDB(t *testing.T, folder string) *Database {
	t.Helper()
	db, err := Open(folder, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return db
}

func TestCreateAndGetIndex(t *testing.T) {
	folder := t.TempDir()
	db := openTestDB(t, folder)

	index, err := db.CreateIndex("people")
	require.NoError(t, err)
	_, err = db.CreateIndex("people")
	assert.ErrorIs(t, err, ErrIndexExists)
	_, err = db.CreateIndex("no-dashes")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = db.GetIndex("missing")
	assert.ErrorIs(t, err, ErrIndexNotFound)

	got, err := db.GetIndex("people")
	require.NoError(t, err)
	assert.Same(t, index, got)

	for _, suffix := range []string{config.BucketFileSuffix, config.DirectoryFileSuffix, config.OpLogFileSuffix} {
		_, err := os.Stat(filepath.Join(folder, "people"+suffix))
		assert.NoError(t, err, suffix)
	}
	names, err := db.Indexes()
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, names)
	require.NoError(t, db.Close())

	// A closed index on disk cannot be created again but can be reopened.
	db = openTestDB(t, folder)
	defer db.Close()
	_, err = db.CreateIndex("people")
	assert.ErrorIs(t, err, ErrIndexExists)
	_, err = db.GetIndex("people")
	require.NoError(t, err)
}

func TestIndexSurvivesReopen(t *testing.T) {
	folder := t.TempDir()
	db := openTestDB(t, folder)
	index, err := db.CreateIndex("nums")
	require.NoError(t, err)
	for k := int64(0); k < 300; k++ {
		_, err := index.Add(record.FromInt64(k, -k))
		require.NoError(t, err)
	}
	for k := int64(0); k < 300; k += 3 {
		removed, err := index.Delete(record.FromInt64(k, 0))
		require.NoError(t, err)
		require.True(t, removed)
	}
	first := db.Session()
	require.NoError(t, db.Close())

	db = openTestDB(t, folder)
	defer db.Close()
	assert.NotEqual(t, first, db.Session())
	index, err = db.GetIndex("nums")
	require.NoError(t, err)
	assert.Equal(t, int64(200), index.Size())
	require.NoError(t, index.Check())
	for k := int64(0); k < 300; k++ {
		r, found, err := index.Find(record.FromInt64(k, 0))
		require.NoError(t, err)
		if k%3 == 0 {
			assert.False(t, found, "key %d", k)
			continue
		}
		require.True(t, found, "key %d", k)
		_, v := record.ToInt64(r)
		assert.Equal(t, -k, v)
	}

	entries, err := index.History(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[1].Session)
	k, _ := record.ToInt64(record.Record{Key: entries[1].Key, Value: make([]byte, 8)})
	assert.Equal(t, int64(297), k)
}

func TestBackup(t *testing.T) {
	folder := t.TempDir()
	db := openTestDB(t, folder)
	defer db.Close()
	index, err := db.CreateIndex("nums")
	require.NoError(t, err)
	for k := int64(0); k < 50; k++ {
		_, err := index.Add(record.FromInt64(k, k))
		require.NoError(t, err)
	}

	assert.Error(t, db.Backup(filepath.Join(folder, "inside")))
	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, db.Backup(dst))

	restored, err := hash.OpenIndex(filepath.Join(dst, "nums"), testConfig(), nil)
	require.NoError(t, err)
	defer restored.Close()
	assert.Equal(t, int64(50), restored.Size())
}

func TestDatabaseRepl(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()
	r := DatabaseRepl(db)
	cfg := &repl.REPLConfig{}
	exec := func(line string) string {
		return r.Execute(line, cfg)
	}

	assert.Equal(t, "index t created.\n", exec("create index t"))
	assert.Contains(t, exec("create table t"), "usage: create index <index>")
	for k := 0; k < 20; k++ {
		assert.Empty(t, exec(fmt.Sprintf("add %d %d into t", k, k*k)))
	}
	assert.Equal(t, "replaced (3, 0)\n", exec("add 3 0 into t"))
	assert.Equal(t, "found record: (4, 16)\n", exec("find 4 from t"))
	assert.Contains(t, exec("find 99 from t"), repl.ErrorPrependStr)
	assert.Empty(t, exec("delete 4 from t"))
	assert.Contains(t, exec("delete 4 from t"), "no record with key 4")
	assert.Contains(t, exec("find 1 from nope"), ErrIndexNotFound.Error())
	assert.Contains(t, exec("add x 1 into t"), "add error")

	selected := exec("select from t")
	assert.Equal(t, 19, strings.Count(selected, "\n"))
	assert.Contains(t, selected, "(3, 0)\n")
	assert.NotContains(t, selected, "(4, 16)")

	assert.True(t, strings.HasPrefix(exec("size t"), "size 19, "))
	assert.Equal(t, "t: ok\n", exec("check t"))
	assert.Contains(t, exec("pretty from t"), "bitlen")
	assert.Contains(t, exec("pretty 0 from t"), "bucket 0")
	assert.Contains(t, exec("pretty 9999 from t"), repl.ErrorPrependStr)

	history := exec("history 2 from t")
	assert.Equal(t, []string{
		fmt.Sprintf("ADD (3, 0) [%s]", db.Session()),
		fmt.Sprintf("DELETE 4 [%s]", db.Session()),
	}, strings.Split(strings.TrimSuffix(history, "\n"), "\n"))

	assert.Equal(t, "t\n", exec("indexes"))
	assert.Empty(t, exec("sync"))
	assert.Contains(t, exec("backup"), "usage")
}

func TestCombinedWithOtherRepls(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()
	other := repl.NewRepl()
	require.NoError(t, other.AddCommand("whoami", func(_ string, c *repl.REPLConfig) (string, error) {
		return c.ClientID().String(), nil
	}, "usage: whoami"))
	_, err := repl.CombineRepls([]*repl.REPL{DatabaseRepl(db), other})
	require.NoError(t, err)
	_, err = repl.CombineRepls([]*repl.REPL{DatabaseRepl(db), DatabaseRepl(db)})
	assert.ErrorIs(t, err, repl.ErrOverlappingCommands)
}
