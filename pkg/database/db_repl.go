package database

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"exthash/pkg/oplog"
	"exthash/pkg/record"
	"exthash/pkg/repl"
)

// Creates a DB Repl for the given database.
func DatabaseRepl(db *Database) *repl.REPL {
	r := repl.NewRepl()
	add := func(trigger string, handler func(*Database, string) (string, error), help string) {
		// Triggers are distinct and never the help meta-command.
		_ = r.AddCommand(trigger, func(payload string, _ *repl.REPLConfig) (string, error) {
			return handler(db, payload)
		}, help)
	}
	add("create", HandleCreateIndex, "Create an index. usage: create index <index>")
	add("add", HandleAdd, "Add or replace an element. usage: add <key> <value> into <index>")
	add("find", HandleFind, "Find an element. usage: find <key> from <index>")
	add("delete", HandleDelete, "Delete an element. usage: delete <key> from <index>")
	add("select", HandleSelect, "Select elements from an index. usage: select from <index>")
	add("size", HandleSize, "Print the number of elements and the directory shape. usage: size <index>")
	add("check", HandleCheck, "Verify the structure of an index. usage: check <index>")
	add("pretty", HandlePretty, "Print out the internal data representation. usage: pretty <optional bucket> from <index>")
	add("history", HandleHistory, "Print the most recent changes. usage: history <n> from <index>")
	add("indexes", HandleIndexes, "List the indexes in the database. usage: indexes")
	add("sync", HandleSync, "Flush every open index to disk. usage: sync")
	add("backup", HandleBackup, "Copy the database to a folder. usage: backup <folder>")
	return r
}

// Handle create index.
func HandleCreateIndex(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: create index <index>
	if len(fields) != 3 || fields[1] != "index" {
		return "", errors.New("usage: create index <index>")
	}
	if _, err := d.CreateIndex(fields[2]); err != nil {
		return "", errors.Wrap(err, "create error")
	}
	return fmt.Sprintf("index %s created.\n", fields[2]), nil
}

// Handle add.
func HandleAdd(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: add <key> <value> into <index>
	if len(fields) != 5 || fields[3] != "into" {
		return "", errors.New("usage: add <key> <value> into <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", errors.Wrap(err, "add error")
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", errors.Wrap(err, "add error")
	}
	index, err := d.GetIndex(fields[4])
	if err != nil {
		return "", errors.Wrap(err, "add error")
	}
	r, err := intRecord(index, key, value)
	if err != nil {
		return "", errors.Wrap(err, "add error")
	}
	grew, err := index.Add(r)
	if err != nil {
		return "", errors.Wrap(err, "add error")
	}
	if !grew {
		return fmt.Sprintf("replaced (%d, %d)\n", key, value), nil
	}
	return "", nil
}

// Handle find.
func HandleFind(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: find <key> from <index>
	if len(fields) != 4 || fields[2] != "from" {
		return "", errors.New("usage: find <key> from <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", errors.Wrap(err, "find error")
	}
	index, err := d.GetIndex(fields[3])
	if err != nil {
		return "", errors.Wrap(err, "find error")
	}
	target, err := intRecord(index, key, 0)
	if err != nil {
		return "", errors.Wrap(err, "find error")
	}
	r, found, err := index.Find(target)
	if err != nil {
		return "", errors.Wrap(err, "find error")
	}
	if !found {
		return "", errors.Errorf("find error: no record with key %d", key)
	}
	k, v := record.ToInt64(r)
	return fmt.Sprintf("found record: (%d, %d)\n", k, v), nil
}

// Handle delete.
func HandleDelete(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: delete <key> from <index>
	if len(fields) != 4 || fields[2] != "from" {
		return "", errors.New("usage: delete <key> from <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", errors.Wrap(err, "delete error")
	}
	index, err := d.GetIndex(fields[3])
	if err != nil {
		return "", errors.Wrap(err, "delete error")
	}
	target, err := intRecord(index, key, 0)
	if err != nil {
		return "", errors.Wrap(err, "delete error")
	}
	removed, err := index.Delete(target)
	if err != nil {
		return "", errors.Wrap(err, "delete error")
	}
	if !removed {
		return "", errors.Errorf("delete error: no record with key %d", key)
	}
	return "", nil
}

// Handle select.
func HandleSelect(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: select from <index>
	if len(fields) != 3 || fields[1] != "from" {
		return "", errors.New("usage: select from <index>")
	}
	index, err := d.GetIndex(fields[2])
	if err != nil {
		return "", errors.Wrap(err, "select error")
	}
	results, err := index.Select()
	if err != nil {
		return "", errors.Wrap(err, "select error")
	}
	w := new(strings.Builder)
	printResults(results, w)
	return w.String(), nil
}

// Handle size.
func HandleSize(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: size <index>
	if len(fields) != 2 {
		return "", errors.New("usage: size <index>")
	}
	index, err := d.GetIndex(fields[1])
	if err != nil {
		return "", errors.Wrap(err, "size error")
	}
	buckets, err := index.BucketCount()
	if err != nil {
		return "", errors.Wrap(err, "size error")
	}
	return fmt.Sprintf("size %d, bit length %d, directory %d, buckets %d\n",
		index.Size(), index.BitLen(), index.DirectorySize(), buckets), nil
}

// Handle check.
func HandleCheck(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: check <index>
	if len(fields) != 2 {
		return "", errors.New("usage: check <index>")
	}
	index, err := d.GetIndex(fields[1])
	if err != nil {
		return "", errors.Wrap(err, "check error")
	}
	if err := index.Check(); err != nil {
		return "", errors.Wrap(err, "check error")
	}
	return fmt.Sprintf("%s: ok\n", fields[1]), nil
}

// Handle pretty printing.
func HandlePretty(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	w := new(strings.Builder)
	// Usage: pretty <optional bucket> from <index>
	switch {
	case len(fields) == 3 && fields[1] == "from":
		index, err := d.GetIndex(fields[2])
		if err != nil {
			return "", errors.Wrap(err, "pretty error")
		}
		if err := index.Print(w); err != nil {
			return "", errors.Wrap(err, "pretty error")
		}
	case len(fields) == 4 && fields[2] == "from":
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return "", errors.Wrap(err, "pretty error")
		}
		index, err := d.GetIndex(fields[3])
		if err != nil {
			return "", errors.Wrap(err, "pretty error")
		}
		if err := index.PrintBucket(id, w); err != nil {
			return "", errors.Wrap(err, "pretty error")
		}
	default:
		return "", errors.New("usage: pretty <optional bucket> from <index>")
	}
	return w.String(), nil
}

// Handle history.
func HandleHistory(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: history <n> from <index>
	if len(fields) != 4 || fields[2] != "from" {
		return "", errors.New("usage: history <n> from <index>")
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return "", errors.Errorf("history error: invalid count %q", fields[1])
	}
	index, err := d.GetIndex(fields[3])
	if err != nil {
		return "", errors.Wrap(err, "history error")
	}
	entries, err := index.History(n)
	if err != nil {
		return "", errors.Wrap(err, "history error")
	}
	w := new(strings.Builder)
	for _, e := range entries {
		printEntry(e, w)
	}
	return w.String(), nil
}

// Handle indexes.
func HandleIndexes(d *Database, payload string) (output string, err error) {
	if len(strings.Fields(payload)) != 1 {
		return "", errors.New("usage: indexes")
	}
	names, err := d.Indexes()
	if err != nil {
		return "", errors.Wrap(err, "indexes error")
	}
	if len(names) == 0 {
		return "", nil
	}
	return strings.Join(names, "\n") + "\n", nil
}

// Handle sync.
func HandleSync(d *Database, payload string) (output string, err error) {
	if len(strings.Fields(payload)) != 1 {
		return "", errors.New("usage: sync")
	}
	if err := d.Sync(); err != nil {
		return "", errors.Wrap(err, "sync error")
	}
	return "", nil
}

// Handle backup.
func HandleBackup(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: backup <folder>
	if len(fields) != 2 {
		return "", errors.New("usage: backup <folder>")
	}
	if err := d.Backup(fields[1]); err != nil {
		return "", errors.Wrap(err, "backup error")
	}
	return fmt.Sprintf("backup written to %s\n", fields[1]), nil
}

// intRecord builds an int64 record, failing if the index stores another layout.
func intRecord(index *Index, key, value int64) (record.Record, error) {
	factory, ok := index.Codec().(*record.Factory)
	if !ok {
		return record.Record{}, errors.New("index does not store int64 records")
	}
	r := record.FromInt64(key, value)
	return factory.Create(r.Key, r.Value)
}

// printResults prints all given records in a standard format.
func printResults(records []record.Record, w io.Writer) {
	for _, r := range records {
		k, v := record.ToInt64(r)
		fmt.Fprintf(w, "(%v, %v)\n", k, v)
	}
}

func printEntry(e oplog.Entry, w io.Writer) {
	switch e.Action {
	case oplog.DELETE_ACTION:
		k, _ := record.ToInt64(record.Record{Key: e.Key, Value: make([]byte, 8)})
		fmt.Fprintf(w, "%s %d [%s]\n", e.Action, k, e.Session)
	default:
		k, v := record.ToInt64(e.Record())
		fmt.Fprintf(w, "%s (%d, %d) [%s]\n", e.Action, k, v, e.Session)
	}
}
