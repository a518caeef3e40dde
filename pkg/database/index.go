package database

import (
	"go.uber.org/multierr"

	"exthash/pkg/hash"
	"exthash/pkg/oplog"
	"exthash/pkg/record"
)

// Index is a named hash index of a database together with its journal.
// Mutations go to the index first and are journaled once they succeed.
type Index struct {
	*hash.HashIndex
	journal *oplog.Log
}

// Add inserts or replaces r and journals it.
func (index *Index) Add(r record.Record) (bool, error) {
	grew, err := index.HashIndex.Add(r)
	if err != nil {
		return false, err
	}
	return grew, index.journal.Append(oplog.ADD_ACTION, r)
}

// Delete removes the record with the key of target, journaling it if it existed.
func (index *Index) Delete(target record.Record) (bool, error) {
	removed, err := index.HashIndex.Delete(target)
	if err != nil || !removed {
		return removed, err
	}
	return true, index.journal.Append(oplog.DELETE_ACTION, target)
}

// History returns up to the n most recent journaled mutations, oldest first.
func (index *Index) History(n int) ([]oplog.Entry, error) {
	return index.journal.Tail(n)
}

// Sync flushes the index and its journal.
func (index *Index) Sync() error {
	return multierr.Combine(index.HashIndex.Sync(), index.journal.Sync())
}

// Close flushes and closes the index and its journal.
func (index *Index) Close() error {
	return multierr.Combine(index.HashIndex.Close(), index.journal.Close())
}
