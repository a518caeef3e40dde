package oplog

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/icza/backscanner"
	"github.com/spf13/afero"

	"exthash/pkg/record"
)

/*
   Every mutation applied to an index is journaled as one line:

   < session, ADD|DELETE, key, value >

   session is the uuid of the database session that applied it; key and value
   are the hex encoded record bytes. DELETE lines carry an empty value.
*/

// The type of mutation. Either add or delete.
type Action string

const (
	ADD_ACTION    Action = "ADD"
	DELETE_ACTION Action = "DELETE"
)

// Entry is one journaled mutation.
type Entry struct {
	Session uuid.UUID
	Action  Action
	Key     []byte
	Value   []byte
}

func (e Entry) String() string {
	return fmt.Sprintf("< %s, %s, %s, %s >", e.Session, e.Action, hex.EncodeToString(e.Key), hex.EncodeToString(e.Value))
}

// Record returns the entry's key and value as a record.
func (e Entry) Record() record.Record {
	return record.Record{Key: e.Key, Value: e.Value}
}

// Regex pattern for a uuid
const uuidPattern = "[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}"

var entryExp = regexp.MustCompile(fmt.Sprintf(
	"^< (?P<uuid>%s), (?P<action>ADD|DELETE), (?P<key>[0-9a-f]*), (?P<value>[0-9a-f]*) >$", uuidPattern))

// Parse converts the textual form of an entry back to an Entry.
func Parse(s string) (Entry, error) {
	m := entryExp.FindStringSubmatch(s)
	if m == nil {
		return Entry{}, errors.Errorf("could not parse log entry %q", s)
	}
	session, err := uuid.Parse(m[1])
	if err != nil {
		return Entry{}, errors.Wrap(err, "parse session")
	}
	key, err := hex.DecodeString(m[3])
	if err != nil {
		return Entry{}, errors.Wrap(err, "parse key")
	}
	value, err := hex.DecodeString(m[4])
	if err != nil {
		return Entry{}, errors.Wrap(err, "parse value")
	}
	return Entry{Session: session, Action: Action(m[2]), Key: key, Value: value}, nil
}

// Log is an append-only journal file. It is safe for concurrent use.
type Log struct {
	file    afero.File
	session uuid.UUID
	mtx     sync.Mutex
}

// Open opens (creating if needed) the journal at path. New entries are tagged
// with session.
func Open(fs afero.Fs, path string, session uuid.UUID) (*Log, error) {
	file, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, errors.Wrap(err, "open log")
	}
	return &Log{file: file, session: session}, nil
}

// Session returns the id new entries are tagged with.
func (l *Log) Session() uuid.UUID {
	return l.session
}

// Append journals one mutation of r.
func (l *Log) Append(action Action, r record.Record) error {
	e := Entry{Session: l.session, Action: action, Key: r.Key}
	if action == ADD_ACTION {
		e.Value = r.Value
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if _, err := io.WriteString(l.file, e.String()+"\n"); err != nil {
		return errors.Wrap(err, "append log")
	}
	return nil
}

// Tail returns up to the n most recent entries, oldest first.
func (l *Log) Tail(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	info, err := l.file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat log")
	}

	scanner := backscanner.New(l.file, int(info.Size()))
	entries := make([]Entry, 0, n)
	for len(entries) < n {
		line, _, err := scanner.Line()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "scan log")
		}
		if line == "" {
			continue
		}
		e, err := Parse(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	// Scanned newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Sync flushes the journal to stable storage.
func (l *Log) Sync() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.file.Sync(); err != nil {
		return errors.Wrap(err, "sync log")
	}
	return nil
}

// Close syncs and closes the journal.
func (l *Log) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return errors.Wrap(err, "sync log")
	}
	if err := l.file.Close(); err != nil {
		return errors.Wrap(err, "close log")
	}
	return nil
}
