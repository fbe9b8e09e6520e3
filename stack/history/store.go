// Package history keeps a local ledger of synthesized templates in BadgerDB,
// so a new synthesis can be diffed against the last one.
package history

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Key format: [recordPrefix][stack][separator][unix nanos, big endian][id]
// so records of one stack sort by creation time.
const (
	recordPrefix      = "rec:"
	keySeparator byte = 0x00
)

// ErrNoHistory is returned when a stack has no recorded synthesis.
var ErrNoHistory = errors.New("no recorded synthesis")

// Record is one synthesized template.
type Record struct {
	ID          string
	Stack       string
	CreatedAt   time.Time
	Format      string
	Fingerprint uint64
	Resources   int
	Document    []byte
}

// Fingerprint hashes an encoded template.
func Fingerprint(doc []byte) uint64 {
	return xxhash.Sum64(doc)
}

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger for BadgerDB. If nil, logging is disabled.
	Logger badger.Logger
}

type Store struct {
	db  *badger.DB
	now func() time.Time
	log logrus.FieldLogger
}

func Open(opts StoreOptions, log logrus.FieldLogger) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db, now: time.Now, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put records doc for stack. When doc has the same fingerprint as the latest
// record nothing is written and the latest record is returned with
// changed set to false.
func (s *Store) Put(stack, format string, resources int, doc []byte) (rec Record, changed bool, err error) {
	fp := Fingerprint(doc)
	latest, err := s.Latest(stack)
	switch {
	case err == nil && latest.Fingerprint == fp && latest.Format == format:
		s.log.WithField("stack", stack).Debug("template unchanged, not recording")
		return latest, false, nil
	case err != nil && !errors.Is(err, ErrNoHistory):
		return Record{}, false, err
	}

	rec = Record{
		ID:          uuid.NewString(),
		Stack:       stack,
		CreatedAt:   s.now().UTC(),
		Format:      format,
		Fingerprint: fp,
		Resources:   resources,
		Document:    append([]byte(nil), doc...),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return Record{}, false, fmt.Errorf("encode record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(stack, rec.CreatedAt, rec.ID), buf.Bytes())
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("write record: %w", err)
	}
	s.log.WithFields(logrus.Fields{"stack": stack, "id": rec.ID, "fingerprint": fmt.Sprintf("%016x", fp)}).Info("recorded synthesis")
	return rec, true, nil
}

// Latest returns the newest record of stack or ErrNoHistory.
func (s *Store) Latest(stack string) (Record, error) {
	recs, err := s.List(stack, 1)
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, ErrNoHistory
	}
	return recs[0], nil
}

// List returns up to limit records of stack, newest first. A limit of zero
// or less returns every record.
func (s *Store) List(stack string, limit int) ([]Record, error) {
	prefix := stackPrefix(stack)
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the first key not greater than the seek key.
		for it.Seek(incrementBytes(prefix)); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			err := it.Item().Value(func(v []byte) error {
				return gob.NewDecoder(bytes.NewReader(v)).Decode(&rec)
			})
			if err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func stackPrefix(stack string) []byte {
	key := append([]byte(recordPrefix), stack...)
	return append(key, keySeparator)
}

func recordKey(stack string, at time.Time, id string) []byte {
	key := stackPrefix(stack)
	key = binary.BigEndian.AppendUint64(key, uint64(at.UnixNano()))
	return append(key, id...)
}

// incrementBytes returns the smallest key greater than every key with prefix b.
func incrementBytes(b []byte) []byte {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return append(out, 0xff)
}
