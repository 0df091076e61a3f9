// Package badgerjournal persists terminal events in an embedded Badger
// database, keyed by occurrence time so iteration follows event order.
package badgerjournal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/fd1az/mev-bundler/business/attribution/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
)

const eventPrefix = "evt/"

// Options selects the database location.
type Options struct {
	Path     string
	InMemory bool
}

// Journal is an append-only event log.
type Journal struct {
	db  *badger.DB
	seq atomic.Uint64
}

// Open opens or creates the journal.
func Open(opts Options) (*Journal, error) {
	var bopts badger.Options
	switch {
	case opts.InMemory:
		bopts = badger.DefaultOptions("").WithInMemory(true)
	case strings.TrimSpace(opts.Path) != "":
		bopts = badger.DefaultOptions(opts.Path)
	default:
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("journal: path is required unless in_memory is set"))
	}

	db, err := badger.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, apperror.New(apperror.CodeJournalWrite,
			apperror.WithCause(err),
			apperror.WithContext("journal: open "+opts.Path))
	}
	return &Journal{db: db}, nil
}

// eventKey sorts by occurrence time; the sequence breaks ties within a
// nanosecond and the id keeps keys readable.
func (j *Journal) eventKey(e domain.Event) []byte {
	return []byte(fmt.Sprintf("%s%020d/%010d/%s", eventPrefix, e.OccurredAt.UnixNano(), j.seq.Add(1), e.ID))
}

// Append stores e.
func (j *Journal) Append(_ context.Context, e domain.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return apperror.New(apperror.CodeJournalWrite, apperror.WithCause(err), apperror.WithContext(e.ID))
	}

	key := j.eventKey(e)
	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return apperror.New(apperror.CodeJournalWrite, apperror.WithCause(err), apperror.WithContext(e.ID))
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(_ context.Context, limit int) ([]domain.Event, error) {
	var out []domain.Event

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(eventPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration starts from the last key at or before the seek key
		for it.Seek([]byte(eventPrefix + "\xff")); it.ValidForPrefix([]byte(eventPrefix)); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var e domain.Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeStoreUnavailable, apperror.WithCause(err), apperror.WithContext("journal: recent"))
	}
	return out, nil
}

// Close closes the database. Safe on a nil journal.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
