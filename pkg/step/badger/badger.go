// Package badger implements a step.Journal on BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/nstogner/sitesmith/pkg/step"
)

// Config configures the journal database.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps the journal in memory only.
	InMemory bool
	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger
}

// Journal stores step records in BadgerDB, encoded as deterministic CBOR.
type Journal struct {
	db  *badger.DB
	enc cbor.EncMode
}

var _ step.Journal = (*Journal)(nil)

// Open opens (or creates) a journal database.
func Open(cfg Config) (*Journal, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger journal: path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	return &Journal{db: db, enc: enc}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func key(runID, name string) []byte {
	return []byte("step/" + runID + "/" + name)
}

func (j *Journal) Load(ctx context.Context, runID, name string) (step.Record, bool, error) {
	var rec step.Record
	found := false
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(runID, name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return step.Record{}, false, err
	}
	return rec, found, nil
}

func (j *Journal) Save(ctx context.Context, runID string, rec step.Record) error {
	val, err := j.enc.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(runID, rec.Name), val)
	})
}

// Forget deletes every record of a run.
func (j *Journal) Forget(ctx context.Context, runID string) error {
	prefix := []byte("step/" + runID + "/")
	return j.db.DropPrefix(prefix)
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
