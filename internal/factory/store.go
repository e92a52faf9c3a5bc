package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Store persists definitions between generator runs
type Store interface {
	// Load returns the stored definition for key, or nil when absent
	Load(ctx context.Context, key string) (*Definition, error)
	Save(ctx context.Context, key string, def *Definition) error
	Delete(ctx context.Context, key string) error
}

const keyPrefix = "definition/"

// BadgerStore is a Store backed by BadgerDB. Values are JSON encoded
// definitions.
type BadgerStore struct {
	db     *badgerdb.DB
	logger *zap.Logger
}

// OpenBadgerStore opens or creates a build cache in dir. An empty dir keeps
// the cache in memory.
func OpenBadgerStore(dir string, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badgerdb.Options
	if dir == "" {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		opts = badgerdb.DefaultOptions(dir)
		opts.ValueLogFileSize = 16 << 20
	}
	opts.MemTableSize = 8 << 20
	opts.BlockCacheSize = 8 << 20
	opts.IndexCacheSize = 4 << 20
	opts.NumMemtables = 2
	opts.NumCompactors = 2
	opts.Logger = badgerLogger{logger.Sugar().Named("badger")}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open build cache %q: %w", dir, err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// Load implements Store
func (s *BadgerStore) Load(ctx context.Context, key string) (*Definition, error) {
	var raw []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			if err == badgerdb.ErrKeyNotFound {
				return nil
			}
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if raw == nil {
		return nil, nil
	}

	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &def, nil
}

// Save implements Store
func (s *BadgerStore) Save(ctx context.Context, key string, def *Definition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPrefix+key), raw)
	})
}

// Delete implements Store
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
}

// Len counts the stored definitions
func (s *BadgerStore) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close flushes and closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's log output into zap
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

var _ Store = (*BadgerStore)(nil)
