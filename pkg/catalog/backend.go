package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

type entry struct {
	key   []byte
	value []byte
}

// backend is the ordered byte store under a Catalog.
type backend interface {
	// get returns ErrNotFound for a missing key.
	get(key []byte) ([]byte, error)
	// batch applies sets and deletes atomically.
	batch(sets []entry, dels [][]byte) error
	// scan yields entries with the prefix in key order.
	scan(prefix []byte) iter.Seq2[entry, error]
	close() error
}

type badgerDB struct {
	db *badger.DB
}

func openBadger(dir string, inMemory bool, logger *slog.Logger) (*badgerDB, error) {
	if !inMemory && dir == "" {
		return nil, errors.New("catalog: directory is required")
	}
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger})
	if inMemory {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerDB{db: db}, nil
}

func (b *badgerDB) get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, err
}

func (b *badgerDB) batch(sets []entry, dels [][]byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, e := range sets {
			if err := txn.Set(e.key, e.value); err != nil {
				return err
			}
		}
		for _, k := range dels {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *badgerDB) scan(prefix []byte) iter.Seq2[entry, error] {
	return func(yield func(entry, error) bool) {
		err := b.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				val, err := item.ValueCopy(nil)
				if err != nil {
					if !yield(entry{}, err) {
						return nil
					}
					continue
				}
				if !yield(entry{key: item.KeyCopy(nil), value: val}, nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(entry{}, err)
		}
	}
}

func (b *badgerDB) close() error {
	return b.db.Close()
}

// badgerLogger routes badger's warnings and errors to slog and drops the
// rest.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...any) {
	l.logger.Error("badger: " + strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l badgerLogger) Warningf(f string, v ...any) {
	l.logger.Warn("badger: " + strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}

// memory is a map-backed backend for tests.
type memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMemory() *memory {
	return &memory{data: make(map[string][]byte)}
}

func (m *memory) get(key []byte) ([]byte, error) {
	m.mu.RLock()
	v, ok := m.data[string(key)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return bytes.Clone(v), nil
}

func (m *memory) batch(sets []entry, dels [][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range sets {
		m.data[string(e.key)] = bytes.Clone(e.value)
	}
	for _, k := range dels {
		delete(m.data, string(k))
	}
	return nil
}

func (m *memory) scan(prefix []byte) iter.Seq2[entry, error] {
	// Snapshot under the read lock so yield may call back into the store.
	m.mu.RLock()
	var matches []entry
	for k, v := range m.data {
		if strings.HasPrefix(k, string(prefix)) {
			matches = append(matches, entry{key: []byte(k), value: bytes.Clone(v)})
		}
	}
	m.mu.RUnlock()
	slices.SortFunc(matches, func(a, b entry) int { return bytes.Compare(a.key, b.key) })

	return func(yield func(entry, error) bool) {
		for _, e := range matches {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *memory) close() error {
	return nil
}
