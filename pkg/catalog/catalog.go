// Package catalog keeps a persistent record of every stream the encoder
// produced: where it was written, how it was encoded and how long it is.
//
// Records are msgpack-encoded and stored under time-ordered UUIDv7 keys, so
// a prefix scan returns them in creation order. BadgerDB backs the on-disk
// catalog; an in-memory backend is provided for tests.
//
// Key layout:
//
//	rec:{uuid}   → msgpack-encoded Recording
//	name:{name}  → uuid (reverse index)
package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrNotFound is returned when no recording matches.
	ErrNotFound = errors.New("catalog: not found")

	// ErrAmbiguous is returned by Find when an ID prefix matches more than
	// one recording.
	ErrAmbiguous = errors.New("catalog: ambiguous id")

	// ErrNameTaken is returned by Add when a recording with the same name
	// already exists.
	ErrNameTaken = errors.New("catalog: name already in use")
)

// Recording describes one encoded stream.
type Recording struct {
	ID       uuid.UUID `msgpack:"id" json:"id" yaml:"id"`
	Name     string    `msgpack:"name" json:"name" yaml:"name"`
	Location string    `msgpack:"location" json:"location" yaml:"location"`

	SerialNo    int32   `msgpack:"serial" json:"serial_no" yaml:"serial_no"`
	SampleRate  int     `msgpack:"rate" json:"sample_rate" yaml:"sample_rate"`
	Channels    int     `msgpack:"channels" json:"channels" yaml:"channels"`
	FrameMillis float64 `msgpack:"frame_ms" json:"frame_ms" yaml:"frame_ms"`
	Application string  `msgpack:"app" json:"application" yaml:"application"`
	PreSkip     int     `msgpack:"pre_skip" json:"pre_skip" yaml:"pre_skip"`

	Packets int64 `msgpack:"packets" json:"packets" yaml:"packets"`
	Pages   int64 `msgpack:"pages" json:"pages" yaml:"pages"`
	Bytes   int64 `msgpack:"bytes" json:"bytes" yaml:"bytes"`
	Granule int64 `msgpack:"granule" json:"granule" yaml:"granule"`

	Duration  time.Duration `msgpack:"duration" json:"duration" yaml:"duration"`
	CreatedAt time.Time     `msgpack:"created_at" json:"created_at" yaml:"created_at"`
}

// Catalog stores recordings.
type Catalog struct {
	db     backend
	logger *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

func newCatalog(db backend, opts []Option) *Catalog {
	c := &Catalog{db: db}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Open opens or creates the on-disk catalog in dir.
func Open(dir string, opts ...Option) (*Catalog, error) {
	c := newCatalog(nil, opts)
	db, err := openBadger(dir, false, c.logger)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", dir, err)
	}
	c.db = db
	return c, nil
}

// OpenInMemory opens a badger catalog that is never written to disk.
func OpenInMemory(opts ...Option) (*Catalog, error) {
	c := newCatalog(nil, opts)
	db, err := openBadger("", true, c.logger)
	if err != nil {
		return nil, fmt.Errorf("catalog: open in-memory: %w", err)
	}
	c.db = db
	return c, nil
}

// NewMemory returns a catalog backed by a plain map.
func NewMemory(opts ...Option) *Catalog {
	return newCatalog(newMemory(), opts)
}

func recordKey(id uuid.UUID) []byte {
	return []byte("rec:" + id.String())
}

func nameKey(name string) []byte {
	return []byte("name:" + name)
}

// Add stores r. A zero ID is replaced with a new UUIDv7 and a zero
// CreatedAt with the current time. Names must be unique when set.
func (c *Catalog) Add(_ context.Context, r *Recording) error {
	if r.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		r.ID = id
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Name != "" {
		idb, err := c.db.get(nameKey(r.Name))
		switch {
		case err == nil && string(idb) != r.ID.String():
			return fmt.Errorf("%w: %q", ErrNameTaken, r.Name)
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		}
	}

	data, err := msgpack.Marshal(r)
	if err != nil {
		return err
	}
	sets := []entry{{key: recordKey(r.ID), value: data}}
	if r.Name != "" {
		sets = append(sets, entry{key: nameKey(r.Name), value: []byte(r.ID.String())})
	}
	if err := c.db.batch(sets, nil); err != nil {
		return err
	}
	c.logger.Debug("catalog: recording added", "id", r.ID, "name", r.Name, "location", r.Location)
	return nil
}

// Get returns the recording with the given ID.
func (c *Catalog) Get(_ context.Context, id uuid.UUID) (*Recording, error) {
	data, err := c.db.get(recordKey(id))
	if err != nil {
		return nil, err
	}
	var r Recording
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", id, err)
	}
	return &r, nil
}

// Find resolves ref as a recording name, a full ID or a unique ID prefix.
func (c *Catalog) Find(ctx context.Context, ref string) (*Recording, error) {
	if idb, err := c.db.get(nameKey(ref)); err == nil {
		id, err := uuid.ParseBytes(idb)
		if err != nil {
			return nil, fmt.Errorf("catalog: corrupt name index for %q: %w", ref, err)
		}
		return c.Get(ctx, id)
	}
	if id, err := uuid.Parse(ref); err == nil {
		return c.Get(ctx, id)
	}

	var found *Recording
	for r, err := range c.List(ctx) {
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(r.ID.String(), ref) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %q", ErrAmbiguous, ref)
		}
		found = r
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	return found, nil
}

// List yields every recording, oldest first. Undecodable records are
// skipped with a warning.
func (c *Catalog) List(_ context.Context) iter.Seq2[*Recording, error] {
	return func(yield func(*Recording, error) bool) {
		for e, err := range c.db.scan([]byte("rec:")) {
			if err != nil {
				yield(nil, err)
				return
			}
			var r Recording
			if err := msgpack.Unmarshal(e.value, &r); err != nil {
				c.logger.Warn("catalog: skipping malformed record", "key", string(e.key), "error", err)
				continue
			}
			if !yield(&r, nil) {
				return
			}
		}
	}
}

// Delete removes the recording with the given ID. Deleting a missing
// recording is not an error.
func (c *Catalog) Delete(ctx context.Context, id uuid.UUID) error {
	r, err := c.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	dels := [][]byte{recordKey(id)}
	if r.Name != "" {
		dels = append(dels, nameKey(r.Name))
	}
	if err := c.db.batch(nil, dels); err != nil {
		return err
	}
	c.logger.Debug("catalog: recording deleted", "id", id)
	return nil
}

// Close releases the underlying database.
func (c *Catalog) Close() error {
	return c.db.close()
}
