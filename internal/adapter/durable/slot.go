// Package durable implements the persistent keyed store: typed slots over a
// domain.KV with a versioned, checksummed envelope.
package durable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"bookstore/internal/domain"
)

// ErrConcurrentWriter is returned by Slot.Write when another writer stored a
// newer sequence since this slot last read or wrote. The write still happens.
var ErrConcurrentWriter = errors.New("durable: concurrent writer detected")

// Fixed slot keys.
const (
	KeyCart           = "cart:v1"
	KeyFavorites      = "fav:v1"
	KeySession        = "session:v1"
	KeyPublicSettings = "public-settings:v1"
)

// CurrentVersion is the schema version new envelopes are written with.
const CurrentVersion = 1

type envelope struct {
	Version int             `json:"v"`
	Seq     uint64          `json:"seq"`
	Sum     string          `json:"sum"`
	Data    json.RawMessage `json:"data"`
}

// Migration upgrades data stored under an older schema version to the
// current one. Legacy values written without an envelope arrive as version 0.
type Migration func(from int, data json.RawMessage) (json.RawMessage, error)

// Option configures a Slot.
type Option func(*options)

type options struct {
	version int
	migrate Migration
	logger  *slog.Logger
}

// WithVersion sets the schema version the slot reads and writes.
func WithVersion(v int) Option {
	return func(o *options) { o.version = v }
}

// WithMigration installs an upgrade hook for older stored versions.
func WithMigration(m Migration) Option {
	return func(o *options) { o.migrate = m }
}

// WithLogger sets the logger malformed data and conflicts are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Slot is one typed key in a KV. Reads never fail: anything absent or
// malformed yields the caller's default. Writes replace the whole value.
type Slot[T any] struct {
	kv   domain.KV
	key  string
	opts options

	mu  sync.Mutex
	seq uint64
}

// NewSlot returns a slot for key in kv.
func NewSlot[T any](kv domain.KV, key string, opts ...Option) *Slot[T] {
	o := options{version: CurrentVersion, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Slot[T]{kv: kv, key: key, opts: o}
}

// Key returns the slot key.
func (s *Slot[T]) Key() string {
	return s.key
}

// Read returns the stored value, or def when it is absent, unreadable,
// malformed or from a newer schema version.
func (s *Slot[T]) Read(ctx context.Context, def T) T {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return def
	}
	if err != nil {
		s.opts.logger.Warn("durable read failed, using default", "key", s.key, "error", err)
		return def
	}
	if !ok {
		return def
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		s.opts.logger.Warn("malformed stored value, using default", "key", s.key, "error", err)
		return def
	}
	if env.Version > s.opts.version {
		s.opts.logger.Info("stored value has newer schema, ignoring",
			"key", s.key, "stored_version", env.Version, "version", s.opts.version)
		return def
	}

	data := env.Data
	if env.Version < s.opts.version && s.opts.migrate != nil {
		data, err = s.opts.migrate(env.Version, data)
		if err != nil {
			s.opts.logger.Warn("migration failed, using default",
				"key", s.key, "from", env.Version, "error", err)
			return def
		}
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.opts.logger.Warn("malformed stored value, using default", "key", s.key, "error", err)
		return def
	}

	s.mu.Lock()
	if env.Seq > s.seq {
		s.seq = env.Seq
	}
	s.mu.Unlock()
	return v
}

// Write replaces the stored value with v. When another writer has stored a
// higher sequence than this slot has seen, the write still goes through and
// the returned error wraps ErrConcurrentWriter.
func (s *Slot[T]) Write(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("durable: encode %s: %w", s.key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.storedSeq(ctx)
	conflict := stored > s.seq
	next := max(stored, s.seq) + 1

	raw, err := json.Marshal(envelope{
		Version: s.opts.version,
		Seq:     next,
		Sum:     checksum(data),
		Data:    data,
	})
	if err != nil {
		return fmt.Errorf("durable: encode %s: %w", s.key, err)
	}
	if err := s.kv.Put(ctx, s.key, raw); err != nil {
		return fmt.Errorf("durable: write %s: %w", s.key, err)
	}
	s.seq = next

	if conflict {
		s.opts.logger.Warn("concurrent writer detected, last write wins",
			"key", s.key, "stored_seq", stored, "seq", next)
		return fmt.Errorf("%s: %w", s.key, ErrConcurrentWriter)
	}
	return nil
}

// Clear removes the stored value.
func (s *Slot[T]) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("durable: clear %s: %w", s.key, err)
	}
	return nil
}

// storedSeq peeks at the sequence currently stored. Unreadable values count
// as zero.
func (s *Slot[T]) storedSeq(ctx context.Context) uint64 {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil || !ok {
		return 0
	}
	env, err := decodeEnvelope(raw)
	if err != nil {
		return 0
	}
	return env.Seq
}

func checksum(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// decodeEnvelope parses raw. A JSON value that is not an envelope is a
// legacy value and comes back as version 0 with itself as data.
func decodeEnvelope(raw []byte) (envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if !json.Valid(trimmed) {
		return envelope{}, errors.New("invalid json")
	}
	if !isEnvelope(trimmed) {
		return envelope{Version: 0, Data: trimmed}, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return envelope{}, err
	}
	if checksum(env.Data) != env.Sum {
		return envelope{}, errors.New("checksum mismatch")
	}
	return env, nil
}

func isEnvelope(raw []byte) bool {
	if len(raw) == 0 || raw[0] != '{' {
		return false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	for _, k := range []string{"v", "sum", "data"} {
		if _, ok := probe[k]; !ok {
			return false
		}
	}
	return true
}
