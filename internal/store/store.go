// Package store holds global-scope variables and persists the ones
// declared with persist="true" through the cache backend, optionally
// encrypted at rest.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lattice-lang/lattice/internal/cache"
	"github.com/lattice-lang/lattice/pkg/logging"
)

const varPrefix = "var:"

// Store is the global variable store. It satisfies the execution
// context's global lookup interface and the interpreter's persistence
// interface.
type Store struct {
	mu     sync.RWMutex
	vars   map[string]any
	back   cache.Cache
	cipher *valueCipher
	log    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithEncryptionKey enables encrypt="true" persistence. The key material
// is stretched with PBKDF2 before use.
func WithEncryptionKey(secret string) Option {
	return func(s *Store) { s.cipher = newValueCipher(secret) }
}

// WithLogger overrides the module logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New builds a store. back may be nil, in which case globals live in
// memory only and persisted values do not survive the process.
func New(back cache.Cache, opts ...Option) *Store {
	s := &Store{
		vars: make(map[string]any),
		back: back,
		log:  logging.ModuleLogger("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type persistedValue struct {
	Value     any    `json:"value,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
	Envelope  []byte `json:"envelope,omitempty"`
}

// Get looks up a global variable: memory first, then the backend for
// values persisted by an earlier run.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	v, ok := s.vars[name]
	s.mu.RUnlock()
	if ok {
		return v, true
	}
	if s.back == nil {
		return nil, false
	}

	var entry persistedValue
	err := s.back.GetJSON(context.Background(), varPrefix+name, &entry)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("global lookup failed", "name", name, "error", err)
		}
		return nil, false
	}
	value := entry.Value
	if entry.Encrypted {
		if s.cipher == nil {
			s.log.Warn("encrypted value but no key configured", "name", name)
			return nil, false
		}
		value, err = s.cipher.open(entry.Envelope)
		if err != nil {
			s.log.Warn("decrypting persisted value failed", "name", name, "error", err)
			return nil, false
		}
	}

	s.mu.Lock()
	s.vars[name] = value
	s.mu.Unlock()
	return value, true
}

// Set binds a global variable in memory.
func (s *Store) Set(name string, value any) error {
	s.mu.Lock()
	s.vars[name] = value
	s.mu.Unlock()
	return nil
}

// Persist writes a variable through to the backend. A ttlSeconds of
// zero keeps it until overwritten.
func (s *Store) Persist(ctx context.Context, name string, value any, ttlSeconds int, encrypt bool) error {
	if err := s.Set(name, value); err != nil {
		return err
	}
	if s.back == nil {
		return errors.New("store: no persistence backend configured")
	}

	entry := persistedValue{Value: value}
	if encrypt {
		if s.cipher == nil {
			return fmt.Errorf("store: cannot encrypt %q, no encryption key configured", name)
		}
		envelope, err := s.cipher.seal(value)
		if err != nil {
			return fmt.Errorf("store: encrypting %q: %w", name, err)
		}
		entry = persistedValue{Encrypted: true, Envelope: envelope}
	}

	ttl := time.Duration(ttlSeconds) * time.Second
	if err := s.back.SetJSON(ctx, varPrefix+name, entry, ttl); err != nil {
		return fmt.Errorf("store: persisting %q: %w", name, err)
	}
	return nil
}

// Delete removes a variable from memory and the backend.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	delete(s.vars, name)
	s.mu.Unlock()
	if s.back == nil {
		return nil
	}
	return s.back.Delete(ctx, varPrefix+name)
}
