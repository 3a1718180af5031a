// Package storage is the process-wide persistent key-value store.
//
// Values are kept as JSON text. The public Save/Load pair never fails: encoding
// and backend errors are logged and Load falls back to the caller's default.
// Get and Put expose the underlying results so that "absent" and "corrupt" can
// be told apart.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fundboard/pkg/logging"
)

var (
	ErrNotFound = errors.New("storage: key not found")
	ErrCorrupt  = errors.New("storage: corrupt value")
)

// Backend persists raw bytes by key.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Store wraps a Backend with JSON (de)serialization.
type Store struct {
	backend Backend
	logger  *zap.Logger
}

// New creates a Store over backend.
func New(backend Backend, logger *zap.Logger) *Store {
	return &Store{backend: backend, logger: logging.OrNop(logger)}
}

// Get decodes the value under key into dst. It returns ErrNotFound when the
// key is absent and an error wrapping ErrCorrupt when the text does not decode.
func (s *Store) Get(key string, dst any) error {
	raw, ok, err := s.backend.Get(key)
	if err != nil {
		return fmt.Errorf("storage: reading %s: %w", key, err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

// Put encodes value and writes it under key. The store is unchanged on error.
func (s *Store) Put(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encoding %s: %w", key, err)
	}
	if err := s.backend.Set(key, data); err != nil {
		return fmt.Errorf("storage: writing %s: %w", key, err)
	}
	return nil
}

// Save is Put with the error logged and swallowed.
func (s *Store) Save(key string, value any) {
	if err := s.Put(key, value); err != nil {
		s.logger.Warn("Failed to save value", zap.String("key", key), zap.Error(err))
	}
}

// Load returns the value stored under key, or def when the key is absent or
// its content cannot be decoded.
func Load[T any](s *Store, key string, def T) T {
	var v T
	err := s.Get(key, &v)
	switch {
	case err == nil:
		return v
	case errors.Is(err, ErrNotFound):
		return def
	default:
		s.logger.Warn("Failed to load value", zap.String("key", key), zap.Error(err))
		return def
	}
}

// SetString stores value verbatim, without JSON encoding.
func (s *Store) SetString(key, value string) error {
	if err := s.backend.Set(key, []byte(value)); err != nil {
		return fmt.Errorf("storage: writing %s: %w", key, err)
	}
	return nil
}

// GetString returns the verbatim value under key.
func (s *Store) GetString(key string) (string, bool) {
	raw, ok, err := s.backend.Get(key)
	if err != nil {
		s.logger.Warn("Failed to read value", zap.String("key", key), zap.Error(err))
		return "", false
	}
	if !ok {
		return "", false
	}
	return string(raw), true
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	if err := s.backend.Delete(key); err != nil {
		return fmt.Errorf("storage: removing %s: %w", key, err)
	}
	return nil
}
