// Package memory keeps screenings in process memory. Records are lost on
// restart; use it for local development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/rbright/mindwell/internal/analysis"
)

var errClosed = errors.New("memory store closed")

// Store is an in-memory analysis.Store.
type Store struct {
	mu      sync.RWMutex
	records []analysis.Screening
	closed  bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Save appends record.
func (s *Store) Save(_ context.Context, record analysis.Screening) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.records = append(s.records, record)
	return nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *Store) List(_ context.Context, limit int) ([]analysis.Screening, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]analysis.Screening, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Ping fails once the store is closed.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
