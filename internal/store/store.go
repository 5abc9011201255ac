// Package store holds the most recent cycle results for the HTTP surface.
//
// The agent loop Puts every result; the REST API and the WebSocket hub read.
// Results are kept in a fixed-size ring so memory stays bounded.
package store

import (
	"sync"
	"time"

	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

// Entry is a cycle result together with the time it was stored.
type Entry struct {
	Result    *fusion.Result
	UpdatedAt time.Time
}

// Store is a thread-safe ring of recent cycle results.
type Store struct {
	mu       sync.RWMutex
	ring     []*Entry
	next     int
	count    int
	total    uint64
	staleAge time.Duration
	now      func() time.Time // injectable for deterministic tests
}

// New creates a Store keeping capacity results. A result older than
// staleAge is reported as stale by Fresh.
func New(capacity int, staleAge time.Duration) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		ring:     make([]*Entry, capacity),
		staleAge: staleAge,
		now:      time.Now,
	}
}

// Put stores res as the latest result.
// Callers must not modify res after calling Put.
func (s *Store) Put(res *fusion.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring[s.next] = &Entry{Result: res, UpdatedAt: s.now()}
	s.next = (s.next + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}
	s.total++
}

// Latest returns the newest entry, if any.
func (s *Store) Latest() (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.count == 0 {
		return nil, false
	}
	return s.ring[(s.next-1+len(s.ring))%len(s.ring)], true
}

// History returns up to limit entries, newest first. A limit <= 0 returns
// everything held.
func (s *Store) History(limit int) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Entry, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, s.ring[(s.next-i+len(s.ring))%len(s.ring)])
	}
	return out
}

// Count returns the number of entries currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Total returns the number of results ever stored.
func (s *Store) Total() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Fresh reports whether the latest entry is younger than the stale age.
// A zero stale age never goes stale.
func (s *Store) Fresh() bool {
	e, ok := s.Latest()
	if !ok {
		return false
	}
	if s.staleAge <= 0 {
		return true
	}
	return s.now().Sub(e.UpdatedAt) < s.staleAge
}
