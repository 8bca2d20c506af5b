// Package ttlstore provides an in-memory key-value store with per-entry
// time-to-live. It backs the cooldown ledger and other ephemeral flags.
package ttlstore

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the background sweep evicts expired
// entries when no interval is configured.
const DefaultSweepInterval = time.Minute

type entry struct {
	value     interface{}
	createdAt time.Time
	ttl       time.Duration // 0 means never expires
}

func (e entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

// Store is a thread-safe expiring key-value store. Expiry is checked
// lazily on every read, so a hit is never stale even if the background
// sweep has not run yet.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	sweep   time.Duration
}

// New creates an empty store using DefaultSweepInterval.
func New() *Store {
	return NewWithInterval(DefaultSweepInterval)
}

// NewWithInterval creates an empty store that sweeps at the given interval
// once Run is started.
func NewWithInterval(interval time.Duration) *Store {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Store{
		entries: make(map[string]entry),
		sweep:   interval,
	}
}

// Set stores a value under key. A ttl of zero means the entry never
// expires. Setting an existing key replaces the entry and restarts its
// lifetime; the old entry can no longer be evicted.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, createdAt: time.Now(), ttl: ttl}
}

// Get returns the value for key, or false if the key is absent or its
// ttl has elapsed.
func (s *Store) Get(key string) (interface{}, bool) {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		// Lazy eviction so memory is reclaimed even between sweeps.
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.createdAt.Equal(e.createdAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Has reports whether key holds an unexpired entry.
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Delete removes key and reports whether an entry was present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	return ok
}

// Len returns the number of stored entries, including ones whose ttl has
// elapsed but which have not been swept yet.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep evicts every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			evicted++
		}
	}
	return evicted
}

// Run sweeps expired entries at the configured interval until ctx is
// done. Call from the app lifecycle, in its own goroutine.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
