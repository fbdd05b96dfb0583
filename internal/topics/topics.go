// Package topics implements the process-wide health topic store: a versioned
// key/value map with a single writer (the Exec ingestion path) and many
// readers (any task in either machine).
package topics

import (
	"sort"
	"sync"
	"time"

	"github.com/skylark-uav/skylark/internal/pkg/metrics"
)

// Entry is one observation of a health topic. Version is assigned from a
// store-wide counter, so it strictly increases across all writes; readers
// compare versions to implement edge-triggered logic.
type Entry struct {
	Key       Key       `json:"key"`
	Data      any       `json:"data"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Bool returns the entry data as a bool.
func (e Entry) Bool() (bool, bool) {
	v, ok := e.Data.(bool)
	return v, ok
}

// Float64 returns the entry data as a float64, converting from the integer
// types the ingestion path writes.
func (e Entry) Float64() (float64, bool) {
	switch v := e.Data.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

// String returns the entry data as a string.
func (e Entry) String() (string, bool) {
	v, ok := e.Data.(string)
	return v, ok
}

// Uint32 returns the entry data as a uint32 bitfield.
func (e Entry) Uint32() (uint32, bool) {
	switch v := e.Data.(type) {
	case uint32:
		return v, true
	case uint64:
		return uint32(v), true
	case int:
		return uint32(v), true
	case float64:
		return uint32(v), true
	}
	return 0, false
}

// Store is the health topic map. Writes go through Put only; the ingestion
// path is the sole caller by project convention, which keeps version
// comparison sound for readers.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	version uint64
	clock   func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		entries: make(map[Key]Entry),
		clock:   time.Now,
	}
}

// Put records a new observation for key. Every call bumps the store-wide
// version counter, even when data is unchanged, so readers can distinguish
// "observed again" from "not observed since".
func (s *Store) Put(key Key, data any) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	e := Entry{
		Key:       key,
		Data:      data,
		Version:   s.version,
		Timestamp: s.clock(),
	}
	s.entries[key] = e
	metrics.TopicWritesTotal.WithLabelValues(string(key)).Inc()
	return e
}

// Get returns the latest entry for key.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Since returns the latest entry for key only if it was written after the
// given version. This is the edge-trigger primitive: a reader that remembers
// the version it acted on will not act twice on the same observation.
func (s *Store) Since(key Key, version uint64) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.Version <= version {
		return Entry{}, false
	}
	return e, true
}

// Version returns the store-wide version counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns all entries sorted by key, for the observability surface.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
