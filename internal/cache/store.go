// Package cache provides the keyed in-memory store shared by the screen and
// remote-data caches.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry holds a cached value together with its bookkeeping.
//
// LastAccessedAt is bumped on every read hit, which is what makes eviction
// LRU rather than FIFO. Validator carries an opaque server token (ETag
// equivalent) used for conditional revalidation.
type Entry[V any] struct {
	Value          V
	InsertedAt     time.Time
	LastAccessedAt time.Time
	Validator      string
	ttl            time.Duration
}

// Store is a capacity-bounded, TTL-aware LRU store keyed by string.
//
// When an insert pushes the store over capacity, the entry with the smallest
// LastAccessedAt is evicted; ties break in recency-list order, so eviction is
// deterministic. Expired entries are treated as misses by Get but are kept
// around until invalidated, so callers can still serve them as
// stale-but-usable after a failed refresh.
//
// A capacity of 0 or a default TTL of 0 disables caching entirely: Put
// becomes a no-op and lookups always miss.
type Store[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // Front = most recent, Back = least recent
	now      func() time.Time
}

// storeEntry is the recency-list element payload.
type storeEntry[V any] struct {
	key   string
	entry Entry[V]
}

// Option configures a Store.
type Option[V any] func(*Store[V])

// WithClock overrides the store's time source. Used by tests to control
// expiry without sleeping.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(s *Store[V]) {
		s.now = now
	}
}

// NewStore creates a store holding at most capacity entries, each valid for
// ttl after insertion unless overridden per entry via PutTTL.
func NewStore[V any](capacity int, ttl time.Duration, opts ...Option[V]) *Store[V] {
	s := &Store[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves a value by key and marks it as recently used.
// An entry older than its TTL is a miss, but it is not removed: expired
// entries stay resident for stale-but-usable serving until invalidated.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	elem, ok := s.items[key]
	if !ok {
		return zero, false
	}
	se := elem.Value.(*storeEntry[V])
	if s.expired(se.entry) {
		return zero, false
	}
	se.entry.LastAccessedAt = s.now()
	s.order.MoveToFront(elem)
	return se.entry.Value, true
}

// GetStale retrieves a value by key regardless of TTL. Recency is still
// bumped, so a stale entry that keeps getting served keeps surviving LRU
// eviction.
func (s *Store[V]) GetStale(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	elem, ok := s.items[key]
	if !ok {
		return zero, false
	}
	se := elem.Value.(*storeEntry[V])
	se.entry.LastAccessedAt = s.now()
	s.order.MoveToFront(elem)
	return se.entry.Value, true
}

// Peek returns the resident value for key without bumping recency and
// ignoring TTL. Used for comparisons that must not count as an access.
func (s *Store[V]) Peek(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	elem, ok := s.items[key]
	if !ok {
		return zero, false
	}
	return elem.Value.(*storeEntry[V]).entry.Value, true
}

// Put inserts or replaces the entry for key using the store default TTL.
func (s *Store[V]) Put(key string, value V, validator string) {
	s.PutTTL(key, value, validator, s.ttl)
}

// PutTTL inserts or replaces the entry for key with an explicit TTL.
// A non-positive TTL (or a zero-capacity store) caches nothing.
func (s *Store[V]) PutTTL(key string, value V, validator string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity <= 0 || ttl <= 0 {
		// Caching disabled: drop any previous entry so nothing stale lingers.
		s.removeLocked(key)
		return
	}

	now := s.now()
	entry := Entry[V]{
		Value:          value,
		InsertedAt:     now,
		LastAccessedAt: now,
		Validator:      validator,
		ttl:            ttl,
	}

	if elem, ok := s.items[key]; ok {
		elem.Value.(*storeEntry[V]).entry = entry
		s.order.MoveToFront(elem)
		return
	}

	if s.order.Len() >= s.capacity {
		s.evictLocked()
	}
	elem := s.order.PushFront(&storeEntry[V]{key: key, entry: entry})
	s.items[key] = elem
}

// Validator returns the validator token held for key, even if the entry has
// expired. Conditional revalidation needs the token exactly when the entry is
// no longer fresh.
func (s *Store[V]) Validator(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return "", false
	}
	return elem.Value.(*storeEntry[V]).entry.Validator, true
}

// Touch resets the entry's insertion time to now, restarting its TTL without
// replacing the value. Used after a "not modified" revalidation.
func (s *Store[V]) Touch(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return false
	}
	se := elem.Value.(*storeEntry[V])
	now := s.now()
	se.entry.InsertedAt = now
	se.entry.LastAccessedAt = now
	s.order.MoveToFront(elem)
	return true
}

// Invalidate removes the entry for key. No-op when absent.
func (s *Store[V]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
}

// InvalidateOlderThan removes every entry inserted more than maxAge ago.
// A maxAge of 0 empties the store.
func (s *Store[V]) InvalidateOlderThan(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	for elem := s.order.Front(); elem != nil; {
		next := elem.Next()
		se := elem.Value.(*storeEntry[V])
		if !se.entry.InsertedAt.After(cutoff) {
			s.order.Remove(elem)
			delete(s.items, se.key)
		}
		elem = next
	}
}

// Clear removes all entries.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*list.Element)
	s.order.Init()
}

// Len returns the number of resident entries, expired ones included.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *Store[V]) expired(e Entry[V]) bool {
	return s.now().Sub(e.InsertedAt) >= e.ttl
}

// evictLocked drops the entry with the smallest LastAccessedAt. The recency
// list keeps that entry at the back, and list order breaks timestamp ties.
func (s *Store[V]) evictLocked() {
	oldest := s.order.Back()
	if oldest == nil {
		return
	}
	s.order.Remove(oldest)
	delete(s.items, oldest.Value.(*storeEntry[V]).key)
}

func (s *Store[V]) removeLocked(key string) {
	if elem, ok := s.items[key]; ok {
		s.order.Remove(elem)
		delete(s.items, key)
	}
}
