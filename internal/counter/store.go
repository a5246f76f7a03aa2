// Package counter provides the expiring key-counter and key-flag store used
// for velocity limiting and IP blacklisting. The contract is authoritative,
// not the backing technology: deployments choose the in-process store or the
// Redis-backed one.
package counter

import (
	"context"
	"sync"
	"time"
)

// Store is an expiring counter/flag store. Increment must be atomic with
// respect to concurrent callers on the same key; velocity limiting is
// incorrect otherwise. Expired entries are logically absent even before they
// are physically evicted.
type Store interface {
	// Increment adds one to the counter at key. A missing or expired entry
	// restarts at 1 with a fresh window; otherwise the original expiry is
	// preserved. Returns the new count.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)

	// Get returns the current count, or 0 when absent or expired.
	Get(ctx context.Context, key string) (int64, error)

	// SetFlag marks key for ttl.
	SetFlag(ctx context.Context, key string, ttl time.Duration) error

	// HasFlag reports whether key carries an unexpired flag.
	HasFlag(ctx context.Context, key string) (bool, error)

	// Delete removes key regardless of type or expiry.
	Delete(ctx context.Context, key string) error
}

type entry struct {
	count   int64
	flag    bool
	expires time.Time
}

// MemoryStore is the in-process Store. Eviction is lazy on read; Prune may
// be called periodically to bound memory, correctness never depends on it.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*entry
	now  func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
		now:  time.Now,
	}
}

// NewMemoryStoreWithClock creates a store with an injected clock for tests.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
		now:  now,
	}
}

// live returns the entry at key if present and unexpired, evicting otherwise.
// Callers must hold the mutex.
func (s *MemoryStore) live(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		delete(s.data, key)
		return nil
	}
	return e
}

func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(key); e != nil {
		e.count++
		return e.count, nil
	}

	s.data[key] = &entry{count: 1, expires: s.now().Add(window)}
	return 1, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(key); e != nil {
		return e.count, nil
	}
	return 0, nil
}

func (s *MemoryStore) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = &entry{flag: true, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) HasFlag(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	return e != nil && e.flag, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Prune removes expired entries. Optional; reads already treat expired
// entries as absent.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.data {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(s.data, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of physically stored entries, expired included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
