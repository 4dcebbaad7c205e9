package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store keeps session state in memory. Entries expire after the TTL and the
// least recently used session is dropped when the store is full.
type Store struct {
	cache *expirable.LRU[string, *State]
	now   func() time.Time
	locks keyedMutex
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	onEvict func(id string)
	now     func() time.Time
}

// WithOnEvict registers a callback run when a session expires or is evicted.
func WithOnEvict(fn func(id string)) Option {
	return func(o *storeOptions) { o.onEvict = fn }
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

// New creates a store holding at most size sessions for ttl each.
func New(size int, ttl time.Duration, opts ...Option) *Store {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if size <= 0 {
		size = 1000
	}
	var evict func(string, *State)
	if o.onEvict != nil {
		evict = func(id string, _ *State) { o.onEvict(id) }
	}
	return &Store{
		cache: expirable.NewLRU[string, *State](size, evict, ttl),
		now:   o.now,
		locks: keyedMutex{locks: map[string]*refMutex{}},
	}
}

// Create starts a new empty session and stores it.
func (s *Store) Create() *State {
	now := s.now()
	st := &State{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	s.cache.Add(st.ID, st.Clone())
	return st
}

// Get returns a private copy of the session. Changes become visible only after Save.
func (s *Store) Get(id string) (*State, error) {
	st, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

// Save stores st, refreshing its TTL.
func (s *Store) Save(st *State) {
	c := st.Clone()
	c.UpdatedAt = s.now()
	st.UpdatedAt = c.UpdatedAt
	s.cache.Add(c.ID, c)
}

// Delete discards a session. It reports whether one existed.
func (s *Store) Delete(id string) bool {
	return s.cache.Remove(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Lock serializes load, modify and save on one session. Callers must Get the
// state after Lock returns and call the returned func once they have saved.
func (s *Store) Lock(id string) (unlock func()) {
	return s.locks.lock(id)
}

// Update runs fn on a private copy of the session under its lock and saves
// the result when fn succeeds.
func (s *Store) Update(id string, fn func(*State) error) (*State, error) {
	unlock := s.Lock(id)
	defer unlock()
	st, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	s.Save(st)
	return st, nil
}

type refMutex struct {
	sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			k.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}
