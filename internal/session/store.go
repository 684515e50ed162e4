// Package session keeps per-session conversation history in memory.
//
// Sessions live for the lifetime of the process. Each session's turn list is
// bounded by a retention limit with oldest-first eviction. The number of
// sessions itself is not bounded.
package session

import (
	"context"
	"fmt"
	"sync"

	"bytedge/pkg/edgetypes"
)

// Store is the session capability used by the router.
type Store interface {
	// Get returns a copy of the session's turns in chronological order.
	// Unknown sessions yield an empty slice.
	Get(id string) []edgetypes.Turn

	// Append adds a turn, creating the session if needed and evicting the
	// oldest turns beyond the retention limit.
	Append(id string, turn edgetypes.Turn) error

	// Acquire blocks until the caller holds the exclusive lock for id or ctx is done.
	// The returned release func must be called exactly once; extra calls are no-ops.
	Acquire(ctx context.Context, id string) (release func(), err error)

	// Exists reports whether a session with id has at least one stored turn.
	Exists(id string) bool

	// Len returns the number of sessions.
	Len() int
}

type entry struct {
	mu    sync.RWMutex
	turns []edgetypes.Turn
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// MemoryStore is an in-process Store. Different sessions never share an entry
// or a lock, so operations on distinct ids do not contend beyond the index map.
type MemoryStore struct {
	retention int

	mu       sync.Mutex
	sessions map[string]*entry
	locks    map[string]*keyLock
}

// NewMemoryStore creates a store keeping at most retention turns per session.
// A non-positive retention selects edgetypes.DefaultRetentionLimit.
func NewMemoryStore(retention int) *MemoryStore {
	if retention <= 0 {
		retention = edgetypes.DefaultRetentionLimit
	}
	return &MemoryStore{
		retention: retention,
		sessions:  make(map[string]*entry),
		locks:     make(map[string]*keyLock),
	}
}

// Retention returns the per-session turn limit.
func (s *MemoryStore) Retention() int {
	return s.retention
}

func (s *MemoryStore) lookup(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// Get implements Store.
func (s *MemoryStore) Get(id string) []edgetypes.Turn {
	e := s.lookup(id)
	if e == nil {
		return []edgetypes.Turn{}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]edgetypes.Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Append implements Store.
func (s *MemoryStore) Append(id string, turn edgetypes.Turn) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{}
		s.sessions[id] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.turns = append(e.turns, turn)
	if over := len(e.turns) - s.retention; over > 0 {
		kept := make([]edgetypes.Turn, s.retention)
		copy(kept, e.turns[over:])
		e.turns = kept
	}

	if len(e.turns) > s.retention {
		return fmt.Errorf("%w: session %s holds %d turns (limit %d)",
			edgetypes.ErrSessionCorruption, id, len(e.turns), s.retention)
	}
	return nil
}

// Acquire implements Store. Waiting is abandoned as soon as ctx is done.
func (s *MemoryStore) Acquire(ctx context.Context, id string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		s.unref(id, l)
		return nil, fmt.Errorf("waiting for session %s: %w", id, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			s.unref(id, l)
		})
	}, nil
}

// unref drops a reference to a key lock and forgets it once nobody holds or waits on it.
func (s *MemoryStore) unref(id string, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 && s.locks[id] == l {
		delete(s.locks, id)
	}
}

// Exists implements Store.
func (s *MemoryStore) Exists(id string) bool {
	return s.lookup(id) != nil
}

// Len implements Store.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

var _ Store = (*MemoryStore)(nil)
