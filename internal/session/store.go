package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when a trace ID refers to no live
	// session, either because it never existed or because it was evicted.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy is returned when a turn is already executing against
	// the same trace ID. Callers should retry later rather than block.
	ErrSessionBusy = errors.New("session busy")
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Options configures a Store.
type Options struct {
	// MaxSessions is the fixed capacity; beyond it the least-recently
	// active sessions are evicted.
	MaxSessions int
	// IdleTimeout is how long a session may sit without activity before
	// the sweep removes it.
	IdleTimeout time.Duration
	// MaxHistory bounds each session's exploration history length.
	MaxHistory int
	// OnEvict, when set, observes every session leaving the store,
	// whatever the cause: idle sweep, capacity pressure, terminal save,
	// explicit eviction, or cancellation. Called with the store lock
	// held; the callback must not call back into the store.
	OnEvict func(evicted int)
}

// Store holds DebugSession records keyed by trace ID. It is the only
// shared mutable structure in the orchestrator; all mutation goes through
// its locking API. Acquire marks a session in-use so that at most one
// turn executes against a given trace ID at any instant.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*DebugSession
	inUse    map[string]bool
	opts     Options
	clock    Clock
}

// NewStore creates a session store with the given capacity policy.
func NewStore(opts Options, clock Clock) *Store {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Store{
		sessions: make(map[string]*DebugSession),
		inUse:    make(map[string]bool),
		opts:     opts,
		clock:    clock,
	}
}

// Create mints a fresh trace ID, inserts a new active session, and returns
// it already acquired. The sweep runs before insertion so a burst of
// creations never leaves the store transiently over capacity.
func (st *Store) Create(ownerID, errorDescription string, sessionCtx Context) (*DebugSession, func()) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.noteEvicted(st.sweepLocked() + st.evictOverCapacityLocked())

	now := st.clock.Now()
	s := &DebugSession{
		TraceID:          uuid.NewString(),
		OwnerID:          ownerID,
		ErrorDescription: errorDescription,
		Context:          sessionCtx,
		FunctionResults:  make(map[string]map[string]any),
		StartedAt:        now,
		LastActivityAt:   now,
		Status:           StatusActive,
		maxHistory:       st.opts.MaxHistory,
	}
	st.sessions[s.TraceID] = s
	st.inUse[s.TraceID] = true

	return s, st.releaseFunc(s.TraceID)
}

// Acquire fetches an existing session and marks it in-use. A concurrent
// acquire of the same trace ID fails fast with ErrSessionBusy. The
// returned release function must be called when the turn completes.
func (st *Store) Acquire(traceID string) (*DebugSession, func(), error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[traceID]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	if st.inUse[traceID] {
		return nil, nil, ErrSessionBusy
	}
	st.inUse[traceID] = true
	s.Touch(st.clock.Now())
	return s, st.releaseFunc(traceID), nil
}

func (st *Store) releaseFunc(traceID string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			st.mu.Lock()
			delete(st.inUse, traceID)
			st.mu.Unlock()
		})
	}
}

// Peek returns a session without acquiring it. Intended for read-only
// status reporting; callers must not mutate the result.
func (st *Store) Peek(traceID string) (*DebugSession, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[traceID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Save records a session's current state. Sessions that reached a
// terminal status are evicted; their trace ID is never reachable again.
func (st *Store) Save(s *DebugSession) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s.Touch(st.clock.Now())
	if s.Status.Terminal() {
		if _, ok := st.sessions[s.TraceID]; ok {
			delete(st.sessions, s.TraceID)
			st.noteEvicted(1)
		}
		return
	}
	st.sessions[s.TraceID] = s
}

// Evict removes a session regardless of state. Eviction silently drops
// session memory; the next continuation observes ErrSessionNotFound.
func (st *Store) Evict(traceID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[traceID]; ok {
		delete(st.sessions, traceID)
		st.noteEvicted(1)
	}
}

// Cancel honors an explicit cancel intent: the session is marked failed
// and evicted. An in-flight turn sees the cancellation flag at its next
// turn boundary and stops rather than proceeding.
func (st *Store) Cancel(traceID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[traceID]
	if !ok {
		return ErrSessionNotFound
	}
	s.MarkCancelled()
	s.Status = StatusFailed
	delete(st.sessions, traceID)
	st.noteEvicted(1)
	return nil
}

// Sweep removes idle sessions and returns how many were evicted.
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	evicted := st.sweepLocked()
	st.noteEvicted(evicted)
	return evicted
}

func (st *Store) noteEvicted(n int) {
	if st.opts.OnEvict != nil && n > 0 {
		st.opts.OnEvict(n)
	}
}

func (st *Store) sweepLocked() int {
	if st.opts.IdleTimeout <= 0 {
		return 0
	}
	now := st.clock.Now()
	evicted := 0
	for id, s := range st.sessions {
		if st.inUse[id] {
			continue
		}
		if now.Sub(s.LastActivityAt) > st.opts.IdleTimeout {
			delete(st.sessions, id)
			evicted++
		}
	}
	return evicted
}

// evictOverCapacityLocked removes least-recently-active sessions until a
// new session fits within MaxSessions. Returns how many were removed.
func (st *Store) evictOverCapacityLocked() int {
	if st.opts.MaxSessions <= 0 || len(st.sessions) < st.opts.MaxSessions {
		return 0
	}

	type aged struct {
		id   string
		last time.Time
	}
	candidates := make([]aged, 0, len(st.sessions))
	for id, s := range st.sessions {
		if st.inUse[id] {
			continue
		}
		candidates = append(candidates, aged{id: id, last: s.LastActivityAt})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].last.Before(candidates[j].last)
	})

	evicted := 0
	for _, c := range candidates {
		if len(st.sessions) < st.opts.MaxSessions {
			break
		}
		delete(st.sessions, c.id)
		evicted++
	}
	return evicted
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
