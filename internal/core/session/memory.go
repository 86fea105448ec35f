package session

import (
	"context"
	"sync"
	"time"

	"vocabot/internal/platform/logger"
)

// MemoryStore keeps sessions in process. Values are deep-copied on the way in
// and out so callers never share scratch maps.
type MemoryStore struct {
	mu      sync.RWMutex
	m       map[int64]*Session
	timeout time.Duration
	now     func() time.Time
}

// NewMemoryStore builds a store whose sweeper drops sessions older than timeout
func NewMemoryStore(timeout time.Duration) *MemoryStore {
	return &MemoryStore{m: make(map[int64]*Session), timeout: timeout, now: time.Now}
}

// Get returns a copy of the stored session or a new Idle one
func (st *MemoryStore) Get(_ context.Context, userID int64) (*Session, error) {
	st.mu.RLock()
	s, ok := st.m[userID]
	st.mu.RUnlock()
	if !ok {
		return New(userID), nil
	}
	return s.Clone(), nil
}

// Put stamps UpdatedAt and stores a copy. Idle sessions are dropped, since a
// missing session reads back as Idle.
func (st *MemoryStore) Put(_ context.Context, s *Session) error {
	s.normalize()
	s.UpdatedAt = st.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	if s.IsIdle() {
		delete(st.m, s.UserID)
		return nil
	}
	st.m[s.UserID] = s.Clone()
	return nil
}

// Delete forgets userID
func (st *MemoryStore) Delete(_ context.Context, userID int64) error {
	st.mu.Lock()
	delete(st.m, userID)
	st.mu.Unlock()
	return nil
}

// Len returns the number of stored (non-Idle) sessions
func (st *MemoryStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.m)
}

// Sweep drops sessions idle beyond the timeout and returns how many went
func (st *MemoryStore) Sweep() int {
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, s := range st.m {
		if s.Expired(now, st.timeout) {
			delete(st.m, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done
func (st *MemoryStore) Run(ctx context.Context, every time.Duration) {
	log := logger.Named("session-sweeper")
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := st.Sweep(); n > 0 {
				log.Info().Int("dropped", n).Dur("timeout", st.timeout).Msg("expired sessions dropped")
			}
		}
	}
}
