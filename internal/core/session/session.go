// Package session keeps one conversation record per user: the current state
// and a scratch map of JSON-compatible values
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// State names a leaf state of the conversation machine
type State string

// Idle is the base state; an Idle session always has an empty scratch
const Idle State = ""

// KeyViewMsg holds the message id of the live paginated view, whose buttons
// go stale once the session resets
const KeyViewMsg = "view_msg"

// DefaultIdleTimeout is how long an unfinished flow survives without input
const DefaultIdleTimeout = 24 * time.Hour

// Session is one user's conversation record
type Session struct {
	UserID    int64          `json:"user_id"`
	State     State          `json:"state"`
	Scratch   map[string]any `json:"scratch,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New returns an Idle session for userID
func New(userID int64) *Session { return &Session{UserID: userID} }

// IsIdle reports whether s is in the base state
func (s *Session) IsIdle() bool { return s.State == Idle }

// Reset returns s to Idle and drops the scratch
func (s *Session) Reset() {
	s.State = Idle
	s.Scratch = nil
}

// Enter moves s to state, keeping the scratch. Entering Idle resets.
func (s *Session) Enter(state State) {
	if state == Idle {
		s.Reset()
		return
	}
	s.State = state
}

// Expired reports whether s sits in a flow longer than timeout
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return !s.IsIdle() && timeout > 0 && !s.UpdatedAt.IsZero() && now.Sub(s.UpdatedAt) >= timeout
}

// Set stores v under key in its JSON form, so what Get reads back is the same
// whichever Store the session went through
func (s *Session) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: set %q: %w", key, err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("session: set %q: %w", key, err)
	}
	if s.Scratch == nil {
		s.Scratch = make(map[string]any)
	}
	s.Scratch[key] = generic
	return nil
}

// Get decodes the value under key into dst; ok is false when key is absent
func (s *Session) Get(key string, dst any) (bool, error) {
	v, ok := s.Scratch[key]
	if !ok {
		return false, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return true, fmt.Errorf("session: get %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("session: get %q: %w", key, err)
	}
	return true, nil
}

// Has reports whether key is set
func (s *Session) Has(key string) bool {
	_, ok := s.Scratch[key]
	return ok
}

// Del removes key
func (s *Session) Del(key string) { delete(s.Scratch, key) }

// String returns the string under key, or ""
func (s *Session) String(key string) string {
	v, _ := s.Scratch[key].(string)
	return v
}

// Int returns the integer under key, or 0. Numbers decode as float64.
func (s *Session) Int(key string) int64 {
	switch v := s.Scratch[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Clone deep-copies s
func (s *Session) Clone() *Session {
	c := *s
	c.Scratch = cloneMap(s.Scratch)
	return &c
}

// normalize enforces the Idle invariant before a session is stored
func (s *Session) normalize() {
	if s.IsIdle() {
		s.Scratch = nil
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	default:
		return x
	}
}

// Store persists sessions. Get never returns nil: a missing session is a new Idle one.
type Store interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}
