// Package ratelimit throttles bursts per (user, action) and reports exactly one
// "locked" warning and one "unlocked" notice per burst
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Rule admits Limit events per Window
type Rule struct {
	Limit  int
	Window time.Duration
}

// String renders the rule the way ParseRule reads it
func (r Rule) String() string { return strconv.Itoa(r.Limit) + "/" + r.Window.String() }

// ParseRule reads "<limit>/<window>", e.g. "1/5s"
func ParseRule(s string) (Rule, error) {
	l, w, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rule{}, fmt.Errorf("ratelimit: rule %q is not <limit>/<window>", s)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(l))
	if err != nil || limit < 1 {
		return Rule{}, fmt.Errorf("ratelimit: bad limit in %q", s)
	}
	window, err := time.ParseDuration(strings.TrimSpace(w))
	if err != nil || window <= 0 {
		return Rule{}, fmt.Errorf("ratelimit: bad window in %q", s)
	}
	return Rule{Limit: limit, Window: window}, nil
}

// Actions with their own rule; everything else uses DefaultRule
const (
	ActionStart = "start"
	ActionHelp  = "help"
	ActionQuote = "quote"
	ActionEcho  = "echo"
)

// DefaultRule applies to actions without an explicit rule
var DefaultRule = Rule{Limit: 1, Window: 2 * time.Second}

// DefaultRules returns the per-action rules the bot ships with
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		ActionStart: {Limit: 1, Window: 5 * time.Second},
		ActionHelp:  {Limit: 1, Window: 3 * time.Second},
		ActionQuote: {Limit: 1, Window: 5 * time.Second},
		ActionEcho:  {Limit: 1, Window: 5 * time.Second},
	}
}

// Key identifies one throttle window
type Key struct {
	UserID int64
	Action string
}

// Decision is the verdict for one event
type Decision struct {
	Allowed bool
	// Warn is set on the first blocked events of a burst only
	Warn bool
	// Retry is the time left in the current window
	Retry time.Duration
}

type window struct {
	start    time.Time
	rule     Rule
	count    int
	exceeded int
}

func (w *window) end() time.Time { return w.start.Add(w.rule.Window) }

// Limiter is safe for concurrent use
type Limiter struct {
	mu       sync.Mutex
	rules    map[string]Rule
	def      Rule
	windows  map[Key]*window
	onUnlock func(Key)

	now       func() time.Time
	afterFunc func(time.Duration, func())
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces the wall clock and timer; tests pass a fake
func WithClock(now func() time.Time, afterFunc func(time.Duration, func())) Option {
	return func(l *Limiter) { l.now, l.afterFunc = now, afterFunc }
}

// WithDefault replaces DefaultRule
func WithDefault(r Rule) Option { return func(l *Limiter) { l.def = r } }

// New builds a Limiter. onUnlock runs on a timer goroutine once a burst's
// window has passed with no newer blocked event.
func New(rules map[string]Rule, onUnlock func(Key), opts ...Option) *Limiter {
	l := &Limiter{
		rules:    rules,
		def:      DefaultRule,
		windows:  make(map[Key]*window),
		onUnlock: onUnlock,
		now:      time.Now,
		afterFunc: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Rule returns the rule applied to action
func (l *Limiter) Rule(action string) Rule {
	if r, ok := l.rules[action]; ok {
		return r
	}
	return l.def
}

// Allow records one event for (userID, action) and decides whether it passes
func (l *Limiter) Allow(userID int64, action string) Decision {
	k := Key{UserID: userID, Action: action}
	now := l.now()

	l.mu.Lock()
	w, ok := l.windows[k]
	if !ok || !now.Before(w.end()) {
		w = &window{start: now, rule: l.Rule(action), count: 1, exceeded: 1}
		l.windows[k] = w
		l.mu.Unlock()
		return Decision{Allowed: true}
	}
	w.count++
	if w.count <= w.rule.Limit {
		l.mu.Unlock()
		return Decision{Allowed: true}
	}
	w.exceeded++
	seen := w.exceeded
	retry := w.end().Sub(now)
	l.mu.Unlock()

	l.afterFunc(retry, func() { l.checkUnlock(k, w, seen) })
	return Decision{Allowed: false, Warn: seen <= 2, Retry: retry}
}

// checkUnlock fires onUnlock when w is still the live window for k and no
// blocked event arrived after the one that scheduled this check. An admitted
// event that opened a newer window also suppresses the notice: the user is
// already writing again.
func (l *Limiter) checkUnlock(k Key, w *window, seen int) {
	l.mu.Lock()
	live := l.windows[k] == w && w.exceeded == seen
	l.mu.Unlock()
	if live && l.onUnlock != nil {
		l.onUnlock(k)
	}
}

// Sweep drops windows that ended more than one window ago
func (l *Limiter) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, w := range l.windows {
		if !now.Before(w.end().Add(w.rule.Window)) {
			delete(l.windows, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked windows
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Run sweeps every interval until ctx is done
func (l *Limiter) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep()
		}
	}
}
