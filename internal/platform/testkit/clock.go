package testkit

import (
	"sort"
	"sync"
	"time"
)

// Clock is a manual clock for code that takes now/afterFunc seams.
// Timers fire only from Advance, in deadline order, on the caller's goroutine.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
	slept  []time.Duration
}

type timer struct {
	at time.Time
	fn func()
}

// NewClock starts a clock at the given instant
func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the current fake instant
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers fn to run once the clock has advanced past d
func (c *Clock) AfterFunc(d time.Duration, fn func()) {
	c.mu.Lock()
	c.timers = append(c.timers, &timer{at: c.now.Add(d), fn: fn})
	c.mu.Unlock()
}

// Sleep records the duration and advances the clock by it
func (c *Clock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	c.Advance(d)
}

// Slept returns every duration passed to Sleep so far
func (c *Clock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// Pending reports how many timers have not fired yet
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves the clock forward and fires every timer that became due
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })
	var due []*timer
	keep := c.timers[:0]
	for _, tm := range c.timers {
		if !tm.at.After(c.now) {
			due = append(due, tm)
			continue
		}
		keep = append(keep, tm)
	}
	c.timers = keep
	c.mu.Unlock()

	for _, tm := range due {
		tm.fn()
	}
}
