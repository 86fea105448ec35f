package testkit

import (
	"testing"
	"time"
)

func TestMustPanicAndNotPanic(t *testing.T) {
	MustPanic(t, func() { panic("boom") })
	MustNotPanic(t, func() {})
}

func TestMustContainAndEqual(t *testing.T) {
	MustContain(t, `{"level":"info","msg":"dispatched"}`, `"msg":"dispatched"`)
	MustEqual(t, "ids", []int64{1, 2}, []int64{1, 2})
}

func TestClock_AdvanceFiresDueTimersInOrder(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewClock(start)

	var fired []string
	c.AfterFunc(3*time.Second, func() { fired = append(fired, "late") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "early") })

	c.Advance(500 * time.Millisecond)
	if len(fired) != 0 {
		t.Fatalf("nothing should fire before deadline, got %v", fired)
	}
	c.Advance(time.Second)
	MustEqual(t, "fired", fired, []string{"early"})
	if c.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", c.Pending())
	}
	c.Advance(2 * time.Second)
	MustEqual(t, "fired", fired, []string{"early", "late"})
	if got := c.Now(); !got.Equal(start.Add(3500 * time.Millisecond)) {
		t.Fatalf("now = %v", got)
	}
}

func TestClock_SleepRecordsAndAdvances(t *testing.T) {
	c := NewClock(time.Unix(0, 0))
	c.Sleep(2 * time.Second)
	c.Sleep(time.Second)
	MustEqual(t, "slept", c.Slept(), []time.Duration{2 * time.Second, time.Second})
	if c.Now().Unix() != 3 {
		t.Fatalf("now = %v, want unix 3", c.Now())
	}
}
