package task

import (
	"slices"
	"time"
)

// Task is the scheduling state of one configured runner. All fields are
// owned by the orchestrator; runners never touch them.
type Task struct {
	Name          string
	Type          string
	Interval      time.Duration
	RetryInterval time.Duration
	RunAfter      time.Time
	Running       bool
	Disabled      bool
	AffectedTypes []string
	Runner        Runner

	LastResult *Result
	Runs       int
	Failures   int
}

// Due reports whether the task may be dispatched at now.
func (t *Task) Due(now time.Time) bool {
	return !t.Disabled && !t.Running && !now.Before(t.RunAfter)
}

// EffectiveRetry returns the task's retry interval, or fallback when unset.
func (t *Task) EffectiveRetry(fallback time.Duration) time.Duration {
	if t.RetryInterval > 0 {
		return t.RetryInterval
	}
	return fallback
}

// Complete records res and moves RunAfter relative to the cycle start.
func (t *Task) Complete(start time.Time, res Result, fallbackRetry time.Duration) {
	t.Running = false
	t.Runs++
	if res.IsSuccess() {
		t.RunAfter = start.Add(t.Interval)
	} else {
		t.Failures++
		t.RunAfter = start.Add(t.EffectiveRetry(fallbackRetry))
	}
	t.LastResult = &res
}

// Cascades reports whether a successful run should reload data.
func (t *Task) Cascades() bool {
	return len(t.AffectedTypes) > 0
}

// Clone returns a copy safe to hand out of the orchestrator lock.
func (t *Task) Clone() Task {
	c := *t
	c.AffectedTypes = slices.Clone(t.AffectedTypes)
	if t.LastResult != nil {
		res := *t.LastResult
		c.LastResult = &res
	}
	return c
}
