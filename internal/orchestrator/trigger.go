package orchestrator

import (
	"context"
	"time"

	"github.com/bassista/go_refresh/internal/logger"
)

type trigger struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartTrigger starts the recurring trigger on ctx. Each tick waits for
// the next multiple of the update interval counted from midnight in the
// configured location, then runs one cycle before sleeping again.
func (o *Orchestrator) StartTrigger(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.trigger != nil {
		return ErrTriggerActive
	}
	interval := o.cfg.UpdateInterval
	if interval <= 0 {
		return ErrNoUpdateInterval
	}

	tctx, cancel := context.WithCancel(ctx)
	tr := &trigger{cancel: cancel, done: make(chan struct{})}
	o.trigger = tr
	go o.loop(tctx, tr, interval, o.cfg.location())
	return nil
}

// TriggerActive reports whether a recurring trigger is running.
func (o *Orchestrator) TriggerActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.trigger != nil
}

// Stop cancels the recurring trigger and waits for an in-flight cycle to
// return. It is safe to call when no trigger is active.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	tr := o.trigger
	o.trigger = nil
	o.mu.Unlock()

	if tr == nil {
		return
	}
	tr.cancel()
	<-tr.done
}

func (o *Orchestrator) loop(ctx context.Context, tr *trigger, interval time.Duration, loc *time.Location) {
	log := logger.WithComponent("trigger")
	log.Infof("update trigger started, interval %v, timezone %s", interval, loc)

	defer func() {
		o.mu.Lock()
		if o.trigger == tr {
			o.trigger = nil
		}
		o.mu.Unlock()
		tr.cancel()
		close(tr.done)
	}()

	for {
		now := o.now()
		next := nextBoundary(now, interval, loc)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("update trigger stopped")
			return
		case <-timer.C:
		}

		// cycles run inline, so a tick never overlaps the previous one
		if err := o.Update(ctx); err != nil {
			log.Errorf("update cycle failed: %v", err)
		}
	}
}

// nextBoundary returns the first instant strictly after now that is a whole
// multiple of interval past local midnight. Intervals of a day or more are
// aligned on the absolute time axis instead.
func nextBoundary(now time.Time, interval time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	if interval >= 24*time.Hour {
		return now.Truncate(interval).Add(interval)
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	elapsed := local.Sub(midnight)
	next := midnight.Add((elapsed/interval + 1) * interval)

	// the interval may not divide the day evenly
	nextMidnight := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	if next.After(nextMidnight) {
		next = nextMidnight
	}
	return next
}
