// Package orchestrator runs update cycles: it selects the tasks that are due,
// runs them concurrently, reschedules them from the cycle start time and
// reloads the item types a successful task declares as affected.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"

	"github.com/bassista/go_refresh/internal/loader"
	"github.com/bassista/go_refresh/internal/logger"
	"github.com/bassista/go_refresh/internal/registry"
	"github.com/bassista/go_refresh/internal/repository"
	"github.com/bassista/go_refresh/internal/task"
	"github.com/bassista/go_refresh/internal/telemetry"
)

// Orchestrator owns the task table, the loader and the recurring trigger.
type Orchestrator struct {
	reg     *registry.Registry
	fs      afero.Fs
	now     func() time.Time
	metrics *telemetry.Metrics

	// configMu serializes Configure calls end to end.
	configMu sync.Mutex
	// loadMu is shared by every loader so reloads of one store never interleave.
	loadMu sync.Mutex

	mu      sync.Mutex
	cfg     Configuration
	tasks   []*task.Task
	loader  *loader.Loader
	trigger *trigger
}

// Option is a function that configures the orchestrator
type Option func(*Orchestrator)

// WithClock replaces time.Now for cycle start times.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithMetrics records cycles, task runs and loads on m. A nil m disables metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an unconfigured orchestrator. Source files are read from fs.
func New(reg *registry.Registry, fs afero.Fs, opts ...Option) (*Orchestrator, error) {
	if reg == nil {
		return nil, errors.New("registry is nil")
	}
	if fs == nil {
		return nil, errors.New("filesystem is nil")
	}
	o := &Orchestrator{reg: reg, fs: fs, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// cycleState is the part of the configuration a cycle needs after it has
// left the lock.
type cycleState struct {
	loader      *loader.Loader
	retry       time.Duration
	onTaskError TaskErrorFunc
}

func (o *Orchestrator) stateLocked() cycleState {
	return cycleState{
		loader:      o.loader,
		retry:       o.cfg.retryInterval(),
		onTaskError: o.cfg.OnTaskError,
	}
}

// Configure validates cfg and replaces the current state. An active trigger
// is stopped and awaited first; a new one is started on ctx when
// cfg.UpdateInterval is positive. On a validation error the previous state
// is left untouched.
func (o *Orchestrator) Configure(ctx context.Context, cfg Configuration) error {
	o.configMu.Lock()
	defer o.configMu.Unlock()

	if err := validateGlobals(cfg); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	files, err := resolveFiles(o.reg, cfg.Files, cfg.ReaderDefaults)
	if err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	tasks, err := resolveTasks(o.reg, cfg.Tasks)
	if err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	ld, err := loader.New(o.fs, files, cfg.BatchSize,
		loader.WithDataLoaded(cfg.OnDataLoaded),
		loader.WithReaderError(cfg.OnReaderError),
		loader.WithMetrics(o.metrics),
		loader.WithLock(&o.loadMu),
	)
	if err != nil {
		return fmt.Errorf("configure: %w", err)
	}

	o.Stop()

	o.mu.Lock()
	o.cfg = cfg
	o.tasks = tasks
	o.loader = ld
	o.mu.Unlock()

	logger.WithComponent("orchestrator").Infof("configured %d task(s) and %d file(s), update interval %v, retry interval %v",
		len(tasks), len(files), cfg.UpdateInterval, cfg.retryInterval())

	if cfg.UpdateInterval > 0 {
		return o.StartTrigger(ctx)
	}
	return nil
}

// Update runs one cycle over every due task. It returns a *CycleError when
// tasks failed and no task error sink is configured.
func (o *Orchestrator) Update(ctx context.Context) error {
	start := o.now()

	o.mu.Lock()
	var due []*task.Task
	for _, t := range o.tasks {
		if t.Due(start) {
			t.Running = true
			due = append(due, t)
		}
	}
	st := o.stateLocked()
	o.mu.Unlock()

	if len(due) == 0 {
		logger.WithComponent("orchestrator").Debug("no tasks due")
		return nil
	}
	return o.runCycle(ctx, start, due, st)
}

// RunTask runs the named task now, ignoring its RunAfter.
func (o *Orchestrator) RunTask(ctx context.Context, name string) error {
	start := o.now()

	o.mu.Lock()
	var t *task.Task
	for _, candidate := range o.tasks {
		if candidate.Name == name {
			t = candidate
			break
		}
	}
	switch {
	case t == nil:
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	case t.Disabled:
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskDisabled, name)
	case t.Running:
		o.mu.Unlock()
		return fmt.Errorf("%s: %w", name, task.ErrAlreadyRunning)
	}
	t.Running = true
	st := o.stateLocked()
	o.mu.Unlock()

	return o.runCycle(ctx, start, []*task.Task{t}, st)
}

func (o *Orchestrator) runCycle(ctx context.Context, start time.Time, due []*task.Task, st cycleState) error {
	cycleID := uuid.NewString()
	log := logger.WithComponent("orchestrator").WithField("cycle", cycleID)
	log.Infof("update cycle started with %d task(s)", len(due))
	o.metrics.RecordCycle()

	results := make([][]task.Result, len(due))
	var wg conc.WaitGroup
	for i, t := range due {
		wg.Go(func() {
			results[i] = o.runTask(ctx, start, t, st, log)
		})
	}
	wg.Wait()

	var failed []task.Result
	for _, rs := range results {
		for _, r := range rs {
			if r.Status == task.StatusError {
				failed = append(failed, r)
			}
		}
	}
	log.Infof("update cycle finished: %d task(s), %d error(s)", len(due), len(failed))

	if len(failed) == 0 {
		return nil
	}
	if st.onTaskError != nil {
		for _, r := range failed {
			st.onTaskError(r)
		}
		return nil
	}
	return &CycleError{CycleID: cycleID, Results: failed}
}

// runTask runs t with panic isolation, cascades a reload on success and
// reschedules t. It returns the run result followed by the reload failure,
// if any.
func (o *Orchestrator) runTask(ctx context.Context, start time.Time, t *task.Task, st cycleState, log *logrus.Entry) []task.Result {
	began := time.Now()
	res := task.Safe(func() task.Result {
		return t.Runner.Run(ctx)
	})
	res.Task = t.Name
	if res.Started.IsZero() {
		res.Started = start
	}
	if res.Duration == 0 {
		res.Duration = time.Since(began)
	}

	out := []task.Result{res}
	if res.IsSuccess() {
		log.Infof("task %s succeeded in %v", t.Name, res.Duration)
		if t.Cascades() {
			if err := st.loader.Load(ctx, t.AffectedTypes); err != nil {
				log.Errorf("reload after task %s failed: %v", t.Name, err)
				out = append(out, task.Result{
					Task:    t.Name,
					Status:  task.StatusError,
					Message: fmt.Sprintf("reload %v", t.AffectedTypes),
					Err:     err,
					Started: start,
				})
			}
		}
	} else {
		log.Warnf("%s (status %s)", res.Describe(), res.Status)
	}

	o.mu.Lock()
	t.Complete(start, res, st.retry)
	runAfter := t.RunAfter
	o.mu.Unlock()

	o.metrics.RecordTaskRun(t.Name, res.Status.String(), res.Duration)
	log.Debugf("task %s next run after %s", t.Name, runAfter.Format(time.RFC3339))
	return out
}

// Reload loads the given item types, or all of them when none are given.
func (o *Orchestrator) Reload(ctx context.Context, types ...string) error {
	o.mu.Lock()
	ld := o.loader
	o.mu.Unlock()

	if ld == nil {
		return ErrNotConfigured
	}
	return ld.Load(ctx, types)
}

// Tasks returns a snapshot of every configured task in configuration order.
func (o *Orchestrator) Tasks() []task.Task {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]task.Task, 0, len(o.tasks))
	for _, t := range o.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Stores returns the configured repositories keyed by item type name.
func (o *Orchestrator) Stores() map[string]repository.Store {
	o.mu.Lock()
	ld := o.loader
	o.mu.Unlock()

	if ld == nil {
		return map[string]repository.Store{}
	}
	return ld.Stores()
}

// Configuration returns the configuration applied last.
func (o *Orchestrator) Configuration() Configuration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}
