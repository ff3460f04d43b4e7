package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/bassista/go_refresh/internal/config"
	"github.com/bassista/go_refresh/internal/logger"
	"github.com/bassista/go_refresh/internal/orchestrator"
	"github.com/bassista/go_refresh/internal/reader"
	"github.com/bassista/go_refresh/internal/registry"
	"github.com/bassista/go_refresh/internal/telemetry"
	"github.com/bassista/go_refresh/internal/watcher"
)

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config       *config.Config
	Registry     *registry.Registry
	Orchestrator *orchestrator.Orchestrator
	Reporter     *Reporter
	Metrics      *telemetry.Metrics
	// Gatherer serves /metrics; nil when metrics are disabled.
	Gatherer prometheus.Gatherer

	BaseCtx context.Context
	Cancel  context.CancelFunc
}

// New wires the orchestrator to reg and fs. A nil promReg disables metrics.
func New(cfg *config.Config, reg *registry.Registry, fs afero.Fs, promReg *prometheus.Registry, reporter *Reporter) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if reg == nil {
		return nil, errors.New("registry is nil")
	}
	if fs == nil {
		return nil, errors.New("filesystem is nil")
	}
	if reporter == nil {
		reporter = NewReporter("", "")
	}

	var (
		metrics  *telemetry.Metrics
		gatherer prometheus.Gatherer
	)
	if promReg != nil {
		m, err := telemetry.NewMetrics(promReg)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		metrics, gatherer = m, promReg
	}

	orch, err := orchestrator.New(reg, fs, orchestrator.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:       cfg,
		Registry:     reg,
		Orchestrator: orch,
		Reporter:     reporter,
		Metrics:      metrics,
		Gatherer:     gatherer,
		BaseCtx:      ctx,
		Cancel:       cancel,
	}, nil
}

// OrchestratorConfiguration maps the file configuration onto the
// orchestrator. With trigger false the update interval is zeroed so that
// cycles only run on demand.
func (a *App) OrchestratorConfiguration(trigger bool) (orchestrator.Configuration, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return orchestrator.Configuration{}, err
	}

	oc := orchestrator.Configuration{
		RetryInterval: a.Config.Refresh.RetryInterval,
		BatchSize:     a.Config.Refresh.BatchSize,
		Location:      loc,
		OnReaderError: a.Reporter.ReaderError,
		OnTaskError:   a.Reporter.TaskError,
		OnDataLoaded: func(itemType string, _ any) {
			logger.WithComponent("app").Tracef("batch of %s loaded", itemType)
		},
	}
	if trigger {
		oc.UpdateInterval = a.Config.Refresh.UpdateInterval
	}

	defaults := a.Config.Refresh.Reader
	oc.ReaderDefaults = reader.Options{
		Delimiter:        defaults.DelimiterRune(),
		Comment:          defaults.CommentRune(),
		TrimLeadingSpace: defaults.TrimLeadingSpace,
		LazyQuotes:       defaults.LazyQuotes,
	}

	for _, f := range a.Config.Files {
		oc.Files = append(oc.Files, orchestrator.FileOptions{
			Path:       f.Path,
			Type:       f.Type,
			Repository: f.Repository,
			Reader: reader.Options{
				Delimiter:        f.DelimiterRune(),
				Comment:          f.CommentRune(),
				TrimLeadingSpace: f.TrimLeadingSpace,
				LazyQuotes:       f.LazyQuotes,
				Header:           f.Header,
			},
		})
	}
	for _, t := range a.Config.Tasks {
		oc.Tasks = append(oc.Tasks, orchestrator.TaskOptions{
			Name:          t.Name,
			Type:          t.Type,
			Interval:      t.Interval,
			RetryInterval: t.RetryInterval,
			Disabled:      t.Disabled,
			AffectedTypes: t.AffectedTypes,
			Properties:    t.Properties,
		})
	}
	return oc, nil
}

// Configure applies the configuration to the orchestrator.
func (a *App) Configure(trigger bool) error {
	oc, err := a.OrchestratorConfiguration(trigger)
	if err != nil {
		return err
	}
	return a.Orchestrator.Configure(a.BaseCtx, oc)
}

// Start configures the orchestrator with its trigger, performs the initial
// load when enabled and starts the file watcher.
func (a *App) Start() error {
	if err := a.Configure(true); err != nil {
		return err
	}
	if a.Config.Refresh.LoadOnStart {
		// a failed initial load is not fatal: the next update or reload retries it
		if err := a.Orchestrator.Reload(a.BaseCtx); err != nil {
			logger.WithComponent("app").Errorf("initial load failed: %v", err)
		}
	}
	return a.StartWatchers()
}

// UpdateOnce configures the orchestrator without its trigger and runs one
// cycle, or only the named task when taskName is set. The task error sink
// is detached so that failures come back as a *orchestrator.CycleError.
func (a *App) UpdateOnce(ctx context.Context, taskName string) error {
	oc, err := a.OrchestratorConfiguration(false)
	if err != nil {
		return err
	}
	oc.OnTaskError = nil
	if err := a.Orchestrator.Configure(ctx, oc); err != nil {
		return err
	}
	if a.Config.Refresh.LoadOnStart {
		if err := a.Orchestrator.Reload(ctx); err != nil {
			logger.WithComponent("app").Warnf("initial load failed: %v", err)
		}
	}
	if taskName != "" {
		return a.Orchestrator.RunTask(ctx, taskName)
	}
	return a.Orchestrator.Update(ctx)
}

// StartWatchers reloads an item type whenever one of its source files
// changes on disk. It is a no-op unless refresh.watch_files is set.
func (a *App) StartWatchers() error {
	if !a.Config.Refresh.WatchFiles {
		return nil
	}

	targets := make([]watcher.Target, 0, len(a.Config.Files))
	for _, f := range a.Config.Files {
		itemType := f.Type
		if itemType == "" {
			store, err := a.Registry.Repository(f.Repository)
			if err != nil {
				return err
			}
			itemType = store.ItemType()
		}
		targets = append(targets, watcher.Target{Path: f.Path, Type: itemType})
	}

	w, err := watcher.New(targets, func(types []string) {
		if err := a.Orchestrator.Reload(a.BaseCtx, types...); err != nil {
			logger.WithComponent("app").Errorf("reload of %v after file change failed: %v", types, err)
		}
	})
	if err != nil {
		return err
	}
	if err := w.Start(a.BaseCtx); err != nil {
		return fmt.Errorf("cannot start source file watcher: %w", err)
	}
	return nil
}

func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
	if a.Orchestrator != nil {
		a.Orchestrator.Stop()
	}
	if a.Reporter != nil {
		a.Reporter.Flush()
	}
}
