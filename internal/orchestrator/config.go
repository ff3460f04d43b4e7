package orchestrator

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bassista/go_refresh/internal/loader"
	"github.com/bassista/go_refresh/internal/reader"
	"github.com/bassista/go_refresh/internal/registry"
	"github.com/bassista/go_refresh/internal/repository"
	"github.com/bassista/go_refresh/internal/task"
)

const DefaultRetryInterval = 60 * time.Minute

// FileOptions declares one source file. Type, Repository or both must be set;
// when both are set they must agree.
type FileOptions struct {
	Path       string
	Type       string
	Repository string
	Reader     reader.Options
}

// TaskOptions declares one update task. Name defaults to Type.
type TaskOptions struct {
	Name          string
	Type          string
	Interval      time.Duration
	RetryInterval time.Duration
	Disabled      bool
	AffectedTypes []string
	Properties    map[string]any
}

// TaskErrorFunc receives every Error result of a cycle.
type TaskErrorFunc func(res task.Result)

// Configuration is the full declarative state of an orchestrator. Applying
// it replaces whatever was configured before.
type Configuration struct {
	Files []FileOptions
	Tasks []TaskOptions

	// UpdateInterval is the trigger tick; zero leaves the trigger off.
	UpdateInterval time.Duration
	// RetryInterval applies to failed tasks without their own retry interval.
	RetryInterval time.Duration
	BatchSize     int
	// ReaderDefaults fills the reader options a file leaves unset.
	ReaderDefaults reader.Options
	// Location aligns trigger boundaries; nil means time.Local.
	Location *time.Location

	OnDataLoaded  loader.DataLoadedFunc
	OnReaderError reader.ErrorHandler
	OnTaskError   TaskErrorFunc
}

func (c Configuration) retryInterval() time.Duration {
	if c.RetryInterval > 0 {
		return c.RetryInterval
	}
	return DefaultRetryInterval
}

func (c Configuration) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}

// resolveFiles turns file options into loader descriptors. Files that name
// no repository share one new store per item type.
func resolveFiles(reg *registry.Registry, files []FileOptions, defaults reader.Options) ([]loader.FileDescriptor, error) {
	shared := make(map[string]repository.Store)
	out := make([]loader.FileDescriptor, 0, len(files))

	for i, fo := range files {
		if fo.Path == "" {
			return nil, fmt.Errorf("file %d: path is required", i)
		}

		var (
			it    registry.ItemType
			store repository.Store
			err   error
		)
		switch {
		case fo.Repository != "":
			store, err = reg.Repository(fo.Repository)
			if err != nil {
				return nil, fmt.Errorf("file %s: %w", fo.Path, err)
			}
			if fo.Type != "" && fo.Type != store.ItemType() {
				return nil, fmt.Errorf("file %s: repository %s holds %s, not %s: %w",
					fo.Path, fo.Repository, store.ItemType(), fo.Type, registry.ErrTypeMismatch)
			}
			it, err = reg.ItemType(store.ItemType())
			if err != nil {
				return nil, fmt.Errorf("file %s: %w", fo.Path, err)
			}
		case fo.Type != "":
			it, err = reg.ItemType(fo.Type)
			if err != nil {
				return nil, fmt.Errorf("file %s: %w", fo.Path, err)
			}
			store = shared[fo.Type]
			if store == nil {
				store = it.NewStore()
				shared[fo.Type] = store
			}
		default:
			return nil, fmt.Errorf("file %s: item type or repository is required", fo.Path)
		}

		out = append(out, loader.FileDescriptor{
			Path:    fo.Path,
			Type:    it,
			Store:   store,
			Options: fo.Reader.WithDefaults(defaults),
		})
	}
	return out, nil
}

// resolveTasks builds runners through the registry and checks the
// declarative fields. Every task starts due immediately.
func resolveTasks(reg *registry.Registry, opts []TaskOptions) ([]*task.Task, error) {
	seen := make(map[string]bool, len(opts))
	out := make([]*task.Task, 0, len(opts))

	for i, to := range opts {
		if to.Type == "" {
			return nil, fmt.Errorf("task %d: type is required", i)
		}
		name := to.Name
		if name == "" {
			name = to.Type
		}
		if seen[name] {
			return nil, fmt.Errorf("task %s: %w", name, ErrDuplicateTask)
		}
		seen[name] = true

		if to.Interval < 0 || to.RetryInterval < 0 {
			return nil, fmt.Errorf("task %s: intervals must not be negative", name)
		}
		for _, typ := range to.AffectedTypes {
			if typ == loader.AllTypes {
				continue
			}
			if _, err := reg.ItemType(typ); err != nil {
				return nil, fmt.Errorf("task %s: affected type: %w", name, err)
			}
		}

		runner, err := reg.NewTask(to.Type, to.Properties)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", name, err)
		}

		out = append(out, &task.Task{
			Name:          name,
			Type:          to.Type,
			Interval:      to.Interval,
			RetryInterval: to.RetryInterval,
			Disabled:      to.Disabled,
			AffectedTypes: slices.Clone(to.AffectedTypes),
			Runner:        runner,
		})
	}
	return out, nil
}

func validateGlobals(cfg Configuration) error {
	var errs []error
	if cfg.UpdateInterval < 0 {
		errs = append(errs, errors.New("update interval must not be negative"))
	}
	if cfg.RetryInterval < 0 {
		errs = append(errs, errors.New("retry interval must not be negative"))
	}
	if cfg.BatchSize < 0 {
		errs = append(errs, errors.New("batch size must not be negative"))
	}
	return errors.Join(errs...)
}
