// Package task defines the update task contract and the built-in task types.
//
// A Runner is invoked by the orchestrator at most once at a time, but
// implementations still guard themselves with a Gate: a cancelled cycle and
// an explicit run can race on the same instance.
package task

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrAlreadyRunning is returned in the Result of a run that found the gate taken.
	ErrAlreadyRunning = errors.New("task is already running")
)

// Runner is the unit of refresh work. Run must not panic and must not
// start I/O once ctx is done.
type Runner interface {
	Run(ctx context.Context) Result
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) Result

func (f RunnerFunc) Run(ctx context.Context) Result {
	return f(ctx)
}

// Factory builds a Runner from a declarative property bag.
type Factory func(props map[string]any) (Runner, error)

// Gate is an exclusive, non-blocking run gate.
type Gate struct {
	sem *semaphore.Weighted
}

func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// TryEnter takes the gate without waiting. It reports false when the gate is held.
func (g *Gate) TryEnter() bool {
	return g.sem.TryAcquire(1)
}

// Leave releases the gate taken by TryEnter.
func (g *Gate) Leave() {
	g.sem.Release(1)
}

// Safe runs fn and converts a panic into an Error result that carries the
// recovered value as its cause.
func Safe(fn func() Result) Result {
	var res Result
	var pc panics.Catcher
	pc.Try(func() {
		res = fn()
	})
	if rec := pc.Recovered(); rec != nil {
		return Failure("unexpected panic", rec.AsError())
	}
	return res
}

var validate = validator.New()

// Decode copies a property bag onto target, which must be a pointer to a
// struct tagged with `mapstructure`. Only scalar, string, slice and map fields are
// expected; strings are converted to numbers, bools and durations. Unknown
// keys are rejected so that a typo in the configuration fails early.
func Decode(props map[string]any, target any) error {
	if target == nil || reflect.TypeOf(target).Kind() != reflect.Pointer {
		return fmt.Errorf("decode target must be a pointer, got %T", target)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(props); err != nil {
		return fmt.Errorf("decode task properties: %w", err)
	}
	return nil
}

// Validate checks the `validate` struct tags of a task definition.
func Validate(target any) error {
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("invalid task properties: %w", err)
	}
	return nil
}

// withTiming stamps the start time and duration on a result.
func withTiming(started time.Time, res Result) Result {
	res.Started = started
	res.Duration = time.Since(started)
	return res
}
