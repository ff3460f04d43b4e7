package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/bassista/go_refresh/internal/logger"
)

const TypeCopy = "copy"

// CopyTask replaces Path with the content of Source. It is used for data
// sets delivered to a local drop directory instead of over HTTP.
type CopyTask struct {
	Source string `mapstructure:"source" validate:"required"`
	Path   string `mapstructure:"path" validate:"required,nefield=Source"`

	fs   afero.Fs
	gate *Gate
}

func NewCopyTask(fs afero.Fs) *CopyTask {
	return &CopyTask{fs: fs, gate: NewGate()}
}

// CopyFactory returns the Factory registered under TypeCopy.
func CopyFactory(fs afero.Fs) Factory {
	return func(props map[string]any) (Runner, error) {
		t := NewCopyTask(fs)
		if err := Decode(props, t); err != nil {
			return nil, err
		}
		if err := Validate(t); err != nil {
			return nil, err
		}
		return t, nil
	}
}

func (t *CopyTask) Run(ctx context.Context) Result {
	started := time.Now()

	if t.Source == "" || t.Path == "" {
		return withTiming(started, Failure("copy task requires source and path", errors.New("missing required property")))
	}
	if ctx.Err() != nil {
		return withTiming(started, Cancelled("cancelled before copy started"))
	}
	if !t.gate.TryEnter() {
		return withTiming(started, Failure("copy skipped", ErrAlreadyRunning))
	}
	defer t.gate.Leave()

	return withTiming(started, Safe(func() Result {
		src, err := t.fs.Open(t.Source)
		if err != nil {
			return Failure(fmt.Sprintf("open %s", t.Source), err)
		}
		defer func() {
			_ = src.Close()
		}()

		n, err := replaceFile(t.fs, t.Path, src)
		if err != nil {
			return Failure(fmt.Sprintf("store %s", t.Path), err)
		}
		logger.WithComponent("copy").Infof("copied %d bytes from %s to %s", n, t.Source, t.Path)
		return Success()
	}))
}
