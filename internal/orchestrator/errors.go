package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bassista/go_refresh/internal/task"
)

var (
	ErrTriggerActive    = errors.New("update trigger is already active")
	ErrNoUpdateInterval = errors.New("update interval is not configured")
	ErrNotConfigured    = errors.New("orchestrator is not configured")
	ErrDuplicateTask    = errors.New("duplicate task name")
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskDisabled     = errors.New("task is disabled")
)

// CycleError is returned by a cycle that produced Error results while no
// task error sink was configured.
type CycleError struct {
	CycleID string
	Results []task.Result
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Results))
	for _, r := range e.Results {
		parts = append(parts, r.Describe())
	}
	return fmt.Sprintf("update cycle %s: %d failure(s): %s", e.CycleID, len(e.Results), strings.Join(parts, "; "))
}

// Unwrap exposes the causes so errors.Is and errors.As see through the cycle.
func (e *CycleError) Unwrap() []error {
	var errs []error
	for _, r := range e.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
