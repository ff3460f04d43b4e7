package task

import (
	"fmt"
	"time"
)

// Status is the outcome of a single task run.
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText lets results render as plain strings in JSON responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is returned by every run. It is a value, never a panic.
type Result struct {
	Task     string        `json:"task"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Err      error         `json:"-"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

func Success() Result {
	return Result{Status: StatusSuccess}
}

func Cancelled(message string) Result {
	return Result{Status: StatusCancelled, Message: message}
}

// Failure builds an Error result. err may be nil when only a message is known.
func Failure(message string, err error) Result {
	return Result{Status: StatusError, Message: message, Err: err}
}

// Describe renders the result for logs and aggregated cycle errors.
func (r Result) Describe() string {
	switch {
	case r.Err != nil && r.Message != "":
		return fmt.Sprintf("task %s: %s: %v", r.Task, r.Message, r.Err)
	case r.Err != nil:
		return fmt.Sprintf("task %s: %v", r.Task, r.Err)
	default:
		return fmt.Sprintf("task %s: %s", r.Task, r.Message)
	}
}

func (r Result) IsSuccess() bool {
	return r.Status == StatusSuccess
}
