package registry

import (
	"errors"
	"fmt"
)

const (
	KindItem       = "item type"
	KindTask       = "task type"
	KindRepository = "repository"
)

// ErrTypeMismatch means a store or batch does not hold the expected item type.
var ErrTypeMismatch = errors.New("item type mismatch")

// NotFoundError means a name was never registered.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not registered: %q", e.Kind, e.Name)
}

// DuplicateError means the same name was registered twice.
type DuplicateError struct {
	Kind string
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s: %q", e.Kind, e.Name)
}
