package syncservice

import (
	"errors"
	"fmt"
)

// Error kinds callers match with errors.Is. Storage failures are not wrapped
// in any of these; they surface as *store.Error.
var (
	ErrItemNotFound     = errors.New("item not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "device" or "conflict"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrItemNotFound }

// InvalidOperationError is a precondition failure on an existing entity.
type InvalidOperationError struct {
	Reason string
}

func (e *InvalidOperationError) Error() string { return e.Reason }

func (e *InvalidOperationError) Is(target error) bool { return target == ErrInvalidOperation }

// InvalidArgumentError rejects malformed input before it reaches storage.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

func deviceNotFound(deviceID string) error {
	return &NotFoundError{Kind: "device", ID: deviceID}
}

func conflictNotFound(id fmt.Stringer) error {
	return &NotFoundError{Kind: "conflict", ID: id.String()}
}
