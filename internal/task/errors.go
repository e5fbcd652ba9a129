package task

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("invalid task")
	ErrNotFound    = errors.New("task not found")
	ErrPersistence = errors.New("persistence failed")
	ErrScheduling  = errors.New("reminder scheduling failed")
)

// ValidationError rejects a draft before any mutation happens.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func validation(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

type NotFoundError struct {
	ID ID
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", ErrNotFound, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(id ID) error {
	return &NotFoundError{ID: id}
}

// PersistenceError wraps a repository failure. The durable state did not
// change.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// SchedulingError is non-fatal: the task mutation that triggered it has
// already succeeded.
type SchedulingError struct {
	ID  ID
	Err error
}

func (e *SchedulingError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s for %s: %v", ErrScheduling, e.ID, e.Err)
}

func (e *SchedulingError) Unwrap() []error { return []error{ErrScheduling, e.Err} }

func Scheduling(id ID, err error) error {
	if err == nil {
		return nil
	}
	return &SchedulingError{ID: id, Err: err}
}
