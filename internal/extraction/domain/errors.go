package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job does not exist in the store.
	ErrJobNotFound = errors.New("job not found")
)

// ValidationError reports malformed or out-of-range input on job creation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// InvalidStateError reports a control command issued against a job whose
// current status does not permit it. The command has no side effects.
type InvalidStateError struct {
	JobID   string
	Command string
	Status  Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s job %s in status %q", e.Command, e.JobID, e.Status)
}

// TransientItemError marks a failure scoped to a single item. The worker
// retries the item a bounded number of times, then counts the failure and
// moves on.
type TransientItemError struct {
	Err error
}

func (e *TransientItemError) Error() string {
	return fmt.Sprintf("transient item error: %v", e.Err)
}

func (e *TransientItemError) Unwrap() error {
	return e.Err
}

// NewTransientItemError wraps an error as recoverable for the current item.
func NewTransientItemError(err error) error {
	return &TransientItemError{Err: err}
}

// FatalJobError marks a failure the job cannot make progress past, such as
// an unreachable source. The worker fails the whole job.
type FatalJobError struct {
	Err error
}

func (e *FatalJobError) Error() string {
	return fmt.Sprintf("fatal job error: %v", e.Err)
}

func (e *FatalJobError) Unwrap() error {
	return e.Err
}

// NewFatalJobError wraps an error as unrecoverable for the whole job.
func NewFatalJobError(err error) error {
	return &FatalJobError{Err: err}
}
