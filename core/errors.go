package core

import (
	"errors"
	"fmt"
)

// Common errors used across the package.
var (
	// Store errors
	ErrJobAlreadyExists      = errors.New("job already exists")
	ErrTriggerAlreadyExists  = errors.New("trigger already exists")
	ErrCalendarAlreadyExists = errors.New("calendar already exists")
	ErrJobNotFound           = errors.New("job not found")
	ErrTriggerNotFound       = errors.New("trigger not found")
	ErrCalendarNotFound      = errors.New("calendar not found")
	ErrCalendarInUse         = errors.New("calendar is referenced by triggers")
	ErrJobPersistence        = errors.New("job persistence failure")

	// Identity errors
	ErrInvalidKey = errors.New("invalid key")

	// Trigger validation errors
	ErrInvalidTrigger        = errors.New("invalid trigger")
	ErrInvalidCronExpression = errors.New("invalid cron expression")

	// Scheduler errors
	ErrSchedulerConfig      = errors.New("invalid scheduler configuration")
	ErrSchedulerUnavailable = errors.New("scheduler has been shut down")
	ErrSchedulerTimeout     = errors.New("scheduler stop timed out")

	// Listener errors
	ErrListenerExists   = errors.New("listener with this name already registered")
	ErrListenerNotFound = errors.New("listener not found")
)

// JobExecutionError is returned by user job code to influence what the
// scheduler does with the firing trigger after the run.
type JobExecutionError struct {
	Cause error

	// RefireImmediately requests that the same trigger fire again right
	// away (completion instruction InstructionReExecuteJob).
	RefireImmediately bool

	// UnscheduleFiringTrigger marks the firing trigger COMPLETE.
	UnscheduleFiringTrigger bool

	// UnscheduleAllTriggers marks every trigger of the job COMPLETE.
	UnscheduleAllTriggers bool
}

func (e *JobExecutionError) Error() string {
	if e.Cause == nil {
		return "job execution failed"
	}
	return "job execution failed: " + e.Cause.Error()
}

func (e *JobExecutionError) Unwrap() error { return e.Cause }

// WrapJobError wraps a job-related error with context.
func WrapJobError(op string, key JobKey, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s job %q: %w", op, key, err)
}

// WrapTriggerError wraps a trigger-related error with context.
func WrapTriggerError(op string, key TriggerKey, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s trigger %q: %w", op, key, err)
}
