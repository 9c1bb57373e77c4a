package task

import "errors"

var (
	// ErrUnsupportedPayload is returned when a task carries a payload kind
	// the pipeline cannot execute.
	ErrUnsupportedPayload = errors.New("unsupported task payload")

	// ErrTaskPanicked is recorded as the failure reason when execution panics.
	ErrTaskPanicked = errors.New("task execution panicked")

	// ErrInvalidRetention is returned when cleanup is asked to keep fewer
	// than one day of history.
	ErrInvalidRetention = errors.New("retention must be at least one day")
)
