package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when a job is misconfigured
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrDuplicateJob is returned when two jobs share a name
	ErrDuplicateJob = errors.New("duplicate job name")

	// ErrRunnerStarted is returned when registering on, or starting, a running runner
	ErrRunnerStarted = errors.New("scheduler already running")
)
