package queue

import "errors"

// Common errors
var (
	// ErrStorageNil is returned when a nil storage is provided.
	ErrStorageNil = errors.New("storage cannot be nil")

	// ErrFactoryNil is returned when a nil downloader factory is provided.
	ErrFactoryNil = errors.New("downloader factory cannot be nil")

	// ErrEmptySourceURL is returned when a submission has no source URL.
	ErrEmptySourceURL = errors.New("source url cannot be empty")

	// ErrEmptyDestination is returned when a submission has no destination
	// directory.
	ErrEmptyDestination = errors.New("destination directory cannot be empty")

	// ErrInvalidSourceURL is returned when the source URL cannot be
	// resolved to a host.
	ErrInvalidSourceURL = errors.New("source url is not valid")

	// ErrInvalidPriority is returned when priority is outside valid range.
	ErrInvalidPriority = errors.New("priority must be between 0 and 100")

	// ErrJobNotFound is returned when no job exists for the given id.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when creating a job whose id is taken.
	ErrJobExists = errors.New("job already exists")

	// ErrInvalidTransition is returned when a status change would violate
	// the lifecycle graph.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyTerminal signals that a job has already reached Completed,
	// Failed, or Cancelled. Callers treat it as "nothing to do", never as
	// a failure.
	ErrAlreadyTerminal = errors.New("job is already terminal")

	// ErrNotPausable is returned when pausing a job that is neither Queued
	// nor Retrying. A running attempt is not preemptible mid-transfer.
	ErrNotPausable = errors.New("job can only be paused while queued or retrying")

	// ErrNotPaused is returned when resuming a job that is not paused.
	ErrNotPaused = errors.New("job is not paused")

	// ErrManagerStarted is returned when starting an already-running manager.
	ErrManagerStarted = errors.New("manager already started")

	// ErrManagerNotStarted is returned when stopping a manager that never ran.
	ErrManagerNotStarted = errors.New("manager not started")

	// ErrPersistence marks durable-store failures. The manager stops
	// admitting new running attempts once it sees one, rather than risk
	// losing state.
	ErrPersistence = errors.New("persistence store failure")
)
