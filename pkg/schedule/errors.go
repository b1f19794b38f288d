package schedule

import "errors"

var (
	// ErrStoreNil is returned when a nil spec store is provided.
	ErrStoreNil = errors.New("spec store cannot be nil")

	// ErrEnqueuerNil is returned when a nil enqueuer is provided.
	ErrEnqueuerNil = errors.New("enqueuer cannot be nil")

	// ErrInvalidSpec is returned when a spec fails validation.
	ErrInvalidSpec = errors.New("invalid schedule spec")

	// ErrSpecNotFound is returned when no spec exists for the given id.
	ErrSpecNotFound = errors.New("schedule spec not found")

	// ErrSpecExists is returned when creating a spec whose id is taken.
	ErrSpecExists = errors.New("schedule spec already exists")

	// ErrSchedulerStarted is returned when starting an already-running
	// scheduler.
	ErrSchedulerStarted = errors.New("scheduler already started")
)
