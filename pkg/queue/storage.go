package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage is the durable record of queue state. Implementations must apply
// each status transition atomically (the transition and its persistence both
// happen or neither does) and must reject transitions the lifecycle graph
// forbids with ErrInvalidTransition.
//
// The manager persists every transition before publishing the matching
// event, so observers never see an event for a state that is not durable.
type Storage interface {
	// CreateJob persists a new job in Pending.
	CreateJob(ctx context.Context, job *Job) error

	// GetJob returns the job by id, or ErrJobNotFound.
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)

	// ListJobs returns jobs matching the filter, newest first.
	ListJobs(ctx context.Context, f Filter) ([]*Job, error)

	// NextDue returns up to limit dispatchable jobs: Queued, or Retrying
	// with NextRetryAt due, ordered by priority (higher first) then by
	// enqueue time (FIFO within a priority band).
	NextDue(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	// MarkQueued admits a Pending job, or returns a Paused or due Retrying
	// job to the dispatchable pool.
	MarkQueued(ctx context.Context, id uuid.UUID) (*Job, error)

	// MarkRunning claims a job for an attempt, incrementing its attempt
	// count. Valid from Queued or due Retrying.
	MarkRunning(ctx context.Context, id uuid.UUID) (*Job, error)

	// MarkCompleted records a successful attempt. Terminal.
	MarkCompleted(ctx context.Context, id uuid.UUID) (*Job, error)

	// MarkFailed records a fatal failure with a human-readable reason.
	// Terminal.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*Job, error)

	// MarkRetrying parks a Running job until nextAt, recording the reason
	// for the failed attempt.
	MarkRetrying(ctx context.Context, id uuid.UUID, reason string, nextAt time.Time) (*Job, error)

	// MarkCancelled moves a non-terminal job to Cancelled. Returns
	// ErrAlreadyTerminal when there is nothing to do.
	MarkCancelled(ctx context.Context, id uuid.UUID) (*Job, error)

	// MarkPaused parks a Queued or Retrying job. Returns ErrNotPausable
	// otherwise.
	MarkPaused(ctx context.Context, id uuid.UUID) (*Job, error)

	// SetPriority reorders eligibility for the next free worker slot. It
	// does not affect a running job's current attempt.
	SetPriority(ctx context.Context, id uuid.UUID, p Priority) error

	// SetStrategy records which strategy produced a usable attempt.
	SetStrategy(ctx context.Context, id uuid.UUID, strategy string) error

	// SetProgress updates the job-level item counters.
	SetProgress(ctx context.Context, id uuid.UUID, done, total int) error

	// UpsertItem appends or updates one item row keyed by (job id, index).
	UpsertItem(ctx context.Context, item *JobItem) error

	// ListItems returns a job's items ordered by index.
	ListItems(ctx context.Context, jobID uuid.UUID) ([]*JobItem, error)

	// RecoverInterrupted reclassifies every Running job to Queued with its
	// attempt count preserved. Run once at startup before accepting new
	// work: an interrupted attempt is a transparent failure, never resumed
	// mid-transfer. Returns the number of jobs recovered.
	RecoverInterrupted(ctx context.Context) (int, error)
}
