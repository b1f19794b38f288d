package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/grabkit/grabkit/pkg/downloader"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusRetrying  Status = "retrying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether the lifecycle graph permits moving from s to
// to. Running→Queued exists only for crash recovery: an interrupted attempt
// is requeued rather than silently resumed mid-transfer.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusQueued || to == StatusCancelled
	case StatusQueued:
		return to == StatusRunning || to == StatusPaused || to == StatusCancelled
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed || to == StatusRetrying ||
			to == StatusCancelled || to == StatusQueued
	case StatusPaused:
		return to == StatusQueued || to == StatusCancelled
	case StatusRetrying:
		return to == StatusRunning || to == StatusQueued || to == StatusPaused || to == StatusCancelled
	default:
		return false
	}
}

// Priority orders eligibility for the next free worker slot (higher first).
// Valid values run 0 through 100; ties are broken by enqueue order.
type Priority int8

const (
	PriorityLow     Priority = 25
	PriorityNormal  Priority = 50
	PriorityHigh    Priority = 75
	PriorityDefault Priority = PriorityNormal
)

// Valid checks if the priority is within valid range.
func (p Priority) Valid() bool {
	return p >= 0 && p <= 100
}

// Job is one user-level download request tracked through the queue.
// Persisted rows are never deleted on completion; they form the durable
// history log.
type Job struct {
	ID       uuid.UUID         `json:"id" db:"id"`
	URL      string            `json:"url" db:"url"`
	Dir      string            `json:"dir" db:"dir"`
	Host     string            `json:"host" db:"host"`
	Options  map[string]string `json:"options,omitempty" db:"options"`
	Status   Status            `json:"status" db:"status"`
	Priority Priority          `json:"priority" db:"priority"`

	// Strategy is the name of the strategy that produced a usable attempt.
	// Empty until routing succeeds.
	Strategy string `json:"strategy,omitempty" db:"strategy"`

	// Attempts counts started attempts, including the current one.
	Attempts int `json:"attempts" db:"attempts"`

	// NextRetryAt gates dispatch while in Retrying. Zero means eligible
	// immediately.
	NextRetryAt time.Time `json:"next_retry_at,omitempty" db:"next_retry_at"`

	// Reason is the human-readable cause from the last failed attempt.
	Reason string `json:"reason,omitempty" db:"reason"`

	ItemsDone  int `json:"items_done" db:"items_done"`
	ItemsTotal int `json:"items_total" db:"items_total"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// JobItem is one discrete artifact discovered while executing a job, owned
// exclusively by its parent. Items are append-only once a job starts
// producing them.
type JobItem struct {
	JobID     uuid.UUID             `json:"job_id" db:"job_id"`
	Index     int                   `json:"index" db:"idx"`
	Name      string                `json:"name" db:"name"`
	Path      string                `json:"path,omitempty" db:"path"`
	Bytes     int64                 `json:"bytes" db:"bytes"`
	Status    downloader.ItemStatus `json:"status" db:"status"`
	Error     string                `json:"error,omitempty" db:"error"`
	UpdatedAt time.Time             `json:"updated_at" db:"updated_at"`
}

// Request is a submission from the surrounding application or the scheduler.
type Request struct {
	// URL is the source to download. Required.
	URL string `json:"url" yaml:"url"`

	// Dir is the destination directory. Required.
	Dir string `json:"dir" yaml:"dir"`

	// Options is opaque per-job configuration handed to strategies.
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`

	// Priority defaults to PriorityDefault when zero.
	Priority Priority `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Filter narrows ListJobs results. Zero values match everything.
type Filter struct {
	Statuses []Status
	Host     string
	Limit    int
}

func (f Filter) matches(j *Job) bool {
	if f.Host != "" && j.Host != f.Host {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if j.Status == s {
			return true
		}
	}
	return false
}
