package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies a lifecycle or progress notification.
type Type string

const (
	TypeJobAdded      Type = "job_added"
	TypeJobStarted    Type = "job_started"
	TypeJobProgress   Type = "job_progress"
	TypeJobRetrying   Type = "job_retrying"
	TypeJobCompleted  Type = "job_completed"
	TypeJobFailed     Type = "job_failed"
	TypeJobCancelled  Type = "job_cancelled"
	TypeScheduleFired Type = "schedule_fired"
)

// Lifecycle reports whether the type must never be dropped by the bus.
// Only progress events are droppable: a newer progress report supersedes an
// older one, while a missed terminal event would leave an observer stuck.
func (t Type) Lifecycle() bool {
	return t != TypeJobProgress
}

// Event is one notification about a job or schedule.
type Event struct {
	Type  Type
	JobID uuid.UUID
	At    time.Time

	// ScheduleID is set on TypeScheduleFired.
	ScheduleID uuid.UUID

	// ItemsDone and ItemsTotal are set on TypeJobProgress.
	ItemsDone  int
	ItemsTotal int

	// Delay is set on TypeJobRetrying: how long until the next attempt,
	// so an observer can display a countdown.
	Delay time.Duration

	// Reason is set on TypeJobFailed: the human-readable cause from the
	// last attempt.
	Reason string
}
