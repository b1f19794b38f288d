package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grabkit/grabkit/pkg/queue"
)

// Kind selects the recurrence rule of a spec.
type Kind string

const (
	// KindOnce fires at the anchor time, then the spec is Done.
	KindOnce Kind = "once"

	// KindDaily fires every day at Hour:Minute.
	KindDaily Kind = "daily"

	// KindWeekly fires on Weekday at Hour:Minute.
	KindWeekly Kind = "weekly"

	// KindInterval fires every Every duration.
	KindInterval Kind = "interval"
)

// Spec is a recurrence rule that periodically materializes download jobs
// from its request template. Specs are created by user action, mutated by
// enable/disable/edit, and removed by explicit delete; the jobs they spawn
// live their own lifecycle in the queue.
type Spec struct {
	ID   uuid.UUID `json:"id" yaml:"id"`
	Name string    `json:"name" yaml:"name"`
	Kind Kind      `json:"kind" yaml:"kind"`

	// At is the absolute fire time for Once specs.
	At time.Time `json:"at,omitempty" yaml:"at,omitempty"`

	// Hour and Minute are the time of day for Daily and Weekly specs.
	Hour   int `json:"hour,omitempty" yaml:"hour,omitempty"`
	Minute int `json:"minute,omitempty" yaml:"minute,omitempty"`

	// Weekday applies to Weekly specs.
	Weekday time.Weekday `json:"weekday,omitempty" yaml:"weekday,omitempty"`

	// Every is the period for Interval specs.
	Every time.Duration `json:"every,omitempty" yaml:"every,omitempty"`

	// Request is the job template instantiated on each fire.
	Request queue.Request `json:"request" yaml:"request"`

	// Enabled gates evaluation; a disabled spec is inert no matter how much
	// time has elapsed.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// SkipMissed suppresses the catch-up fire when the process was down
	// across the scheduled moment.
	SkipMissed bool `json:"skip_missed,omitempty" yaml:"skip_missed,omitempty"`

	// Done marks a Once spec that has fired (or skipped its moment).
	Done bool `json:"done,omitempty" yaml:"done,omitempty"`

	NextFireAt  time.Time `json:"next_fire_at,omitempty" yaml:"next_fire_at,omitempty"`
	LastFiredAt time.Time `json:"last_fired_at,omitempty" yaml:"last_fired_at,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Validate checks the spec is internally consistent for its kind.
func (s *Spec) Validate() error {
	switch s.Kind {
	case KindOnce:
		if s.At.IsZero() {
			return fmt.Errorf("%w: once spec needs an anchor time", ErrInvalidSpec)
		}
	case KindDaily, KindWeekly:
		if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
			return fmt.Errorf("%w: time of day %02d:%02d out of range", ErrInvalidSpec, s.Hour, s.Minute)
		}
		if s.Kind == KindWeekly && (s.Weekday < time.Sunday || s.Weekday > time.Saturday) {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidSpec, s.Weekday)
		}
	case KindInterval:
		if s.Every <= 0 {
			return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidSpec, s.Every)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, s.Kind)
	}

	if s.Request.URL == "" {
		return fmt.Errorf("%w: request template needs a source url", ErrInvalidSpec)
	}
	if s.Request.Dir == "" {
		return fmt.Errorf("%w: request template needs a destination directory", ErrInvalidSpec)
	}

	return nil
}

// Next computes the first fire time strictly after from. For Once specs it
// returns the anchor regardless of from; the Done flag, not the clock,
// retires them.
func (s *Spec) Next(from time.Time) time.Time {
	switch s.Kind {
	case KindOnce:
		return s.At

	case KindDaily:
		next := time.Date(from.Year(), from.Month(), from.Day(),
			s.Hour, s.Minute, 0, 0, from.Location())
		if !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	case KindWeekly:
		// Days until the target weekday, modulo handling week wraparound.
		daysUntil := (int(s.Weekday) - int(from.Weekday()) + 7) % 7
		next := from.AddDate(0, 0, daysUntil)
		next = time.Date(next.Year(), next.Month(), next.Day(),
			s.Hour, s.Minute, 0, 0, next.Location())
		if !next.After(from) {
			next = next.AddDate(0, 0, 7)
		}
		return next

	case KindInterval:
		return from.Add(s.Every)

	default:
		return time.Time{}
	}
}

// String describes the recurrence for logs.
func (s *Spec) String() string {
	switch s.Kind {
	case KindOnce:
		return fmt.Sprintf("once at %s", s.At.Format(time.RFC3339))
	case KindDaily:
		return fmt.Sprintf("daily at %02d:%02d", s.Hour, s.Minute)
	case KindWeekly:
		return fmt.Sprintf("weekly on %s at %02d:%02d", s.Weekday, s.Hour, s.Minute)
	case KindInterval:
		return fmt.Sprintf("every %v", s.Every)
	default:
		return string(s.Kind)
	}
}
