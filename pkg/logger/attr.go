package logger

import (
	"log/slog"

	"github.com/google/uuid"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// JobID records a job identifier under the key "job_id".
func JobID(id uuid.UUID) slog.Attr {
	return slog.String("job_id", id.String())
}

// ScheduleID records a schedule identifier under the key "schedule_id".
func ScheduleID(id uuid.UUID) slog.Attr {
	return slog.String("schedule_id", id.String())
}

// Host records the remote host a job targets under the key "host".
// If host is empty, it returns an empty Attr.
func Host(host string) slog.Attr {
	if host == "" {
		return slog.Attr{}
	}
	return slog.String("host", host)
}

// Strategy records the retrieval strategy name under the key "strategy".
// If name is empty, it returns an empty Attr.
func Strategy(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("strategy", name)
}

// Attempt records the attempt ordinal under the key "attempt".
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}
