package schedule

import (
	"log/slog"
	"time"

	"github.com/grabkit/grabkit/pkg/events"
)

// Option is a functional option for configuring a Scheduler.
type Option func(*schedulerOptions)

type schedulerOptions struct {
	interval time.Duration
	bus      *events.Bus
	logger   *slog.Logger
}

// WithCheckInterval sets how often specs are evaluated.
func WithCheckInterval(d time.Duration) Option {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithConfig applies environment-driven settings.
func WithConfig(cfg Config) Option {
	return func(o *schedulerOptions) {
		if cfg.CheckInterval > 0 {
			o.interval = cfg.CheckInterval
		}
	}
}

// WithEventBus makes the scheduler publish ScheduleFired events; typically
// the queue manager's bus, so observers get one stream.
func WithEventBus(b *events.Bus) Option {
	return func(o *schedulerOptions) {
		if b != nil {
			o.bus = b
		}
	}
}

// WithLogger sets the logger for the scheduler.
func WithLogger(logger *slog.Logger) Option {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
