package queue

import (
	"log/slog"
	"time"

	"github.com/grabkit/grabkit/pkg/events"
	"github.com/grabkit/grabkit/pkg/hostlimit"
	"github.com/grabkit/grabkit/pkg/retry"
)

// Option is a functional option for configuring a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	cfg     Config
	policy  *retry.Policy
	limiter *hostlimit.Limiter
	bus     *events.Bus
	logger  *slog.Logger

	onPersistenceFailure func(error)
}

// WithConfig replaces the default dispatch settings.
func WithConfig(cfg Config) Option {
	return func(o *managerOptions) {
		if cfg.MaxWorkers > 0 {
			o.cfg.MaxWorkers = cfg.MaxWorkers
		}
		if cfg.PollInterval > 0 {
			o.cfg.PollInterval = cfg.PollInterval
		}
		if cfg.ShutdownTimeout > 0 {
			o.cfg.ShutdownTimeout = cfg.ShutdownTimeout
		}
		if cfg.EventBuffer > 0 {
			o.cfg.EventBuffer = cfg.EventBuffer
		}
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p *retry.Policy) Option {
	return func(o *managerOptions) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithHostLimiter replaces the default per-host limiter.
func WithHostLimiter(l *hostlimit.Limiter) Option {
	return func(o *managerOptions) {
		if l != nil {
			o.limiter = l
		}
	}
}

// WithEventBus supplies a shared bus, letting the scheduler and manager
// publish on one stream.
func WithEventBus(b *events.Bus) Option {
	return func(o *managerOptions) {
		if b != nil {
			o.bus = b
		}
	}
}

// WithLogger sets the logger for the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(o *managerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPollInterval sets how often the dispatch loop runs.
func WithPollInterval(d time.Duration) Option {
	return func(o *managerOptions) {
		if d > 0 {
			o.cfg.PollInterval = d
		}
	}
}

// WithMaxWorkers sets the global worker pool size.
func WithMaxWorkers(n int) Option {
	return func(o *managerOptions) {
		if n > 0 {
			o.cfg.MaxWorkers = n
		}
	}
}

// WithPersistenceFailureHandler installs a process-level alert hook invoked
// once when the durable store fails and the manager degrades.
func WithPersistenceFailureHandler(fn func(error)) Option {
	return func(o *managerOptions) {
		o.onPersistenceFailure = fn
	}
}
