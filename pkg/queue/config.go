package queue

import "time"

// Config holds the dispatch settings for the queue manager.
type Config struct {
	// MaxWorkers is the size of the global worker pool.
	MaxWorkers int `env:"QUEUE_MAX_WORKERS" envDefault:"4"`

	// PollInterval is how often the dispatch loop looks for due jobs.
	PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"500ms"`

	// ShutdownTimeout bounds how long Stop waits for in-flight attempts
	// before cancelling them cooperatively.
	ShutdownTimeout time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// EventBuffer is the per-subscriber pending limit on the event bus.
	EventBuffer int `env:"QUEUE_EVENT_BUFFER" envDefault:"128"`
}
