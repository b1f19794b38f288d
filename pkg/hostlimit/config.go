package hostlimit

import "time"

// Config defines the per-host admission budget.
type Config struct {
	// MaxPerHost is the maximum number of concurrently running attempts
	// against a single host.
	MaxPerHost int `env:"HOSTLIMIT_MAX_PER_HOST" envDefault:"2"`

	// MinInterval is the minimum spacing between dispatches to the same
	// host. Zero disables pacing.
	MinInterval time.Duration `env:"HOSTLIMIT_MIN_INTERVAL" envDefault:"500ms"`
}
