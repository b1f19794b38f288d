package schedule

import "time"

// Config holds the scheduler settings.
type Config struct {
	// CheckInterval is how often all specs are evaluated in one pass.
	CheckInterval time.Duration `env:"SCHEDULE_CHECK_INTERVAL" envDefault:"30s"`

	// SpecsPath is where the YAML file store keeps specs.
	SpecsPath string `env:"SCHEDULE_SPECS_PATH" envDefault:"schedules.yaml"`
}
