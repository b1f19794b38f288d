package hostlimit

import "errors"

var (
	// ErrInvalidConfig is returned when the limiter configuration is invalid.
	ErrInvalidConfig = errors.New("invalid host limiter config")

	// ErrNoHost is returned when a URL has no usable host component.
	ErrNoHost = errors.New("url has no host")
)
