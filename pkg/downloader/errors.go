package downloader

import "errors"

var (
	// ErrUnsupportedSource signals that a strategy probed the URL and
	// found it is not its kind of source. The orchestrator moves on to the
	// next candidate instead of failing the job.
	ErrUnsupportedSource = errors.New("strategy does not support this source")

	// ErrNoStrategy is returned when routing produced no candidate at all.
	ErrNoStrategy = errors.New("no strategy can handle this source")
)
