package downloader

import "context"

// Request carries everything a strategy needs for one attempt.
type Request struct {
	// URL is the source to retrieve.
	URL string

	// Dir is the destination directory for produced artifacts.
	Dir string

	// Options is the requested per-job configuration (format selection,
	// credentials reference, naming template and the like). Opaque to the
	// engine.
	Options map[string]string

	// Progress, when non-nil, is invoked by the strategy as items are
	// discovered and finished. Implementations must tolerate a nil func.
	Progress ProgressFunc
}

// ProgressFunc reports item-level progress during an attempt. index is the
// item's position within the job; total may grow as more items are
// discovered; done is monotonically non-decreasing.
type ProgressFunc func(index int, item Item, done, total int)

// ItemStatus is the terminal state of one produced artifact.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemDone    ItemStatus = "done"
	ItemSkipped ItemStatus = "skipped"
	ItemFailed  ItemStatus = "failed"
)

// Terminal reports whether the item needs no further work.
func (s ItemStatus) Terminal() bool {
	return s == ItemDone || s == ItemSkipped || s == ItemFailed
}

// Item is one discrete artifact discovered while executing a request, e.g.
// a single file within an album.
type Item struct {
	Name   string
	Path   string
	Bytes  int64
	Status ItemStatus
	Error  string
}

// Result is the outcome of a successful attempt. Failed attempts return a
// classified error instead (see pkg/retry).
type Result struct {
	Items []Item
}

// Complete reports whether every known item reached done or skipped. A job
// is not completed until this holds.
func (r *Result) Complete() bool {
	for _, it := range r.Items {
		if it.Status != ItemDone && it.Status != ItemSkipped {
			return false
		}
	}
	return true
}

// Strategy is the single retrieval capability the engine depends on.
//
// Attempt observes ctx at its own I/O boundaries for cooperative
// cancellation; the engine never terminates a transfer forcibly. A strategy
// that discovers mid-attempt that the source is not its kind returns an
// error wrapping ErrUnsupportedSource.
type Strategy interface {
	// Name identifies the strategy in logs and persisted job rows.
	Name() string

	// CanHandle is a cheap, offline applicability check on the URL.
	CanHandle(url string) bool

	// Attempt performs one retrieval attempt.
	Attempt(ctx context.Context, req Request) (*Result, error)
}
