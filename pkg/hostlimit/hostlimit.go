package hostlimit

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Permit represents one granted in-flight slot for a host. It must be
// returned with Release exactly once; double release is a no-op.
type Permit struct {
	host string
	once sync.Once
}

// Host returns the host the permit was issued for.
func (p *Permit) Host() string {
	return p.host
}

// budget tracks the runtime counters for one host. Created lazily on first
// request, reset only by process restart.
type budget struct {
	slots        *semaphore.Weighted
	inflight     int
	lastDispatch time.Time
	lastAccess   time.Time
}

// Limiter is the per-host admission controller.
type Limiter struct {
	mu      sync.Mutex
	budgets map[string]*budget

	maxPerHost  int64
	minInterval time.Duration

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithCleanupInterval sets how often idle host budgets are purged.
// Set to 0 to disable automatic cleanup.
func WithCleanupInterval(interval time.Duration) Option {
	return func(l *Limiter) {
		l.cleanupInterval = interval
	}
}

// New creates a limiter. Panics on an invalid config to fail fast at
// startup; MaxPerHost must be positive and MinInterval non-negative.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.MaxPerHost <= 0 {
		panic(fmt.Errorf("%w: max per host must be positive, got %d", ErrInvalidConfig, cfg.MaxPerHost))
	}
	if cfg.MinInterval < 0 {
		panic(fmt.Errorf("%w: min interval must be non-negative, got %v", ErrInvalidConfig, cfg.MinInterval))
	}

	l := &Limiter{
		budgets:         make(map[string]*budget),
		maxPerHost:      int64(cfg.MaxPerHost),
		minInterval:     cfg.MinInterval,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.cleanupInterval > 0 {
		go l.cleanup()
	}

	return l
}

// TryAcquire attempts to take one in-flight slot for host. It never blocks:
// if the host is at its concurrency cap or was dispatched to more recently
// than MinInterval, it returns (nil, false) immediately.
func (l *Limiter) TryAcquire(host string) (*Permit, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.budgets[host]
	if !ok {
		b = &budget{slots: semaphore.NewWeighted(l.maxPerHost)}
		l.budgets[host] = b
	}
	b.lastAccess = now

	if l.minInterval > 0 && !b.lastDispatch.IsZero() && now.Sub(b.lastDispatch) < l.minInterval {
		return nil, false
	}

	if !b.slots.TryAcquire(1) {
		return nil, false
	}

	b.inflight++
	b.lastDispatch = now

	return &Permit{host: host}, true
}

// Release returns a permit's slot to its host budget. Safe to call more
// than once; only the first call has effect.
func (l *Limiter) Release(p *Permit) {
	if p == nil {
		return
	}

	p.once.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		b, ok := l.budgets[p.host]
		if !ok {
			return
		}

		b.slots.Release(1)
		b.inflight--
		b.lastAccess = time.Now()
	})
}

// InFlight reports the current number of outstanding permits for host.
func (l *Limiter) InFlight(host string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.budgets[host]; ok {
		return b.inflight
	}
	return 0
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		close(l.stopCleanup)
	})
}

// cleanup runs periodically to purge budgets of hosts that have gone quiet.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.removeStale()
		case <-l.stopCleanup:
			return
		}
	}
}

// removeStale drops idle budgets to keep the map from growing without bound
// when many distinct hosts are downloaded from over a long session.
func (l *Limiter) removeStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	staleThreshold := 1 * time.Hour

	for host, b := range l.budgets {
		if b.inflight == 0 && now.Sub(b.lastAccess) > staleThreshold {
			delete(l.budgets, host)
		}
	}
}

// Host extracts the normalized host component of a source URL: lowercased,
// port stripped. Used as the budget key so http://Example.com:8080 and
// https://example.com share one budget.
func Host(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrNoHost
	}

	return host, nil
}
