package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/grabkit/grabkit/pkg/downloader"
	"github.com/grabkit/grabkit/pkg/events"
	"github.com/grabkit/grabkit/pkg/hostlimit"
	"github.com/grabkit/grabkit/pkg/retry"
)

// Manager is the central orchestrator: it owns the queue, drives
// concurrency, routes requests through the downloader factory, applies the
// retry policy and the per-host limiter, persists every state transition,
// and emits events.
//
// The dispatch loop is single-threaded decision-making; only strategy
// execution runs concurrently across worker slots.
type Manager struct {
	storage Storage
	factory *downloader.Factory
	policy  *retry.Policy
	limiter *hostlimit.Limiter
	bus     *events.Bus
	logger  *slog.Logger
	cfg     Config

	ownLimiter bool
	ownBus     bool

	sem    chan struct{}
	wg     sync.WaitGroup
	stopMu sync.Mutex // protects stopping state and WaitGroup admission
	mu     sync.Mutex // protects cancels and start/stop lifecycle

	cancels  map[uuid.UUID]context.CancelFunc
	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool

	degraded   atomic.Bool
	persistMu  sync.Mutex
	persistErr error
	onFailure  func(error)
}

// NewManager creates a queue manager over the given durable storage and
// strategy factory.
func NewManager(storage Storage, factory *downloader.Factory, opts ...Option) (*Manager, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if factory == nil {
		return nil, ErrFactoryNil
	}

	options := &managerOptions{
		cfg: Config{
			MaxWorkers:      4,
			PollInterval:    500 * time.Millisecond,
			ShutdownTimeout: 30 * time.Second,
			EventBuffer:     128,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	m := &Manager{
		storage:   storage,
		factory:   factory,
		policy:    options.policy,
		limiter:   options.limiter,
		bus:       options.bus,
		logger:    options.logger,
		cfg:       options.cfg,
		sem:       make(chan struct{}, options.cfg.MaxWorkers),
		cancels:   make(map[uuid.UUID]context.CancelFunc),
		onFailure: options.onPersistenceFailure,
	}

	if m.policy == nil {
		m.policy = retry.NewPolicy()
	}
	if m.limiter == nil {
		m.limiter = hostlimit.New(hostlimit.Config{MaxPerHost: 2})
		m.ownLimiter = true
	}
	if m.bus == nil {
		m.bus = events.NewBus(m.cfg.EventBuffer)
		m.ownBus = true
	}

	return m, nil
}

// Enqueue validates the request, durably creates the job, admits it to the
// queue, and returns its id. Validation failures are surfaced synchronously
// and never persisted.
func (m *Manager) Enqueue(ctx context.Context, req Request) (uuid.UUID, error) {
	if req.URL == "" {
		return uuid.Nil, ErrEmptySourceURL
	}
	if req.Dir == "" {
		return uuid.Nil, ErrEmptyDestination
	}

	host, err := hostlimit.Host(req.URL)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidSourceURL, err)
	}

	priority := req.Priority
	if priority == 0 {
		priority = PriorityDefault
	}
	if !priority.Valid() {
		return uuid.Nil, ErrInvalidPriority
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.New(),
		URL:       req.URL,
		Dir:       req.Dir,
		Host:      host,
		Options:   req.Options,
		Status:    StatusPending,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.storage.CreateJob(ctx, job); err != nil {
		m.persistenceFailure(err)
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}

	// The Pending row is durable at this point. Announcing before the
	// Queued transition keeps JobAdded ahead of any JobStarted a dispatch
	// tick could publish once the job becomes claimable.
	m.publish(events.Event{Type: events.TypeJobAdded, JobID: job.ID})

	if _, err := m.storage.MarkQueued(ctx, job.ID); err != nil {
		m.persistenceFailure(err)
		return uuid.Nil, fmt.Errorf("admit job %s: %w", job.ID, err)
	}

	m.logger.Info("job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("host", job.Host),
		slog.Int("priority", int(job.Priority)))

	return job.ID, nil
}

// Cancel requests cancellation of a job. Running attempts are signalled
// cooperatively and marked Cancelled once they observe the token; any other
// non-terminal job transitions directly. Cancelling a terminal job is a
// no-op, not an error.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := m.storage.GetJob(ctx, id)
	if err != nil {
		return err
	}

	if job.Status.Terminal() {
		return nil
	}

	if job.Status == StatusRunning {
		// The cancel func is registered before the Running transition
		// commits, so a Running job has one unless the attempt already
		// finalized; then the direct transition below takes over.
		m.mu.Lock()
		cancelAttempt := m.cancels[id]
		m.mu.Unlock()

		if cancelAttempt != nil {
			// The executing goroutine observes the token, maps the aborted
			// result to Cancelled, and publishes the event.
			cancelAttempt()
			return nil
		}
	}

	cancelled, err := m.storage.MarkCancelled(ctx, id)
	if errors.Is(err, ErrAlreadyTerminal) {
		return nil
	}
	if err != nil {
		return err
	}

	m.publish(events.Event{Type: events.TypeJobCancelled, JobID: cancelled.ID})
	return nil
}

// Pause parks a Queued or Retrying job; it takes effect before the next
// attempt, never mid-transfer.
func (m *Manager) Pause(ctx context.Context, id uuid.UUID) error {
	_, err := m.storage.MarkPaused(ctx, id)
	return err
}

// Resume returns a Paused job to the queue.
func (m *Manager) Resume(ctx context.Context, id uuid.UUID) error {
	job, err := m.storage.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != StatusPaused {
		return fmt.Errorf("%w: job is %s", ErrNotPaused, job.Status)
	}

	_, err = m.storage.MarkQueued(ctx, id)
	return err
}

// SetPriority reorders the job's eligibility for the next free worker slot.
// A running attempt is unaffected.
func (m *Manager) SetPriority(ctx context.Context, id uuid.UUID, p Priority) error {
	if !p.Valid() {
		return ErrInvalidPriority
	}
	return m.storage.SetPriority(ctx, id, p)
}

// ListJobs returns jobs matching the filter, newest first.
func (m *Manager) ListJobs(ctx context.Context, f Filter) ([]*Job, error) {
	return m.storage.ListJobs(ctx, f)
}

// ListItems returns a job's items ordered by index.
func (m *Manager) ListItems(ctx context.Context, jobID uuid.UUID) ([]*JobItem, error) {
	return m.storage.ListItems(ctx, jobID)
}

// Subscribe registers an observer on the manager's event stream.
func (m *Manager) Subscribe(ctx context.Context) *events.Subscription {
	return m.bus.Subscribe(ctx)
}

// Err reports the persistence failure that degraded the manager, if any.
func (m *Manager) Err() error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	return m.persistErr
}

// Start runs crash recovery and then begins dispatching in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return ErrManagerStarted
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	// Interrupted attempts are requeued before any new work is accepted;
	// partial-byte state cannot be trusted without verification.
	recovered, err := m.storage.RecoverInterrupted(m.ctx)
	if err != nil {
		m.mu.Lock()
		m.cancel = nil
		m.mu.Unlock()
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if recovered > 0 {
		m.logger.Info("requeued interrupted jobs", slog.Int("count", recovered))
	}

	m.stopping.Store(false)

	go m.run()

	m.logger.Info("queue manager started",
		slog.Int("max_workers", cap(m.sem)),
		slog.Duration("poll_interval", m.cfg.PollInterval))

	return nil
}

// Stop drains in-flight attempts, cancelling them cooperatively if they
// outlast the shutdown timeout.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}

	m.stopMu.Lock()
	m.stopping.Store(true)
	m.stopMu.Unlock()

	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	cancel()

	m.logger.Info("queue manager stopping, draining active attempts")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(m.cfg.ShutdownTimeout):
		m.mu.Lock()
		for _, cancelAttempt := range m.cancels {
			cancelAttempt()
		}
		m.mu.Unlock()
		<-done
	}

	if m.ownLimiter {
		m.limiter.Close()
	}
	if m.ownBus {
		m.bus.Close()
	}

	m.logger.Info("queue manager stopped")
	return nil
}

// Run starts the manager and returns a function suitable for errgroup.
func (m *Manager) Run(ctx context.Context) func() error {
	return func() error {
		if err := m.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return m.Stop()
	}
}

// run is the dispatch loop. Decision-making stays on this goroutine so
// queue ordering and state transitions are never raced.
func (m *Manager) run() {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.dispatch()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.dispatch()
		}
	}
}

// dispatch hands due jobs to free worker slots. A job whose host budget is
// exhausted is skipped in favor of jobs for other hosts this cycle.
func (m *Manager) dispatch() {
	if m.degraded.Load() || m.stopping.Load() {
		return
	}

	due, err := m.storage.NextDue(m.ctx, time.Now(), cap(m.sem)*4)
	if err != nil {
		m.persistenceFailure(err)
		return
	}

	for _, job := range due {
		select {
		case m.sem <- struct{}{}:
		default:
			return // all worker slots busy
		}

		permit, ok := m.limiter.TryAcquire(job.Host)
		if !ok {
			<-m.sem
			continue
		}

		claimed, attemptCtx, ok := m.claim(job.ID)
		if !ok {
			m.limiter.Release(permit)
			<-m.sem
			if m.degraded.Load() || m.stopping.Load() {
				return
			}
			continue
		}

		m.publish(events.Event{Type: events.TypeJobStarted, JobID: claimed.ID})

		go m.execute(claimed, attemptCtx, permit)
	}
}

// claim marks the job Running and registers the attempt with the wait
// group. Admission and the stopping flag are checked under one lock so no
// attempt can slip in after Stop has begun waiting. The cancel func enters
// the registry before the Running transition commits, so Cancel observing a
// Running job always finds it.
func (m *Manager) claim(id uuid.UUID) (*Job, context.Context, bool) {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()

	if m.stopping.Load() {
		return nil, nil, false
	}

	// The attempt context is detached from the manager context so a
	// graceful Stop can drain rather than abort; Cancel and the shutdown
	// timeout go through the per-job cancel func.
	attemptCtx, cancelAttempt := context.WithCancel(context.Background())

	m.mu.Lock()
	m.cancels[id] = cancelAttempt
	m.mu.Unlock()

	claimed, err := m.storage.MarkRunning(m.ctx, id)
	if err != nil {
		m.mu.Lock()
		delete(m.cancels, id)
		m.mu.Unlock()
		cancelAttempt()

		// A cancel or pause that won the race is routine; anything else
		// means the store is unreliable.
		if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrJobNotFound) {
			m.persistenceFailure(err)
		}
		return nil, nil, false
	}

	m.wg.Add(1)
	return claimed, attemptCtx, true
}

// execute runs one attempt on a worker slot and finalizes the outcome.
func (m *Manager) execute(job *Job, attemptCtx context.Context, permit *hostlimit.Permit) {
	defer func() {
		m.mu.Lock()
		cancelAttempt := m.cancels[job.ID]
		delete(m.cancels, job.ID)
		m.mu.Unlock()
		if cancelAttempt != nil {
			cancelAttempt()
		}

		m.limiter.Release(permit)
		<-m.sem
		m.wg.Done()
	}()

	log := m.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("host", job.Host),
		slog.Int("attempt", job.Attempts))

	start := time.Now()
	result, strategy, err := m.attempt(attemptCtx, job)
	duration := time.Since(start)

	// Finalization writes run on a background context: attemptCtx is
	// already cancelled when the user aborted the job, and a cancelled
	// attempt must still record its outcome.
	if strategy != "" && job.Strategy != strategy {
		if serr := m.storage.SetStrategy(context.Background(), job.ID, strategy); serr != nil {
			m.persistenceFailure(serr)
		}
	}

	if err == nil && result != nil && !result.Complete() {
		err = retry.Transient(fmt.Errorf("attempt left items unfinished"))
	}

	if err == nil {
		m.finalizeSuccess(job, log, duration)
		return
	}

	m.finalizeFailure(job, err, log, duration)
}

// attempt routes the request and tries candidate strategies in precedence
// order. Only an "unsupported source" failure moves on to the next
// candidate; an affirmative failure is about the content and ends the probe.
func (m *Manager) attempt(ctx context.Context, job *Job) (*downloader.Result, string, error) {
	req := downloader.Request{
		URL:      job.URL,
		Dir:      job.Dir,
		Options:  job.Options,
		Progress: m.progressFunc(job.ID),
	}

	candidates := m.factory.Route(job.URL)
	if len(candidates) == 0 {
		return nil, "", retry.Permanent(downloader.ErrNoStrategy)
	}

	for _, s := range candidates {
		result, err := s.Attempt(ctx, req)
		if err == nil {
			return result, s.Name(), nil
		}
		if errors.Is(err, downloader.ErrUnsupportedSource) {
			continue
		}
		return nil, s.Name(), err
	}

	return nil, "", retry.Permanent(downloader.ErrNoStrategy)
}

// progressFunc persists item state and publishes progress for one job.
// Persistence happens before publication, as with every transition.
func (m *Manager) progressFunc(jobID uuid.UUID) downloader.ProgressFunc {
	return func(index int, item downloader.Item, done, total int) {
		err := m.storage.UpsertItem(context.Background(), &JobItem{
			JobID:  jobID,
			Index:  index,
			Name:   item.Name,
			Path:   item.Path,
			Bytes:  item.Bytes,
			Status: item.Status,
			Error:  item.Error,
		})
		if err != nil {
			m.persistenceFailure(err)
			return
		}

		if err := m.storage.SetProgress(context.Background(), jobID, done, total); err != nil {
			m.persistenceFailure(err)
			return
		}

		m.publish(events.Event{
			Type:       events.TypeJobProgress,
			JobID:      jobID,
			ItemsDone:  done,
			ItemsTotal: total,
		})
	}
}

// transitionRace reports whether a finalization write lost to a concurrent
// transition, such as a user cancel landing after the attempt finished.
// The store is healthy in that case; the other transition already recorded
// the terminal state and published its event.
func transitionRace(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrAlreadyTerminal)
}

func (m *Manager) finalizeSuccess(job *Job, log *slog.Logger, duration time.Duration) {
	if _, err := m.storage.MarkCompleted(context.Background(), job.ID); err != nil {
		if transitionRace(err) {
			log.Info("completion lost to a concurrent transition")
			return
		}
		m.persistenceFailure(err)
		return
	}

	m.publish(events.Event{Type: events.TypeJobCompleted, JobID: job.ID})

	log.Info("job completed", slog.Duration("duration", duration))
}

func (m *Manager) finalizeFailure(job *Job, attemptErr error, log *slog.Logger, duration time.Duration) {
	class := retry.Classify(attemptErr)

	if class == retry.ClassCancelled {
		_, err := m.storage.MarkCancelled(context.Background(), job.ID)
		if err != nil && !transitionRace(err) {
			m.persistenceFailure(err)
			return
		}
		if err == nil {
			m.publish(events.Event{Type: events.TypeJobCancelled, JobID: job.ID})
		}

		log.Info("job cancelled", slog.Duration("duration", duration))
		return
	}

	reason := attemptErr.Error()
	decision := m.policy.ShouldRetry(job.Attempts, class)

	if decision.Retry {
		nextAt := time.Now().Add(decision.Delay)
		if _, err := m.storage.MarkRetrying(context.Background(), job.ID, reason, nextAt); err != nil {
			if transitionRace(err) {
				log.Info("retry lost to a concurrent transition")
				return
			}
			m.persistenceFailure(err)
			return
		}

		m.publish(events.Event{Type: events.TypeJobRetrying, JobID: job.ID, Delay: decision.Delay})

		log.Warn("attempt failed, retrying",
			slog.String("class", class.String()),
			slog.Duration("delay", decision.Delay),
			slog.String("error", reason))
		return
	}

	if _, err := m.storage.MarkFailed(context.Background(), job.ID, reason); err != nil {
		if transitionRace(err) {
			log.Info("failure record lost to a concurrent transition")
			return
		}
		m.persistenceFailure(err)
		return
	}

	m.publish(events.Event{Type: events.TypeJobFailed, JobID: job.ID, Reason: reason})

	log.Error("job failed",
		slog.String("class", class.String()),
		slog.Duration("duration", duration),
		slog.String("error", reason))
}

func (m *Manager) publish(e events.Event) {
	e.At = time.Now()
	m.bus.Publish(e)
}

// persistenceFailure degrades the manager on the first durable-store error:
// no further Running transitions are admitted, and the configured alert
// hook fires once. Already-running attempts drain normally.
func (m *Manager) persistenceFailure(err error) {
	m.persistMu.Lock()
	first := m.persistErr == nil
	if first {
		m.persistErr = fmt.Errorf("%w: %w", ErrPersistence, err)
		m.degraded.Store(true)
	}
	alert := m.persistErr
	m.persistMu.Unlock()

	if first {
		m.logger.Error("persistence store failed, dispatch suspended",
			slog.String("error", err.Error()))
		if m.onFailure != nil {
			m.onFailure(alert)
		}
	}
}
