package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grabkit/grabkit/pkg/events"
	"github.com/grabkit/grabkit/pkg/queue"
)

// Enqueuer is the single capability the scheduler needs from the queue;
// *queue.Manager satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, req queue.Request) (uuid.UUID, error)
}

// Scheduler materializes jobs from schedule specs. All specs are evaluated
// in one timer-driven pass on a single goroutine, which is what prevents a
// spec from firing concurrently with itself.
type Scheduler struct {
	store    Store
	enqueuer Enqueuer
	bus      *events.Bus
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	started bool
}

// NewScheduler creates a scheduler over the given spec store and job queue.
func NewScheduler(store Store, enqueuer Enqueuer, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}

	options := &schedulerOptions{
		interval: 30 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		store:    store,
		enqueuer: enqueuer,
		bus:      options.bus,
		logger:   options.logger,
		interval: options.interval,
	}, nil
}

// Create validates and stores a new spec, enabled and armed from now. The
// returned id addresses it in later calls.
func (s *Scheduler) Create(ctx context.Context, spec Spec) (uuid.UUID, error) {
	if err := spec.Validate(); err != nil {
		return uuid.Nil, err
	}

	now := time.Now()
	spec.ID = uuid.New()
	spec.Enabled = true
	spec.Done = false
	spec.NextFireAt = spec.Next(now)
	spec.CreatedAt = now
	spec.UpdatedAt = now

	if err := s.store.Create(ctx, &spec); err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("schedule created",
		slog.String("schedule_id", spec.ID.String()),
		slog.String("rule", spec.String()),
		slog.Time("next_fire_at", spec.NextFireAt))

	return spec.ID, nil
}

// Update replaces a spec's rule and template, re-arming it: Done is cleared
// and the next fire time recomputed from now.
func (s *Scheduler) Update(ctx context.Context, spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	existing, err := s.store.Get(ctx, spec.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	spec.Done = false
	spec.NextFireAt = spec.Next(now)
	spec.LastFiredAt = existing.LastFiredAt
	spec.CreatedAt = existing.CreatedAt
	spec.UpdatedAt = now

	return s.store.Update(ctx, &spec)
}

// Enable re-arms a disabled spec. The next fire time is recomputed from now
// so a long-disabled recurring spec does not fire for the time it sat idle;
// a Once spec keeps its anchor and remains subject to catch-up rules.
func (s *Scheduler) Enable(ctx context.Context, id uuid.UUID) error {
	spec, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	spec.Enabled = true
	spec.NextFireAt = spec.Next(time.Now())
	spec.UpdatedAt = time.Now()

	return s.store.Update(ctx, spec)
}

// Disable makes a spec inert without deleting it.
func (s *Scheduler) Disable(ctx context.Context, id uuid.UUID) error {
	spec, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	spec.Enabled = false
	spec.UpdatedAt = time.Now()

	return s.store.Update(ctx, spec)
}

// Delete removes a spec. Jobs it spawned are unaffected.
func (s *Scheduler) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

// Get returns one spec.
func (s *Scheduler) Get(ctx context.Context, id uuid.UUID) (*Spec, error) {
	return s.store.Get(ctx, id)
}

// List returns all specs, oldest first.
func (s *Scheduler) List(ctx context.Context) ([]*Spec, error) {
	return s.store.List(ctx)
}

// Start blocks evaluating specs until ctx is cancelled. The first pass runs
// immediately, which is where catch-up fires for anchors missed while the
// process was down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrSchedulerStarted
	}
	s.started = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
	}()

	s.logger.Info("scheduler started", slog.Duration("check_interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.evaluate(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.evaluate(ctx, time.Now())
		}
	}
}

// evaluate runs one pass over all specs.
func (s *Scheduler) evaluate(ctx context.Context, now time.Time) {
	specs, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("failed to list schedule specs", slog.String("error", err.Error()))
		return
	}

	for _, spec := range specs {
		if !spec.Enabled || spec.Done {
			continue
		}
		if err := s.evaluateSpec(ctx, spec, now); err != nil {
			s.logger.Error("failed to evaluate schedule",
				slog.String("schedule_id", spec.ID.String()),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Scheduler) evaluateSpec(ctx context.Context, spec *Spec, now time.Time) error {
	if spec.NextFireAt.IsZero() {
		spec.NextFireAt = spec.Next(now)
		spec.UpdatedAt = now
		return s.store.Update(ctx, spec)
	}

	if spec.NextFireAt.After(now) {
		return nil
	}

	// A fire is "missed" when the process was not evaluating around the
	// scheduled moment; anything older than one check period qualifies.
	if spec.SkipMissed && now.Sub(spec.NextFireAt) > s.interval {
		return s.skipMissed(ctx, spec, now)
	}

	return s.fire(ctx, spec, now)
}

func (s *Scheduler) skipMissed(ctx context.Context, spec *Spec, now time.Time) error {
	if spec.Kind == KindOnce {
		// The single occurrence was missed; there is nothing left to fire.
		spec.Done = true
		spec.Enabled = false
	} else {
		spec.NextFireAt = spec.Next(now)
	}
	spec.UpdatedAt = now

	if err := s.store.Update(ctx, spec); err != nil {
		return err
	}

	s.logger.Info("skipped missed occurrence",
		slog.String("schedule_id", spec.ID.String()),
		slog.Time("next_fire_at", spec.NextFireAt))
	return nil
}

func (s *Scheduler) fire(ctx context.Context, spec *Spec, now time.Time) error {
	jobID, err := s.enqueuer.Enqueue(ctx, spec.Request)
	if err != nil {
		// Left due: the next pass retries, keeping firing at-least-once.
		return fmt.Errorf("enqueue from schedule: %w", err)
	}

	spec.LastFiredAt = now
	spec.UpdatedAt = now
	if spec.Kind == KindOnce {
		spec.Done = true
		spec.Enabled = false
	} else {
		spec.NextFireAt = spec.Next(now)
	}

	if err := s.store.Update(ctx, spec); err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:       events.TypeScheduleFired,
			ScheduleID: spec.ID,
			JobID:      jobID,
			At:         time.Now(),
		})
	}

	s.logger.Info("schedule fired",
		slog.String("schedule_id", spec.ID.String()),
		slog.String("job_id", jobID.String()),
		slog.Time("next_fire_at", spec.NextFireAt))
	return nil
}
