package queue

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage for tests and throwaway sessions. It
// honors the same transition rules as the durable implementation, so the
// behavioral test suite runs against it.
type MemoryStorage struct {
	mu    sync.RWMutex
	jobs  map[uuid.UUID]*Job
	items map[uuid.UUID]map[int]*JobItem

	// byStatus keeps dispatch scans cheap.
	byStatus map[Status][]uuid.UUID
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs:     make(map[uuid.UUID]*Job),
		items:    make(map[uuid.UUID]map[int]*JobItem),
		byStatus: make(map[Status][]uuid.UUID),
	}
}

func cloneJob(j *Job) *Job {
	c := *j
	if j.Options != nil {
		c.Options = maps.Clone(j.Options)
	}
	return &c
}

func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: nil job", ErrPersistence)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}

	c := cloneJob(job)
	ms.jobs[job.ID] = c
	ms.byStatus[c.Status] = append(ms.byStatus[c.Status], c.ID)

	return nil
}

func (ms *MemoryStorage) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	j, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(j), nil
}

func (ms *MemoryStorage) ListJobs(ctx context.Context, f Filter) ([]*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*Job
	for _, j := range ms.jobs {
		if f.matches(j) {
			out = append(out, cloneJob(j))
		}
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (ms *MemoryStorage) NextDue(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var due []*Job
	for _, id := range ms.byStatus[StatusQueued] {
		due = append(due, ms.jobs[id])
	}
	for _, id := range ms.byStatus[StatusRetrying] {
		if j := ms.jobs[id]; !j.NextRetryAt.After(now) {
			due = append(due, j)
		}
	}

	// Priority-first selection, enqueue order breaking ties within a band.
	sort.SliceStable(due, func(i, k int) bool {
		if due[i].Priority != due[k].Priority {
			return due[i].Priority > due[k].Priority
		}
		return due[i].CreatedAt.Before(due[k].CreatedAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]*Job, len(due))
	for i, j := range due {
		out[i] = cloneJob(j)
	}
	return out, nil
}

// transition applies the status change under the lifecycle graph, keeping
// the byStatus index in sync. Caller holds the write lock.
func (ms *MemoryStorage) transition(id uuid.UUID, to Status, mutate func(*Job)) (*Job, error) {
	j, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	if !j.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}

	ms.byStatus[j.Status] = slices.DeleteFunc(ms.byStatus[j.Status], func(x uuid.UUID) bool {
		return x == id
	})

	j.Status = to
	j.UpdatedAt = time.Now()
	if mutate != nil {
		mutate(j)
	}

	ms.byStatus[to] = append(ms.byStatus[to], id)

	return cloneJob(j), nil
}

func (ms *MemoryStorage) MarkQueued(ctx context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.transition(id, StatusQueued, nil)
}

func (ms *MemoryStorage) MarkRunning(ctx context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.transition(id, StatusRunning, func(j *Job) {
		j.Attempts++
	})
}

func (ms *MemoryStorage) MarkCompleted(ctx context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.transition(id, StatusCompleted, func(j *Job) {
		j.Reason = ""
	})
}

func (ms *MemoryStorage) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.transition(id, StatusFailed, func(j *Job) {
		j.Reason = reason
	})
}

func (ms *MemoryStorage) MarkRetrying(ctx context.Context, id uuid.UUID, reason string, nextAt time.Time) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.transition(id, StatusRetrying, func(j *Job) {
		j.Reason = reason
		j.NextRetryAt = nextAt
	})
}

func (ms *MemoryStorage) MarkCancelled(ctx context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	j, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if j.Status.Terminal() {
		return cloneJob(j), ErrAlreadyTerminal
	}

	return ms.transition(id, StatusCancelled, nil)
}

func (ms *MemoryStorage) MarkPaused(ctx context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	j, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if j.Status != StatusQueued && j.Status != StatusRetrying {
		return nil, fmt.Errorf("%w: job is %s", ErrNotPausable, j.Status)
	}

	return ms.transition(id, StatusPaused, nil)
}

func (ms *MemoryStorage) SetPriority(ctx context.Context, id uuid.UUID, p Priority) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	j, ok := ms.jobs[id]
	if !ok {
		return ErrJobNotFound
	}

	j.Priority = p
	j.UpdatedAt = time.Now()
	return nil
}

func (ms *MemoryStorage) SetStrategy(ctx context.Context, id uuid.UUID, strategy string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	j, ok := ms.jobs[id]
	if !ok {
		return ErrJobNotFound
	}

	j.Strategy = strategy
	j.UpdatedAt = time.Now()
	return nil
}

func (ms *MemoryStorage) SetProgress(ctx context.Context, id uuid.UUID, done, total int) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	j, ok := ms.jobs[id]
	if !ok {
		return ErrJobNotFound
	}

	// Completed-item counts only ever grow.
	if done > j.ItemsDone {
		j.ItemsDone = done
	}
	if total > j.ItemsTotal {
		j.ItemsTotal = total
	}
	j.UpdatedAt = time.Now()
	return nil
}

func (ms *MemoryStorage) UpsertItem(ctx context.Context, item *JobItem) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", ErrPersistence)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.jobs[item.JobID]; !ok {
		return ErrJobNotFound
	}

	byIdx, ok := ms.items[item.JobID]
	if !ok {
		byIdx = make(map[int]*JobItem)
		ms.items[item.JobID] = byIdx
	}

	c := *item
	c.UpdatedAt = time.Now()
	byIdx[item.Index] = &c

	return nil
}

func (ms *MemoryStorage) ListItems(ctx context.Context, jobID uuid.UUID) ([]*JobItem, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	byIdx := ms.items[jobID]
	out := make([]*JobItem, 0, len(byIdx))
	for _, it := range byIdx {
		c := *it
		out = append(out, &c)
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].Index < out[k].Index
	})
	return out, nil
}

func (ms *MemoryStorage) RecoverInterrupted(ctx context.Context) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	running := slices.Clone(ms.byStatus[StatusRunning])
	for _, id := range running {
		// Attempt count is deliberately preserved: a crash is not an
		// extra retry penalty.
		if _, err := ms.transition(id, StatusQueued, nil); err != nil {
			return 0, err
		}
	}

	return len(running), nil
}
