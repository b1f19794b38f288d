package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grabkit/grabkit/pkg/downloader"
	"github.com/grabkit/grabkit/pkg/queue"
)

func newTestJob(priority queue.Priority) *queue.Job {
	now := time.Now()
	return &queue.Job{
		ID:        uuid.New(),
		URL:       "https://example.com/a",
		Dir:       "/downloads",
		Host:      "example.com",
		Status:    queue.StatusPending,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// seedJob creates a job and walks it to the requested status.
func seedJob(t *testing.T, ms *queue.MemoryStorage, priority queue.Priority, status queue.Status) *queue.Job {
	t.Helper()
	ctx := context.Background()

	job := newTestJob(priority)
	require.NoError(t, ms.CreateJob(ctx, job))

	switch status {
	case queue.StatusPending:
	case queue.StatusQueued:
		_, err := ms.MarkQueued(ctx, job.ID)
		require.NoError(t, err)
	case queue.StatusRunning:
		_, err := ms.MarkQueued(ctx, job.ID)
		require.NoError(t, err)
		_, err = ms.MarkRunning(ctx, job.ID)
		require.NoError(t, err)
	case queue.StatusCompleted:
		_, err := ms.MarkQueued(ctx, job.ID)
		require.NoError(t, err)
		_, err = ms.MarkRunning(ctx, job.ID)
		require.NoError(t, err)
		_, err = ms.MarkCompleted(ctx, job.ID)
		require.NoError(t, err)
	default:
		t.Fatalf("seedJob does not support status %s", status)
	}

	got, err := ms.GetJob(ctx, job.ID)
	require.NoError(t, err)
	return got
}

func TestMemoryStorage_CreateAndGet(t *testing.T) {
	t.Parallel()

	t.Run("round trip returns a copy", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()

		job := newTestJob(queue.PriorityNormal)
		job.Options = map[string]string{"format": "best"}
		require.NoError(t, ms.CreateJob(ctx, job))

		got, err := ms.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.URL, got.URL)
		assert.Equal(t, queue.StatusPending, got.Status)

		// Mutating the returned job must not leak into storage.
		got.Options["format"] = "worst"
		again, err := ms.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, "best", again.Options["format"])
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()

		job := newTestJob(queue.PriorityNormal)
		require.NoError(t, ms.CreateJob(ctx, job))
		assert.ErrorIs(t, ms.CreateJob(ctx, job), queue.ErrJobExists)
	})

	t.Run("missing job", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		_, err := ms.GetJob(context.Background(), uuid.New())
		assert.ErrorIs(t, err, queue.ErrJobNotFound)
	})
}

func TestMemoryStorage_TransitionGraph(t *testing.T) {
	t.Parallel()

	t.Run("pending cannot run directly", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		job := seedJob(t, ms, queue.PriorityNormal, queue.StatusPending)

		_, err := ms.MarkRunning(context.Background(), job.ID)
		assert.ErrorIs(t, err, queue.ErrInvalidTransition)
	})

	t.Run("completed job is frozen", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		job := seedJob(t, ms, queue.PriorityNormal, queue.StatusCompleted)

		_, err := ms.MarkQueued(ctx, job.ID)
		assert.ErrorIs(t, err, queue.ErrInvalidTransition)
		_, err = ms.MarkFailed(ctx, job.ID, "late failure")
		assert.ErrorIs(t, err, queue.ErrInvalidTransition)
	})

	t.Run("cancel on terminal reports already terminal", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		job := seedJob(t, ms, queue.PriorityNormal, queue.StatusCompleted)

		got, err := ms.MarkCancelled(context.Background(), job.ID)
		assert.ErrorIs(t, err, queue.ErrAlreadyTerminal)
		require.NotNil(t, got)
		assert.Equal(t, queue.StatusCompleted, got.Status)
	})

	t.Run("pause only while waiting", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()

		running := seedJob(t, ms, queue.PriorityNormal, queue.StatusRunning)
		_, err := ms.MarkPaused(ctx, running.ID)
		assert.ErrorIs(t, err, queue.ErrNotPausable)

		waiting := seedJob(t, ms, queue.PriorityNormal, queue.StatusQueued)
		paused, err := ms.MarkPaused(ctx, waiting.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusPaused, paused.Status)

		resumed, err := ms.MarkQueued(ctx, waiting.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusQueued, resumed.Status)
	})

	t.Run("running increments attempts", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		job := seedJob(t, ms, queue.PriorityNormal, queue.StatusQueued)

		got, err := ms.MarkRunning(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Attempts)

		_, err = ms.MarkRetrying(ctx, job.ID, "timeout", time.Now())
		require.NoError(t, err)

		got, err = ms.MarkRunning(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Attempts)
	})

	t.Run("completion clears failure reason", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		job := seedJob(t, ms, queue.PriorityNormal, queue.StatusRunning)

		_, err := ms.MarkRetrying(ctx, job.ID, "connection reset", time.Now())
		require.NoError(t, err)
		_, err = ms.MarkRunning(ctx, job.ID)
		require.NoError(t, err)

		got, err := ms.MarkCompleted(ctx, job.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Reason)
	})
}

func TestMemoryStorage_NextDue(t *testing.T) {
	t.Parallel()

	t.Run("priority first, then enqueue order", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()

		low := seedJob(t, ms, queue.PriorityLow, queue.StatusQueued)
		first := seedJob(t, ms, queue.PriorityNormal, queue.StatusQueued)
		second := seedJob(t, ms, queue.PriorityNormal, queue.StatusQueued)
		high := seedJob(t, ms, queue.PriorityHigh, queue.StatusQueued)

		due, err := ms.NextDue(ctx, time.Now(), 0)
		require.NoError(t, err)
		require.Len(t, due, 4)
		assert.Equal(t, high.ID, due[0].ID)
		assert.Equal(t, first.ID, due[1].ID)
		assert.Equal(t, second.ID, due[2].ID)
		assert.Equal(t, low.ID, due[3].ID)
	})

	t.Run("retrying gated by next retry time", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		now := time.Now()

		ready := seedJob(t, ms, queue.PriorityNormal, queue.StatusRunning)
		_, err := ms.MarkRetrying(ctx, ready.ID, "timeout", now.Add(-time.Second))
		require.NoError(t, err)

		notYet := seedJob(t, ms, queue.PriorityNormal, queue.StatusRunning)
		_, err = ms.MarkRetrying(ctx, notYet.ID, "timeout", now.Add(time.Hour))
		require.NoError(t, err)

		due, err := ms.NextDue(ctx, now, 0)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, ready.ID, due[0].ID)
	})

	t.Run("excludes paused and terminal", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()

		paused := seedJob(t, ms, queue.PriorityNormal, queue.StatusQueued)
		_, err := ms.MarkPaused(ctx, paused.ID)
		require.NoError(t, err)

		seedJob(t, ms, queue.PriorityNormal, queue.StatusCompleted)
		seedJob(t, ms, queue.PriorityNormal, queue.StatusPending)

		due, err := ms.NextDue(ctx, time.Now(), 0)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("limit applies after ordering", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		seedJob(t, ms, queue.PriorityLow, queue.StatusQueued)
		high := seedJob(t, ms, queue.PriorityHigh, queue.StatusQueued)

		due, err := ms.NextDue(context.Background(), time.Now(), 1)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, high.ID, due[0].ID)
	})
}

func TestMemoryStorage_RecoverInterrupted(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	ctx := context.Background()

	interrupted := seedJob(t, ms, queue.PriorityNormal, queue.StatusRunning)
	queued := seedJob(t, ms, queue.PriorityNormal, queue.StatusQueued)

	n, err := ms.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := ms.GetJob(ctx, interrupted.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusQueued, got.Status)
	// A crash is not a retry; the attempt count stands.
	assert.Equal(t, 1, got.Attempts)

	untouched, err := ms.GetJob(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusQueued, untouched.Status)
	assert.Equal(t, 0, untouched.Attempts)
}

func TestMemoryStorage_Progress(t *testing.T) {
	t.Parallel()

	t.Run("counters never shrink", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		job := seedJob(t, ms, queue.PriorityNormal, queue.StatusRunning)

		require.NoError(t, ms.SetProgress(ctx, job.ID, 3, 10))
		require.NoError(t, ms.SetProgress(ctx, job.ID, 2, 8))

		got, err := ms.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.ItemsDone)
		assert.Equal(t, 10, got.ItemsTotal)
	})

	t.Run("items upsert by index", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		job := seedJob(t, ms, queue.PriorityNormal, queue.StatusRunning)

		require.NoError(t, ms.UpsertItem(ctx, &queue.JobItem{
			JobID: job.ID, Index: 1, Name: "b.jpg", Status: downloader.ItemPending,
		}))
		require.NoError(t, ms.UpsertItem(ctx, &queue.JobItem{
			JobID: job.ID, Index: 0, Name: "a.jpg", Status: downloader.ItemDone, Bytes: 1024,
		}))
		require.NoError(t, ms.UpsertItem(ctx, &queue.JobItem{
			JobID: job.ID, Index: 1, Name: "b.jpg", Status: downloader.ItemDone, Bytes: 2048,
		}))

		items, err := ms.ListItems(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "a.jpg", items[0].Name)
		assert.Equal(t, downloader.ItemDone, items[1].Status)
		assert.Equal(t, int64(2048), items[1].Bytes)
	})

	t.Run("item for unknown job rejected", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		err := ms.UpsertItem(context.Background(), &queue.JobItem{JobID: uuid.New()})
		assert.ErrorIs(t, err, queue.ErrJobNotFound)
	})
}

func TestMemoryStorage_ListJobs(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	ctx := context.Background()

	seedJob(t, ms, queue.PriorityNormal, queue.StatusQueued)
	done := seedJob(t, ms, queue.PriorityNormal, queue.StatusCompleted)

	other := newTestJob(queue.PriorityNormal)
	other.Host = "other.example"
	require.NoError(t, ms.CreateJob(ctx, other))

	t.Run("filter by status", func(t *testing.T) {
		out, err := ms.ListJobs(ctx, queue.Filter{Statuses: []queue.Status{queue.StatusCompleted}})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, done.ID, out[0].ID)
	})

	t.Run("filter by host", func(t *testing.T) {
		out, err := ms.ListJobs(ctx, queue.Filter{Host: "example.com"})
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("limit", func(t *testing.T) {
		out, err := ms.ListJobs(ctx, queue.Filter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, out, 1)
	})

	t.Run("empty filter matches all", func(t *testing.T) {
		out, err := ms.ListJobs(ctx, queue.Filter{})
		require.NoError(t, err)
		assert.Len(t, out, 3)
	})
}
