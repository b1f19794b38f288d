package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grabkit/grabkit/pkg/events"
)

func collect(t *testing.T, sub *events.Subscription, n int) []events.Event {
	t.Helper()

	got := make([]events.Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case e, ok := <-sub.Events():
			require.True(t, ok, "events channel closed early")
			got = append(got, e)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(got), n)
		}
	}
	return got
}

func TestBus_PerJobOrdering(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(64)
	defer bus.Close()

	sub := bus.Subscribe(context.Background())
	defer sub.Close()

	jobID := uuid.New()
	sequence := []events.Type{
		events.TypeJobAdded,
		events.TypeJobStarted,
		events.TypeJobProgress,
		events.TypeJobRetrying,
		events.TypeJobStarted,
		events.TypeJobCompleted,
	}
	for _, typ := range sequence {
		bus.Publish(events.Event{Type: typ, JobID: jobID, At: time.Now()})
	}

	got := collect(t, sub, len(sequence))
	for i, e := range got {
		assert.Equal(t, sequence[i], e.Type, "event %d out of order", i)
		assert.Equal(t, jobID, e.JobID)
	}
}

func TestBus_SlowSubscriberDropsOnlyProgress(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(2)
	defer bus.Close()

	// The subscription is never read from until all events are published,
	// simulating a stalled observer.
	sub := bus.Subscribe(context.Background())
	defer sub.Close()

	jobID := uuid.New()
	bus.Publish(events.Event{Type: events.TypeJobStarted, JobID: jobID})
	for i := range 10 {
		bus.Publish(events.Event{Type: events.TypeJobProgress, JobID: jobID, ItemsDone: i, ItemsTotal: 10})
	}
	bus.Publish(events.Event{Type: events.TypeJobCompleted, JobID: jobID})

	// Lifecycle events must both arrive; any surviving progress events sit
	// between them.
	var lifecycle []events.Type
	timeout := time.After(2 * time.Second)
	for len(lifecycle) < 2 {
		select {
		case e, ok := <-sub.Events():
			require.True(t, ok)
			if e.Type.Lifecycle() {
				lifecycle = append(lifecycle, e.Type)
			}
		case <-timeout:
			t.Fatal("lifecycle events not delivered")
		}
	}

	assert.Equal(t, []events.Type{events.TypeJobStarted, events.TypeJobCompleted}, lifecycle)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(1)
	defer bus.Close()

	sub := bus.Subscribe(context.Background())
	defer sub.Close()
	_ = sub // deliberately never drained

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 1000 {
			bus.Publish(events.Event{Type: events.TypeJobProgress, ItemsDone: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a stalled subscriber")
	}
}

func TestBus_Subscribe(t *testing.T) {
	t.Parallel()

	t.Run("context cancellation closes subscription", func(t *testing.T) {
		t.Parallel()

		bus := events.NewBus(8)
		defer bus.Close()

		ctx, cancel := context.WithCancel(context.Background())
		sub := bus.Subscribe(ctx)
		cancel()

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok, "channel should be closed")
		case <-time.After(2 * time.Second):
			t.Fatal("subscription not closed on context cancellation")
		}
	})

	t.Run("subscribe after close returns closed subscription", func(t *testing.T) {
		t.Parallel()

		bus := events.NewBus(8)
		bus.Close()

		sub := bus.Subscribe(context.Background())
		_, ok := <-sub.Events()
		assert.False(t, ok)
	})

	t.Run("multiple subscribers each get every lifecycle event", func(t *testing.T) {
		t.Parallel()

		bus := events.NewBus(8)
		defer bus.Close()

		sub1 := bus.Subscribe(context.Background())
		sub2 := bus.Subscribe(context.Background())
		defer sub1.Close()
		defer sub2.Close()

		jobID := uuid.New()
		bus.Publish(events.Event{Type: events.TypeJobAdded, JobID: jobID})
		bus.Publish(events.Event{Type: events.TypeJobCompleted, JobID: jobID})

		for _, sub := range []*events.Subscription{sub1, sub2} {
			got := collect(t, sub, 2)
			assert.Equal(t, events.TypeJobAdded, got[0].Type)
			assert.Equal(t, events.TypeJobCompleted, got[1].Type)
		}
	})
}
