package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/grabkit/grabkit/pkg/queue"
	"github.com/grabkit/grabkit/pkg/schedule"
)

func validRequest() queue.Request {
	return queue.Request{URL: "https://example.com/feed", Dir: "/downloads"}
}

func TestSpec_Validate(t *testing.T) {
	t.Parallel()

	anchor := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		spec    schedule.Spec
		wantErr bool
	}{
		{"valid once", schedule.Spec{Kind: schedule.KindOnce, At: anchor, Request: validRequest()}, false},
		{"once without anchor", schedule.Spec{Kind: schedule.KindOnce, Request: validRequest()}, true},
		{"valid daily", schedule.Spec{Kind: schedule.KindDaily, Hour: 3, Minute: 30, Request: validRequest()}, false},
		{"daily hour out of range", schedule.Spec{Kind: schedule.KindDaily, Hour: 24, Request: validRequest()}, true},
		{"daily minute out of range", schedule.Spec{Kind: schedule.KindDaily, Minute: 60, Request: validRequest()}, true},
		{"valid weekly", schedule.Spec{Kind: schedule.KindWeekly, Weekday: time.Friday, Hour: 9, Request: validRequest()}, false},
		{"weekly weekday out of range", schedule.Spec{Kind: schedule.KindWeekly, Weekday: 7, Request: validRequest()}, true},
		{"valid interval", schedule.Spec{Kind: schedule.KindInterval, Every: time.Hour, Request: validRequest()}, false},
		{"interval without duration", schedule.Spec{Kind: schedule.KindInterval, Request: validRequest()}, true},
		{"unknown kind", schedule.Spec{Kind: "cron", Request: validRequest()}, true},
		{"missing url", schedule.Spec{Kind: schedule.KindInterval, Every: time.Hour, Request: queue.Request{Dir: "/d"}}, true},
		{"missing dir", schedule.Spec{Kind: schedule.KindInterval, Every: time.Hour, Request: queue.Request{URL: "https://example.com"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.spec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, schedule.ErrInvalidSpec)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSpec_Next(t *testing.T) {
	t.Parallel()

	// A Tuesday, 10:30 UTC.
	from := time.Date(2026, 3, 3, 10, 30, 0, 0, time.UTC)

	t.Run("once returns anchor regardless of from", func(t *testing.T) {
		t.Parallel()

		anchor := from.Add(-time.Hour)
		s := schedule.Spec{Kind: schedule.KindOnce, At: anchor}
		assert.Equal(t, anchor, s.Next(from))
	})

	t.Run("daily later today", func(t *testing.T) {
		t.Parallel()

		s := schedule.Spec{Kind: schedule.KindDaily, Hour: 15, Minute: 0}
		assert.Equal(t, time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC), s.Next(from))
	})

	t.Run("daily rolls to tomorrow", func(t *testing.T) {
		t.Parallel()

		s := schedule.Spec{Kind: schedule.KindDaily, Hour: 9, Minute: 0}
		assert.Equal(t, time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), s.Next(from))
	})

	t.Run("weekly later this week", func(t *testing.T) {
		t.Parallel()

		s := schedule.Spec{Kind: schedule.KindWeekly, Weekday: time.Friday, Hour: 9, Minute: 0}
		assert.Equal(t, time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC), s.Next(from))
	})

	t.Run("weekly wraps to next week", func(t *testing.T) {
		t.Parallel()

		// Monday 9:00 is already past on Tuesday.
		s := schedule.Spec{Kind: schedule.KindWeekly, Weekday: time.Monday, Hour: 9, Minute: 0}
		assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), s.Next(from))
	})

	t.Run("weekly same day earlier time wraps", func(t *testing.T) {
		t.Parallel()

		s := schedule.Spec{Kind: schedule.KindWeekly, Weekday: time.Tuesday, Hour: 9, Minute: 0}
		assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), s.Next(from))
	})

	t.Run("interval adds duration", func(t *testing.T) {
		t.Parallel()

		s := schedule.Spec{Kind: schedule.KindInterval, Every: 45 * time.Minute}
		assert.Equal(t, from.Add(45*time.Minute), s.Next(from))
	})
}
