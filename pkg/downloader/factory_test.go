package downloader_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grabkit/grabkit/pkg/downloader"
)

type fakeStrategy struct {
	name    string
	matches string // substring the URL must contain; empty matches all
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) CanHandle(url string) bool {
	return s.matches == "" || strings.Contains(url, s.matches)
}

func (s *fakeStrategy) Attempt(ctx context.Context, req downloader.Request) (*downloader.Result, error) {
	return &downloader.Result{}, nil
}

func names(candidates []downloader.Strategy) []string {
	out := make([]string, len(candidates))
	for i, s := range candidates {
		out[i] = s.Name()
	}
	return out
}

func TestFactory_Route(t *testing.T) {
	t.Parallel()

	factory := downloader.NewFactory(
		downloader.WithNative(
			&fakeStrategy{name: "tube", matches: "tube.example"},
			&fakeStrategy{name: "booru", matches: "booru.example"},
		),
		downloader.WithGallery(&fakeStrategy{name: "gallery", matches: "example"}),
		downloader.WithVideo(&fakeStrategy{name: "video", matches: "example"}),
		downloader.WithFallback(&fakeStrategy{name: "fetch"}),
	)

	t.Run("native match leads, generic tiers follow in order", func(t *testing.T) {
		t.Parallel()

		got := factory.Route("https://tube.example/watch?v=1")
		assert.Equal(t, []string{"tube", "gallery", "video", "fetch"}, names(got))
	})

	t.Run("non-matching native strategies are excluded", func(t *testing.T) {
		t.Parallel()

		got := factory.Route("https://pics.example/album/9")
		assert.Equal(t, []string{"gallery", "video", "fetch"}, names(got))
	})

	t.Run("fallback alone for unknown hosts", func(t *testing.T) {
		t.Parallel()

		got := factory.Route("https://elsewhere.net/file.zip")
		assert.Equal(t, []string{"fetch"}, names(got))
	})

	t.Run("multiple native matches keep registration order", func(t *testing.T) {
		t.Parallel()

		f := downloader.NewFactory(
			downloader.WithNative(
				&fakeStrategy{name: "first"},
				&fakeStrategy{name: "second"},
			),
		)
		got := f.Route("https://any.example/x")
		assert.Equal(t, []string{"first", "second"}, names(got))
	})

	t.Run("empty factory routes nothing", func(t *testing.T) {
		t.Parallel()

		f := downloader.NewFactory()
		assert.Empty(t, f.Route("https://any.example/x"))
	})

	t.Run("nil strategies are ignored", func(t *testing.T) {
		t.Parallel()

		f := downloader.NewFactory(
			downloader.WithNative(nil, &fakeStrategy{name: "only"}),
			downloader.WithGallery(nil),
		)
		got := f.Route("https://any.example/x")
		assert.Equal(t, []string{"only"}, names(got))
	})
}

func TestResult_Complete(t *testing.T) {
	t.Parallel()

	t.Run("empty result is complete", func(t *testing.T) {
		t.Parallel()

		r := &downloader.Result{}
		assert.True(t, r.Complete())
	})

	t.Run("done and skipped items complete", func(t *testing.T) {
		t.Parallel()

		r := &downloader.Result{Items: []downloader.Item{
			{Name: "a.jpg", Status: downloader.ItemDone},
			{Name: "b.jpg", Status: downloader.ItemSkipped},
		}}
		assert.True(t, r.Complete())
	})

	t.Run("failed or pending items do not", func(t *testing.T) {
		t.Parallel()

		r := &downloader.Result{Items: []downloader.Item{
			{Name: "a.jpg", Status: downloader.ItemDone},
			{Name: "b.jpg", Status: downloader.ItemFailed, Error: "checksum mismatch"},
		}}
		assert.False(t, r.Complete())

		r2 := &downloader.Result{Items: []downloader.Item{{Name: "c.jpg", Status: downloader.ItemPending}}}
		assert.False(t, r2.Complete())
	})
}

func TestItemStatus_Terminal(t *testing.T) {
	t.Parallel()

	require.True(t, downloader.ItemDone.Terminal())
	require.True(t, downloader.ItemSkipped.Terminal())
	require.True(t, downloader.ItemFailed.Terminal())
	require.False(t, downloader.ItemPending.Terminal())
}
