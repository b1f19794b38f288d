package downloader

// Factory selects candidate strategies for a source URL in precedence
// order. It is stateless after construction and safe for concurrent use.
type Factory struct {
	native   []Strategy
	gallery  Strategy
	video    Strategy
	fallback Strategy
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithNative registers source-specific strategies. They are consulted first,
// in registration order.
func WithNative(strategies ...Strategy) FactoryOption {
	return func(f *Factory) {
		for _, s := range strategies {
			if s != nil {
				f.native = append(f.native, s)
			}
		}
	}
}

// WithGallery sets the generic gallery-extraction strategy (second tier).
func WithGallery(s Strategy) FactoryOption {
	return func(f *Factory) {
		f.gallery = s
	}
}

// WithVideo sets the generic video-extraction strategy (third tier).
func WithVideo(s Strategy) FactoryOption {
	return func(f *Factory) {
		f.video = s
	}
}

// WithFallback sets the plain-file-fetch strategy tried last.
func WithFallback(s Strategy) FactoryOption {
	return func(f *Factory) {
		f.fallback = s
	}
}

// NewFactory creates a factory with the given strategy tiers. A factory
// with no strategies routes nothing, which surfaces as ErrNoStrategy at
// execution time.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Route returns the ordered candidates for url: matching native strategies,
// then gallery, then video, then the fallback. Strategies whose CanHandle
// rejects the URL are excluded, keeping probing cost bounded.
func (f *Factory) Route(url string) []Strategy {
	var candidates []Strategy

	for _, s := range f.native {
		if s.CanHandle(url) {
			candidates = append(candidates, s)
		}
	}

	for _, s := range []Strategy{f.gallery, f.video, f.fallback} {
		if s != nil && s.CanHandle(url) {
			candidates = append(candidates, s)
		}
	}

	return candidates
}
