// Package downloader defines the retrieval capability contract and routes
// each request to an ordered list of candidate strategies.
//
// Concrete strategies live outside this module (native per-site scrapers, a
// gallery extractor, a video extractor, a plain HTTP fetcher); the engine
// depends only on the Strategy interface.
//
// Routing applies a fixed precedence: native strategies matching the URL
// first, then the gallery extractor, then the video extractor, then the
// plain-fetch fallback. The queue manager tries candidates in order and
// advances past a strategy only when it fails with ErrUnsupportedSource;
// an affirmative failure (auth, not-found) is about the content, not the
// strategy's applicability, so lower tiers are not probed.
package downloader
