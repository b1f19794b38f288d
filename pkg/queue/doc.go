// Package queue implements a persistent download job queue with priority
// dispatch, per-host concurrency limits, retry with backoff, cooperative
// cancellation, and crash recovery.
//
// The Manager is the central orchestrator. It owns a single dispatch loop
// that pulls due jobs from Storage in priority order, claims a global worker
// slot and a per-host permit for each, and executes one retrieval attempt
// per job on its own goroutine. Every state transition is persisted before
// the corresponding event is published, so the durable store is always at
// least as current as any observer.
//
// # Basic Usage
//
//	storage := queue.NewMemoryStorage()
//	factory := downloader.NewFactory(
//		downloader.WithGallery(galleryStrategy),
//		downloader.WithVideo(videoStrategy),
//	)
//
//	manager, err := queue.NewManager(storage, factory,
//		queue.WithMaxWorkers(4),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := manager.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer manager.Stop()
//
//	id, err := manager.Enqueue(ctx, queue.Request{
//		URL: "https://example.com/album/123",
//		Dir: "/downloads",
//	})
//
// # Job Lifecycle
//
// Jobs move through Pending, Queued, Running, Retrying, Paused, and the
// terminal states Completed, Failed, and Cancelled. Transitions outside the
// lifecycle graph are rejected by Storage with ErrInvalidTransition, which
// makes concurrent control operations (cancel racing a claim, for example)
// safe by construction. Running jobs found at startup are requeued by
// RecoverInterrupted before dispatch begins; their attempt counts are
// preserved.
//
// # Events
//
// Subscribe returns a subscription on the manager's event bus. Publication
// never blocks the engine: a slow observer loses progress events first and
// lifecycle events never.
//
// # Degraded Mode
//
// On the first durable-store error the manager stops admitting new Running
// transitions, records the error (see Err), and invokes the optional
// WithPersistenceFailureHandler hook. In-flight attempts drain normally.
package queue
