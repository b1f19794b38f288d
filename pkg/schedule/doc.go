// Package schedule turns recurrence rules into queued download jobs.
//
// A Spec is one rule: fire once at an anchor time, daily or weekly at a time
// of day, or every fixed interval. Each fire instantiates the spec's request
// template through the queue manager. Specs live in a Store; FileStore keeps
// them in a YAML document for desktop installations, MemoryStore backs
// tests.
//
// The Scheduler evaluates every spec in a single timer-driven pass, so a
// spec can never fire concurrently with itself. Firing is at-least-once: an
// anchor missed while the process was down fires on the first pass after
// restart, unless the spec sets SkipMissed. A Once spec reports Done after
// its single fire and is automatically disabled.
//
//	store, err := schedule.NewFileStore("schedules.yaml")
//	if err != nil {
//		return err
//	}
//
//	sched, err := schedule.NewScheduler(store, manager,
//		schedule.WithEventBus(bus),
//		schedule.WithCheckInterval(time.Minute),
//	)
//	if err != nil {
//		return err
//	}
//
//	id, err := sched.Create(ctx, schedule.Spec{
//		Name: "nightly backup feed",
//		Kind: schedule.KindDaily,
//		Hour: 3,
//		Request: queue.Request{URL: "https://example.com/feed", Dir: "/downloads"},
//	})
//
//	go sched.Start(ctx)
package schedule
