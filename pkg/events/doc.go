// Package events is the in-process notification channel between the queue
// manager and its observers (a UI, a log, a test harness).
//
// Delivery guarantees:
//
//   - Events for one job are delivered in the order they were published.
//   - Ordering across different jobs is unspecified.
//   - Publish never blocks, no matter how slow a subscriber is.
//   - Progress events are superseded by nature, so under buffer pressure the
//     oldest pending progress event is dropped first. Lifecycle events
//     (Completed, Failed, Cancelled, ...) are never dropped.
//
// Usage:
//
//	bus := events.NewBus(64)
//	defer bus.Close()
//
//	sub := bus.Subscribe(ctx)
//	for ev := range sub.Events() {
//	    // render progress, update a table, assert in a test
//	}
package events
