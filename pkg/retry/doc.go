// Package retry classifies download failures and decides whether and when a
// failed attempt should run again.
//
// Every error reaching the queue manager is classified first:
//
//   - ClassTransient: network timeouts, 5xx, connection resets; retried
//     with exponential backoff up to a configured attempt cap
//   - ClassRateLimited: 429 or a site-specific throttle signal; retried
//     with a longer minimum delay
//   - ClassPermanent: not-found, auth, unsupported content; never retried
//   - ClassCancelled: user-requested abort; not an error at all
//
// Strategies wrap their failures with Transient, RateLimited, or Permanent so
// the class survives error wrapping. Classify falls back to ClassTransient
// for unwrapped errors, which keeps an unknown failure from being declared
// fatal on the first attempt.
//
// Delay computation is exponential backoff doubled per attempt, capped, with
// uniform jitter added on top to avoid synchronized retry storms across many
// jobs targeting the same host:
//
//	p := retry.NewPolicy(
//	    retry.WithMaxAttempts(5),
//	    retry.WithBaseDelay(2*time.Second),
//	)
//	d := p.ShouldRetry(attempt, retry.Classify(err))
//	if d.Retry {
//	    // re-enqueue after d.Delay
//	}
package retry
