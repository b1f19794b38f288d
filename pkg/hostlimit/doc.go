// Package hostlimit bounds concurrent download attempts per remote host and
// paces how often the same host is dispatched to, independently of the global
// worker pool size.
//
// Acquisition is strictly non-blocking: the dispatch loop treats "no permit"
// as "try a job for a different host this cycle", so one saturated host never
// starves the rest of the queue.
//
//	lim := hostlimit.New(hostlimit.Config{MaxPerHost: 2, MinInterval: time.Second})
//	defer lim.Close()
//
//	permit, ok := lim.TryAcquire(host)
//	if !ok {
//	    return // host budget exhausted, pick another job
//	}
//	defer lim.Release(permit)
//
// Budgets are created lazily on first use and are purely in-memory; a process
// restart resets them to zero, trading brief under-utilization for the
// guarantee that a crash can never leave a permit stuck.
package hostlimit
