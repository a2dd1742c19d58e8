// Package async is a registry of cancellable asynchronous work.
//
// Timers, event listeners, promises, proxied functions and worker references
// are registered as tasks in one of nine namespaces. Each task can carry a
// group and a label, and every namespace can be cleared, muted or suspended
// in bulk by id, by group (exact or regular expression) or by label.
//
// The design follows a Chromium-style threading model: handlers of timers and
// promises never run on the goroutine that fired them. They hop onto a host
// TaskRunner (a core.SingleThreadTaskRunner unless another runner is
// configured), so they run one at a time and in order.
//
// # Quick Start
//
//	a := async.New()
//	defer a.Close()
//
//	a.SetInterval(func() {
//		fmt.Println("tick")
//	}, time.Second, async.Options{Group: "poll"})
//
//	// Stop delivering ticks without stopping the ticker
//	a.Mute(async.Interval, async.ByGroup(async.Exact("poll")))
//
//	// Cancel every task whose group starts with "poll"
//	a.ClearAll(async.ByGroup(regexp.MustCompile(`^poll`)))
//
// # Key Concepts
//
// Group: a tag used to select tasks. Groups are matched exactly with Exact
// or with any Matcher, such as a *regexp.Regexp.
//
// Label: makes a task unique within its group. Registering a second task with
// the same group and label cancels the first, unless the registration joins.
//
// Join: single-flight. A joining registration returns the id of the live task
// with the same label (or group) instead of starting new work.
//
// Mute and Suspend: a muted task drops handler deliveries, a suspended task
// queues them until it is unsuspended. Neither touches the underlying timer,
// listener or request.
//
// # Errors
//
// Registration problems are returned to the caller. Errors and panics raised
// by handlers are sent to the error sink as *HandlerError (see SetErrorSink).
package async
