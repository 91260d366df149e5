// Package core implements the coordinator that owns the plugin registry
// and drives envelope dispatch.
//
// # Dispatch
//
// Publish appends an envelope to a FIFO queue. If no drain loop is active
// the coordinator starts one: it pops envelopes from the head and hands
// each to every Enabled plugin in registration order, until the queue is
// empty, then notifies the host. Envelopes published from inside a handler
// are only queued; the outer loop delivers them after the current envelope
// has reached every plugin. The resulting guarantees are:
//
//   - global FIFO order across all publishers, including nested ones
//   - no recursion proportional to queue depth
//   - a plugin never observes its own nested envelope before the current
//     one has finished delivery
//
// Handler errors and panics do not stop the loop. They are logged and
// turned into designer.core.handler_failed envelopes so that failures are
// visible on the bus like any other event.
//
// # Concurrency
//
// A Coordinator is single-threaded by contract: every method must be called
// from the same goroutine (the host's event loop). There are no locks on
// the queue or the re-entrancy guard.
package core
