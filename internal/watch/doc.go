// Package watch runs the poll-and-notify loop.
//
// A pass visits every configured channel strictly in order: probe, compare
// with the last-seen id, notify on change, advance the last-seen id. The whole
// state is saved once at the end of the pass. A panic anywhere inside a pass
// is recovered and reported as ErrContainedFault; the scheduler then waits a
// short backoff instead of the normal interval.
package watch
