// Package visibility turns a stream of visible/hidden signals into pause and
// resume calls on a polling loop.
//
// A [Gate] only acts on transitions. Where the signal comes from is up to
// the caller: the relay derives it from the number of connected dashboard
// viewers, the terminal watcher from focus reports.
package visibility
