// Package schedule implements the adaptive capture scheduling loop.
//
// The loop resolves the active frequency label (hour-of-day windows) and
// execution mode (calendar-date periods) each iteration, computes the delay
// before the next capture, and drives exactly one capture resource, strictly
// sequentially. Bounded runs carry a time budget; an external stop marker
// suspends the loop without terminating the process.
package schedule
