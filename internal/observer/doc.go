// Package observer implements the dashboard-side view of the event stream.
//
// Reduce is a pure function from (state, event) to state, so the per-resource merge rules
// are unit-testable without a live connection. Subscriber wires the reducer to the SSE
// endpoint, performs baseline and flagged re-fetches, and marks the view stale while
// reconnecting. Events are a latency optimization: the state must always converge to what
// a fresh full fetch would produce.
package observer
