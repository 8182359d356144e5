// Package spanztest provides a programmable reference collector for
// verifying implementations of the spanz collector contract.
//
// A mock collector is configured with an ordered queue of expected
// protocol events - span creations, enters, exits, records, events,
// clones, drops, follows-from edges - and implements the full
// spanz.Collector interface. Each callback it receives is checked
// against the head of the queue: a match consumes the entry, a
// mismatch panics with a diagnostic naming both the expected and the
// observed item. An empty queue imposes no constraint; the Done
// sentinel rejects everything after it.
//
//	collector, handle := spanztest.NewCollector().
//		NewSpan(spanztest.Span().Named("request")).
//		Enter(spanztest.Span().Named("request")).
//		Event(spanztest.Msg("handled")).
//		Exit(spanztest.Span().Named("request")).
//		Done().
//		RunWithHandle()
//
//	// ... drive producer code against collector ...
//
//	handle.AssertFinished()
//
// The expectation queue is shared between the collector and its
// handle, so completion can be asserted after the collector has been
// handed off. Expectations are consumed in one global order; tests
// that interleave goroutines must declare the interleaved order they
// actually produce.
package spanztest
