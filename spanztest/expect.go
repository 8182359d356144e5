package spanztest

import (
	"fmt"
	"strings"
)

// failFunc raises a conformance failure. The running collector supplies
// an implementation that marks itself failing before panicking, so
// cleanup callbacks arriving during the unwind don't mask the original
// diagnostic.
type failFunc func(format string, args ...any)

// expectation is one entry in the ordered expectation queue. Each
// variant corresponds to one collector callback; describe renders the
// entry for "expected X but instead Y" diagnostics.
type expectation interface {
	describe() string
}

type enterExpect struct {
	span SpanMatcher
}

func (e enterExpect) describe() string {
	return "to enter " + e.span.describe()
}

type exitExpect struct {
	span SpanMatcher
}

func (e exitExpect) describe() string {
	return "to exit " + e.span.describe()
}

type cloneExpect struct {
	span SpanMatcher
}

func (e cloneExpect) describe() string {
	return "to clone " + e.span.describe()
}

type dropExpect struct {
	span SpanMatcher
}

func (e dropExpect) describe() string {
	return "to drop " + e.span.describe()
}

type followsFromExpect struct {
	consequence SpanMatcher
	cause       SpanMatcher
}

func (e followsFromExpect) describe() string {
	return fmt.Sprintf("consequence %s to follow cause %s",
		e.consequence.describe(), e.cause.describe())
}

type eventExpect struct {
	event EventMatcher
}

func (e eventExpect) describe() string {
	return e.event.describe()
}

type visitExpect struct {
	span   SpanMatcher
	fields []ExpectedField
}

func (e visitExpect) describe() string {
	names := make([]string, len(e.fields))
	for i, f := range e.fields {
		names[i] = fmt.Sprintf("%s=%s", f.Name, f.Value)
	}
	return fmt.Sprintf("%s to record [%s]", e.span.describe(), strings.Join(names, ", "))
}

type newSpanExpect struct {
	matcher NewSpanMatcher
}

func (e newSpanExpect) describe() string {
	return e.matcher.describe()
}

// nothingExpect is the terminal sentinel: once it is the queue head,
// any further callback is a failure.
type nothingExpect struct{}

func (nothingExpect) describe() string {
	return "nothing else to happen"
}
