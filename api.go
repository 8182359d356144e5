// Package spanz defines a protocol for structured instrumentation.
//
// Producer code emits spans (nested, named periods of execution) and
// events (point-in-time occurrences), both carrying typed key-value
// fields, to a Collector that consumes them. spanz defines the capture
// model and the collector contract without prescribing any output
// format - rendering and shipping captured data is a backend concern.
//
// Core Components:
//   - Callsite: A single instrumentation site with a stable identity
//     and field schema.
//   - Field / FieldSet: Named, indexed slots in a callsite's schema.
//   - Value / ValueSet / Visitor: Type-erased value capture with
//     single-dispatch visitation.
//   - Collector: The contract every backend implements to receive
//     span and event lifecycle callbacks.
//   - Capture: An in-memory Collector that buffers completed spans
//     and events for inspection.
//
// Basic Usage:
//
//	cs := spanz.NewCallsite("request", "myapp/server", spanz.LevelInfo,
//		spanz.SpanKind, "method", "status")
//	fields := cs.Metadata().Fields
//
//	method, _ := fields.Field("method")
//	values := fields.ValueSet(
//		spanz.Pair{Field: method, Value: spanz.StringValue("GET")},
//	)
//
//	c := spanz.NewCapture("app")
//	id := c.NewSpan(spanz.NewSpanAttributes(cs.Metadata(), values))
//	c.Enter(id)
//	c.Exit(id)
//	c.DropSpan(id)
//
// Thread Safety:
//
// Collectors must be safe for concurrent use by multiple goroutines;
// Capture guards its span table, current-span stack, and buffers with
// mutexes. FieldSet, Metadata, and Callsite are immutable after
// construction. ValueSet is an ephemeral, per-call value and must not
// be shared across calls.
//
// Conformance Testing:
//
// The spanztest subpackage provides a programmable reference collector
// that verifies any sequence of collector callbacks against an ordered
// expectation queue, for validating collector implementations.
package spanz

// Level indicates the verbosity of an instrumentation site.
type Level uint8

// Levels, from most to least verbose.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LevelFilter bounds the set of levels a collector is interested in.
// FilterOff enables nothing; FilterTrace enables everything.
type LevelFilter uint8

// Filters, from most to least restrictive.
const (
	FilterOff LevelFilter = iota
	FilterError
	FilterWarn
	FilterInfo
	FilterDebug
	FilterTrace
)

// FilterFor returns the most restrictive filter that still enables l.
func FilterFor(l Level) LevelFilter {
	switch l {
	case LevelTrace:
		return FilterTrace
	case LevelDebug:
		return FilterDebug
	case LevelInfo:
		return FilterInfo
	case LevelWarn:
		return FilterWarn
	default:
		return FilterError
	}
}

// Enables reports whether callsites at level l pass this filter.
func (f LevelFilter) Enables(l Level) bool {
	return f >= FilterFor(l)
}

// String returns the upper-case name of the filter.
func (f LevelFilter) String() string {
	if f == FilterOff {
		return "OFF"
	}
	switch f {
	case FilterError:
		return "ERROR"
	case FilterWarn:
		return "WARN"
	case FilterInfo:
		return "INFO"
	case FilterDebug:
		return "DEBUG"
	default:
		return "TRACE"
	}
}

// Kind distinguishes span callsites from event callsites.
type Kind uint8

const (
	// SpanKind marks a callsite that creates spans.
	SpanKind Kind = iota
	// EventKind marks a callsite that emits events.
	EventKind
)

// IsSpan reports whether the callsite creates spans.
func (k Kind) IsSpan() bool { return k == SpanKind }

// IsEvent reports whether the callsite emits events.
func (k Kind) IsEvent() bool { return k == EventKind }

// Interest is a collector's cached decision about a callsite.
type Interest uint8

const (
	// InterestNever means the collector never wants this callsite.
	InterestNever Interest = iota
	// InterestSometimes means the collector must be asked per call.
	InterestSometimes
	// InterestAlways means the collector always wants this callsite.
	InterestAlways
)

// String returns the lower-case name of the interest decision.
func (i Interest) String() string {
	switch i {
	case InterestNever:
		return "never"
	case InterestAlways:
		return "always"
	default:
		return "sometimes"
	}
}
