package spanz

// Collector is the contract every backend implements to receive span
// and event lifecycle callbacks. It is the only surface between
// producer code and a backend; the spanztest package provides a
// reference implementation that verifies callers against it.
//
// Implementations must be safe for concurrent use by multiple
// goroutines. Callbacks are synchronous: each blocks its caller for
// the duration of the call.
//
// Span identity rules: every SpanID passed to Record, Enter, Exit,
// CloneSpan, or DropSpan must have been returned by NewSpan and still
// be live (reference count above zero). Referencing an unknown or
// dead id is a contract violation, surfaced as a panic, not an error.
type Collector interface {
	// Enabled reports whether the collector wants data from the
	// callsite described by meta. It is called before a ValueSet is
	// constructed for the callsite and must be side-effect-free
	// beyond diagnostics.
	Enabled(meta *Metadata) bool

	// RegisterCallsite is invoked once per callsite so the
	// collector's interest can be cached. Collectors that filter
	// deterministically should return InterestAlways or
	// InterestNever so the decision is never re-queried.
	RegisterCallsite(meta *Metadata) Interest

	// MaxLevelHint advertises the most verbose level the collector
	// will ever enable, or false if it makes no promise.
	MaxLevelHint() (LevelFilter, bool)

	// NewSpan allocates a span for the given attributes and returns
	// its id with an initial reference count of 1.
	NewSpan(attrs *SpanAttributes) SpanID

	// Record attaches additional field values to an existing span.
	Record(id SpanID, values *ValueSet)

	// RecordFollowsFrom declares a causal, non-nesting edge from
	// cause to consequence. Either span may already have been
	// dropped, in which case the edge is silently ignored.
	RecordFollowsFrom(consequence, cause SpanID)

	// Event delivers a point-in-time occurrence.
	Event(event *Event)

	// Enter pushes the span onto the current-span stack.
	Enter(id SpanID)

	// Exit pops the span from the current-span stack. The id must
	// be the most recently entered span; exiting out of order is a
	// contract violation.
	Exit(id SpanID)

	// CloneSpan increments the span's reference count and returns
	// the same id; ids are never re-minted on clone.
	CloneSpan(id SpanID) SpanID

	// DropSpan decrements the span's reference count. Once the
	// count reaches zero the collector may discard the span's state
	// and the id is no longer valid.
	DropSpan(id SpanID)

	// CurrentSpan reports the top of the current-span stack, or
	// false if no span is current.
	CurrentSpan() (SpanID, *Metadata, bool)
}

// NoopCollector is an inert Collector. It declines every callsite,
// discards every callback, and hands out the invalid span id. It is
// the installed collector until a real one is installed.
type NoopCollector struct{}

var _ Collector = NoopCollector{}

// Enabled always reports false.
func (NoopCollector) Enabled(*Metadata) bool { return false }

// RegisterCallsite always reports InterestNever.
func (NoopCollector) RegisterCallsite(*Metadata) Interest { return InterestNever }

// MaxLevelHint promises that nothing is enabled.
func (NoopCollector) MaxLevelHint() (LevelFilter, bool) { return FilterOff, true }

// NewSpan returns the invalid span id.
func (NoopCollector) NewSpan(*SpanAttributes) SpanID { return 0 }

// Record does nothing.
func (NoopCollector) Record(SpanID, *ValueSet) {}

// RecordFollowsFrom does nothing.
func (NoopCollector) RecordFollowsFrom(SpanID, SpanID) {}

// Event does nothing.
func (NoopCollector) Event(*Event) {}

// Enter does nothing.
func (NoopCollector) Enter(SpanID) {}

// Exit does nothing.
func (NoopCollector) Exit(SpanID) {}

// CloneSpan returns the id unchanged.
func (NoopCollector) CloneSpan(id SpanID) SpanID { return id }

// DropSpan does nothing.
func (NoopCollector) DropSpan(SpanID) {}

// CurrentSpan reports no current span.
func (NoopCollector) CurrentSpan() (SpanID, *Metadata, bool) { return 0, nil, false }
