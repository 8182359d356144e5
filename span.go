package spanz

// SpanID is an opaque handle identifying one runtime span instance
// within a single collector. IDs are allocated from a monotonically
// increasing counter starting at 1; zero is reserved and never names a
// live span. IDs are not unique across collectors.
type SpanID uint64

// Valid reports whether the id can name a live span.
func (id SpanID) Valid() bool { return id != 0 }

// SpanAttributes carries everything a collector needs to create a span:
// the callsite metadata, the values captured at creation, and the
// declared parent relationship. By default the parent is contextual,
// resolved from whatever span is current when the collector receives
// the attributes.
type SpanAttributes struct {
	meta   *Metadata
	values *ValueSet
	parent SpanID
	root   bool
}

// NewSpanAttributes builds attributes for a contextual-parent span.
func NewSpanAttributes(meta *Metadata, values *ValueSet) *SpanAttributes {
	return &SpanAttributes{meta: meta, values: values}
}

// WithParent declares an explicit parent span.
func (a *SpanAttributes) WithParent(parent SpanID) *SpanAttributes {
	a.parent = parent
	a.root = false
	return a
}

// AsRoot declares the span an explicit root, overriding any contextual
// parent.
func (a *SpanAttributes) AsRoot() *SpanAttributes {
	a.parent = 0
	a.root = true
	return a
}

// Metadata returns the callsite metadata for the span.
func (a *SpanAttributes) Metadata() *Metadata { return a.meta }

// Values returns the values captured when the span was created.
func (a *SpanAttributes) Values() *ValueSet { return a.values }

// Parent returns the explicitly declared parent, if any.
func (a *SpanAttributes) Parent() (SpanID, bool) {
	return a.parent, a.parent.Valid()
}

// IsRoot reports whether the span was explicitly declared a root.
func (a *SpanAttributes) IsRoot() bool { return a.root }

// IsContextual reports whether the parent should be resolved from the
// current span at creation time.
func (a *SpanAttributes) IsContextual() bool {
	return !a.root && !a.parent.Valid()
}

// Event is a point-in-time occurrence. Unlike a span it has no
// lifecycle: it carries its own field values and an optional explicit
// parent, and is delivered to the collector in a single callback.
type Event struct {
	meta   *Metadata
	values *ValueSet
	parent SpanID
	root   bool
}

// NewEvent builds a contextual-parent event.
func NewEvent(meta *Metadata, values *ValueSet) *Event {
	return &Event{meta: meta, values: values}
}

// WithParent declares an explicit parent span for the event.
func (e *Event) WithParent(parent SpanID) *Event {
	e.parent = parent
	e.root = false
	return e
}

// AsRoot declares the event an explicit root.
func (e *Event) AsRoot() *Event {
	e.parent = 0
	e.root = true
	return e
}

// Metadata returns the callsite metadata for the event.
func (e *Event) Metadata() *Metadata { return e.meta }

// Values returns the event's field values.
func (e *Event) Values() *ValueSet { return e.values }

// Parent returns the explicitly declared parent, if any.
func (e *Event) Parent() (SpanID, bool) {
	return e.parent, e.parent.Valid()
}

// IsRoot reports whether the event was explicitly declared a root.
func (e *Event) IsRoot() bool { return e.root }

// IsContextual reports whether the parent should be resolved from the
// current span at delivery time.
func (e *Event) IsContextual() bool {
	return !e.root && !e.parent.Valid()
}
