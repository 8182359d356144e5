package spanz

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// Capture is an in-memory Collector. It maintains the span table and
// current-span stack the contract requires and buffers completed spans
// and events for inspection. Safe for concurrent use by multiple
// goroutines.
//
// Capture is not an exporter: it never formats or ships data. It is
// meant for applications that want to collect structured span data and
// drain it themselves, and for exercising producer code in tests.
type Capture struct {
	name  string
	clock clockz.Clock

	mu    sync.Mutex // guards spans and the buffers
	spans map[SpanID]*captureState
	done  []SpanRecord
	evs   []EventRecord

	curMu   sync.Mutex // guards current
	current []SpanID

	nextID atomic.Uint64
}

type captureState struct {
	record SpanRecord
	meta   *Metadata
	refs   int
}

// SpanRecord is the collected form of one completed span.
type SpanRecord struct {
	ID          SpanID
	Name        string
	Target      string
	Level       Level
	Parent      SpanID // zero for roots
	StartedAt   time.Time
	EndedAt     time.Time
	Fields      []CapturedField
	FollowsFrom []SpanID
}

// EventRecord is the collected form of one event.
type EventRecord struct {
	Name   string
	Target string
	Level  Level
	Parent SpanID // zero when the event had no parent
	At     time.Time
	Fields []CapturedField
}

// NewCapture creates a capture collector with the given name, used to
// prefix violation diagnostics. Uses the real clock.
func NewCapture(name string) *Capture {
	return NewCaptureWithClock(name, clockz.RealClock)
}

// NewCaptureWithClock creates a capture collector reading timestamps
// from the specified clock. Enables clock injection for deterministic
// testing.
func NewCaptureWithClock(name string, clock clockz.Clock) *Capture {
	return &Capture{
		name:  name,
		clock: clock,
		spans: make(map[SpanID]*captureState),
	}
}

var _ Collector = (*Capture)(nil)

// Enabled reports true for every callsite.
func (c *Capture) Enabled(*Metadata) bool { return true }

// RegisterCallsite reports InterestAlways; Capture never filters.
func (c *Capture) RegisterCallsite(*Metadata) Interest { return InterestAlways }

// MaxLevelHint makes no promise about enabled levels.
func (c *Capture) MaxLevelHint() (LevelFilter, bool) { return 0, false }

// NewSpan allocates a span, resolving a contextual parent from the
// current-span stack, and records its creation-time field values.
func (c *Capture) NewSpan(attrs *SpanAttributes) SpanID {
	id := SpanID(c.nextID.Add(1))
	meta := attrs.Metadata()

	parent := SpanID(0)
	if pid, ok := attrs.Parent(); ok {
		parent = pid
	} else if !attrs.IsRoot() {
		parent = c.currentID()
	}

	state := &captureState{
		meta: meta,
		refs: 1,
		record: SpanRecord{
			ID:        id,
			Name:      meta.Name,
			Target:    meta.Target,
			Level:     meta.Level,
			Parent:    parent,
			StartedAt: c.clock.Now(),
			Fields:    CaptureValues(attrs.Values()),
		},
	}

	c.mu.Lock()
	c.spans[id] = state
	c.mu.Unlock()

	return id
}

// Record appends additional field values to a live span.
func (c *Capture) Record(id SpanID, values *ValueSet) {
	fields := CaptureValues(values)

	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.stateLocked("record", id)
	state.record.Fields = append(state.record.Fields, fields...)
}

// RecordFollowsFrom notes a causal edge on the consequence span. Edges
// naming a dropped span are ignored; spans may legitimately outlive
// the bookkeeping that references them.
func (c *Capture) RecordFollowsFrom(consequence, cause SpanID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.spans[consequence]
	if !ok {
		return
	}
	if _, ok := c.spans[cause]; !ok {
		return
	}
	state.record.FollowsFrom = append(state.record.FollowsFrom, cause)
}

// Event buffers an event record, resolving a contextual parent from
// the current-span stack.
func (c *Capture) Event(event *Event) {
	meta := event.Metadata()

	parent := SpanID(0)
	if pid, ok := event.Parent(); ok {
		parent = pid
	} else if !event.IsRoot() {
		parent = c.currentID()
	}

	rec := EventRecord{
		Name:   meta.Name,
		Target: meta.Target,
		Level:  meta.Level,
		Parent: parent,
		At:     c.clock.Now(),
		Fields: CaptureValues(event.Values()),
	}

	c.mu.Lock()
	c.evs = append(c.evs, rec)
	c.mu.Unlock()
}

// Enter pushes the span onto the current-span stack.
func (c *Capture) Enter(id SpanID) {
	c.mu.Lock()
	c.stateLocked("enter", id)
	c.mu.Unlock()

	c.curMu.Lock()
	c.current = append(c.current, id)
	c.curMu.Unlock()
}

// Exit pops the span from the current-span stack. Exiting any span
// other than the most recently entered one is a contract violation and
// panics.
func (c *Capture) Exit(id SpanID) {
	c.mu.Lock()
	c.stateLocked("exit", id)
	c.mu.Unlock()

	c.curMu.Lock()
	defer c.curMu.Unlock()

	if len(c.current) == 0 {
		panic(fmt.Sprintf("[%s] exited span %d, but no span was entered", c.name, id))
	}
	top := c.current[len(c.current)-1]
	if top != id {
		panic(fmt.Sprintf("[%s] exited span %d, but the current span was %d", c.name, id, top))
	}
	c.current = c.current[:len(c.current)-1]
}

// CloneSpan increments the span's reference count and returns the same
// id.
func (c *Capture) CloneSpan(id SpanID) SpanID {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.stateLocked("clone_span", id)
	state.refs++
	return id
}

// DropSpan decrements the span's reference count. At zero the span's
// record is moved to the completed buffer and its state discarded.
// Dropping an unknown id is tolerated; drops can arrive from cleanup
// paths after the table was torn down.
func (c *Capture) DropSpan(id SpanID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.spans[id]
	if !ok {
		return
	}
	state.refs--
	if state.refs > 0 {
		return
	}
	state.record.EndedAt = c.clock.Now()
	c.done = append(c.done, state.record)
	delete(c.spans, id)
}

// CurrentSpan reports the top of the current-span stack.
func (c *Capture) CurrentSpan() (SpanID, *Metadata, bool) {
	id := c.currentID()
	if !id.Valid() {
		return 0, nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.spans[id]
	if !ok {
		return 0, nil, false
	}
	return id, state.meta, true
}

// Spans returns a copy of all completed span records in completion
// order. The returned slice is safe to modify.
func (c *Capture) Spans() []SpanRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.done) == 0 {
		return nil
	}
	out := make([]SpanRecord, len(c.done))
	copy(out, c.done)
	return out
}

// Events returns a copy of all buffered event records in delivery
// order.
func (c *Capture) Events() []EventRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.evs) == 0 {
		return nil
	}
	out := make([]EventRecord, len(c.evs))
	copy(out, c.evs)
	return out
}

// Len returns the number of completed spans currently buffered.
func (c *Capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.done)
}

// Reset clears the completed-span and event buffers. Live spans keep
// their state.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.done = c.done[:0]
	c.evs = c.evs[:0]
}

// stateLocked returns the live state for id or panics with a
// diagnostic naming the operation; c.mu must be held.
func (c *Capture) stateLocked(op string, id SpanID) *captureState {
	state, ok := c.spans[id]
	if !ok {
		panic(fmt.Sprintf("[%s] %s: no span for ID %d", c.name, op, id))
	}
	return state
}

func (c *Capture) currentID() SpanID {
	c.curMu.Lock()
	defer c.curMu.Unlock()
	if len(c.current) == 0 {
		return 0
	}
	return c.current[len(c.current)-1]
}
