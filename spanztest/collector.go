package spanztest

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/spanz"
	"go.uber.org/zap"
)

// Builder accumulates an ordered expectation queue and the
// configuration of a mock collector. It is an immutable value: every
// declaration method returns a new Builder, so partially built
// configurations can be shared and extended independently. The queue is
// append-only until RunWithHandle finalizes it.
type Builder struct {
	expected []expectation
	filter   func(*spanz.Metadata) bool
	maxLevel *spanz.LevelFilter
	name     string
	logger   *zap.Logger
	clock    clockz.Clock
}

// NewCollector starts building a mock collector. The default name is a
// fresh "mock-" identifier; override it with Named when a test runs
// several mocks and the diagnostics need telling apart.
func NewCollector() Builder {
	return Builder{name: "mock-" + uuid.NewString()[:8]}
}

func (b Builder) push(e expectation) Builder {
	b.expected = append(b.expected[:len(b.expected):len(b.expected)], e)
	return b
}

// Named overrides the name used to prefix the collector's diagnostics.
func (b Builder) Named(name string) Builder {
	b.name = name
	return b
}

// Enter expects the matching span to be entered.
func (b Builder) Enter(span SpanMatcher) Builder {
	return b.push(enterExpect{span: span})
}

// Exit expects the matching span to be exited.
func (b Builder) Exit(span SpanMatcher) Builder {
	return b.push(exitExpect{span: span})
}

// CloneSpan expects the matching span to be cloned.
func (b Builder) CloneSpan(span SpanMatcher) Builder {
	return b.push(cloneExpect{span: span})
}

// DropSpan expects the matching span to be dropped.
func (b Builder) DropSpan(span SpanMatcher) Builder {
	return b.push(dropExpect{span: span})
}

// FollowsFrom expects a causal edge from cause to consequence.
func (b Builder) FollowsFrom(consequence, cause SpanMatcher) Builder {
	return b.push(followsFromExpect{consequence: consequence, cause: cause})
}

// Event expects a matching event.
func (b Builder) Event(event EventMatcher) Builder {
	return b.push(eventExpect{event: event})
}

// NewSpan expects a matching span creation; it accepts a SpanMatcher
// or a NewSpanMatcher.
func (b Builder) NewSpan(span NewSpanArg) Builder {
	return b.push(newSpanExpect{matcher: span.newSpanMatcher()})
}

// Record expects the matching span to record the given field values.
func (b Builder) Record(span SpanMatcher, fields ...ExpectedField) Builder {
	return b.push(visitExpect{span: span, fields: fields})
}

// Done appends the terminal sentinel: after it is reached, any further
// callback is a failure.
func (b Builder) Done() Builder {
	return b.push(nothingExpect{})
}

// WithFilter sets the predicate backing Enabled and RegisterCallsite.
// The default accepts every callsite.
func (b Builder) WithFilter(filter func(*spanz.Metadata) bool) Builder {
	b.filter = filter
	return b
}

// WithMaxLevelHint sets the level hint the collector advertises.
func (b Builder) WithMaxLevelHint(hint spanz.LevelFilter) Builder {
	b.maxLevel = &hint
	return b
}

// WithLogger sets the logger receiving a structured line per observed
// callback. The default discards them.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// WithClock sets the clock used to timestamp span state. The default
// is the real clock.
func (b Builder) WithClock(clock clockz.Clock) Builder {
	b.clock = clock
	return b
}

// RunWithHandle finalizes the builder into an installable collector
// plus a handle for inspecting completion. The handle shares the
// expectation queue with the collector, so AssertFinished can run after
// the collector itself is no longer reachable.
func (b Builder) RunWithHandle() (spanz.Collector, *Handle) {
	q := &queue{exp: append([]expectation(nil), b.expected...)}

	filter := b.filter
	if filter == nil {
		filter = func(*spanz.Metadata) bool { return true }
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = clockz.RealClock
	}

	c := &collector{
		name:     b.name,
		filter:   filter,
		maxLevel: b.maxLevel,
		logger:   logger.With(zap.String("collector", b.name)),
		clock:    clock,
		q:        q,
		spans:    make(map[spanz.SpanID]*spanState),
	}
	return c, &Handle{q: q, name: b.name}
}

// Run finalizes the builder into an installable collector, discarding
// the handle.
func (b Builder) Run() spanz.Collector {
	c, _ := b.RunWithHandle()
	return c
}

// queue is the mutable expectation sequence, shared between the running
// collector and its handle.
type queue struct {
	mu  sync.Mutex
	exp []expectation
}

func (q *queue) pop() (expectation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.exp) == 0 {
		return nil, false
	}
	e := q.exp[0]
	q.exp = q.exp[1:]
	return e, true
}

// popIf pops the head only when pred accepts it.
func (q *queue) popIf(pred func(expectation) bool) (expectation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.exp) == 0 || !pred(q.exp[0]) {
		return nil, false
	}
	e := q.exp[0]
	q.exp = q.exp[1:]
	return e, true
}

// Handle lets the test driver inspect a mock collector's completion
// after the callbacks have run.
type Handle struct {
	q    *queue
	name string
}

// AssertFinished panics if any expectation other than the terminal
// sentinel remains unconsumed.
func (h *Handle) AssertFinished() {
	h.q.mu.Lock()
	defer h.q.mu.Unlock()

	var remaining []string
	for _, e := range h.q.exp {
		if _, ok := e.(nothingExpect); ok {
			continue
		}
		remaining = append(remaining, e.describe())
	}
	if len(remaining) > 0 {
		panic(fmt.Sprintf("\n[%s] more notifications expected: %s",
			h.name, strings.Join(remaining, "; ")))
	}
}

// spanState is the collector-private record of one live span.
type spanState struct {
	name     string
	meta     *spanz.Metadata
	refs     int
	openedAt time.Time
}

// collector is the running conformance engine: a full Collector
// implementation that checks every callback against the head of the
// expectation queue.
type collector struct {
	name     string
	filter   func(*spanz.Metadata) bool
	maxLevel *spanz.LevelFilter
	logger   *zap.Logger
	clock    clockz.Clock

	q *queue

	mu    sync.Mutex // guards spans
	spans map[spanz.SpanID]*spanState

	curMu   sync.Mutex // guards current
	current []spanz.SpanID

	ids     atomic.Uint64
	failing atomic.Bool
}

var _ spanz.Collector = (*collector)(nil)

// fail marks the collector failing, then panics with the diagnostic.
// The flag lets cleanup callbacks arriving during the unwind skip
// their own assertions instead of masking this one.
func (c *collector) fail(format string, args ...any) {
	c.failing.Store(true)
	panic(fmt.Sprintf(format, args...))
}

// bad reports a callback that arrived while a different expectation
// was at the head of the queue.
func (c *collector) bad(e expectation, observed string) {
	c.fail("\n[%s] expected %s\n[%s] but instead %s", c.name, e.describe(), c.name, observed)
}

func (c *collector) Enabled(meta *spanz.Metadata) bool {
	enabled := c.filter(meta)
	c.logger.Debug("enabled",
		zap.String("name", meta.Name),
		zap.String("target", meta.Target),
		zap.Bool("enabled", enabled))
	return enabled
}

func (c *collector) RegisterCallsite(meta *spanz.Metadata) spanz.Interest {
	interest := spanz.InterestNever
	if c.filter(meta) {
		interest = spanz.InterestAlways
	}
	c.logger.Debug("register_callsite",
		zap.String("name", meta.Name),
		zap.String("target", meta.Target),
		zap.Stringer("interest", interest))
	return interest
}

func (c *collector) MaxLevelHint() (spanz.LevelFilter, bool) {
	if c.maxLevel == nil {
		return 0, false
	}
	return *c.maxLevel, true
}

func (c *collector) NewSpan(attrs *spanz.SpanAttributes) spanz.SpanID {
	meta := attrs.Metadata()
	id := spanz.SpanID(c.ids.Add(1))
	c.logger.Debug("new_span",
		zap.String("span", meta.Name),
		zap.String("target", meta.Target),
		zap.Uint64("id", uint64(id)))

	parent := c.resolveParent(attrs.Parent())
	if attrs.IsRoot() {
		parent.root = true
	}

	if e, ok := c.q.popIf(isNewSpanOrNothing); ok {
		switch exp := e.(type) {
		case newSpanExpect:
			exp.matcher.check(attrs, parent, c.name, c.fail)
		case nothingExpect:
			c.bad(exp, fmt.Sprintf("observed new span %q", meta.Name))
		}
	}

	c.mu.Lock()
	c.spans[id] = &spanState{
		name:     meta.Name,
		meta:     meta,
		refs:     1,
		openedAt: c.clock.Now(),
	}
	c.mu.Unlock()

	return id
}

func (c *collector) Record(id spanz.SpanID, values *spanz.ValueSet) {
	name := c.spanName(id)
	c.logger.Debug("record", zap.String("span", name), zap.Uint64("id", uint64(id)))

	if e, ok := c.q.popIf(isVisitOrNothing); ok {
		switch exp := e.(type) {
		case visitExpect:
			exp.span.checkName(name, c.name, "to record on a", c.fail)
			context := fmt.Sprintf("span %q: ", name)
			checkFields(c.name, context, exp.fields, spanz.CaptureValues(values), c.fail)
		case nothingExpect:
			c.bad(exp, fmt.Sprintf("recorded values on span %q", name))
		}
	}
}

func (c *collector) RecordFollowsFrom(consequence, cause spanz.SpanID) {
	// Either span may already have been dropped; the edge is then
	// intentionally ignored.
	consequenceName, ok := c.lookupName(consequence)
	if !ok {
		return
	}
	causeName, ok := c.lookupName(cause)
	if !ok {
		return
	}
	c.logger.Debug("record_follows_from",
		zap.String("consequence", consequenceName),
		zap.String("cause", causeName))

	if e, ok := c.q.pop(); ok {
		switch exp := e.(type) {
		case followsFromExpect:
			exp.consequence.checkName(consequenceName, c.name, "a consequence", c.fail)
			exp.cause.checkName(causeName, c.name, "a cause", c.fail)
		default:
			c.bad(e, fmt.Sprintf("consequence %q followed cause %q", consequenceName, causeName))
		}
	}
}

func (c *collector) Event(ev *spanz.Event) {
	meta := ev.Metadata()
	c.logger.Debug("event", zap.String("name", meta.Name))

	parent := c.resolveParent(ev.Parent())
	if ev.IsRoot() {
		parent.root = true
	}

	if e, ok := c.q.pop(); ok {
		switch exp := e.(type) {
		case eventExpect:
			exp.event.check(ev, parent, c.name, c.fail)
		default:
			c.bad(e, fmt.Sprintf("observed an event %q", meta.Name))
		}
	}
}

func (c *collector) Enter(id spanz.SpanID) {
	name := c.spanName(id)
	c.logger.Debug("enter", zap.String("span", name), zap.Uint64("id", uint64(id)))

	if e, ok := c.q.pop(); ok {
		switch exp := e.(type) {
		case enterExpect:
			exp.span.checkName(name, c.name, "to enter a", c.fail)
		default:
			c.bad(e, fmt.Sprintf("entered span %q", name))
		}
	}

	c.curMu.Lock()
	c.current = append(c.current, id)
	c.curMu.Unlock()
}

func (c *collector) Exit(id spanz.SpanID) {
	if c.failing.Load() {
		// Exits arrive from cleanup while a failure is unwinding;
		// a second assertion here would mask the original one.
		c.logger.Debug("exit while failing", zap.Uint64("id", uint64(id)))
		return
	}
	name := c.spanName(id)
	c.logger.Debug("exit", zap.String("span", name), zap.Uint64("id", uint64(id)))

	if e, ok := c.q.pop(); ok {
		switch exp := e.(type) {
		case exitExpect:
			exp.span.checkName(name, c.name, "to exit a", c.fail)
		default:
			c.bad(e, fmt.Sprintf("exited span %q", name))
		}
	}

	// Stack discipline holds whether or not an exit was declared.
	c.curMu.Lock()
	defer c.curMu.Unlock()
	if len(c.current) == 0 {
		c.fail("[%s] exited span %q (%d), but no span was entered", c.name, name, id)
	}
	top := c.current[len(c.current)-1]
	if top != id {
		c.fail("[%s] exited span %q (%d), but the current span was %d", c.name, name, id, top)
	}
	c.current = c.current[:len(c.current)-1]
}

func (c *collector) CloneSpan(id spanz.SpanID) spanz.SpanID {
	c.mu.Lock()
	state, ok := c.spans[id]
	if !ok {
		c.mu.Unlock()
		c.fail("[%s] no span for ID %d", c.name, id)
	}
	state.refs++
	name := state.name
	refs := state.refs
	c.mu.Unlock()

	c.logger.Debug("clone_span",
		zap.String("span", name),
		zap.Uint64("id", uint64(id)),
		zap.Int("refs", refs))

	if e, ok := c.q.pop(); ok {
		switch exp := e.(type) {
		case cloneExpect:
			exp.span.checkName(name, c.name, "to clone a", c.fail)
		default:
			c.bad(e, fmt.Sprintf("cloned span %q", name))
		}
	}
	return id
}

func (c *collector) DropSpan(id spanz.SpanID) {
	// Drops can arrive from cleanup during an unwind while the span
	// table lock is held by the failing operation; blocking here
	// would deadlock, so give up on verification instead.
	if !c.mu.TryLock() {
		return
	}
	state, ok := c.spans[id]
	var name string
	var openFor time.Duration
	if ok {
		state.refs--
		name = state.name
		openFor = c.clock.Now().Sub(state.openedAt)
		if state.refs == 0 {
			delete(c.spans, id)
		}
	}
	c.mu.Unlock()

	if c.failing.Load() {
		return
	}
	if !ok {
		c.fail("[%s] no span for ID %d", c.name, id)
	}
	c.logger.Debug("drop_span",
		zap.String("span", name),
		zap.Uint64("id", uint64(id)),
		zap.Duration("open_for", openFor))

	if e, ok := c.q.pop(); ok {
		switch exp := e.(type) {
		case dropExpect:
			exp.span.checkName(name, c.name, "to drop a", c.fail)
		default:
			c.bad(e, fmt.Sprintf("dropped span %q", name))
		}
	}
}

func (c *collector) CurrentSpan() (spanz.SpanID, *spanz.Metadata, bool) {
	c.curMu.Lock()
	var id spanz.SpanID
	if len(c.current) > 0 {
		id = c.current[len(c.current)-1]
	}
	c.curMu.Unlock()
	if !id.Valid() {
		return 0, nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.spans[id]
	if !ok {
		c.fail("[%s] no state for current span %d", c.name, id)
	}
	return id, state.meta, true
}

// spanName returns the name of a live span or fails the contract.
func (c *collector) spanName(id spanz.SpanID) string {
	name, ok := c.lookupName(id)
	if !ok {
		c.fail("[%s] no span for ID %d", c.name, id)
	}
	return name
}

func (c *collector) lookupName(id spanz.SpanID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.spans[id]
	if !ok {
		return "", false
	}
	return state.name, true
}

// resolveParent computes the observed parent relationship: the
// explicit declaration when present, otherwise the top of the
// current-span stack.
func (c *collector) resolveParent(explicit spanz.SpanID, isExplicit bool) parentInfo {
	if isExplicit {
		info := parentInfo{explicit: true}
		info.name, info.hasName = c.lookupName(explicit)
		return info
	}
	c.curMu.Lock()
	var top spanz.SpanID
	if len(c.current) > 0 {
		top = c.current[len(c.current)-1]
	}
	c.curMu.Unlock()
	if !top.Valid() {
		return parentInfo{}
	}
	info := parentInfo{}
	info.name, info.hasName = c.lookupName(top)
	return info
}

func isNewSpanOrNothing(e expectation) bool {
	switch e.(type) {
	case newSpanExpect, nothingExpect:
		return true
	}
	return false
}

func isVisitOrNothing(e expectation) bool {
	switch e.(type) {
	case visitExpect, nothingExpect:
		return true
	}
	return false
}
