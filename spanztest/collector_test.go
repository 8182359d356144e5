package spanztest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/spanz"
	"go.uber.org/zap/zaptest"
)

func spanSite(name string, fields ...string) *spanz.Callsite {
	return spanz.NewCallsite(name, "spanztest/test", spanz.LevelInfo, spanz.SpanKind, fields...)
}

func eventSite(name string, fields ...string) *spanz.Callsite {
	return spanz.NewCallsite(name, "spanztest/test", spanz.LevelInfo, spanz.EventKind, fields...)
}

func pairOf(t *testing.T, cs *spanz.Callsite, name string, value spanz.Value) spanz.Pair {
	t.Helper()
	f, ok := cs.Metadata().Fields.Field(name)
	require.True(t, ok, "callsite has no field %q", name)
	return spanz.Pair{Field: f, Value: value}
}

func attrsOf(cs *spanz.Callsite, pairs ...spanz.Pair) *spanz.SpanAttributes {
	return spanz.NewSpanAttributes(cs.Metadata(), cs.Metadata().Fields.ValueSet(pairs...))
}

func eventOf(cs *spanz.Callsite, pairs ...spanz.Pair) *spanz.Event {
	return spanz.NewEvent(cs.Metadata(), cs.Metadata().Fields.ValueSet(pairs...))
}

func mustPanic(t *testing.T, substr string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		require.Contains(t, fmt.Sprint(r), substr)
	}()
	fn()
}

func TestOrderedScenarioDrains(t *testing.T) {
	c, handle := NewCollector().
		Named("ordered").
		NewSpan(Span().Named("request").WithFields(F("method", spanz.StringValue("GET")))).
		Enter(Span().Named("request")).
		Record(Span().Named("request"), F("status", spanz.IntValue(200))).
		Event(Msg("handled")).
		Exit(Span().Named("request")).
		DropSpan(Span().Named("request")).
		Done().
		RunWithHandle()

	cs := spanSite("request", "method", "status")
	id := c.NewSpan(attrsOf(cs, pairOf(t, cs, "method", spanz.StringValue("GET"))))
	c.Enter(id)
	c.Record(id, cs.Metadata().Fields.ValueSet(pairOf(t, cs, "status", spanz.IntValue(200))))

	ecs := eventSite("handled", "message")
	c.Event(eventOf(ecs, pairOf(t, ecs, "message", spanz.StringValue("handled"))))

	c.Exit(id)
	c.DropSpan(id)

	handle.AssertFinished()
}

func TestWrongNotificationFails(t *testing.T) {
	c := NewCollector().
		Named("wrong").
		Enter(Span().Named("request")).
		Exit(Span().Named("request")).
		Run()

	cs := spanSite("request")
	id := c.NewSpan(attrsOf(cs))
	c.Enter(id)

	ecs := eventSite("surprise")
	mustPanic(t, `expected to exit a span named "request"`, func() {
		c.Event(eventOf(ecs))
	})
}

func TestWrongSpanNameFails(t *testing.T) {
	c := NewCollector().
		Named("misnamed").
		Enter(Span().Named("expected_name")).
		Run()

	cs := spanSite("other_name")
	id := c.NewSpan(attrsOf(cs))
	mustPanic(t, `expected to enter a span named "expected_name", but observed span "other_name"`, func() {
		c.Enter(id)
	})
}

func TestAssertFinishedReportsUnmet(t *testing.T) {
	_, handle := NewCollector().
		Named("unmet").
		Enter(Span().Named("never")).
		Done().
		RunWithHandle()

	mustPanic(t, "more notifications expected: to enter a span named \"never\"", func() {
		handle.AssertFinished()
	})
}

func TestEmptyQueueAcceptsAnything(t *testing.T) {
	c, handle := NewCollector().Named("permissive").RunWithHandle()

	cs := spanSite("anything", "k")
	id := c.NewSpan(attrsOf(cs, pairOf(t, cs, "k", spanz.BoolValue(true))))
	c.Enter(id)
	c.Record(id, cs.Metadata().Fields.ValueSet())
	c.Event(eventOf(eventSite("free")))
	c.Exit(id)
	c.CloneSpan(id)
	c.DropSpan(id)
	c.DropSpan(id)

	handle.AssertFinished()
}

func TestDoneRejectsFurtherActivity(t *testing.T) {
	c := NewCollector().Named("sealed").Done().Run()

	mustPanic(t, "expected nothing else to happen", func() {
		c.Event(eventOf(eventSite("late")))
	})
}

func TestDoneRejectsNewSpan(t *testing.T) {
	c := NewCollector().Named("sealed_spans").Done().Run()

	cs := spanSite("late")
	mustPanic(t, "expected nothing else to happen", func() {
		c.NewSpan(attrsOf(cs))
	})
}

func TestUndeclaredCreationsPassThrough(t *testing.T) {
	// A strict expectation at the head does not consume span creations
	// or recordings; only enter/exit/clone/drop/event/follows-from pop
	// unconditionally.
	c, handle := NewCollector().
		Named("pass_through").
		Enter(Span().Named("request")).
		Done().
		RunWithHandle()

	cs := spanSite("request", "status")
	id := c.NewSpan(attrsOf(cs))
	c.Record(id, cs.Metadata().Fields.ValueSet(pairOf(t, cs, "status", spanz.IntValue(204))))
	c.Enter(id)

	handle.AssertFinished()
}

func TestRecordFieldComparison(t *testing.T) {
	cs := spanSite("fields", "a", "b", "c")

	t.Run("extra observed fields are ignored", func(t *testing.T) {
		c, handle := NewCollector().
			Record(Span().Named("fields"), F("a", spanz.IntValue(1))).
			RunWithHandle()

		id := c.NewSpan(attrsOf(cs))
		c.Record(id, cs.Metadata().Fields.ValueSet(
			pairOf(t, cs, "a", spanz.IntValue(1)),
			pairOf(t, cs, "b", spanz.StringValue("extra")),
		))
		handle.AssertFinished()
	})

	t.Run("missing declared field fails", func(t *testing.T) {
		c := NewCollector().
			Record(Span().Named("fields"), F("c", spanz.BoolValue(true))).
			Run()

		id := c.NewSpan(attrsOf(cs))
		mustPanic(t, `expected a value for field "c", but none was recorded`, func() {
			c.Record(id, cs.Metadata().Fields.ValueSet(pairOf(t, cs, "a", spanz.IntValue(1))))
		})
	})

	t.Run("payload mismatch fails", func(t *testing.T) {
		c := NewCollector().
			Record(Span().Named("fields"), F("a", spanz.IntValue(1))).
			Run()

		id := c.NewSpan(attrsOf(cs))
		mustPanic(t, `field "a": expected Int64(1), but observed Int64(2)`, func() {
			c.Record(id, cs.Metadata().Fields.ValueSet(pairOf(t, cs, "a", spanz.IntValue(2))))
		})
	})

	t.Run("kind mismatch fails", func(t *testing.T) {
		c := NewCollector().
			Record(Span().Named("fields"), F("a", spanz.IntValue(1))).
			Run()

		id := c.NewSpan(attrsOf(cs))
		mustPanic(t, `field "a": expected a value of kind Int64, but observed kind String`, func() {
			c.Record(id, cs.Metadata().Fields.ValueSet(pairOf(t, cs, "a", spanz.StringValue("1"))))
		})
	})

	t.Run("any values are not comparable", func(t *testing.T) {
		c := NewCollector().
			Record(Span().Named("fields"), F("a", spanz.AnyValue(struct{ X int }{1}))).
			Run()

		id := c.NewSpan(attrsOf(cs))
		mustPanic(t, "comparison of Any values is not implemented", func() {
			c.Record(id, cs.Metadata().Fields.ValueSet(pairOf(t, cs, "a", spanz.AnyValue(struct{ X int }{1}))))
		})
	})
}

func TestNewSpanMetadataAndFields(t *testing.T) {
	c, handle := NewCollector().
		NewSpan(Span().
			Named("query").
			WithTarget("spanztest/test").
			AtLevel(spanz.LevelInfo).
			WithFields(F("table", spanz.StringValue("users")))).
		Done().
		RunWithHandle()

	cs := spanSite("query", "table")
	c.NewSpan(attrsOf(cs, pairOf(t, cs, "table", spanz.StringValue("users"))))

	handle.AssertFinished()
}

func TestNewSpanParents(t *testing.T) {
	t.Run("contextual parent", func(t *testing.T) {
		c, handle := NewCollector().
			NewSpan(Span().Named("child").WithContextualParent("parent")).
			Done().
			RunWithHandle()

		parent := spanSite("parent")
		child := spanSite("child")
		pid := c.NewSpan(attrsOf(parent))
		c.Enter(pid)
		c.NewSpan(attrsOf(child))
		c.Exit(pid)

		handle.AssertFinished()
	})

	t.Run("contextual root", func(t *testing.T) {
		c, handle := NewCollector().
			NewSpan(Span().Named("lone").AsContextualRoot()).
			Done().
			RunWithHandle()

		c.NewSpan(attrsOf(spanSite("lone")))
		handle.AssertFinished()
	})

	t.Run("explicit parent", func(t *testing.T) {
		c, handle := NewCollector().
			NewSpan(Span().Named("child").WithExplicitParent("parent")).
			Done().
			RunWithHandle()

		pid := c.NewSpan(attrsOf(spanSite("parent")))
		c.NewSpan(attrsOf(spanSite("child")).WithParent(pid))
		handle.AssertFinished()
	})

	t.Run("explicit root", func(t *testing.T) {
		c, handle := NewCollector().
			NewSpan(Span().Named("top").AsExplicitRoot()).
			Done().
			RunWithHandle()

		pid := c.NewSpan(attrsOf(spanSite("parent")))
		c.Enter(pid)
		c.NewSpan(attrsOf(spanSite("top")).AsRoot())
		c.Exit(pid)

		handle.AssertFinished()
	})

	t.Run("mismatched parent fails", func(t *testing.T) {
		c := NewCollector().
			Named("parents").
			NewSpan(Span().Named("child").WithContextualParent("parent")).
			Run()

		mustPanic(t, `expected span "child" to have contextual parent "parent", but it had a contextual root`, func() {
			c.NewSpan(attrsOf(spanSite("child")))
		})
	})
}

func TestEventParentAndLevel(t *testing.T) {
	c, handle := NewCollector().
		Event(Event().Named("inside").WithContextualParent("request")).
		Event(Event().Named("outside").AsContextualRoot()).
		Done().
		RunWithHandle()

	cs := spanSite("request")
	id := c.NewSpan(attrsOf(cs))
	c.Enter(id)
	c.Event(eventOf(eventSite("inside")))
	c.Exit(id)
	c.Event(eventOf(eventSite("outside")))

	handle.AssertFinished()
}

func TestEventKindEnforced(t *testing.T) {
	c := NewCollector().
		Named("kinds").
		Event(Event().Named("note")).
		Run()

	// Delivering span-kind metadata through the event callback is a
	// producer bug the matcher surfaces.
	cs := spanSite("note")
	mustPanic(t, "is not an event callsite", func() {
		c.Event(spanz.NewEvent(cs.Metadata(), cs.Metadata().Fields.ValueSet()))
	})
}

func TestStackDiscipline(t *testing.T) {
	t.Run("out of order exit", func(t *testing.T) {
		c := NewCollector().Named("lifo").Run()

		a := c.NewSpan(attrsOf(spanSite("a")))
		b := c.NewSpan(attrsOf(spanSite("b")))
		c.Enter(a)
		c.Enter(b)

		mustPanic(t, `exited span "a"`, func() {
			c.Exit(a)
		})
	})

	t.Run("exit without enter", func(t *testing.T) {
		c := NewCollector().Named("lifo").Run()

		id := c.NewSpan(attrsOf(spanSite("alone")))
		mustPanic(t, "but no span was entered", func() {
			c.Exit(id)
		})
	})
}

func TestCloneAndDropRefcount(t *testing.T) {
	c, handle := NewCollector().
		Named("refs").
		CloneSpan(Span().Named("shared")).
		DropSpan(Span().Named("shared")).
		DropSpan(Span().Named("shared")).
		Done().
		RunWithHandle()

	id := c.NewSpan(attrsOf(spanSite("shared")))
	require.Equal(t, id, c.CloneSpan(id))
	c.DropSpan(id)
	c.DropSpan(id)
	handle.AssertFinished()

	// After the final drop the id is dead.
	mustPanic(t, fmt.Sprintf("no span for ID %d", id), func() {
		c.Enter(id)
	})
}

func TestFollowsFrom(t *testing.T) {
	t.Run("matching edge", func(t *testing.T) {
		c, handle := NewCollector().
			FollowsFrom(Span().Named("consequence"), Span().Named("cause")).
			Done().
			RunWithHandle()

		cause := c.NewSpan(attrsOf(spanSite("cause")))
		consequence := c.NewSpan(attrsOf(spanSite("consequence")))
		c.RecordFollowsFrom(consequence, cause)

		handle.AssertFinished()
	})

	t.Run("wrong cause fails", func(t *testing.T) {
		c := NewCollector().
			Named("edges").
			FollowsFrom(Span().Named("consequence"), Span().Named("expected_cause")).
			Run()

		cause := c.NewSpan(attrsOf(spanSite("other_cause")))
		consequence := c.NewSpan(attrsOf(spanSite("consequence")))
		mustPanic(t, `expected a cause span named "expected_cause", but observed span "other_cause"`, func() {
			c.RecordFollowsFrom(consequence, cause)
		})
	})

	t.Run("edge to dropped span is ignored", func(t *testing.T) {
		c, handle := NewCollector().
			DropSpan(Span().Named("cause")).
			FollowsFrom(Span().Named("consequence"), Span().Named("cause")).
			Done().
			RunWithHandle()

		cause := c.NewSpan(attrsOf(spanSite("cause")))
		consequence := c.NewSpan(attrsOf(spanSite("consequence")))
		c.DropSpan(cause)
		c.RecordFollowsFrom(consequence, cause)

		// The edge never arrived, so the expectation is still pending.
		mustPanic(t, "more notifications expected", func() {
			handle.AssertFinished()
		})
	})
}

func TestFilterAndLevelHint(t *testing.T) {
	c := NewCollector().
		WithFilter(func(meta *spanz.Metadata) bool { return meta.Target != "noisy" }).
		WithMaxLevelHint(spanz.FilterInfo).
		Run()

	quiet := spanSite("wanted")
	noisy := spanz.NewCallsite("unwanted", "noisy", spanz.LevelTrace, spanz.SpanKind)

	assert.True(t, c.Enabled(quiet.Metadata()))
	assert.False(t, c.Enabled(noisy.Metadata()))
	assert.Equal(t, spanz.InterestAlways, c.RegisterCallsite(quiet.Metadata()))
	assert.Equal(t, spanz.InterestNever, c.RegisterCallsite(noisy.Metadata()))

	hint, ok := c.MaxLevelHint()
	require.True(t, ok)
	assert.Equal(t, spanz.FilterInfo, hint)

	unhinted := NewCollector().Run()
	_, ok = unhinted.MaxLevelHint()
	assert.False(t, ok)
}

func TestCurrentSpan(t *testing.T) {
	c := NewCollector().Run()

	_, _, ok := c.CurrentSpan()
	assert.False(t, ok)

	id := c.NewSpan(attrsOf(spanSite("active")))
	c.Enter(id)

	cur, meta, ok := c.CurrentSpan()
	require.True(t, ok)
	assert.Equal(t, id, cur)
	assert.Equal(t, "active", meta.Name)

	c.Exit(id)
	_, _, ok = c.CurrentSpan()
	assert.False(t, ok)
}

func TestBuilderIsImmutable(t *testing.T) {
	base := NewCollector().Named("base").Enter(Span().Named("shared"))

	// Two scenarios branch from the same prefix without interfering.
	left, leftHandle := base.Exit(Span().Named("shared")).RunWithHandle()
	right, rightHandle := base.Event(Msg("branched")).RunWithHandle()

	cs := spanSite("shared")

	id := left.NewSpan(attrsOf(cs))
	left.Enter(id)
	left.Exit(id)
	leftHandle.AssertFinished()

	id = right.NewSpan(attrsOf(cs))
	right.Enter(id)
	ecs := eventSite("branch_point", "message")
	right.Event(eventOf(ecs, pairOf(t, ecs, "message", spanz.StringValue("branched"))))
	rightHandle.AssertFinished()
}

func TestCollectorWithLoggerAndClock(t *testing.T) {
	clock := clockz.NewFakeClock()
	c, handle := NewCollector().
		Named("observed").
		WithLogger(zaptest.NewLogger(t)).
		WithClock(clock).
		NewSpan(Span().Named("timed")).
		DropSpan(Span().Named("timed")).
		Done().
		RunWithHandle()

	id := c.NewSpan(attrsOf(spanSite("timed")))
	c.DropSpan(id)

	handle.AssertFinished()
}

func TestInstalledMockObservesProducer(t *testing.T) {
	c, handle := NewCollector().
		Named("installed").
		NewSpan(Span().Named("job")).
		Enter(Span().Named("job")).
		Event(Msg("working")).
		Exit(Span().Named("job")).
		DropSpan(Span().Named("job")).
		Done().
		RunWithHandle()

	spanz.Install(c)
	t.Cleanup(func() { spanz.Install(nil) })

	d := spanz.Dispatch()
	cs := spanSite("job")
	require.True(t, spanz.Enabled(cs.Metadata()))

	id := d.NewSpan(attrsOf(cs))
	d.Enter(id)
	ecs := eventSite("progress", "message")
	d.Event(eventOf(ecs, pairOf(t, ecs, "message", spanz.StringValue("working"))))
	d.Exit(id)
	d.DropSpan(id)

	handle.AssertFinished()
}
