package spanz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopCollectorIsInert(t *testing.T) {
	var c Collector = NoopCollector{}
	cs := newTestCallsite("ignored", "key")

	assert.False(t, c.Enabled(cs.Metadata()))
	assert.Equal(t, InterestNever, c.RegisterCallsite(cs.Metadata()))

	hint, ok := c.MaxLevelHint()
	require.True(t, ok)
	assert.Equal(t, FilterOff, hint)

	id := c.NewSpan(NewSpanAttributes(cs.Metadata(), cs.Metadata().Fields.ValueSet()))
	assert.False(t, id.Valid())

	// Lifecycle callbacks on an invalid id are no-ops.
	c.Event(NewEvent(cs.Metadata(), cs.Metadata().Fields.ValueSet()))
	c.Record(id, cs.Metadata().Fields.ValueSet())
	c.RecordFollowsFrom(id, id)
	c.Enter(id)
	c.Exit(id)
	assert.Equal(t, id, c.CloneSpan(id))
	c.DropSpan(id)

	_, _, ok = c.CurrentSpan()
	assert.False(t, ok)
}

func TestSpanIDValidity(t *testing.T) {
	assert.False(t, SpanID(0).Valid())
	assert.True(t, SpanID(1).Valid())
}
