package spanztest

import (
	"fmt"

	"github.com/zoobzio/spanz"
)

// EventMatcher describes an expected event: its metadata, field
// values, and parent relationship. Unset constraints are wildcards.
// Matchers are immutable values; each With method returns a modified
// copy.
type EventMatcher struct {
	name      string
	target    string
	hasName   bool
	hasTarget bool
	level     *spanz.Level
	fields    []ExpectedField
	hasFields bool
	parent    *parentExpect
}

// Event returns a matcher accepting any event.
func Event() EventMatcher { return EventMatcher{} }

// Msg returns a matcher for an event carrying the given text in its
// "message" field.
func Msg(text string) EventMatcher {
	return Event().WithFields(F("message", spanz.StringValue(text)))
}

// Named constrains the event's name.
func (m EventMatcher) Named(name string) EventMatcher {
	m.name = name
	m.hasName = true
	return m
}

// WithTarget constrains the event's target.
func (m EventMatcher) WithTarget(target string) EventMatcher {
	m.target = target
	m.hasTarget = true
	return m
}

// AtLevel constrains the event's level.
func (m EventMatcher) AtLevel(level spanz.Level) EventMatcher {
	m.level = &level
	return m
}

// WithFields adds expected field values. Observed fields outside the
// declared set are ignored.
func (m EventMatcher) WithFields(fields ...ExpectedField) EventMatcher {
	m.fields = append(m.fields[:len(m.fields):len(m.fields)], fields...)
	m.hasFields = true
	return m
}

// WithExplicitParent requires the event to declare the named span as
// its explicit parent.
func (m EventMatcher) WithExplicitParent(name string) EventMatcher {
	m.parent = &parentExpect{kind: parentExplicit, name: name}
	return m
}

// AsExplicitRoot requires the event to be declared an explicit root.
func (m EventMatcher) AsExplicitRoot() EventMatcher {
	m.parent = &parentExpect{kind: parentExplicitRoot}
	return m
}

// WithContextualParent requires the named span to be current when the
// event fires.
func (m EventMatcher) WithContextualParent(name string) EventMatcher {
	m.parent = &parentExpect{kind: parentContextual, name: name}
	return m
}

// AsContextualRoot requires no span to be current when the event
// fires.
func (m EventMatcher) AsContextualRoot() EventMatcher {
	m.parent = &parentExpect{kind: parentContextualRoot}
	return m
}

func (m EventMatcher) describe() string {
	s := "an event"
	if m.hasName {
		s += fmt.Sprintf(" named %q", m.name)
	}
	if m.hasTarget {
		s += fmt.Sprintf(" with target %q", m.target)
	}
	if m.level != nil {
		s += fmt.Sprintf(" at level %s", *m.level)
	}
	if m.parent != nil {
		s += " with " + m.parent.describe()
	}
	return s
}

// check verifies an observed event against every declared constraint.
func (m EventMatcher) check(ev *spanz.Event, parent parentInfo, cname string, fail failFunc) {
	meta := ev.Metadata()
	if !meta.Kind.IsEvent() {
		fail("[%s] expected %s, but callsite %q is not an event callsite", cname, m.describe(), meta.Name)
	}
	if m.hasName && m.name != meta.Name {
		fail("[%s] expected an event named %q, but observed %q", cname, m.name, meta.Name)
	}
	if m.hasTarget && m.target != meta.Target {
		fail("[%s] expected an event with target %q, but observed target %q", cname, m.target, meta.Target)
	}
	if m.level != nil && *m.level != meta.Level {
		fail("[%s] expected an event at level %s, but observed level %s", cname, *m.level, meta.Level)
	}
	if m.hasFields {
		context := fmt.Sprintf("event %q: ", meta.Name)
		checkFields(cname, context, m.fields, spanz.CaptureValues(ev.Values()), fail)
	}
	if m.parent != nil {
		m.parent.check(parent, cname, fmt.Sprintf("event %q", meta.Name), fail)
	}
}
