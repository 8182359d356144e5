package spanztest

import (
	"fmt"

	"github.com/zoobzio/spanz"
)

// SpanMatcher describes the span an expectation should apply to. Every
// constraint is optional; an unset constraint is a wildcard. Matchers
// are immutable values: each With method returns a modified copy.
type SpanMatcher struct {
	name      string
	target    string
	hasName   bool
	hasTarget bool
	level     *spanz.Level
}

// Span returns a matcher accepting any span.
func Span() SpanMatcher { return SpanMatcher{} }

// Named constrains the span's name.
func (m SpanMatcher) Named(name string) SpanMatcher {
	m.name = name
	m.hasName = true
	return m
}

// WithTarget constrains the span's target.
func (m SpanMatcher) WithTarget(target string) SpanMatcher {
	m.target = target
	m.hasTarget = true
	return m
}

// AtLevel constrains the span's level.
func (m SpanMatcher) AtLevel(level spanz.Level) SpanMatcher {
	m.level = &level
	return m
}

// WithFields lifts the matcher into a new-span expectation that also
// checks the values recorded when the span is created.
func (m SpanMatcher) WithFields(fields ...ExpectedField) NewSpanMatcher {
	return NewSpanMatcher{span: m, fields: fields}
}

// WithExplicitParent lifts the matcher into a new-span expectation
// requiring an explicitly declared parent with the given name.
func (m SpanMatcher) WithExplicitParent(name string) NewSpanMatcher {
	return NewSpanMatcher{span: m, parent: &parentExpect{kind: parentExplicit, name: name}}
}

// AsExplicitRoot lifts the matcher into a new-span expectation
// requiring the span to be declared an explicit root.
func (m SpanMatcher) AsExplicitRoot() NewSpanMatcher {
	return NewSpanMatcher{span: m, parent: &parentExpect{kind: parentExplicitRoot}}
}

// WithContextualParent lifts the matcher into a new-span expectation
// requiring the named span to be current when the span is created.
func (m SpanMatcher) WithContextualParent(name string) NewSpanMatcher {
	return NewSpanMatcher{span: m, parent: &parentExpect{kind: parentContextual, name: name}}
}

// AsContextualRoot lifts the matcher into a new-span expectation
// requiring no span to be current when the span is created.
func (m SpanMatcher) AsContextualRoot() NewSpanMatcher {
	return NewSpanMatcher{span: m, parent: &parentExpect{kind: parentContextualRoot}}
}

func (m SpanMatcher) describe() string {
	s := "a span"
	if m.hasName {
		s += fmt.Sprintf(" named %q", m.name)
	}
	if m.hasTarget {
		s += fmt.Sprintf(" with target %q", m.target)
	}
	if m.level != nil {
		s += fmt.Sprintf(" at level %s", *m.level)
	}
	return s
}

// checkName verifies the observed span name against the matcher.
func (m SpanMatcher) checkName(observed, cname, what string, fail failFunc) {
	if m.hasName && m.name != observed {
		fail("[%s] expected %s span named %q, but observed span %q",
			cname, what, m.name, observed)
	}
}

// checkMetadata verifies every declared constraint against the
// observed metadata.
func (m SpanMatcher) checkMetadata(meta *spanz.Metadata, cname, what string, fail failFunc) {
	if m.hasName && m.name != meta.Name {
		fail("[%s] expected %s named %q, but observed %q", cname, what, m.name, meta.Name)
	}
	if m.hasTarget && m.target != meta.Target {
		fail("[%s] expected %s with target %q, but observed target %q", cname, what, m.target, meta.Target)
	}
	if m.level != nil && *m.level != meta.Level {
		fail("[%s] expected %s at level %s, but observed level %s", cname, what, *m.level, meta.Level)
	}
}

// NewSpanMatcher describes an expected span creation: the span's
// metadata, the values recorded with it, and its declared parent
// relationship. Unset constraints are wildcards.
type NewSpanMatcher struct {
	span   SpanMatcher
	fields []ExpectedField
	parent *parentExpect
}

// NewSpanArg is satisfied by SpanMatcher and NewSpanMatcher, so a
// builder's NewSpan declaration accepts either.
type NewSpanArg interface {
	newSpanMatcher() NewSpanMatcher
}

func (m SpanMatcher) newSpanMatcher() NewSpanMatcher {
	return NewSpanMatcher{span: m}
}

func (m NewSpanMatcher) newSpanMatcher() NewSpanMatcher { return m }

// WithFields adds expected creation-time field values.
func (m NewSpanMatcher) WithFields(fields ...ExpectedField) NewSpanMatcher {
	m.fields = append(m.fields[:len(m.fields):len(m.fields)], fields...)
	return m
}

// WithExplicitParent requires an explicitly declared parent with the
// given name.
func (m NewSpanMatcher) WithExplicitParent(name string) NewSpanMatcher {
	m.parent = &parentExpect{kind: parentExplicit, name: name}
	return m
}

// AsExplicitRoot requires the span to be declared an explicit root.
func (m NewSpanMatcher) AsExplicitRoot() NewSpanMatcher {
	m.parent = &parentExpect{kind: parentExplicitRoot}
	return m
}

// WithContextualParent requires the named span to be current when the
// span is created.
func (m NewSpanMatcher) WithContextualParent(name string) NewSpanMatcher {
	m.parent = &parentExpect{kind: parentContextual, name: name}
	return m
}

// AsContextualRoot requires no span to be current when the span is
// created.
func (m NewSpanMatcher) AsContextualRoot() NewSpanMatcher {
	m.parent = &parentExpect{kind: parentContextualRoot}
	return m
}

func (m NewSpanMatcher) describe() string {
	s := "a new span (" + m.span.describe() + ")"
	if m.parent != nil {
		s += " with " + m.parent.describe()
	}
	return s
}

// check verifies an observed span creation against every declared
// constraint.
func (m NewSpanMatcher) check(attrs *spanz.SpanAttributes, parent parentInfo, cname string, fail failFunc) {
	meta := attrs.Metadata()
	if !meta.Kind.IsSpan() {
		fail("[%s] expected %s, but callsite %q is not a span callsite", cname, m.describe(), meta.Name)
	}
	m.span.checkMetadata(meta, cname, "a new span", fail)
	if len(m.fields) > 0 {
		context := fmt.Sprintf("span %q: ", meta.Name)
		checkFields(cname, context, m.fields, spanz.CaptureValues(attrs.Values()), fail)
	}
	if m.parent != nil {
		m.parent.check(parent, cname, fmt.Sprintf("span %q", meta.Name), fail)
	}
}

type parentKind uint8

const (
	parentExplicit parentKind = iota
	parentExplicitRoot
	parentContextual
	parentContextualRoot
)

// parentExpect is a declared constraint on the parent relationship of a
// new span or event.
type parentExpect struct {
	name string
	kind parentKind
}

// parentInfo is the observed parent relationship, resolved by the
// running collector from the explicit declaration or the current-span
// stack.
type parentInfo struct {
	name     string
	hasName  bool
	explicit bool
	root     bool
}

func (p parentInfo) describe() string {
	switch {
	case p.root:
		return "an explicit root"
	case p.explicit && p.hasName:
		return fmt.Sprintf("explicit parent %q", p.name)
	case p.explicit:
		return "an unknown explicit parent"
	case p.hasName:
		return fmt.Sprintf("contextual parent %q", p.name)
	default:
		return "a contextual root"
	}
}

func (p *parentExpect) describe() string {
	switch p.kind {
	case parentExplicit:
		return fmt.Sprintf("explicit parent %q", p.name)
	case parentExplicitRoot:
		return "an explicit root"
	case parentContextual:
		return fmt.Sprintf("contextual parent %q", p.name)
	default:
		return "a contextual root"
	}
}

func (p *parentExpect) check(info parentInfo, cname, what string, fail failFunc) {
	ok := false
	switch p.kind {
	case parentExplicit:
		ok = info.explicit && info.hasName && info.name == p.name
	case parentExplicitRoot:
		ok = info.root
	case parentContextual:
		ok = !info.explicit && !info.root && info.hasName && info.name == p.name
	case parentContextualRoot:
		ok = !info.explicit && !info.root && !info.hasName
	}
	if !ok {
		fail("[%s] expected %s to have %s, but it had %s",
			cname, what, p.describe(), info.describe())
	}
}
