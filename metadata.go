package spanz

// Metadata describes a single instrumentation site: its name, the
// target (typically the package path of the instrumented code), its
// verbosity level, whether it creates spans or emits events, and the
// schema of fields it may record. Metadata is constructed once per
// callsite and never mutated.
type Metadata struct {
	// Name of the span or event emitted by this callsite.
	Name string
	// Target categorizes the part of the system where the callsite
	// lives, typically an import path.
	Target string
	// Level is the callsite's verbosity.
	Level Level
	// Kind reports whether the callsite creates spans or events.
	Kind Kind
	// Fields is the callsite's field schema.
	Fields *FieldSet
}

// Callsite identifies the callsite this metadata describes.
func (m *Metadata) Callsite() Identifier { return m.Fields.Callsite() }
