package spanz

// Field is an opaque key for one named slot in a callsite's schema.
//
// Fields are defined by a callsite's FieldSet rather than by an
// individual span or event, so a field resolved once may be reused for
// every invocation of that callsite. Two fields are equal only if both
// their callsite and their index match; fields from different callsites
// are never equal, even when their names collide.
type Field struct {
	set *FieldSet
	i   int
}

// Name returns the field's name.
func (f Field) Name() string { return f.set.names[f.i] }

// Index returns the field's position in its callsite's schema.
func (f Field) Index() int { return f.i }

// Callsite identifies the callsite that defines this field.
func (f Field) Callsite() Identifier { return f.set.callsite }

// Equal reports whether two fields identify the same slot.
func (f Field) Equal(other Field) bool {
	if f.set == nil || other.set == nil {
		return f.set == other.set && f.i == other.i
	}
	return f.set.callsite == other.set.callsite && f.i == other.i
}

// String returns the field's name.
func (f Field) String() string { return f.Name() }

// FieldSet is the ordered, immutable set of field names declared by one
// callsite. A callsite owns its schema for the lifetime of the process;
// construct a FieldSet once and share it.
type FieldSet struct {
	names    []string
	callsite Identifier
}

// NewFieldSet constructs a FieldSet binding the given names to the
// callsite identity, in declaration order.
func NewFieldSet(callsite Identifier, names ...string) *FieldSet {
	return &FieldSet{names: names, callsite: callsite}
}

// Callsite identifies the callsite that defines this set of fields.
func (s *FieldSet) Callsite() Identifier { return s.callsite }

// Field returns the field named name, or false if no such field exists.
// Lookup is a linear scan; schemas are small.
func (s *FieldSet) Field(name string) (Field, bool) {
	for i, n := range s.names {
		if n == name {
			return Field{set: s, i: i}, true
		}
	}
	return Field{}, false
}

// Contains reports whether s defines the given field. A field sharing a
// name with one of s's fields but created by a different callsite is
// not contained, so that two callsites declaring a field "foo" never
// confuse each other's keys.
func (s *FieldSet) Contains(f Field) bool {
	return f.set != nil && f.set.callsite == s.callsite && f.i < len(s.names)
}

// Len returns the number of fields in the set.
func (s *FieldSet) Len() int { return len(s.names) }

// IsEmpty reports whether the set declares no fields.
func (s *FieldSet) IsEmpty() bool { return len(s.names) == 0 }

// Iter returns an iterator over the set's fields in declaration order.
// The iterator is independent of any other iterator over the same set.
func (s *FieldSet) Iter() FieldIter {
	return FieldIter{set: s}
}

// FieldIter iterates over a FieldSet in declaration order.
type FieldIter struct {
	set  *FieldSet
	next int
}

// Next returns the next field, or false when the set is exhausted.
func (it *FieldIter) Next() (Field, bool) {
	if it.set == nil || it.next >= len(it.set.names) {
		return Field{}, false
	}
	f := Field{set: it.set, i: it.next}
	it.next++
	return f, true
}
