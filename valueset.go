package spanz

import "fmt"

// MaxValueSetLen is the maximum number of pairs a ValueSet may hold.
// The bound keeps per-call capture arrays small enough to live on the
// stack; it is a hard capacity contract, enforced at construction.
const MaxValueSetLen = 32

// Pair binds one field to an optional value. A Pair whose Value is
// Empty records the field as not-present rather than as a null value.
type Pair struct {
	Field Field
	Value Value
}

// ValueSet is an ephemeral pairing of a callsite's fields with values
// for a single span creation, record, or event. It borrows the caller's
// pairs; it must not be retained past the call it was built for.
type ValueSet struct {
	fields *FieldSet
	pairs  []Pair
}

// ValueSet builds a ValueSet pairing this schema's fields with values.
// At most MaxValueSetLen pairs are accepted; exceeding the bound is a
// contract violation and panics at the construction boundary.
func (s *FieldSet) ValueSet(pairs ...Pair) *ValueSet {
	if len(pairs) > MaxValueSetLen {
		panic(fmt.Sprintf("spanz: value set of %d pairs exceeds the %d pair capacity", len(pairs), MaxValueSetLen))
	}
	return &ValueSet{fields: s, pairs: pairs}
}

// Callsite identifies the callsite whose fields this set records.
func (v *ValueSet) Callsite() Identifier { return v.fields.callsite }

// Fields returns the schema this set was built from.
func (v *ValueSet) Fields() *FieldSet { return v.fields }

// Record visits every present value with the given visitor, in the
// order the pairs were declared. Pairs keyed by a field from a foreign
// callsite are skipped entirely, as are Empty values.
func (v *ValueSet) Record(visitor Visitor) {
	for _, p := range v.pairs {
		if p.Field.set == nil || p.Field.Callsite() != v.fields.callsite {
			continue
		}
		p.Value.Visit(p.Field, visitor)
	}
}

// Contains reports whether the set carries a present value for field f.
func (v *ValueSet) Contains(f Field) bool {
	if f.set == nil || f.Callsite() != v.fields.callsite {
		return false
	}
	for _, p := range v.pairs {
		if p.Field.Equal(f) && !p.Value.IsEmpty() {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the set carries no values: every pair is
// either Empty or keyed by a field from a foreign callsite.
func (v *ValueSet) IsEmpty() bool {
	for _, p := range v.pairs {
		if p.Value.IsEmpty() {
			continue
		}
		if p.Field.set != nil && p.Field.Callsite() == v.fields.callsite {
			return false
		}
	}
	return true
}

// CaptureValues runs a capturing visitor over the set and returns the
// recorded fields in visitation order. It is a convenience for
// collectors that want the set's contents as plain data.
func CaptureValues(set *ValueSet) []CapturedField {
	if set == nil {
		return nil
	}
	var c fieldCapture
	set.Record(&c)
	return c.out
}

// CapturedField is one field-value observation extracted from a
// ValueSet.
type CapturedField struct {
	Name  string
	Value Value
}

type fieldCapture struct {
	out []CapturedField
}

func (c *fieldCapture) VisitBool(f Field, v bool) {
	c.out = append(c.out, CapturedField{Name: f.Name(), Value: BoolValue(v)})
}

func (c *fieldCapture) VisitInt64(f Field, v int64) {
	c.out = append(c.out, CapturedField{Name: f.Name(), Value: Int64Value(v)})
}

func (c *fieldCapture) VisitUint64(f Field, v uint64) {
	c.out = append(c.out, CapturedField{Name: f.Name(), Value: Uint64Value(v)})
}

func (c *fieldCapture) VisitFloat64(f Field, v float64) {
	c.out = append(c.out, CapturedField{Name: f.Name(), Value: Float64Value(v)})
}

func (c *fieldCapture) VisitString(f Field, v string) {
	c.out = append(c.out, CapturedField{Name: f.Name(), Value: StringValue(v)})
}

func (c *fieldCapture) VisitAny(f Field, v any) {
	c.out = append(c.out, CapturedField{Name: f.Name(), Value: AnyValue(v)})
}
