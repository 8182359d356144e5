package spanz

import (
	"fmt"
	"math"
)

// ValueKind discriminates the closed set of value representations.
type ValueKind uint8

const (
	// EmptyKind marks a declared field whose value is not present.
	// Empty values are never visited.
	EmptyKind ValueKind = iota
	// BoolKind is a boolean value.
	BoolKind
	// Int64Kind is a signed integer value.
	Int64Kind
	// Uint64Kind is an unsigned integer value.
	Uint64Kind
	// Float64Kind is a floating point value.
	Float64Kind
	// StringKind is a string value.
	StringKind
	// AnyKind is the fallback for producer types lacking a typed
	// representation; consumers receive the value as-is.
	AnyKind
)

// String returns the kind's name.
func (k ValueKind) String() string {
	switch k {
	case EmptyKind:
		return "Empty"
	case BoolKind:
		return "Bool"
	case Int64Kind:
		return "Int64"
	case Uint64Kind:
		return "Uint64"
	case Float64Kind:
		return "Float64"
	case StringKind:
		return "String"
	default:
		return "Any"
	}
}

// Value is a type-erased value attached to a span or event field. It is
// a closed tagged union over booleans, signed and unsigned integers,
// floats, strings, and an untyped fallback. The zero Value is Empty.
//
// Values are small and passed by value; constructing one from a
// primitive does not allocate.
type Value struct {
	any  any
	str  string
	num  uint64
	kind ValueKind
}

// Empty returns a value marking a declared but absent field. It can be
// used to reserve a slot whose value will be recorded later.
func Empty() Value { return Value{} }

// BoolValue returns a Value for a bool.
func BoolValue(v bool) Value {
	var n uint64
	if v {
		n = 1
	}
	return Value{kind: BoolKind, num: n}
}

// IntValue returns a Value for an int, widened to int64.
func IntValue(v int) Value { return Int64Value(int64(v)) }

// Int64Value returns a Value for an int64.
func Int64Value(v int64) Value {
	return Value{kind: Int64Kind, num: uint64(v)}
}

// Uint64Value returns a Value for a uint64.
func Uint64Value(v uint64) Value {
	return Value{kind: Uint64Kind, num: v}
}

// Float64Value returns a Value for a float64.
func Float64Value(v float64) Value {
	return Value{kind: Float64Kind, num: math.Float64bits(v)}
}

// StringValue returns a Value for a string.
func StringValue(v string) Value {
	return Value{kind: StringKind, str: v}
}

// AnyValue returns a Value carrying an arbitrary producer type via the
// untyped fallback arm.
func AnyValue(v any) Value {
	return Value{kind: AnyKind, any: v}
}

// Kind returns the value's kind.
func (v Value) Kind() ValueKind { return v.kind }

// IsEmpty reports whether the value is absent.
func (v Value) IsEmpty() bool { return v.kind == EmptyKind }

// Bool returns the boolean payload. It panics for other kinds.
func (v Value) Bool() bool {
	v.expect(BoolKind)
	return v.num != 0
}

// Int64 returns the signed integer payload. It panics for other kinds.
func (v Value) Int64() int64 {
	v.expect(Int64Kind)
	return int64(v.num)
}

// Uint64 returns the unsigned integer payload. It panics for other kinds.
func (v Value) Uint64() uint64 {
	v.expect(Uint64Kind)
	return v.num
}

// Float64 returns the floating point payload. It panics for other kinds.
func (v Value) Float64() float64 {
	v.expect(Float64Kind)
	return math.Float64frombits(v.num)
}

// Str returns the string payload. It panics for other kinds.
func (v Value) Str() string {
	v.expect(StringKind)
	return v.str
}

// Any returns the untyped payload. It panics for other kinds.
func (v Value) Any() any {
	v.expect(AnyKind)
	return v.any
}

func (v Value) expect(k ValueKind) {
	if v.kind != k {
		panic(fmt.Sprintf("spanz: value is %s, not %s", v.kind, k))
	}
}

// String renders the value and its kind for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case EmptyKind:
		return "Empty"
	case BoolKind:
		return fmt.Sprintf("Bool(%t)", v.num != 0)
	case Int64Kind:
		return fmt.Sprintf("Int64(%d)", int64(v.num))
	case Uint64Kind:
		return fmt.Sprintf("Uint64(%d)", v.num)
	case Float64Kind:
		return fmt.Sprintf("Float64(%g)", math.Float64frombits(v.num))
	case StringKind:
		return fmt.Sprintf("String(%q)", v.str)
	default:
		return fmt.Sprintf("Any(%v)", v.any)
	}
}

// Visit dispatches the value to exactly one of the visitor's handlers,
// matched by kind. Empty values dispatch to nothing.
func (v Value) Visit(f Field, visitor Visitor) {
	switch v.kind {
	case EmptyKind:
	case BoolKind:
		visitor.VisitBool(f, v.num != 0)
	case Int64Kind:
		visitor.VisitInt64(f, int64(v.num))
	case Uint64Kind:
		visitor.VisitUint64(f, v.num)
	case Float64Kind:
		visitor.VisitFloat64(f, math.Float64frombits(v.num))
	case StringKind:
		visitor.VisitString(f, v.str)
	case AnyKind:
		visitor.VisitAny(f, v.any)
	}
}

// Visitor consumes type-erased values one primitive kind at a time.
// Implementations receive exactly one callback per present value, with
// the field identifying the slot being recorded. VisitAny is the
// fallback for values outside the primitive kinds.
type Visitor interface {
	VisitBool(f Field, v bool)
	VisitInt64(f Field, v int64)
	VisitUint64(f Field, v uint64)
	VisitFloat64(f Field, v float64)
	VisitString(f Field, v string)
	VisitAny(f Field, v any)
}
