package spanztest

import "github.com/zoobzio/spanz"

// ExpectedField declares the value a span or event must record for one
// named field.
type ExpectedField struct {
	Name  string
	Value spanz.Value
}

// F builds an ExpectedField.
func F(name string, value spanz.Value) ExpectedField {
	return ExpectedField{Name: name, Value: value}
}

// checkFields verifies every declared field against the observed
// values. Observed fields that were not declared are ignored; a
// declared field that was not observed, or whose value differs in kind
// or payload, is a failure. Comparing Any values is deliberately
// unsupported: failing loudly beats a false positive.
func checkFields(cname, context string, expected []ExpectedField, observed []spanz.CapturedField, fail failFunc) {
	for _, want := range expected {
		found := false
		for _, got := range observed {
			if got.Name != want.Name {
				continue
			}
			found = true
			compareValue(cname, context, want.Name, want.Value, got.Value, fail)
			break
		}
		if !found {
			fail("[%s] %sexpected a value for field %q, but none was recorded", cname, context, want.Name)
		}
	}
}

func compareValue(cname, context, field string, want, got spanz.Value, fail failFunc) {
	if want.Kind() == spanz.AnyKind || got.Kind() == spanz.AnyKind {
		fail("[%s] %sfield %q: comparison of Any values is not implemented", cname, context, field)
	}
	if want.Kind() != got.Kind() {
		fail("[%s] %sfield %q: expected a value of kind %s, but observed kind %s",
			cname, context, field, want.Kind(), got.Kind())
	}
	// Non-Any values of equal kind carry only comparable payloads.
	if want != got {
		fail("[%s] %sfield %q: expected %s, but observed %s", cname, context, field, want, got)
	}
}
