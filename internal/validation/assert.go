// Package validation holds constructor-time contract checks. A failed check
// is a wiring bug, never a runtime condition, so every helper panics.
package validation

import "fmt"

// AssertNotNil panics if ptr is nil.
//
// Usage:
//
//	validation.AssertNotNil("controlapi", deps.Segments, "segment materializer")
func AssertNotNil[T any](component string, ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("%s: %s cannot be nil", component, name))
	}
}

// AssertPresent panics if v is a nil interface value.
func AssertPresent(component string, v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s: %s cannot be nil", component, name))
	}
}
