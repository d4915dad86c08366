package ruleengine

import "errors"

// ErrUnsupportedOperator is returned by an Evaluator for operators outside
// the known set.
var ErrUnsupportedOperator = errors.New("unsupported operator")

// Evaluator is the interface that all field strategies must implement.
type Evaluator interface {
	// Eval compares the customer's actual value against the rule's expected value.
	//
	// Parameters:
	// - op: One of the Op* constants.
	// - actual: The raw attribute value taken from the Context (may be nil).
	// - expected: The rule's Value as decoded from JSON.
	//
	// Returns:
	// - bool: True if the predicate holds.
	// - error: ErrUnsupportedOperator (wrapped) when op is unknown.
	Eval(op string, actual, expected any) (bool, error)
}
