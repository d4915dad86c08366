package ruleengine

import "fmt"

// NumericEvaluator compares numeric fields (spend, visits).
// contains/not_contains have no numeric meaning and never match.
type NumericEvaluator struct{}

// Eval coerces both sides to float64 and compares them.
func (e *NumericEvaluator) Eval(op string, actual, expected any) (bool, error) {
	a, b := toFloat(actual), toFloat(expected)

	switch op {
	case OpGreaterThan:
		return a > b, nil
	case OpGreaterThanOrEqual:
		return a >= b, nil
	case OpLessThan:
		return a < b, nil
	case OpLessThanOrEqual:
		return a <= b, nil
	case OpEqual:
		return a == b, nil
	case OpNotEqual:
		return a != b, nil
	case OpContains, OpNotContains:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
}
