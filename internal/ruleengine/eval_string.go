package ruleengine

import (
	"fmt"
	"strings"
)

// StringEvaluator compares text fields (email, name).
// Comparison is case-sensitive and ordering is lexicographic by byte.
type StringEvaluator struct{}

// Eval compares the string forms of both values.
func (e *StringEvaluator) Eval(op string, actual, expected any) (bool, error) {
	a, b := toString(actual), toString(expected)

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
	case OpContains:
		return strings.Contains(a, b), nil
	case OpNotContains:
		return !strings.Contains(a, b), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
}
