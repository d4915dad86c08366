package ruleengine

import "fmt"

// DateEvaluator compares date fields (last_active).
// A missing or unparseable date on either side never matches.
type DateEvaluator struct{}

// Eval compares instants; ">" means "later than".
func (e *DateEvaluator) Eval(op string, actual, expected any) (bool, error) {
	switch op {
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual, OpEqual, OpNotEqual:
	case OpContains, OpNotContains:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}

	a, okA := toTime(actual)
	b, okB := toTime(expected)
	if !okA || !okB {
		return false, nil
	}

	switch op {
	case OpGreaterThan:
		return a.After(b), nil
	case OpGreaterThanOrEqual:
		return !a.Before(b), nil
	case OpLessThan:
		return a.Before(b), nil
	case OpLessThanOrEqual:
		return !a.After(b), nil
	case OpEqual:
		return a.Equal(b), nil
	default: // OpNotEqual
		return !a.Equal(b), nil
	}
}
