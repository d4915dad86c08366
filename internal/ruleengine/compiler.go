package ruleengine

import (
	"errors"
	"fmt"
)

const (
	// MaxRulesPerGroup limits the combined size of And and Or.
	// Segments are evaluated against the whole customer set on every refresh,
	// so rule count multiplies directly into materialization time.
	MaxRulesPerGroup = 50
)

var (
	// ErrUnknownField is returned for a rule targeting a field with no evaluator.
	ErrUnknownField = errors.New("unknown rule field")
	// ErrUnknownOperator is returned for a rule using an operator outside the known set.
	ErrUnknownOperator = errors.New("unknown rule operator")
	// ErrMissingValue is returned for a rule without a comparison value.
	ErrMissingValue = errors.New("rule value is required")
	// ErrTooManyRules is returned when a group exceeds MaxRulesPerGroup.
	ErrTooManyRules = errors.New("too many rules")
)

var knownOperators = map[string]struct{}{
	OpGreaterThan:        {},
	OpGreaterThanOrEqual: {},
	OpLessThan:           {},
	OpLessThanOrEqual:    {},
	OpEqual:              {},
	OpNotEqual:           {},
	OpContains:           {},
	OpNotContains:        {},
}

var knownFields = map[string]struct{}{
	FieldSpend:      {},
	FieldVisits:     {},
	FieldLastActive: {},
	FieldEmail:      {},
	FieldName:       {},
}

// ValidateGroup checks a group at authoring time, before it is persisted or
// dispatched. Evaluation itself never errors; this is where malformed rules
// are rejected loudly.
func ValidateGroup(group RuleGroup) error {
	if n := len(group.And) + len(group.Or); n > MaxRulesPerGroup {
		return fmt.Errorf("%w: %d > %d", ErrTooManyRules, n, MaxRulesPerGroup)
	}

	for i, rule := range group.And {
		if err := validateRule(rule); err != nil {
			return fmt.Errorf("and[%d]: %w", i, err)
		}
	}

	for i, rule := range group.Or {
		if err := validateRule(rule); err != nil {
			return fmt.Errorf("or[%d]: %w", i, err)
		}
	}

	return nil
}

// validateRule checks a single rule.
func validateRule(rule Rule) error {
	if _, ok := knownFields[rule.Field]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, rule.Field)
	}

	if _, ok := knownOperators[rule.Op]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperator, rule.Op)
	}

	if rule.Value == nil {
		return fmt.Errorf("%w for field %q", ErrMissingValue, rule.Field)
	}

	if rule.Field == FieldLastActive {
		if _, ok := toTime(rule.Value); !ok {
			return fmt.Errorf("invalid date value %v for field %q", rule.Value, rule.Field)
		}
	}

	return nil
}
