// Package ruleengine provides the core logic for customer segment evaluation.
// It implements a Strategy pattern where each targetable field is bound to an
// evaluator for its kind (numeric, date, string) and a RuleGroup combines the
// individual predicates into a single boolean result.
package ruleengine

// Targetable customer fields.
const (
	FieldSpend      = "spend"
	FieldVisits     = "visits"
	FieldLastActive = "last_active"
	FieldEmail      = "email"
	FieldName       = "name"
)

// Comparison operators.
const (
	OpGreaterThan        = ">"
	OpGreaterThanOrEqual = ">="
	OpLessThan           = "<"
	OpLessThanOrEqual    = "<="
	OpEqual              = "="
	OpNotEqual           = "!="
	OpContains           = "contains"
	OpNotContains        = "not_contains"
)

// Context represents the customer being evaluated.
type Context struct {
	// Attributes maps field names (spend, visits, ...) to raw values.
	// Values may be loosely typed (numbers as strings, dates as strings or time.Time).
	Attributes map[string]any `json:"attributes"`
}

// Rule represents a single predicate over one customer field.
// This struct mirrors the JSON stored in the segments "rules" column.
type Rule struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	// Value is a number or a string, depending on Field.
	Value any `json:"value"`
}

// RuleGroup combines rules: every And rule must hold and, when Or is not
// empty, at least one Or rule must hold.
type RuleGroup struct {
	And []Rule `json:"and"`
	Or  []Rule `json:"or"`
}

// IsEmpty reports whether the group has no rules at all (matches every customer).
func (g RuleGroup) IsEmpty() bool {
	return len(g.And) == 0 && len(g.Or) == 0
}
