package ruleengine

import (
	"log/slog"
)

// Engine is the orchestrator for segment rule evaluation.
// It is safe for concurrent use: evaluators are stateless.
type Engine struct {
	strategies map[string]Evaluator
	logger     *slog.Logger // Dedicated logger instance (DI)
}

// New creates a new Engine.
// It requires a logger instance to ensure observability without relying on global state.
// If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	numeric := &NumericEvaluator{}
	text := &StringEvaluator{}

	return &Engine{
		logger: logger,
		strategies: map[string]Evaluator{
			FieldSpend:      numeric,
			FieldVisits:     numeric,
			FieldLastActive: &DateEvaluator{},
			FieldEmail:      text,
			FieldName:       text,
		},
	}
}

// Evaluate reports whether the customer satisfies the group.
// An empty And list is vacuously true and an empty Or list is skipped, so
// the zero RuleGroup matches every customer.
func (e *Engine) Evaluate(group RuleGroup, input Context) bool {
	for _, rule := range group.And {
		if !e.evalRule(rule, input) {
			return false
		}
	}

	if len(group.Or) == 0 {
		return true
	}

	for _, rule := range group.Or {
		if e.evalRule(rule, input) {
			return true
		}
	}

	return false
}

// evalRule evaluates a single rule. Unknown fields and operators fail closed.
func (e *Engine) evalRule(rule Rule, input Context) bool {
	strategy, exists := e.strategies[rule.Field]
	if !exists {
		e.logger.Warn("unknown rule field, evaluating as false",
			"field", rule.Field,
			"op", rule.Op,
		)
		return false
	}

	match, err := strategy.Eval(rule.Op, input.Attributes[rule.Field], rule.Value)
	if err != nil {
		// Fail Closed: a malformed rule must not widen the segment.
		e.logger.Warn("rule evaluation failed, evaluating as false",
			"error", err,
			"field", rule.Field,
			"op", rule.Op,
		)
		return false
	}

	return match
}
