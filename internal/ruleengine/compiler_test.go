package ruleengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGroup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		group   RuleGroup
		wantErr error
		errMsg  string
	}{
		{
			name:  "empty group is valid",
			group: RuleGroup{},
		},
		{
			name: "every field and operator is accepted",
			group: RuleGroup{
				And: []Rule{
					{Field: FieldSpend, Op: OpGreaterThanOrEqual, Value: 1000.0},
					{Field: FieldVisits, Op: OpNotEqual, Value: 0.0},
					{Field: FieldLastActive, Op: OpGreaterThan, Value: "2024-01-01"},
				},
				Or: []Rule{
					{Field: FieldEmail, Op: OpNotContains, Value: "test"},
					{Field: FieldName, Op: OpContains, Value: "A"},
				},
			},
		},
		{
			name:    "unknown field",
			group:   RuleGroup{And: []Rule{{Field: "age", Op: OpEqual, Value: 30.0}}},
			wantErr: ErrUnknownField,
			errMsg:  "and[0]",
		},
		{
			name:    "unknown operator",
			group:   RuleGroup{Or: []Rule{{Field: FieldSpend, Op: OpEqual, Value: 1.0}, {Field: FieldSpend, Op: "=~", Value: 1.0}}},
			wantErr: ErrUnknownOperator,
			errMsg:  "or[1]",
		},
		{
			name:    "missing value",
			group:   RuleGroup{And: []Rule{{Field: FieldName, Op: OpEqual}}},
			wantErr: ErrMissingValue,
		},
		{
			name:   "unparseable date",
			group:  RuleGroup{And: []Rule{{Field: FieldLastActive, Op: OpLessThan, Value: "last week"}}},
			errMsg: "invalid date value",
		},
		{
			name: "too many rules",
			group: func() RuleGroup {
				rules := make([]Rule, MaxRulesPerGroup+1)
				for i := range rules {
					rules[i] = Rule{Field: FieldSpend, Op: OpGreaterThan, Value: float64(i)}
				}
				return RuleGroup{And: rules}
			}(),
			wantErr: ErrTooManyRules,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateGroup(tt.group)

			if tt.wantErr == nil && tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}
