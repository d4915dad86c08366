package ruleengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericEvaluator_Eval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op       string
		actual   any
		expected any
		want     bool
		wantErr  bool
	}{
		{op: OpGreaterThan, actual: 10.0, expected: 5.0, want: true},
		{op: OpGreaterThan, actual: 5.0, expected: 5.0, want: false},
		{op: OpGreaterThanOrEqual, actual: 5, expected: 5.0, want: true},
		{op: OpLessThan, actual: int64(1), expected: 2.0, want: true},
		{op: OpLessThanOrEqual, actual: "3", expected: "3.0", want: true},
		{op: OpEqual, actual: nil, expected: 0.0, want: true},
		{op: OpNotEqual, actual: 1.0, expected: 2.0, want: true},
		{op: OpContains, actual: 11.0, expected: 1.0, want: false},
		{op: OpNotContains, actual: 11.0, expected: 2.0, want: false},
		{op: "between", actual: 1.0, expected: 1.0, wantErr: true},
	}

	e := &NumericEvaluator{}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			got, err := e.Eval(tt.op, tt.actual, tt.expected)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedOperator)
				assert.False(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateEvaluator_Eval(t *testing.T) {
	t.Parallel()

	march := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		op       string
		actual   any
		expected any
		want     bool
		wantErr  bool
	}{
		{name: "later than a plain date", op: OpGreaterThan, actual: march, expected: "2024-03-01", want: true},
		{name: "earlier than RFC3339", op: OpLessThan, actual: "2024-02-01T00:00:00Z", expected: "2024-03-01T00:00:00Z", want: true},
		{name: "equal instants across zones", op: OpEqual, actual: "2024-03-10T06:00:00-03:00", expected: march, want: true},
		{name: "not equal", op: OpNotEqual, actual: march, expected: "2024-03-11", want: true},
		{name: "inclusive bounds", op: OpLessThanOrEqual, actual: march, expected: march, want: true},
		{name: "missing actual never matches", op: OpLessThan, actual: nil, expected: "2024-03-11", want: false},
		{name: "unparseable expected never matches", op: OpGreaterThan, actual: march, expected: "yesterday", want: false},
		{name: "contains has no date meaning", op: OpContains, actual: march, expected: "2024", want: false},
		{name: "unknown operator", op: "~", actual: march, expected: march, wantErr: true},
	}

	e := &DateEvaluator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Eval(tt.op, tt.actual, tt.expected)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedOperator)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringEvaluator_Eval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		op       string
		actual   any
		expected any
		want     bool
	}{
		{name: "equal is case-sensitive", op: OpEqual, actual: "Ann", expected: "ann", want: false},
		{name: "equal", op: OpEqual, actual: "Ann", expected: "Ann", want: true},
		{name: "not equal", op: OpNotEqual, actual: "Ann", expected: "Bob", want: true},
		{name: "substring", op: OpContains, actual: "ann@example.com", expected: "@example", want: true},
		{name: "substring is case-sensitive", op: OpContains, actual: "ann@example.com", expected: "EXAMPLE", want: false},
		{name: "not contains", op: OpNotContains, actual: "ann@example.com", expected: "corp", want: true},
		{name: "lexicographic greater", op: OpGreaterThan, actual: "b", expected: "a", want: true},
		{name: "missing value is empty", op: OpEqual, actual: nil, expected: "", want: true},
	}

	e := &StringEvaluator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Eval(tt.op, tt.actual, tt.expected)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
