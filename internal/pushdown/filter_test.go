package pushdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeFilter(t *testing.T) {
	tests := []struct {
		name     string
		expr     any
		pushable bool
		want     []Clause
	}{
		{
			name:     "var op literal",
			expr:     Call{Op: "=", Args: []any{Var("x"), 123}},
			pushable: true,
			want:     []Clause{{Var: "x", Op: OpEq, Value: 123}},
		},
		{
			name:     "literal op var flips the comparator",
			expr:     Call{Op: "<", Args: []any{10, Var("x")}},
			pushable: true,
			want:     []Clause{{Var: "x", Op: OpGt, Value: 10}},
		},
		{
			name:     "two variables",
			expr:     Call{Op: "=", Args: []any{Var("x"), Var("y")}},
			pushable: false,
		},
		{
			name:     "nil? test",
			expr:     Call{Op: "nil?", Args: []any{Var("x")}},
			pushable: true,
			want:     []Clause{{Var: "x", Op: OpIsNull}},
		},
		{
			name:     "bound test",
			expr:     Call{Op: "bound", Args: []any{Var("x")}},
			pushable: true,
			want:     []Clause{{Var: "x", Op: OpNotNull}},
		},
		{
			name:     "in over literals",
			expr:     Call{Op: "in", Args: []any{Var("c"), []any{"US", "CA"}}},
			pushable: true,
			want:     []Clause{{Var: "c", Op: OpIn, Value: []any{"US", "CA"}}},
		},
		{
			name:     "in over variables",
			expr:     Call{Op: "in", Args: []any{Var("c"), []any{Var("y")}}},
			pushable: false,
		},
		{
			name: "conjunction of pushable clauses",
			expr: Call{Op: "&&", Args: []any{
				Call{Op: ">", Args: []any{Var("x"), 1}},
				Call{Op: "<", Args: []any{Var("x"), 10}},
			}},
			pushable: true,
			want: []Clause{
				{Var: "x", Op: OpGt, Value: 1},
				{Var: "x", Op: OpLt, Value: 10},
			},
		},
		{
			name: "disjoint equality set on one variable",
			expr: Call{Op: "||", Args: []any{
				Call{Op: "=", Args: []any{Var("c"), "US"}},
				Call{Op: "=", Args: []any{Var("c"), "Canada"}},
			}},
			pushable: true,
			want: []Clause{
				{Var: "c", Op: OpEq, Value: "US"},
				{Var: "c", Op: OpEq, Value: "Canada"},
			},
		},
		{
			name: "disjunction over two variables",
			expr: Call{Op: "||", Args: []any{
				Call{Op: "=", Args: []any{Var("a"), "x"}},
				Call{Op: "=", Args: []any{Var("b"), "y"}},
			}},
			pushable: false,
		},
		{
			name: "disjunction of non-equality",
			expr: Call{Op: "||", Args: []any{
				Call{Op: ">", Args: []any{Var("x"), 1}},
				Call{Op: "<", Args: []any{Var("x"), 0}},
			}},
			pushable: false,
		},
		{
			name:     "function call",
			expr:     Call{Op: "strlen", Args: []any{Var("x")}},
			pushable: false,
		},
		{
			name:     "nested function argument",
			expr:     Call{Op: "=", Args: []any{Var("x"), Call{Op: "now", Args: nil}}},
			pushable: false,
		},
		{
			name:     "non-call expression",
			expr:     42,
			pushable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clauses, ok := AnalyzeFilter(tt.expr)

			require.Equal(t, tt.pushable, ok)

			if tt.pushable {
				assert.Equal(t, tt.want, clauses)
			}
		})
	}
}

func TestAnalyzeValues(t *testing.T) {
	clause, ok := AnalyzeValues(ValuesClause{
		Vars: []Var{"x"},
		Rows: [][]any{{"a"}, {"b"}, {"c"}},
	})
	require.True(t, ok)
	assert.Equal(t, Clause{Var: "x", Op: OpIn, Value: []any{"a", "b", "c"}}, clause)

	_, ok = AnalyzeValues(ValuesClause{
		Vars: []Var{"x", "y"},
		Rows: [][]any{{"a", "b"}},
	})
	assert.False(t, ok)

	_, ok = AnalyzeValues(ValuesClause{Vars: []Var{"x"}})
	assert.False(t, ok)
}

func TestCoalesce(t *testing.T) {
	got := Coalesce([]Predicate{
		{Op: OpEq, Column: "C", Value: "US"},
		{Op: OpEq, Column: "C", Value: "Canada"},
		{Op: OpEq, Column: "D", Value: "x"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, Predicate{Op: OpIn, Column: "C", Value: []any{"US", "Canada"}}, got[0])
	assert.Equal(t, Predicate{Op: OpEq, Column: "D", Value: "x"}, got[1])
}

func TestCoalesceExistingInAbsorbsEq(t *testing.T) {
	got := Coalesce([]Predicate{
		{Op: OpIn, Column: "C", Value: []any{"US", "MX"}},
		{Op: OpEq, Column: "C", Value: "Canada"},
		{Op: OpLt, Column: "C", Value: 5},
	})

	require.Len(t, got, 2)
	assert.Equal(t, Predicate{Op: OpIn, Column: "C", Value: []any{"US", "MX", "Canada"}}, got[0])
	assert.Equal(t, Predicate{Op: OpLt, Column: "C", Value: 5}, got[1])
}
