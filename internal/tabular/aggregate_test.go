package tabular

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAggregateGroupBySum(t *testing.T) {
	child := newSliceOp(3, NewRowBatch([]map[string]any{
		{"cat": "x", "amt": int64(1)},
		{"cat": "x", "amt": int64(2)},
		{"cat": "y", "amt": int64(10)},
	}))

	agg := NewHashAggregate(child, []string{"cat"}, []Aggregate{
		{Fn: AggSum, Column: "amt", Alias: "s"},
	})

	rows := drainRows(t, agg)
	require.Len(t, rows, 2)

	sort.Slice(rows, func(i, j int) bool { return rows[i]["cat"].(string) < rows[j]["cat"].(string) })

	assert.Equal(t, map[string]any{"cat": "x", "s": int64(3)}, rows[0])
	assert.Equal(t, map[string]any{"cat": "y", "s": int64(10)}, rows[1])
}

func TestHashAggregateImplicitGroupOnEmptyInput(t *testing.T) {
	child := newSliceOp(0)

	agg := NewHashAggregate(child, nil, []Aggregate{
		{Fn: AggCount, Column: "*", Alias: "count"},
		{Fn: AggSum, Column: "v", Alias: "sum"},
		{Fn: AggAvg, Column: "v", Alias: "avg"},
		{Fn: AggMin, Column: "v", Alias: "min"},
		{Fn: AggMax, Column: "v", Alias: "max"},
	})

	rows := drainRows(t, agg)

	// Exactly one row, not zero: the implicit group over an empty input.
	require.Len(t, rows, 1)
	assert.Equal(t, int64(0), rows[0]["count"])
	assert.Equal(t, int64(0), rows[0]["sum"])
	assert.Nil(t, rows[0]["avg"])
	assert.Nil(t, rows[0]["min"])
	assert.Nil(t, rows[0]["max"])
}

func TestHashAggregateEmptyCountScenario(t *testing.T) {
	agg := NewHashAggregate(newSliceOp(0), nil, []Aggregate{
		{Fn: AggCount, Column: "*", Alias: "n"},
	})

	rows := drainRows(t, agg)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(0), rows[0]["n"])
}

func TestHashAggregateFunctions(t *testing.T) {
	input := []map[string]any{
		{"v": int64(4), "s": "b"},
		{"v": int64(2), "s": "a"},
		{"v": nil, "s": "a"},
		{"v": int64(4), "s": "c"},
	}

	agg := NewHashAggregate(newSliceOp(4, NewRowBatch(input)), nil, []Aggregate{
		{Fn: AggCount, Column: "v", Alias: "count_v"},
		{Fn: AggCount, Column: "*", Alias: "count_star"},
		{Fn: AggCountDistinct, Column: "v", Alias: "distinct_v"},
		{Fn: AggAvg, Column: "v", Alias: "avg_v"},
		{Fn: AggMin, Column: "v", Alias: "min_v"},
		{Fn: AggMax, Column: "v", Alias: "max_v"},
		{Fn: AggMin, Column: "s", Alias: "min_s"},
		{Fn: AggMax, Column: "s", Alias: "max_s"},
	})

	rows := drainRows(t, agg)
	require.Len(t, rows, 1)

	row := rows[0]

	// count skips nulls, count(*) does not.
	assert.Equal(t, int64(3), row["count_v"])
	assert.Equal(t, int64(4), row["count_star"])
	assert.Equal(t, int64(2), row["distinct_v"])
	assert.InDelta(t, 10.0/3.0, row["avg_v"].(float64), 1e-9)
	assert.Equal(t, int64(2), row["min_v"])
	assert.Equal(t, int64(4), row["max_v"])
	assert.Equal(t, "a", row["min_s"])
	assert.Equal(t, "c", row["max_s"])
}

func TestHashAggregateGroupedEmptyInputEmitsNoRows(t *testing.T) {
	agg := NewHashAggregate(newSliceOp(0), []string{"cat"}, []Aggregate{
		{Fn: AggCount, Column: "*", Alias: "n"},
	})

	rows := drainRows(t, agg)
	assert.Empty(t, rows)
}

func TestHashAggregateValidate(t *testing.T) {
	agg := NewHashAggregate(newSliceOp(0), nil, []Aggregate{{Fn: "median", Column: "v", Alias: "m"}})
	assert.Error(t, agg.Validate())

	agg = NewHashAggregate(newSliceOp(0), nil, []Aggregate{{Fn: AggSum, Column: "v", Alias: "s"}})
	assert.NoError(t, agg.Validate())
}
