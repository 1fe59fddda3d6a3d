package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnionDrainsChildrenInDeclaredOrder(t *testing.T) {
	first := newSliceOp(2,
		NewRowBatch([]map[string]any{{"v": "a1"}}),
		NewRowBatch([]map[string]any{{"v": "a2"}}),
	)
	second := newSliceOp(2,
		NewRowBatch([]map[string]any{{"v": "b1"}, {"v": "b2"}}),
	)

	union := NewUnion(first, second)

	rows := drainRows(t, union)
	require.Len(t, rows, 4)

	got := make([]string, len(rows))
	for i, row := range rows {
		got[i] = row["v"].(string)
	}

	// All of child one's rows, in child one's order, then all of child two's.
	assert.Equal(t, []string{"a1", "a2", "b1", "b2"}, got)
}

func TestUnionEstimatedRowsIsSum(t *testing.T) {
	union := NewUnion(newSliceOp(5), newSliceOp(7))

	assert.Equal(t, int64(12), union.EstimatedRows())
}

func TestUnionEmptyChildren(t *testing.T) {
	union := NewUnion(newSliceOp(0), newSliceOp(0))

	rows := drainRows(t, union)
	assert.Empty(t, rows)
}
