package tabular

import (
	"context"
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluree/fluree-go/internal/pushdown"
)

func newCustomerSource(t *testing.T) *ArrowTableSource {
	t.Helper()

	source := NewArrowTableSource(nil)

	rec := makeRecord(t,
		[]arrow.Field{int64Field("id"), stringField("name"), stringField("country")},
		[][]any{
			{int64(1), "ada", "US"},
			{int64(2), "grace", "US"},
			{int64(3), "edsger", "NL"},
			{int64(4), nil, "CA"},
		})

	source.AddTable("crm.customer", rec)
	rec.Release()

	return source
}

func TestScanRowMaps(t *testing.T) {
	scan := NewScan(newCustomerSource(t), ScanOptions{
		Table: "crm.customer",
		Rows:  4,
	})

	rows := drainRows(t, scan)
	assert.Len(t, rows, 4)
	assert.Equal(t, int64(4), scan.EstimatedRows())
	assert.True(t, scan.BatchesCopied())
}

func TestScanPushdownFiltersAtSource(t *testing.T) {
	scan := NewScan(newCustomerSource(t), ScanOptions{
		Table: "crm.customer",
		Predicates: []pushdown.Predicate{
			{Op: pushdown.OpIn, Column: "country", Value: []any{"US", "CA"}},
		},
	})

	rows := drainRows(t, scan)
	require.Len(t, rows, 3)

	for _, row := range rows {
		assert.NotEqual(t, "NL", row["country"])
	}
}

func TestScanProjection(t *testing.T) {
	scan := NewScan(newCustomerSource(t), ScanOptions{
		Table:   "crm.customer",
		Columns: []string{"name"},
	})

	rows := drainRows(t, scan)
	require.Len(t, rows, 4)

	for _, row := range rows {
		assert.Len(t, row, 1)
	}
}

func TestScanColumnarSharedOwnership(t *testing.T) {
	scan := NewScan(newCustomerSource(t), ScanOptions{
		Table:              "crm.customer",
		UseColumnarBatches: true,
		CopyBatches:        false,
	})

	require.NoError(t, scan.Open(context.Background()))

	assert.False(t, scan.BatchesCopied())

	batch, err := scan.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.False(t, batch.Copied(), "pass-through batches share the table's buffers")

	require.NoError(t, scan.Close())
}

func TestScanColumnarCopiedOwnership(t *testing.T) {
	scan := NewScan(newCustomerSource(t), ScanOptions{
		Table:              "crm.customer",
		UseColumnarBatches: true,
		CopyBatches:        true,
	})

	require.NoError(t, scan.Open(context.Background()))
	assert.True(t, scan.BatchesCopied())

	batch, err := scan.NextBatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.True(t, batch.Copied())

	require.NoError(t, scan.Close())
}

func TestScanUnknownTable(t *testing.T) {
	scan := NewScan(newCustomerSource(t), ScanOptions{Table: "missing"})

	err := scan.Open(context.Background())
	require.Error(t, err)
}

func TestScanOpenIsIdempotent(t *testing.T) {
	scan := NewScan(newCustomerSource(t), ScanOptions{Table: "crm.customer"})

	ctx := context.Background()
	require.NoError(t, scan.Open(ctx))
	require.NoError(t, scan.Open(ctx))
	require.NoError(t, scan.Close())
	require.NoError(t, scan.Close())
}

func TestFilterOpKeepsMatchingRows(t *testing.T) {
	child := newSliceOp(4, NewRowBatch([]map[string]any{
		{"v": int64(1)},
		{"v": int64(5)},
		{"v": int64(9)},
	}))

	filter := NewFilter(child, func(row map[string]any) bool {
		return row["v"].(int64) > 4
	}, 0.5)

	rows := drainRows(t, filter)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), filter.EstimatedRows())
}

func TestProjectOpSelectsAndRenames(t *testing.T) {
	child := newSliceOp(1, NewRowBatch([]map[string]any{
		{"name": "ada", "country": "US", "internal": 1},
	}))

	project := NewProject(child, []string{"name", "country"}, map[string]string{"name": "customer_name"})

	rows := drainRows(t, project)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"customer_name": "ada", "country": "US"}, rows[0])
}
