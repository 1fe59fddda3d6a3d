package tabular

import (
	"context"
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/stretchr/testify/require"
)

// makeRecord builds an arrow record from Go values; nil cells become nulls.
func makeRecord(t *testing.T, fields []arrow.Field, rows [][]any) arrow.Record {
	t.Helper()

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), arrow.NewSchema(fields, nil))
	defer builder.Release()

	for _, row := range rows {
		require.Len(t, row, len(fields))

		for c, v := range row {
			appendGoValue(builder.Field(c), v)
		}
	}

	return builder.NewRecord()
}

// sliceOp feeds pre-built batches into an operator tree.
type sliceOp struct {
	batches []*Batch
	pos     int
	rows    int64
	copied  bool
}

func newSliceOp(rows int64, batches ...*Batch) *sliceOp {
	return &sliceOp{batches: batches, rows: rows, copied: true}
}

func (s *sliceOp) Open(ctx context.Context) error { return nil }

func (s *sliceOp) NextBatch(ctx context.Context) (*Batch, error) {
	if s.pos >= len(s.batches) {
		return nil, nil
	}

	b := s.batches[s.pos]
	s.pos++

	return b, nil
}

func (s *sliceOp) Close() error         { return nil }
func (s *sliceOp) EstimatedRows() int64 { return s.rows }
func (s *sliceOp) BatchesCopied() bool  { return s.copied }

// drainRows opens the operator, pulls every batch and returns all rows.
func drainRows(t *testing.T, op Operator) []map[string]any {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, op.Open(ctx))

	var rows []map[string]any

	for {
		batch, err := op.NextBatch(ctx)
		require.NoError(t, err)

		if batch == nil {
			break
		}

		rows = append(rows, batch.Rows()...)
	}

	require.NoError(t, op.Close())

	return rows
}

var (
	int64Field  = func(name string) arrow.Field { return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true} }
	stringField = func(name string) arrow.Field { return arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true} }
)
