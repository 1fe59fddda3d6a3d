package tabular

import (
	"context"
)

// RowPredicate evaluates a residual (non-pushable) filter against one row.
type RowPredicate func(row map[string]any) bool

// FilterOp passes through the rows of its child that satisfy a residual
// predicate. Pushable predicates never reach it; they travel with the scan.
type FilterOp struct {
	child       Operator
	pred        RowPredicate
	selectivity float64
	closed      bool
}

// NewFilter wraps the child with a residual filter. Selectivity is the
// planning-time estimate of the fraction of rows that survive; values outside
// (0, 1] fall back to 1.
func NewFilter(child Operator, pred RowPredicate, selectivity float64) *FilterOp {
	if selectivity <= 0 || selectivity > 1 {
		selectivity = 1
	}

	return &FilterOp{child: child, pred: pred, selectivity: selectivity}
}

// Open implements Operator.
func (f *FilterOp) Open(ctx context.Context) error {
	return f.child.Open(ctx)
}

// NextBatch implements Operator.
func (f *FilterOp) NextBatch(ctx context.Context) (*Batch, error) {
	if f.closed {
		return nil, nil
	}

	for {
		batch, err := f.child.NextBatch(ctx)
		if err != nil {
			return nil, err
		}

		if batch == nil {
			return nil, nil
		}

		rows := batch.Rows()
		batch.Release()

		kept := rows[:0:0]

		for _, row := range rows {
			if f.pred(row) {
				kept = append(kept, row)
			}
		}

		if len(kept) > 0 {
			return NewRowBatch(kept), nil
		}
	}
}

// Close implements Operator.
func (f *FilterOp) Close() error {
	if f.closed {
		return nil
	}

	f.closed = true

	return f.child.Close()
}

// EstimatedRows implements Operator: the child estimate scaled by selectivity.
func (f *FilterOp) EstimatedRows() int64 {
	return int64(float64(f.child.EstimatedRows()) * f.selectivity)
}

// BatchesCopied implements Operator: filtered rows are always materialized.
func (f *FilterOp) BatchesCopied() bool { return true }
