package tabular

import (
	"context"
)

// UnionOp drains an ordered list of children sequentially: every batch of
// child one, then every batch of child two, and so on. Children are never
// interleaved.
type UnionOp struct {
	children []Operator
	current  int
	closed   bool
}

// NewUnion builds a union over the children in declared order.
func NewUnion(children ...Operator) *UnionOp {
	return &UnionOp{children: children}
}

// Open implements Operator.
func (u *UnionOp) Open(ctx context.Context) error {
	for _, child := range u.children {
		if err := child.Open(ctx); err != nil {
			return err
		}
	}

	return nil
}

// NextBatch implements Operator.
func (u *UnionOp) NextBatch(ctx context.Context) (*Batch, error) {
	if u.closed {
		return nil, nil
	}

	for u.current < len(u.children) {
		batch, err := u.children[u.current].NextBatch(ctx)
		if err != nil {
			return nil, err
		}

		if batch != nil {
			return batch, nil
		}

		u.current++
	}

	return nil, nil
}

// Close implements Operator.
func (u *UnionOp) Close() error {
	if u.closed {
		return nil
	}

	u.closed = true

	var firstErr error

	for _, child := range u.children {
		if err := child.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// EstimatedRows implements Operator: the sum over children.
func (u *UnionOp) EstimatedRows() int64 {
	var total int64
	for _, child := range u.children {
		total += child.EstimatedRows()
	}

	return total
}

// BatchesCopied implements Operator: ownership follows the children, so the
// union is copied only when every child is.
func (u *UnionOp) BatchesCopied() bool {
	for _, child := range u.children {
		if !child.BatchesCopied() {
			return false
		}
	}

	return true
}
