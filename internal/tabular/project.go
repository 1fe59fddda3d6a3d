package tabular

import (
	"context"
)

// ProjectOp applies column selection and renaming at the plan boundary, for
// sources that could not push the projection down themselves.
type ProjectOp struct {
	child   Operator
	columns []string
	renames map[string]string
	closed  bool
}

// NewProject selects columns from the child's output. Renames maps a source
// column name to its output name and applies after selection.
func NewProject(child Operator, columns []string, renames map[string]string) *ProjectOp {
	return &ProjectOp{child: child, columns: columns, renames: renames}
}

// Open implements Operator.
func (p *ProjectOp) Open(ctx context.Context) error {
	return p.child.Open(ctx)
}

// NextBatch implements Operator.
func (p *ProjectOp) NextBatch(ctx context.Context) (*Batch, error) {
	if p.closed {
		return nil, nil
	}

	batch, err := p.child.NextBatch(ctx)
	if err != nil || batch == nil {
		return nil, err
	}

	rows := batch.Rows()
	batch.Release()

	out := make([]map[string]any, len(rows))

	for i, row := range rows {
		projected := make(map[string]any, len(p.columns))

		for _, col := range p.columns {
			name := col
			if renamed, ok := p.renames[col]; ok {
				name = renamed
			}

			projected[name] = row[col]
		}

		out[i] = projected
	}

	return NewRowBatch(out), nil
}

// Close implements Operator.
func (p *ProjectOp) Close() error {
	if p.closed {
		return nil
	}

	p.closed = true

	return p.child.Close()
}

// EstimatedRows implements Operator.
func (p *ProjectOp) EstimatedRows() int64 {
	return p.child.EstimatedRows()
}

// BatchesCopied implements Operator.
func (p *ProjectOp) BatchesCopied() bool { return true }
