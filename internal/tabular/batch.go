// Package tabular implements the pull-based operator tree over columnar
// record batches: scan, hash join (row-map and vectorized), filter,
// projection, union and hash aggregation.
package tabular

import (
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
)

// Batch is one unit of data flow: either a columnar record (schema plus one
// typed vector per column) or a vector of row maps. The Copied flag is the
// ownership marker: a copied batch owns its memory and may be held across
// pulls; a shared batch is valid only until the next pull and MUST NOT be
// released by the consumer.
type Batch struct {
	rec    arrow.Record
	rows   []map[string]any
	copied bool
}

// NewColumnarBatch wraps an arrow record. The caller states ownership via copied.
func NewColumnarBatch(rec arrow.Record, copied bool) *Batch {
	return &Batch{rec: rec, copied: copied}
}

// NewRowBatch wraps materialized row maps; row batches always own their memory.
func NewRowBatch(rows []map[string]any) *Batch {
	return &Batch{rows: rows, copied: true}
}

// Columnar reports whether the batch carries an arrow record.
func (b *Batch) Columnar() bool { return b.rec != nil }

// Copied reports whether the batch owns its memory.
func (b *Batch) Copied() bool { return b.copied }

// Record returns the underlying arrow record, or nil for row batches.
func (b *Batch) Record() arrow.Record { return b.rec }

// NumRows returns the number of rows in the batch.
func (b *Batch) NumRows() int {
	if b.rec != nil {
		return int(b.rec.NumRows())
	}

	return len(b.rows)
}

// ColumnNames returns the column names in schema order; for row batches the
// order is unspecified.
func (b *Batch) ColumnNames() []string {
	if b.rec != nil {
		fields := b.rec.Schema().Fields()

		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Name
		}

		return names
	}

	seen := make(map[string]struct{})

	var names []string

	for _, row := range b.rows {
		for k := range row {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				names = append(names, k)
			}
		}
	}

	return names
}

// Value returns the value of one cell; ok is false when the column is absent.
// Nulls come back as (nil, true).
func (b *Batch) Value(column string, row int) (any, bool) {
	if b.rec != nil {
		indices := b.rec.Schema().FieldIndices(column)
		if len(indices) == 0 {
			return nil, false
		}

		return arrowValue(b.rec.Column(indices[0]), row), true
	}

	v, ok := b.rows[row][column]

	return v, ok
}

// Rows materializes the batch as row maps. Row batches return their backing
// slice; columnar batches materialize at the boundary.
func (b *Batch) Rows() []map[string]any {
	if b.rec == nil {
		return b.rows
	}

	schema := b.rec.Schema()
	n := int(b.rec.NumRows())

	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = make(map[string]any, len(schema.Fields()))
	}

	for c, field := range schema.Fields() {
		col := b.rec.Column(c)
		for i := 0; i < n; i++ {
			rows[i][field.Name] = arrowValue(col, i)
		}
	}

	return rows
}

// Release frees the batch's memory. It is a no-op for shared batches, whose
// buffers belong to the producing iterator.
func (b *Batch) Release() {
	if b.rec != nil && b.copied {
		b.rec.Release()
		b.rec = nil
	}

	b.rows = nil
}

// arrowValue reads one cell of an arrow vector into its Go value.
func arrowValue(col arrow.Array, row int) any {
	if col.IsNull(row) {
		return nil
	}

	switch arr := col.(type) {
	case *array.Int64:
		return arr.Value(row)
	case *array.Int32:
		return int64(arr.Value(row))
	case *array.Float64:
		return arr.Value(row)
	case *array.String:
		return arr.Value(row)
	case *array.Boolean:
		return arr.Value(row)
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(row).ToTime(unit)
	default:
		return col.ValueStr(row)
	}
}

// compareValues imposes the well-defined ordering used for matching and
// extrema: numerics by magnitude, strings lexicographic, booleans false<true,
// instants chronological. Cross-kind comparisons order by kind rank.
func compareValues(a, b any) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		switch {
		case ra < rb:
			return -1
		default:
			return 1
		}
	}

	switch ra {
	case 0:
		return 0
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 2:
		fa, fb := numericValue(a), numericValue(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case 3:
		ta, tb := a.(time.Time), b.(time.Time)
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		default:
			return 0
		}
	default:
		as, bs := a.(string), b.(string)
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
}

func kindRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

func numericValue(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}
