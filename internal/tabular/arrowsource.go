package tabular

import (
	"context"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/fluree/fluree-go/pkg/apperr"
)

// ArrowTableSource is an in-memory tabular source over named arrow tables. It
// evaluates pushdown predicates and projection during scan, standing in for a
// columnar table backend with file-level pushdown.
type ArrowTableSource struct {
	alloc  memory.Allocator
	tables map[string][]arrow.Record
}

// NewArrowTableSource returns an empty source using the allocator for
// synthesized batches.
func NewArrowTableSource(alloc memory.Allocator) *ArrowTableSource {
	if alloc == nil {
		alloc = memory.NewGoAllocator()
	}

	return &ArrowTableSource{
		alloc:  alloc,
		tables: make(map[string][]arrow.Record),
	}
}

// AddTable registers records under a table name. The source retains them.
func (s *ArrowTableSource) AddTable(name string, records ...arrow.Record) {
	for _, rec := range records {
		rec.Retain()
	}

	s.tables[name] = append(s.tables[name], records...)
}

// ScanArrowBatches implements Source. With no predicates and no projection
// the stored records are shared as-is when the request allows it; otherwise
// each record is filtered and projected into a fresh owned record.
func (s *ArrowTableSource) ScanArrowBatches(ctx context.Context, req *ScanRequest) (BatchIterator, error) {
	records, ok := s.tables[req.Table]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "table %q is not registered", req.Table)
	}

	passthrough := len(req.Predicates) == 0 && len(req.Columns) == 0

	return &arrowIterator{
		source:      s,
		req:         req,
		records:     records,
		passthrough: passthrough,
	}, nil
}

// ScanRowMaps implements Source by materializing the columnar scan rows.
func (s *ArrowTableSource) ScanRowMaps(ctx context.Context, req *ScanRequest) (BatchIterator, error) {
	inner, err := s.ScanArrowBatches(ctx, req)
	if err != nil {
		return nil, err
	}

	return &rowMapIterator{inner: inner}, nil
}

type arrowIterator struct {
	source      *ArrowTableSource
	req         *ScanRequest
	records     []arrow.Record
	pos         int
	passthrough bool
}

func (it *arrowIterator) Next(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for it.pos < len(it.records) {
		rec := it.records[it.pos]
		it.pos++

		if it.passthrough && !it.req.CopyBatches {
			return NewColumnarBatch(rec, false), nil
		}

		out, err := it.source.filterProject(rec, it.req)
		if err != nil {
			return nil, err
		}

		if out.NumRows() == 0 {
			out.Release()
			continue
		}

		return NewColumnarBatch(out, true), nil
	}

	return nil, nil
}

func (it *arrowIterator) Close() error { return nil }

// filterProject evaluates the request's predicates row-wise and copies the
// surviving rows of the projected columns into a fresh record.
func (s *ArrowTableSource) filterProject(rec arrow.Record, req *ScanRequest) (arrow.Record, error) {
	schema := rec.Schema()

	// Resolve the projected column indices, defaulting to every column.
	var colIdx []int

	if len(req.Columns) == 0 {
		colIdx = make([]int, len(schema.Fields()))
		for i := range colIdx {
			colIdx[i] = i
		}
	} else {
		for _, name := range req.Columns {
			indices := schema.FieldIndices(name)
			if len(indices) == 0 {
				return nil, apperr.New(apperr.KindInvalidConfiguration, "table %q has no column %q", req.Table, name)
			}

			colIdx = append(colIdx, indices[0])
		}
	}

	// Resolve predicate columns once per record.
	predIdx := make([]int, len(req.Predicates))

	for i, p := range req.Predicates {
		indices := schema.FieldIndices(p.Column)
		if len(indices) == 0 {
			return nil, apperr.New(apperr.KindInvalidConfiguration, "table %q has no column %q for pushdown", req.Table, p.Column)
		}

		predIdx[i] = indices[0]
	}

	n := int(rec.NumRows())
	keep := make([]int, 0, n)

	for row := 0; row < n; row++ {
		matched := true

		for i, p := range req.Predicates {
			if !MatchPredicate(p, arrowValue(rec.Column(predIdx[i]), row)) {
				matched = false
				break
			}
		}

		if matched {
			keep = append(keep, row)
		}
	}

	fields := make([]arrow.Field, len(colIdx))
	for i, c := range colIdx {
		fields[i] = schema.Field(c)
	}

	outSchema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(s.alloc, outSchema)
	defer builder.Release()

	for i, c := range colIdx {
		col := rec.Column(c)
		for _, row := range keep {
			appendCell(builder.Field(i), col, row)
		}
	}

	return builder.NewRecord(), nil
}

// appendCell copies one cell from a source vector into a builder, preserving nulls.
func appendCell(b array.Builder, col arrow.Array, row int) {
	if col.IsNull(row) {
		b.AppendNull()
		return
	}

	switch src := col.(type) {
	case *array.Int64:
		b.(*array.Int64Builder).Append(src.Value(row))
	case *array.Int32:
		b.(*array.Int32Builder).Append(src.Value(row))
	case *array.Float64:
		b.(*array.Float64Builder).Append(src.Value(row))
	case *array.String:
		b.(*array.StringBuilder).Append(src.Value(row))
	case *array.Boolean:
		b.(*array.BooleanBuilder).Append(src.Value(row))
	case *array.Timestamp:
		b.(*array.TimestampBuilder).Append(src.Value(row))
	default:
		b.AppendNull()
	}
}

// appendGoValue appends a plain Go value to a builder, used when batches are
// synthesized from row maps.
func appendGoValue(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}

	switch bld := b.(type) {
	case *array.Int64Builder:
		switch n := v.(type) {
		case int64:
			bld.Append(n)
		case int:
			bld.Append(int64(n))
		case int32:
			bld.Append(int64(n))
		case float64:
			bld.Append(int64(n))
		default:
			bld.AppendNull()
		}
	case *array.Float64Builder:
		bld.Append(numericValue(v))
	case *array.StringBuilder:
		if s, ok := v.(string); ok {
			bld.Append(s)
		} else {
			bld.AppendNull()
		}
	case *array.BooleanBuilder:
		if t, ok := v.(bool); ok {
			bld.Append(t)
		} else {
			bld.AppendNull()
		}
	default:
		b.AppendNull()
	}
}

// rowMapIterator adapts a columnar iterator to row-map batches.
type rowMapIterator struct {
	inner BatchIterator
}

func (it *rowMapIterator) Next(ctx context.Context) (*Batch, error) {
	batch, err := it.inner.Next(ctx)
	if err != nil || batch == nil {
		return nil, err
	}

	rows := batch.Rows()
	batch.Release()

	return NewRowBatch(rows), nil
}

func (it *rowMapIterator) Close() error { return it.inner.Close() }
