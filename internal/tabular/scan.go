package tabular

import (
	"context"

	"github.com/fluree/fluree-go/pkg/mlog"
	"github.com/fluree/fluree-go/pkg/motel"

	"github.com/fluree/fluree-go/internal/pushdown"
)

// DefaultBatchSize is the scan batch size when none is configured.
const DefaultBatchSize = 4096

// ScanOptions parameterizes a Scan operator.
type ScanOptions struct {
	Table      string
	Columns    []string
	Predicates []pushdown.Predicate
	BatchSize  int
	// UseColumnarBatches selects the source's columnar scan path.
	UseColumnarBatches bool
	// CopyBatches asks for batches that own their memory (safe to keep); when
	// false, batches may share the iterator's buffers and are valid only until
	// the next pull.
	CopyBatches bool
	TimeTravel  *TimeTravel
	// Rows is the planning-time row estimate for the table.
	Rows   int64
	Logger mlog.Logger
}

// ScanOp produces batches by delegating to a tabular source, which evaluates
// the pushdown predicates and projection itself.
type ScanOp struct {
	source Source
	opts   ScanOptions
	iter   BatchIterator
	opened bool
	closed bool
	logger mlog.Logger
}

// NewScan builds a scan over the source.
func NewScan(source Source, opts ScanOptions) *ScanOp {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	return &ScanOp{source: source, opts: opts, logger: logger}
}

// Open implements Operator.
func (s *ScanOp) Open(ctx context.Context) error {
	if s.opened {
		return nil
	}

	tracer := motel.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "tabular.scan_open")
	defer span.End()

	req := &ScanRequest{
		Table:       s.opts.Table,
		Columns:     s.opts.Columns,
		Predicates:  s.opts.Predicates,
		BatchSize:   s.opts.BatchSize,
		CopyBatches: s.opts.CopyBatches,
		TimeTravel:  s.opts.TimeTravel,
	}

	var (
		iter BatchIterator
		err  error
	)

	if s.opts.UseColumnarBatches {
		iter, err = s.source.ScanArrowBatches(ctx, req)
	} else {
		iter, err = s.source.ScanRowMaps(ctx, req)
	}

	if err != nil {
		motel.HandleSpanError(&span, "Failed to open scan", err)

		return err
	}

	s.iter = iter
	s.opened = true

	return nil
}

// NextBatch implements Operator.
func (s *ScanOp) NextBatch(ctx context.Context) (*Batch, error) {
	if s.closed || s.iter == nil {
		return nil, nil
	}

	return s.iter.Next(ctx)
}

// Close implements Operator.
func (s *ScanOp) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if s.iter != nil {
		return s.iter.Close()
	}

	return nil
}

// EstimatedRows implements Operator.
func (s *ScanOp) EstimatedRows() int64 {
	return s.opts.Rows
}

// BatchesCopied implements Operator. Row-map batches always own their memory;
// columnar batches follow the requested copy mode.
func (s *ScanOp) BatchesCopied() bool {
	if !s.opts.UseColumnarBatches {
		return true
	}

	return s.opts.CopyBatches
}

// Table returns the scanned table name.
func (s *ScanOp) Table() string { return s.opts.Table }

// Predicates returns the pushdown predicates the source evaluates.
func (s *ScanOp) Predicates() []pushdown.Predicate { return s.opts.Predicates }

// Columns returns the projected columns.
func (s *ScanOp) Columns() []string { return s.opts.Columns }
