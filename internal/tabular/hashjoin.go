package tabular

import (
	"context"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/mlog"
)

// JoinType selects the join semantics.
type JoinType int

const (
	// InnerJoin emits only matched pairs.
	InnerJoin JoinType = iota
	// LeftOuterJoin emits every probe row; unmatched probe rows carry nulls in
	// all build-side columns. The required side of an OPTIONAL is always the
	// probe side so required rows are never dropped.
	LeftOuterJoin
)

// HashJoinOptions parameterizes a hash join.
type HashJoinOptions struct {
	Type      JoinType
	BuildKeys []string
	ProbeKeys []string
	// Vectorized selects the gather-based columnar mode; both children must
	// then produce columnar batches.
	Vectorized bool
	// OutputColumns trims which columns are copied from build and probe into
	// the output. Nil keeps everything. The plan compiler augments this with
	// every downstream join-key column.
	OutputColumns map[string]struct{}
	Allocator     memory.Allocator
	Logger        mlog.Logger
}

// buildRef locates one build row without extracting it: batch index and row
// index into the retained build batches.
type buildRef struct {
	batch int32
	row   int32
}

// HashJoinOp joins two children: the build side is consumed in full and
// indexed by key before the first probe batch is pulled; probe batches then
// stream through the table. A null in any key column never matches, not even
// another null.
type HashJoinOp struct {
	build  Operator
	probe  Operator
	opts   HashJoinOptions
	alloc  memory.Allocator
	logger mlog.Logger

	opened          bool
	closed          bool
	built           bool
	warnedCollision bool

	// Row-map mode state.
	buildRows    map[string][]map[string]any
	buildColumns []string

	// Vectorized mode state.
	buildBatches []arrow.Record
	buildRefs    map[string][]buildRef
	buildSchema  *arrow.Schema
}

// NewHashJoin builds a hash join over the two children.
func NewHashJoin(build, probe Operator, opts HashJoinOptions) *HashJoinOp {
	if opts.Allocator == nil {
		opts.Allocator = memory.NewGoAllocator()
	}

	logger := opts.Logger
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	return &HashJoinOp{
		build:  build,
		probe:  probe,
		opts:   opts,
		alloc:  opts.Allocator,
		logger: logger,
	}
}

// Open implements Operator: it opens both children and consumes the build
// side in full into the hash table.
func (j *HashJoinOp) Open(ctx context.Context) error {
	if j.opened {
		return nil
	}

	if err := j.build.Open(ctx); err != nil {
		return err
	}

	if err := j.probe.Open(ctx); err != nil {
		return err
	}

	if err := j.consumeBuildSide(ctx); err != nil {
		return err
	}

	j.opened = true

	return nil
}

func (j *HashJoinOp) consumeBuildSide(ctx context.Context) error {
	if j.built {
		return nil
	}

	if j.opts.Vectorized {
		j.buildRefs = make(map[string][]buildRef)
	} else {
		j.buildRows = make(map[string][]map[string]any)
	}

	seenCols := make(map[string]struct{})

	for {
		batch, err := j.build.NextBatch(ctx)
		if err != nil {
			return err
		}

		if batch == nil {
			break
		}

		if j.opts.Vectorized {
			if err := j.indexColumnarBuildBatch(batch); err != nil {
				return err
			}

			continue
		}

		for _, name := range batch.ColumnNames() {
			if _, ok := seenCols[name]; !ok {
				seenCols[name] = struct{}{}
				j.buildColumns = append(j.buildColumns, name)
			}
		}

		for _, row := range batch.Rows() {
			key, ok := j.rowKey(row, j.opts.BuildKeys)
			if !ok {
				continue
			}

			j.buildRows[key] = append(j.buildRows[key], row)
		}
	}

	j.built = true

	return nil
}

// indexColumnarBuildBatch retains the batch and indexes references instead of
// extracted rows; output columns are later gathered directly from the
// retained vectors.
func (j *HashJoinOp) indexColumnarBuildBatch(batch *Batch) error {
	rec := batch.Record()
	if rec == nil {
		return apperr.New(apperr.KindInvalidConfiguration, "vectorized hash join requires columnar build batches")
	}

	if !batch.Copied() {
		rec = copyRecord(j.alloc, rec)
	} else {
		rec.Retain()
	}

	batchIdx := int32(len(j.buildBatches))
	j.buildBatches = append(j.buildBatches, rec)

	if j.buildSchema == nil {
		j.buildSchema = rec.Schema()
	}

	keyCols := make([]arrow.Array, len(j.opts.BuildKeys))

	for i, name := range j.opts.BuildKeys {
		indices := rec.Schema().FieldIndices(name)
		if len(indices) == 0 {
			return apperr.New(apperr.KindInvalidConfiguration, "build side has no key column %q", name)
		}

		keyCols[i] = rec.Column(indices[0])
	}

	keyVals := make([]any, len(keyCols))

	for row := 0; row < int(rec.NumRows()); row++ {
		for i, col := range keyCols {
			keyVals[i] = arrowValue(col, row)
		}

		key, ok := joinKey(keyVals)
		if !ok {
			continue
		}

		j.buildRefs[key] = append(j.buildRefs[key], buildRef{batch: batchIdx, row: int32(row)})
	}

	return nil
}

func (j *HashJoinOp) rowKey(row map[string]any, keys []string) (string, bool) {
	vals := make([]any, len(keys))
	for i, k := range keys {
		vals[i] = row[k]
	}

	return joinKey(vals)
}

// NextBatch implements Operator.
func (j *HashJoinOp) NextBatch(ctx context.Context) (*Batch, error) {
	if j.closed {
		return nil, nil
	}

	for {
		probeBatch, err := j.probe.NextBatch(ctx)
		if err != nil {
			return nil, err
		}

		if probeBatch == nil {
			return nil, nil
		}

		var out *Batch

		if j.opts.Vectorized {
			out, err = j.probeColumnar(probeBatch)
		} else {
			out, err = j.probeRows(probeBatch)
		}

		if err != nil {
			return nil, err
		}

		if out != nil && out.NumRows() > 0 {
			return out, nil
		}
	}
}

// probeRows is the row-map mode: merged row maps per match, probe values
// winning shared column names.
func (j *HashJoinOp) probeRows(probeBatch *Batch) (*Batch, error) {
	probeRows := probeBatch.Rows()
	j.warnOnCollision(probeBatch.ColumnNames())

	out := make([]map[string]any, 0, len(probeRows))

	for _, probeRow := range probeRows {
		key, ok := j.rowKey(probeRow, j.opts.ProbeKeys)

		var matches []map[string]any
		if ok {
			matches = j.buildRows[key]
		}

		if len(matches) == 0 {
			if j.opts.Type == LeftOuterJoin {
				out = append(out, j.mergeRows(nil, probeRow))
			}

			continue
		}

		for _, buildRow := range matches {
			out = append(out, j.mergeRows(buildRow, probeRow))
		}
	}

	return NewRowBatch(out), nil
}

// mergeRows merges a build row into a probe row, trimming to the output
// columns when configured. A nil build row nulls every build-side column.
func (j *HashJoinOp) mergeRows(buildRow, probeRow map[string]any) map[string]any {
	out := make(map[string]any, len(j.buildColumns)+len(probeRow))

	for _, col := range j.buildColumns {
		if !j.wantColumn(col) {
			continue
		}

		if buildRow == nil {
			out[col] = nil
		} else {
			out[col] = buildRow[col]
		}
	}

	for col, v := range probeRow {
		if !j.wantColumn(col) {
			continue
		}

		out[col] = v
	}

	return out
}

func (j *HashJoinOp) wantColumn(col string) bool {
	if j.opts.OutputColumns == nil {
		return true
	}

	_, ok := j.opts.OutputColumns[col]

	return ok
}

// warnOnCollision logs once per join when build and probe share a column name
// and no output-column trimming was supplied.
func (j *HashJoinOp) warnOnCollision(probeCols []string) {
	if j.warnedCollision || j.opts.OutputColumns != nil {
		return
	}

	buildSet := make(map[string]struct{}, len(j.buildColumns))
	for _, c := range j.buildColumns {
		buildSet[c] = struct{}{}
	}

	if j.buildSchema != nil {
		for _, f := range j.buildSchema.Fields() {
			buildSet[f.Name] = struct{}{}
		}
	}

	for _, c := range probeCols {
		if _, shared := buildSet[c]; shared {
			j.logger.Warnf("hash join: column %q exists on both sides; both land in the output, consider output-columns", c)
			j.warnedCollision = true

			return
		}
	}
}

// probeColumnar is the vectorized mode. A two-pass process sizes and fills
// three parallel index arrays (build batch, build row, probe row), then
// output columns are gathered directly from the source vectors into fresh
// vectors; no per-row maps are materialized. buildBatchIdx of -1 marks an
// unmatched probe row and writes nulls into every build-side column.
func (j *HashJoinOp) probeColumnar(probeBatch *Batch) (*Batch, error) {
	rec := probeBatch.Record()
	if rec == nil {
		return nil, apperr.New(apperr.KindInvalidConfiguration, "vectorized hash join requires columnar probe batches")
	}

	defer probeBatch.Release()

	probeNames := make([]string, 0, len(rec.Schema().Fields()))
	for _, f := range rec.Schema().Fields() {
		probeNames = append(probeNames, f.Name)
	}

	j.warnOnCollision(probeNames)

	keyCols := make([]arrow.Array, len(j.opts.ProbeKeys))

	for i, name := range j.opts.ProbeKeys {
		indices := rec.Schema().FieldIndices(name)
		if len(indices) == 0 {
			return nil, apperr.New(apperr.KindInvalidConfiguration, "probe side has no key column %q", name)
		}

		keyCols[i] = rec.Column(indices[0])
	}

	numProbe := int(rec.NumRows())
	keyVals := make([]any, len(keyCols))

	// Pass 1: size the match set.
	matchCount := 0

	for row := 0; row < numProbe; row++ {
		refs := j.refsForProbeRow(keyCols, keyVals, row)

		matchCount += len(refs)
		if len(refs) == 0 && j.opts.Type == LeftOuterJoin {
			matchCount++
		}
	}

	buildBatchIdx := make([]int32, matchCount)
	buildRowIdx := make([]int32, matchCount)
	probeRowIdx := make([]int32, matchCount)

	// Pass 2: fill the index arrays in (probe row, build match order).
	n := 0

	for row := 0; row < numProbe; row++ {
		refs := j.refsForProbeRow(keyCols, keyVals, row)

		if len(refs) == 0 {
			if j.opts.Type == LeftOuterJoin {
				buildBatchIdx[n] = -1
				buildRowIdx[n] = -1
				probeRowIdx[n] = int32(row)
				n++
			}

			continue
		}

		for _, ref := range refs {
			buildBatchIdx[n] = ref.batch
			buildRowIdx[n] = ref.row
			probeRowIdx[n] = int32(row)
			n++
		}
	}

	return j.gather(rec, buildBatchIdx, buildRowIdx, probeRowIdx)
}

func (j *HashJoinOp) refsForProbeRow(keyCols []arrow.Array, keyVals []any, row int) []buildRef {
	for i, col := range keyCols {
		keyVals[i] = arrowValue(col, row)
	}

	key, ok := joinKey(keyVals)
	if !ok {
		return nil
	}

	return j.buildRefs[key]
}

// gather assembles the output record: build-side columns first, probe-side
// columns second, each trimmed by the output-column set. The gather kernel is
// the same for inner and left-outer up to the -1 sentinel.
func (j *HashJoinOp) gather(probeRec arrow.Record, buildBatchIdx, buildRowIdx, probeRowIdx []int32) (*Batch, error) {
	type gatherCol struct {
		field     arrow.Field
		srcIdx    int
		fromBuild bool
	}

	var cols []gatherCol

	if j.buildSchema != nil {
		for i, f := range j.buildSchema.Fields() {
			if j.wantColumn(f.Name) {
				cols = append(cols, gatherCol{field: f, srcIdx: i, fromBuild: true})
			}
		}
	}

	for i, f := range probeRec.Schema().Fields() {
		if j.wantColumn(f.Name) {
			cols = append(cols, gatherCol{field: f, srcIdx: i})
		}
	}

	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = c.field
		fields[i].Nullable = true
	}

	builder := array.NewRecordBuilder(j.alloc, arrow.NewSchema(fields, nil))
	defer builder.Release()

	for ci, c := range cols {
		fb := builder.Field(ci)

		if c.fromBuild {
			for i := range buildBatchIdx {
				bi := buildBatchIdx[i]
				if bi < 0 {
					fb.AppendNull()
					continue
				}

				appendCell(fb, j.buildBatches[bi].Column(c.srcIdx), int(buildRowIdx[i]))
			}

			continue
		}

		src := probeRec.Column(c.srcIdx)
		for i := range probeRowIdx {
			appendCell(fb, src, int(probeRowIdx[i]))
		}
	}

	return NewColumnarBatch(builder.NewRecord(), true), nil
}

// Close implements Operator.
func (j *HashJoinOp) Close() error {
	if j.closed {
		return nil
	}

	j.closed = true

	for _, rec := range j.buildBatches {
		rec.Release()
	}

	j.buildBatches = nil
	j.buildRefs = nil
	j.buildRows = nil

	errBuild := j.build.Close()
	errProbe := j.probe.Close()

	if errBuild != nil {
		return errBuild
	}

	return errProbe
}

// EstimatedRows implements Operator; an FK join emits roughly one row per
// probe row.
func (j *HashJoinOp) EstimatedRows() int64 {
	return j.probe.EstimatedRows()
}

// BatchesCopied implements Operator: join output is always freshly assembled.
func (j *HashJoinOp) BatchesCopied() bool { return true }

// copyRecord deep-copies a shared record so it can outlive its iterator.
func copyRecord(alloc memory.Allocator, rec arrow.Record) arrow.Record {
	builder := array.NewRecordBuilder(alloc, rec.Schema())
	defer builder.Release()

	for c := range rec.Schema().Fields() {
		col := rec.Column(c)
		for row := 0; row < int(rec.NumRows()); row++ {
			appendCell(builder.Field(c), col, row)
		}
	}

	return builder.NewRecord()
}
