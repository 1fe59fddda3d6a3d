package tabular

import (
	"context"
	"strings"

	"github.com/fluree/fluree-go/pkg/apperr"
)

// AggFn is one of the supported aggregate functions.
type AggFn string

// The aggregate function set.
const (
	AggCount         AggFn = "count"
	AggCountDistinct AggFn = "count-distinct"
	AggSum           AggFn = "sum"
	AggAvg           AggFn = "avg"
	AggMin           AggFn = "min"
	AggMax           AggFn = "max"
)

// Aggregate describes one aggregate: the function, the input column ("*" for
// count-star) and the output alias.
type Aggregate struct {
	Fn     AggFn
	Column string
	Alias  string
}

// HashAggregateOp is fully blocking: it drains its child, accumulates per
// group, and emits one output batch. With no group keys and zero input rows
// it still emits exactly one row — the implicit group over an empty input:
// count 0, sum 0, avg/min/max null.
type HashAggregateOp struct {
	child      Operator
	groupKeys  []string
	aggregates []Aggregate

	done   bool
	closed bool
}

// NewHashAggregate builds the aggregation over the child.
func NewHashAggregate(child Operator, groupKeys []string, aggregates []Aggregate) *HashAggregateOp {
	return &HashAggregateOp{
		child:      child,
		groupKeys:  groupKeys,
		aggregates: aggregates,
	}
}

// Open implements Operator.
func (h *HashAggregateOp) Open(ctx context.Context) error {
	return h.child.Open(ctx)
}

type aggGroup struct {
	keys map[string]any
	accs []accumulator
}

// NextBatch implements Operator: the single output batch on first pull, end
// of stream afterwards.
func (h *HashAggregateOp) NextBatch(ctx context.Context) (*Batch, error) {
	if h.done || h.closed {
		return nil, nil
	}

	h.done = true

	groups := make(map[string]*aggGroup)

	var order []string

	for {
		batch, err := h.child.NextBatch(ctx)
		if err != nil {
			return nil, err
		}

		if batch == nil {
			break
		}

		rows := batch.Rows()
		batch.Release()

		for _, row := range rows {
			key := h.groupKey(row)

			g, ok := groups[key]
			if !ok {
				g = &aggGroup{
					keys: make(map[string]any, len(h.groupKeys)),
					accs: h.newAccumulators(),
				}

				for _, k := range h.groupKeys {
					g.keys[k] = row[k]
				}

				groups[key] = g
				order = append(order, key)
			}

			for i, agg := range h.aggregates {
				if agg.Column == "*" {
					g.accs[i].add(struct{}{})
					continue
				}

				g.accs[i].add(row[agg.Column])
			}
		}
	}

	// Implicit grouping: no group keys means exactly one result row, even over
	// zero input rows.
	if len(h.groupKeys) == 0 && len(groups) == 0 {
		groups[""] = &aggGroup{keys: map[string]any{}, accs: h.newAccumulators()}
		order = append(order, "")
	}

	out := make([]map[string]any, 0, len(groups))

	for _, key := range order {
		g := groups[key]

		row := make(map[string]any, len(g.keys)+len(h.aggregates))

		for k, v := range g.keys {
			row[k] = v
		}

		for i, agg := range h.aggregates {
			row[agg.Alias] = g.accs[i].result()
		}

		out = append(out, row)
	}

	return NewRowBatch(out), nil
}

func (h *HashAggregateOp) groupKey(row map[string]any) string {
	if len(h.groupKeys) == 0 {
		return ""
	}

	var sb strings.Builder

	for i, k := range h.groupKeys {
		if i > 0 {
			sb.WriteByte('|')
		}

		if key, ok := joinKey([]any{row[k]}); ok {
			sb.WriteString(key)
		} else {
			// Unprefixed, so it can never collide with a real key encoding.
			sb.WriteString("null")
		}
	}

	return sb.String()
}

func (h *HashAggregateOp) newAccumulators() []accumulator {
	accs := make([]accumulator, len(h.aggregates))

	for i, agg := range h.aggregates {
		switch agg.Fn {
		case AggCount:
			accs[i] = &countAcc{star: agg.Column == "*"}
		case AggCountDistinct:
			accs[i] = &distinctAcc{seen: make(map[string]struct{})}
		case AggSum:
			accs[i] = &sumAcc{}
		case AggAvg:
			accs[i] = &avgAcc{}
		case AggMin:
			accs[i] = &extremumAcc{min: true}
		case AggMax:
			accs[i] = &extremumAcc{}
		}
	}

	return accs
}

// Close implements Operator.
func (h *HashAggregateOp) Close() error {
	if h.closed {
		return nil
	}

	h.closed = true

	return h.child.Close()
}

// EstimatedRows implements Operator: grouped output is bounded by the input.
func (h *HashAggregateOp) EstimatedRows() int64 {
	if len(h.groupKeys) == 0 {
		return 1
	}

	return h.child.EstimatedRows()
}

// BatchesCopied implements Operator.
func (h *HashAggregateOp) BatchesCopied() bool { return true }

// Validate rejects unknown aggregate functions up front.
func (h *HashAggregateOp) Validate() error {
	for _, agg := range h.aggregates {
		switch agg.Fn {
		case AggCount, AggCountDistinct, AggSum, AggAvg, AggMin, AggMax:
		default:
			return apperr.New(apperr.KindInvalidConfiguration, "unknown aggregate function %q", agg.Fn)
		}
	}

	return nil
}

type accumulator interface {
	add(v any)
	result() any
}

// countAcc increments on non-null, or unconditionally for count(*).
type countAcc struct {
	star bool
	n    int64
}

func (a *countAcc) add(v any) {
	if a.star || v != nil {
		a.n++
	}
}

func (a *countAcc) result() any { return a.n }

type distinctAcc struct {
	seen map[string]struct{}
}

func (a *distinctAcc) add(v any) {
	if v == nil {
		return
	}

	if key, ok := joinKey([]any{v}); ok {
		a.seen[key] = struct{}{}
	}
}

func (a *distinctAcc) result() any { return int64(len(a.seen)) }

// sumAcc adds numerics; the empty sum is 0.
type sumAcc struct {
	intSum   int64
	floatSum float64
	sawFloat bool
}

func (a *sumAcc) add(v any) {
	if v == nil || !isNumeric(v) {
		return
	}

	switch n := v.(type) {
	case int:
		a.intSum += int64(n)
	case int32:
		a.intSum += int64(n)
	case int64:
		a.intSum += n
	default:
		a.sawFloat = true
		a.floatSum += numericValue(v)
	}
}

func (a *sumAcc) result() any {
	if a.sawFloat {
		return a.floatSum + float64(a.intSum)
	}

	return a.intSum
}

// avgAcc maintains (sum, count); the empty average is null.
type avgAcc struct {
	sum float64
	n   int64
}

func (a *avgAcc) add(v any) {
	if v == nil || !isNumeric(v) {
		return
	}

	a.sum += numericValue(v)
	a.n++
}

func (a *avgAcc) result() any {
	if a.n == 0 {
		return nil
	}

	return a.sum / float64(a.n)
}

// extremumAcc tracks min or max under the well-defined value ordering:
// numerics by magnitude, strings lexicographic.
type extremumAcc struct {
	min bool
	cur any
	set bool
}

func (a *extremumAcc) add(v any) {
	if v == nil {
		return
	}

	if !a.set {
		a.cur = v
		a.set = true

		return
	}

	c := compareValues(v, a.cur)
	if (a.min && c < 0) || (!a.min && c > 0) {
		a.cur = v
	}
}

func (a *extremumAcc) result() any {
	if !a.set {
		return nil
	}

	return a.cur
}
