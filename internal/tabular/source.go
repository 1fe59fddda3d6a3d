package tabular

import (
	"context"
	"time"

	"github.com/fluree/fluree-go/internal/pushdown"
)

// TimeTravel pins a scan to a historical state; it is passed verbatim to the
// backing source.
type TimeTravel struct {
	SnapshotID string
	AsOfTime   time.Time
}

// ScanRequest is everything a source needs to produce batches for one table.
type ScanRequest struct {
	Table      string
	Columns    []string
	Predicates []pushdown.Predicate
	BatchSize  int
	// CopyBatches asks for batches that own their memory; a source that must
	// materialize anyway may ignore it and always return owned batches.
	CopyBatches bool
	TimeTravel  *TimeTravel
}

// BatchIterator streams batches out of a source. Next returns (nil, nil) when
// the stream is exhausted.
type BatchIterator interface {
	Next(ctx context.Context) (*Batch, error)
	Close() error
}

// Source is the tabular backend a Scan delegates to. A source evaluates the
// request's pushdown predicates itself and projects to the requested columns.
type Source interface {
	ScanArrowBatches(ctx context.Context, req *ScanRequest) (BatchIterator, error)
	ScanRowMaps(ctx context.Context, req *ScanRequest) (BatchIterator, error)
}

// MatchPredicate evaluates one pushdown predicate against a cell value.
func MatchPredicate(pred pushdown.Predicate, v any) bool {
	switch pred.Op {
	case pushdown.OpIsNull:
		return v == nil
	case pushdown.OpNotNull:
		return v != nil
	}

	if v == nil {
		return false
	}

	switch pred.Op {
	case pushdown.OpEq:
		return compareValues(v, pred.Value) == 0
	case pushdown.OpNe:
		return compareValues(v, pred.Value) != 0
	case pushdown.OpLt:
		return compareValues(v, pred.Value) < 0
	case pushdown.OpLte:
		return compareValues(v, pred.Value) <= 0
	case pushdown.OpGt:
		return compareValues(v, pred.Value) > 0
	case pushdown.OpGte:
		return compareValues(v, pred.Value) >= 0
	case pushdown.OpIn:
		items, ok := pred.Value.([]any)
		if !ok {
			return false
		}

		for _, item := range items {
			if compareValues(v, item) == 0 {
				return true
			}
		}

		return false
	default:
		return false
	}
}

// MatchRow evaluates every predicate against a row map.
func MatchRow(preds []pushdown.Predicate, row map[string]any) bool {
	for _, p := range preds {
		if !MatchPredicate(p, row[p.Column]) {
			return false
		}
	}

	return true
}
