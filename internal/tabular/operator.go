package tabular

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Operator is the contract every node of a plan satisfies. Instances are
// single-threaded: Open, NextBatch and Close are called from one logical
// thread and never concurrently.
type Operator interface {
	// Open initializes state and opens children. Idempotent.
	Open(ctx context.Context) error

	// NextBatch returns the next output batch, or (nil, nil) at end of stream.
	// Returned batches are owned by the operator unless Copied reports true;
	// the caller MUST consume a shared batch before the next pull.
	NextBatch(ctx context.Context) (*Batch, error)

	// Close releases held resources and closes children. Idempotent and safe
	// after partial iteration.
	Close() error

	// EstimatedRows is a planning-time estimate, never a correctness contract.
	EstimatedRows() int64

	// BatchesCopied reports whether batches from this operator own their
	// memory and are safe for the caller to hold and release.
	BatchesCopied() bool
}

// joinKey renders a key tuple into a hashable string. Integral floats fold
// into the integer space so an int64 build key matches a float64 probe key of
// equal value. The second return is false when any key column is null: a null
// never matches, not even another null.
func joinKey(values []any) (string, bool) {
	var sb strings.Builder

	for i, v := range values {
		if v == nil {
			return "", false
		}

		if i > 0 {
			sb.WriteByte('|')
		}

		switch t := v.(type) {
		case bool:
			sb.WriteString("b:")
			sb.WriteString(strconv.FormatBool(t))
		case int:
			sb.WriteString("i:")
			sb.WriteString(strconv.FormatInt(int64(t), 10))
		case int32:
			sb.WriteString("i:")
			sb.WriteString(strconv.FormatInt(int64(t), 10))
		case int64:
			sb.WriteString("i:")
			sb.WriteString(strconv.FormatInt(t, 10))
		case float64:
			if t == float64(int64(t)) {
				sb.WriteString("i:")
				sb.WriteString(strconv.FormatInt(int64(t), 10))
			} else {
				sb.WriteString("f:")
				sb.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
			}
		case time.Time:
			sb.WriteString("t:")
			sb.WriteString(strconv.FormatInt(t.UnixNano(), 10))
		case string:
			sb.WriteString("s:")
			sb.WriteString(t)
		default:
			return "", false
		}
	}

	return sb.String(), true
}
