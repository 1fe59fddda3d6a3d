// Package index models the immutable B-tree index of the ledger: unresolved
// node summaries, realized branch/leaf nodes, and the resolver that
// materializes them from storage through the resolver cache.
package index

import (
	"strings"
)

// Flake is one ledger fact: subject, predicate, object, transaction, assert
// flag and metadata. Flakes are the leaf payload of every index.
type Flake struct {
	S  int64
	P  int64
	O  any
	T  int64
	Op bool
	M  any
}

// Type identifies one of the four sort orders an index can carry. The
// comparator is a property of the index id, never of a node.
type Type string

// The four index sort orders.
const (
	SPOT Type = "spot"
	POST Type = "post"
	OPST Type = "opst"
	TSPO Type = "tspo"
)

// ParseType validates an index id.
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case SPOT, POST, OPST, TSPO:
		return Type(s), true
	}

	return "", false
}

// Compare orders two flakes under the index's sort order. Nil flakes sort
// before everything so a nil First acts as an open lower bound.
func (t Type) Compare(a, b *Flake) int {
	if a == nil || b == nil {
		switch {
		case a == b:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	switch t {
	case POST:
		return compareChain(
			compareInt64(a.P, b.P),
			CompareValues(a.O, b.O),
			compareInt64(a.S, b.S),
			compareInt64(b.T, a.T),
		)
	case OPST:
		return compareChain(
			CompareValues(a.O, b.O),
			compareInt64(a.P, b.P),
			compareInt64(a.S, b.S),
			compareInt64(b.T, a.T),
		)
	case TSPO:
		return compareChain(
			compareInt64(b.T, a.T),
			compareInt64(a.S, b.S),
			compareInt64(a.P, b.P),
			CompareValues(a.O, b.O),
		)
	default: // SPOT
		return compareChain(
			compareInt64(a.S, b.S),
			compareInt64(a.P, b.P),
			CompareValues(a.O, b.O),
			compareInt64(b.T, a.T),
		)
	}
}

// Less adapts Compare for btree ordering.
func (t Type) Less(a, b *Flake) bool {
	return t.Compare(a, b) < 0
}

func compareChain(cmps ...int) int {
	for _, c := range cmps {
		if c != 0 {
			return c
		}
	}

	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareValues imposes a total order over heterogeneous object values:
// nil, then booleans, then numbers by magnitude, then strings lexicographic.
func CompareValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return compareInt64(int64(ra), int64(rb))
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
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	default:
		return strings.Compare(toString(a), toString(b))
	}
}

func valueRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	default:
		return 3
	}
}

func toFloat(v any) float64 {
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

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	return ""
}
