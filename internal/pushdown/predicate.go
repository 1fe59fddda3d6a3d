// Package pushdown recognizes the SPARQL filter and VALUES forms a tabular
// source can evaluate itself, coerces literals to column types, and annotates
// routed pattern groups with pushdown predicates.
package pushdown

// Op is the pushdown operator set.
type Op string

// The operators a tabular source can evaluate during scan.
const (
	OpEq      Op = "eq"
	OpNe      Op = "ne"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpIn      Op = "in"
	OpIsNull  Op = "is-null"
	OpNotNull Op = "not-null"
)

// Predicate is one pushdown predicate against a column. Value is a
// column-typed literal, or a slice of them for OpIn, and nil for the null
// tests.
type Predicate struct {
	Op     Op
	Column string
	Value  any
}

// Coalesce merges equality predicates per column: several OpEq on one column
// become a single OpIn, and an existing OpIn on the column absorbs further
// OpEq values. Relative order of first appearance is kept.
func Coalesce(preds []Predicate) []Predicate {
	type slot struct {
		idx    int
		merged bool
	}

	out := make([]Predicate, 0, len(preds))
	byColumn := make(map[string]*slot)

	for _, p := range preds {
		if p.Op != OpEq && p.Op != OpIn {
			out = append(out, p)
			continue
		}

		s, seen := byColumn[p.Column]
		if !seen {
			out = append(out, p)
			byColumn[p.Column] = &slot{idx: len(out) - 1, merged: p.Op == OpIn}

			continue
		}

		existing := &out[s.idx]

		if !s.merged {
			existing.Value = []any{existing.Value}
			existing.Op = OpIn
			s.merged = true
		}

		vals := existing.Value.([]any)

		if p.Op == OpIn {
			vals = append(vals, asSlice(p.Value)...)
		} else {
			vals = append(vals, p.Value)
		}

		existing.Value = vals
	}

	return out
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}

	return []any{v}
}
