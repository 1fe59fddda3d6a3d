package pushdown

import (
	"github.com/fluree/fluree-go/pkg/mlog"

	"github.com/fluree/fluree-go/internal/r2rml"
)

// TriplePattern is one SPARQL triple pattern routed to a mapping. Subject and
// Object are either a Var or a literal; Predicate is an IRI.
type TriplePattern struct {
	Subject   any
	Predicate string
	Object    any
}

// PatternGroup is the unit the planner consumes: the triple patterns routed
// to one mapping, the pushdown predicates attached to them, and whether the
// group is OPTIONAL.
type PatternGroup struct {
	Mapping    *r2rml.Mapping
	Patterns   []TriplePattern
	Predicates []Predicate
	Optional   bool
}

// bindingColumn finds the first triple pattern of the group that binds the
// variable and returns the mapped column and its declared datatype.
func (g *PatternGroup) bindingColumn(v Var) (column, datatype string, ok bool) {
	for _, p := range g.Patterns {
		ov, isVar := p.Object.(Var)
		if !isVar || ov != v {
			continue
		}

		col, hasCol := g.Mapping.ColumnFor(p.Predicate)
		if !hasCol {
			// The predicate is a projection without backing column (e.g. a ref);
			// a later pattern may still bind the variable to a real column.
			continue
		}

		dt, _ := g.Mapping.DatatypeFor(p.Predicate)

		return col, dt, true
	}

	return "", "", false
}

// Annotate attaches every pushable filter and VALUES clause to the group as a
// pushdown predicate and returns the filters that must stay residual. A
// clause is refused — and its filter kept residual — when its variable is
// never bound by a triple pattern in this group, when the bound predicate has
// no backing column, or when any value fails coercion. One coercion failure
// cancels pushdown for the entire predicate. Coercion failures are logged at
// debug level with the variable, target type and value; they are never fatal.
func Annotate(group *PatternGroup, filters []any, values []ValuesClause, colTypes ColumnTypes, logger mlog.Logger) []any {
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	var residual []any

	for _, filter := range filters {
		clauses, pushable := AnalyzeFilter(filter)
		if !pushable {
			residual = append(residual, filter)
			continue
		}

		preds, ok := coerceClauses(group, clauses, colTypes, logger)
		if !ok {
			residual = append(residual, filter)
			continue
		}

		group.Predicates = append(group.Predicates, preds...)
	}

	for _, vc := range values {
		clause, pushable := AnalyzeValues(vc)
		if !pushable {
			continue
		}

		preds, ok := coerceClauses(group, []Clause{clause}, colTypes, logger)
		if !ok {
			continue
		}

		group.Predicates = append(group.Predicates, preds...)
	}

	group.Predicates = Coalesce(group.Predicates)

	return residual
}

func coerceClauses(group *PatternGroup, clauses []Clause, colTypes ColumnTypes, logger mlog.Logger) ([]Predicate, bool) {
	preds := make([]Predicate, 0, len(clauses))

	for _, c := range clauses {
		column, datatype, bound := group.bindingColumn(c.Var)
		if !bound {
			return nil, false
		}

		colType := colTypes[column]

		pred := Predicate{Op: c.Op, Column: column}

		switch c.Op {
		case OpIsNull, OpNotNull:
			// Null tests carry no value to coerce.
		case OpIn:
			items := asSlice(c.Value)
			coerced := make([]any, 0, len(items))

			for _, item := range items {
				v, err := Coerce(item, datatype, colType)
				if err != nil {
					logger.Debugf("pushdown refused: var=%s target=%s value=%s: %v", c.Var, datatype, describeValue(item), err)
					return nil, false
				}

				coerced = append(coerced, v)
			}

			pred.Value = coerced
		default:
			v, err := Coerce(c.Value, datatype, colType)
			if err != nil {
				logger.Debugf("pushdown refused: var=%s target=%s value=%s: %v", c.Var, datatype, describeValue(c.Value), err)
				return nil, false
			}

			pred.Value = v
		}

		preds = append(preds, pred)
	}

	return preds, true
}
