package pushdown

// Var is a SPARQL variable occurring in a filter, VALUES block or triple pattern.
type Var string

// Call is a parsed SPARQL filter form in operator-first shape, e.g.
// Call{Op: "=", Args: []any{Var("x"), 123}}. Nested Calls express boolean
// combinators and function invocations.
type Call struct {
	Op   string
	Args []any
}

// Clause is one pushable comparison extracted from a filter: the variable it
// constrains, the pushdown operator and the raw (not yet coerced) literal.
type Clause struct {
	Var   Var
	Op    Op
	Value any
}

var comparatorOps = map[string]Op{
	"=":  OpEq,
	"!=": OpNe,
	"<":  OpLt,
	"<=": OpLte,
	">":  OpGt,
	">=": OpGte,
}

// flipped maps a comparator to its mirror for the (op literal var) form.
var flipped = map[Op]Op{
	OpEq:  OpEq,
	OpNe:  OpNe,
	OpLt:  OpGt,
	OpLte: OpGte,
	OpGt:  OpLt,
	OpGte: OpLte,
}

// AnalyzeFilter decides whether a filter form can be evaluated by the
// underlying table. Pushable forms are simple binary comparisons between one
// variable and one literal (either operand order), the unary null tests, IN
// over literals, a conjunction of pushable clauses, and a disjunction of
// equality tests over one shared variable (an equality set). Anything else —
// two variables, function calls, nested combinators — is not pushable.
func AnalyzeFilter(expr any) ([]Clause, bool) {
	call, ok := expr.(Call)
	if !ok {
		return nil, false
	}

	switch call.Op {
	case "&&", "and":
		var clauses []Clause

		for _, arg := range call.Args {
			sub, ok := AnalyzeFilter(arg)
			if !ok {
				return nil, false
			}

			clauses = append(clauses, sub...)
		}

		return clauses, true
	case "||", "or":
		return analyzeEqualitySet(call)
	case "nil?":
		v, ok := singleVar(call.Args)
		if !ok {
			return nil, false
		}

		return []Clause{{Var: v, Op: OpIsNull}}, true
	case "bound":
		v, ok := singleVar(call.Args)
		if !ok {
			return nil, false
		}

		return []Clause{{Var: v, Op: OpNotNull}}, true
	case "in":
		return analyzeIn(call)
	}

	op, ok := comparatorOps[call.Op]
	if !ok {
		return nil, false
	}

	if len(call.Args) != 2 {
		return nil, false
	}

	lv, lIsVar := call.Args[0].(Var)
	rv, rIsVar := call.Args[1].(Var)

	switch {
	case lIsVar && rIsVar:
		return nil, false
	case lIsVar:
		if !isLiteral(call.Args[1]) {
			return nil, false
		}

		return []Clause{{Var: lv, Op: op, Value: call.Args[1]}}, true
	case rIsVar:
		if !isLiteral(call.Args[0]) {
			return nil, false
		}

		return []Clause{{Var: rv, Op: flipped[op], Value: call.Args[0]}}, true
	default:
		return nil, false
	}
}

// analyzeEqualitySet accepts a disjunction iff every branch is an equality
// test on one shared variable; the branches collapse to eq clauses the
// coalescer later folds into a single IN.
func analyzeEqualitySet(call Call) ([]Clause, bool) {
	var (
		shared  Var
		clauses []Clause
	)

	for _, arg := range call.Args {
		sub, ok := AnalyzeFilter(arg)
		if !ok {
			return nil, false
		}

		for _, c := range sub {
			if c.Op != OpEq {
				return nil, false
			}

			if shared == "" {
				shared = c.Var
			} else if c.Var != shared {
				return nil, false
			}

			clauses = append(clauses, c)
		}
	}

	if len(clauses) == 0 {
		return nil, false
	}

	return clauses, true
}

func analyzeIn(call Call) ([]Clause, bool) {
	if len(call.Args) != 2 {
		return nil, false
	}

	v, ok := call.Args[0].(Var)
	if !ok {
		return nil, false
	}

	items, ok := call.Args[1].([]any)
	if !ok {
		return nil, false
	}

	for _, item := range items {
		if !isLiteral(item) {
			return nil, false
		}
	}

	return []Clause{{Var: v, Op: OpIn, Value: items}}, true
}

func singleVar(args []any) (Var, bool) {
	if len(args) != 1 {
		return "", false
	}

	v, ok := args[0].(Var)

	return v, ok
}

func isLiteral(v any) bool {
	switch v.(type) {
	case Var, Call:
		return false
	default:
		return true
	}
}

// ValuesClause is a parsed SPARQL VALUES block.
type ValuesClause struct {
	Vars []Var
	Rows [][]any
}

// AnalyzeValues converts a VALUES block binding a single variable to a list
// of literals into an IN clause against whichever column that variable is
// bound to. Multi-variable blocks are not pushable.
func AnalyzeValues(vc ValuesClause) (Clause, bool) {
	if len(vc.Vars) != 1 {
		return Clause{}, false
	}

	values := make([]any, 0, len(vc.Rows))

	for _, row := range vc.Rows {
		if len(row) != 1 || !isLiteral(row[0]) {
			return Clause{}, false
		}

		values = append(values, row[0])
	}

	if len(values) == 0 {
		return Clause{}, false
	}

	return Clause{Var: vc.Vars[0], Op: OpIn, Value: values}, true
}
