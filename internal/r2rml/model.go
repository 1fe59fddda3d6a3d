// Package r2rml parses relational-to-RDF mapping documents (Turtle or
// JSON-LD) into mapping records and derives the foreign-key join graph the
// planner routes over.
package r2rml

import (
	"regexp"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
)

// The R2RML vocabulary subset the parser understands.
const (
	NS = "http://www.w3.org/ns/r2rml#"

	rdfType            = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rrTriplesMap       = NS + "TriplesMap"
	rrLogicalTable     = NS + "logicalTable"
	rrTableName        = NS + "tableName"
	rrSubjectMap       = NS + "subjectMap"
	rrTemplate         = NS + "template"
	rrClass            = NS + "class"
	rrPredObjectMap    = NS + "predicateObjectMap"
	rrPredicate        = NS + "predicate"
	rrObjectMap        = NS + "objectMap"
	rrColumn           = NS + "column"
	rrDatatype         = NS + "datatype"
	rrParentTriplesMap = NS + "parentTriplesMap"
	rrJoinCondition    = NS + "joinCondition"
	rrChild            = NS + "child"
	rrParent           = NS + "parent"
)

// ObjectMapKind discriminates the two object-map variants.
type ObjectMapKind int

const (
	// ObjectColumn is a TermMap: the predicate maps to one column.
	ObjectColumn ObjectMapKind = iota
	// ObjectRef is a RefObjectMap: a foreign-key reference to another TriplesMap.
	ObjectRef
)

// JoinCondition pairs a child column with a parent column.
type JoinCondition struct {
	Child  string
	Parent string
}

// ObjectMap is the right-hand side of one predicate-object pair.
type ObjectMap struct {
	Kind ObjectMapKind

	// Column and Datatype are set for ObjectColumn.
	Column   string
	Datatype string

	// ParentTriplesMap and JoinConditions are set for ObjectRef; at least one
	// join condition is required.
	ParentTriplesMap string
	JoinConditions   []JoinCondition
}

// Mapping relates one logical table to an RDF subject template, class and
// predicate map.
type Mapping struct {
	// IRI names the TriplesMap this mapping was parsed from.
	IRI string
	// Table is the logical table name, e.g. "schema.table".
	Table string
	// SubjectTemplate is an IRI template with {colName} placeholders.
	SubjectTemplate string
	// TemplateColumns are the placeholder columns extracted from the template.
	TemplateColumns []string
	// Class is the rdf:class of subjects, optional.
	Class string
	// Predicates maps predicate IRI to its object map.
	Predicates map[string]*ObjectMap
}

// ColumnFor returns the backing column of a predicate, when the predicate is
// a TermMap.
func (m *Mapping) ColumnFor(predicate string) (string, bool) {
	om, ok := m.Predicates[predicate]
	if !ok || om.Kind != ObjectColumn {
		return "", false
	}

	return om.Column, true
}

// DatatypeFor returns the declared XSD datatype of a predicate's column, when present.
func (m *Mapping) DatatypeFor(predicate string) (string, bool) {
	om, ok := m.Predicates[predicate]
	if !ok || om.Kind != ObjectColumn {
		return "", false
	}

	return om.Datatype, om.Datatype != ""
}

// MappingSet indexes parsed mappings by table and by TriplesMap IRI.
type MappingSet struct {
	byTable map[string]*Mapping
	byIRI   map[string]*Mapping
	order   []*Mapping
}

func newMappingSet() *MappingSet {
	return &MappingSet{
		byTable: make(map[string]*Mapping),
		byIRI:   make(map[string]*Mapping),
	}
}

func (s *MappingSet) add(m *Mapping) {
	s.byTable[m.Table] = m
	s.byIRI[m.IRI] = m
	s.order = append(s.order, m)
}

// ByTable returns the mapping for a logical table.
func (s *MappingSet) ByTable(table string) (*Mapping, bool) {
	m, ok := s.byTable[table]
	return m, ok
}

// ByIRI returns the mapping for a TriplesMap IRI.
func (s *MappingSet) ByIRI(iri string) (*Mapping, bool) {
	m, ok := s.byIRI[iri]
	return m, ok
}

// Mappings returns every mapping in document order.
func (s *MappingSet) Mappings() []*Mapping {
	return s.order
}

// Len reports the number of mappings.
func (s *MappingSet) Len() int {
	return len(s.order)
}

var templateColumnRe = regexp.MustCompile(`\{([^{}]+)\}`)

// templateColumns extracts the {colName} placeholders of a subject template.
func templateColumns(template string) []string {
	matches := templateColumnRe.FindAllStringSubmatch(template, -1)

	cols := make([]string, 0, len(matches))
	for _, m := range matches {
		cols = append(cols, m[1])
	}

	return cols
}

// JoinEdge is one foreign-key edge of the join graph: child-table rows carry
// the FK columns, parent-table rows carry the referenced columns.
type JoinEdge struct {
	ChildTable  string
	ParentTable string
	Predicate   string
	Columns     []JoinCondition
}

// JoinGraph indexes join edges by participating table (both endpoints) and by
// predicate IRI.
type JoinGraph struct {
	byTable     map[string][]*JoinEdge
	byPredicate map[string][]*JoinEdge
}

// BuildJoinGraph derives the join graph from every RefObjectMap of the set.
func BuildJoinGraph(set *MappingSet) (*JoinGraph, error) {
	g := &JoinGraph{
		byTable:     make(map[string][]*JoinEdge),
		byPredicate: make(map[string][]*JoinEdge),
	}

	for _, m := range set.Mappings() {
		for pred, om := range m.Predicates {
			if om.Kind != ObjectRef {
				continue
			}

			parent, ok := set.ByIRI(om.ParentTriplesMap)
			if !ok {
				return nil, apperr.NewWithCode(apperr.KindInvalidConfiguration, constant.ErrMappingMalformed,
					"mapping %q references unknown parent triples map %q", m.IRI, om.ParentTriplesMap)
			}

			edge := &JoinEdge{
				ChildTable:  m.Table,
				ParentTable: parent.Table,
				Predicate:   pred,
				Columns:     om.JoinConditions,
			}

			g.byTable[edge.ChildTable] = append(g.byTable[edge.ChildTable], edge)
			g.byTable[edge.ParentTable] = append(g.byTable[edge.ParentTable], edge)
			g.byPredicate[pred] = append(g.byPredicate[pred], edge)
		}
	}

	return g, nil
}

// EdgesForTable returns every edge touching the table.
func (g *JoinGraph) EdgesForTable(table string) []*JoinEdge {
	return g.byTable[table]
}

// EdgesForPredicate returns every edge labeled with the predicate IRI.
func (g *JoinGraph) EdgesForPredicate(predicate string) []*JoinEdge {
	return g.byPredicate[predicate]
}

// EdgeBetween returns the first edge connecting the two tables in either
// orientation, or nil.
func (g *JoinGraph) EdgeBetween(a, b string) *JoinEdge {
	for _, e := range g.byTable[a] {
		if (e.ChildTable == a && e.ParentTable == b) || (e.ChildTable == b && e.ParentTable == a) {
			return e
		}
	}

	return nil
}
