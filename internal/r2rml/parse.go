package r2rml

import (
	"github.com/cayleygraph/quad"
	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
)

// rdfGraph is the intermediate property graph both parsers feed the builder
// with: subject key → predicate IRI → objects, plus subject order.
type rdfGraph struct {
	props map[string]map[string][]quad.Value
	order []string
}

func newRDFGraph(quads []quad.Quad) *rdfGraph {
	g := &rdfGraph{props: make(map[string]map[string][]quad.Value)}

	for _, q := range quads {
		subj := nodeKey(q.Subject)

		pred, ok := iriOf(q.Predicate)
		if !ok {
			continue
		}

		if _, seen := g.props[subj]; !seen {
			g.props[subj] = make(map[string][]quad.Value)
			g.order = append(g.order, subj)
		}

		g.props[subj][pred] = append(g.props[subj][pred], q.Object)
	}

	return g
}

func (g *rdfGraph) objects(subj, pred string) []quad.Value {
	return g.props[subj][pred]
}

func (g *rdfGraph) first(subj, pred string) (quad.Value, bool) {
	vals := g.props[subj][pred]
	if len(vals) == 0 {
		return nil, false
	}

	return vals[0], true
}

func (g *rdfGraph) firstLiteral(subj, pred string) (string, bool) {
	v, ok := g.first(subj, pred)
	if !ok {
		return "", false
	}

	return literalOf(v)
}

func (g *rdfGraph) firstIRI(subj, pred string) (string, bool) {
	v, ok := g.first(subj, pred)
	if !ok {
		return "", false
	}

	return iriOf(v)
}

// nodeKey renders a subject or object node to a stable map key. IRIs keep
// their raw form; blank nodes keep their label prefixed to avoid collisions.
func nodeKey(v quad.Value) string {
	switch t := v.(type) {
	case quad.IRI:
		return string(t)
	case quad.BNode:
		return "_:" + string(t)
	default:
		return v.String()
	}
}

func iriOf(v quad.Value) (string, bool) {
	iri, ok := v.(quad.IRI)
	if !ok {
		return "", false
	}

	return string(iri), true
}

func literalOf(v quad.Value) (string, bool) {
	switch t := v.(type) {
	case quad.String:
		return string(t), true
	case quad.TypedString:
		return string(t.Value), true
	case quad.LangString:
		return string(t.Value), true
	default:
		return "", false
	}
}

// FromQuads builds the mapping set out of a parsed RDF graph. Both the Turtle
// and the JSON-LD front ends land here so they cannot drift apart.
func FromQuads(quads []quad.Quad) (*MappingSet, error) {
	g := newRDFGraph(quads)
	set := newMappingSet()

	// Object maps declared with their own IRI are parsed once and shared.
	objectMaps := make(map[string]*ObjectMap)

	for _, subj := range g.order {
		if _, isTriplesMap := g.first(subj, rrLogicalTable); !isTriplesMap {
			continue
		}

		m := &Mapping{
			IRI:        subj,
			Predicates: make(map[string]*ObjectMap),
		}

		ltNode, _ := g.first(subj, rrLogicalTable)

		table, ok := g.firstLiteral(nodeKey(ltNode), rrTableName)
		if !ok {
			return nil, apperr.NewWithCode(apperr.KindInvalidConfiguration, constant.ErrMappingMalformed,
				"triples map %q has a logical table without rr:tableName", subj)
		}

		m.Table = table

		if smNode, ok := g.first(subj, rrSubjectMap); ok {
			smKey := nodeKey(smNode)

			if template, ok := g.firstLiteral(smKey, rrTemplate); ok {
				m.SubjectTemplate = template
				m.TemplateColumns = templateColumns(template)
			}

			if class, ok := g.firstIRI(smKey, rrClass); ok {
				m.Class = class
			}
		}

		for _, pomNode := range g.objects(subj, rrPredObjectMap) {
			pomKey := nodeKey(pomNode)

			pred, ok := g.firstIRI(pomKey, rrPredicate)
			if !ok {
				return nil, apperr.NewWithCode(apperr.KindInvalidConfiguration, constant.ErrMappingMalformed,
					"triples map %q has a predicate-object map without rr:predicate", subj)
			}

			omNode, ok := g.first(pomKey, rrObjectMap)
			if !ok {
				return nil, apperr.NewWithCode(apperr.KindInvalidConfiguration, constant.ErrMappingMalformed,
					"triples map %q predicate %q has no object map", subj, pred)
			}

			omKey := nodeKey(omNode)

			om, cached := objectMaps[omKey]
			if !cached {
				var err error

				om, err = parseObjectMap(g, subj, pred, omKey)
				if err != nil {
					return nil, err
				}

				objectMaps[omKey] = om
			}

			m.Predicates[pred] = om
		}

		set.add(m)
	}

	return set, nil
}

func parseObjectMap(g *rdfGraph, triplesMap, pred, omKey string) (*ObjectMap, error) {
	if parent, ok := g.firstIRI(omKey, rrParentTriplesMap); ok {
		om := &ObjectMap{Kind: ObjectRef, ParentTriplesMap: parent}

		for _, jcNode := range g.objects(omKey, rrJoinCondition) {
			jcKey := nodeKey(jcNode)

			child, okChild := g.firstLiteral(jcKey, rrChild)
			parentCol, okParent := g.firstLiteral(jcKey, rrParent)

			if !okChild || !okParent {
				return nil, apperr.NewWithCode(apperr.KindInvalidConfiguration, constant.ErrMappingMalformed,
					"triples map %q predicate %q has a join condition missing rr:child or rr:parent", triplesMap, pred)
			}

			om.JoinConditions = append(om.JoinConditions, JoinCondition{Child: child, Parent: parentCol})
		}

		if len(om.JoinConditions) == 0 {
			return nil, apperr.NewWithCode(apperr.KindInvalidConfiguration, constant.ErrMappingMalformed,
				"triples map %q predicate %q references %q without a join condition", triplesMap, pred, om.ParentTriplesMap)
		}

		return om, nil
	}

	column, ok := g.firstLiteral(omKey, rrColumn)
	if !ok {
		return nil, apperr.NewWithCode(apperr.KindInvalidConfiguration, constant.ErrMappingMalformed,
			"triples map %q predicate %q has an object map with neither rr:column nor rr:parentTriplesMap", triplesMap, pred)
	}

	om := &ObjectMap{Kind: ObjectColumn, Column: column}

	if datatype, ok := g.firstIRI(omKey, rrDatatype); ok {
		om.Datatype = datatype
	}

	return om, nil
}
