package planner

import (
	"context"
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluree/fluree-go/internal/pushdown"
	"github.com/fluree/fluree-go/internal/r2rml"
	"github.com/fluree/fluree-go/internal/tabular"
)

func int64Field(name string) arrow.Field {
	return arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true}
}

func stringField(name string) arrow.Field {
	return arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
}

func makeRecord(t *testing.T, fields []arrow.Field, rows [][]any) arrow.Record {
	t.Helper()

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), arrow.NewSchema(fields, nil))
	defer builder.Release()

	for _, row := range rows {
		for c, v := range row {
			switch b := builder.Field(c).(type) {
			case *array.Int64Builder:
				if v == nil {
					b.AppendNull()
				} else {
					b.Append(v.(int64))
				}
			case *array.StringBuilder:
				if v == nil {
					b.AppendNull()
				} else {
					b.Append(v.(string))
				}
			}
		}
	}

	return builder.NewRecord()
}

// abcMappings builds three chained tables: A →(a_id)→ B →(c_id)→ C.
func abcMappings(t *testing.T) (*r2rml.MappingSet, *r2rml.JoinGraph, map[string]*r2rml.Mapping) {
	t.Helper()

	const turtle = `
@prefix rr: <http://www.w3.org/ns/r2rml#> .
@prefix ex: <http://example.com/ns#> .

<http://example.com/map/A>
    rr:logicalTable [ rr:tableName "a" ] ;
    rr:subjectMap [ rr:template "http://example.com/a/{a_id}" ] ;
    rr:predicateObjectMap [
        rr:predicate ex:name_from_A ;
        rr:objectMap [ rr:column "name_from_A" ]
    ] .

<http://example.com/map/B>
    rr:logicalTable [ rr:tableName "b" ] ;
    rr:subjectMap [ rr:template "http://example.com/b/{b_id}" ] ;
    rr:predicateObjectMap [
        rr:predicate ex:a ;
        rr:objectMap [
            rr:parentTriplesMap <http://example.com/map/A> ;
            rr:joinCondition [ rr:child "a_id" ; rr:parent "a_id" ]
        ]
    ] ;
    rr:predicateObjectMap [
        rr:predicate ex:c ;
        rr:objectMap [
            rr:parentTriplesMap <http://example.com/map/C> ;
            rr:joinCondition [ rr:child "c_id" ; rr:parent "c_id" ]
        ]
    ] .

<http://example.com/map/C>
    rr:logicalTable [ rr:tableName "c" ] ;
    rr:subjectMap [ rr:template "http://example.com/c/{c_id}" ] ;
    rr:predicateObjectMap [
        rr:predicate ex:name_from_C ;
        rr:objectMap [ rr:column "name_from_C" ]
    ] .
`

	set, err := r2rml.ParseTurtleMappings([]byte(turtle))
	require.NoError(t, err)

	graph, err := r2rml.BuildJoinGraph(set)
	require.NoError(t, err)

	byTable := make(map[string]*r2rml.Mapping)
	for _, m := range set.Mappings() {
		byTable[m.Table] = m
	}

	return set, graph, byTable
}

func abcSource(t *testing.T) *tabular.ArrowTableSource {
	t.Helper()

	source := tabular.NewArrowTableSource(nil)

	a := makeRecord(t,
		[]arrow.Field{int64Field("a_id"), stringField("name_from_A")},
		[][]any{
			{int64(1), "a-one"},
			{int64(2), "a-two"},
		})
	source.AddTable("a", a)
	a.Release()

	b := makeRecord(t,
		[]arrow.Field{int64Field("b_id"), int64Field("a_id"), int64Field("c_id")},
		[][]any{
			{int64(10), int64(1), int64(100)},
			{int64(11), int64(2), int64(101)},
			{int64(12), int64(1), int64(100)},
		})
	source.AddTable("b", b)
	b.Release()

	c := makeRecord(t,
		[]arrow.Field{int64Field("c_id"), stringField("name_from_C")},
		[][]any{
			{int64(100), "c-hundred"},
			{int64(101), "c-hundred-one"},
		})
	source.AddTable("c", c)
	c.Release()

	return source
}

func drainRows(t *testing.T, op tabular.Operator) []map[string]any {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, op.Open(ctx))

	var rows []map[string]any

	for {
		batch, err := op.NextBatch(ctx)
		require.NoError(t, err)

		if batch == nil {
			break
		}

		rows = append(rows, batch.Rows()...)
	}

	require.NoError(t, op.Close())

	return rows
}

func TestCompileSingleTableReturnsScan(t *testing.T) {
	_, graph, byTable := abcMappings(t)

	groups := []*pushdown.PatternGroup{{Mapping: byTable["a"]}}

	op, err := Compile(abcSource(t), groups, graph, nil, CompileOptions{})
	require.NoError(t, err)

	scan, ok := op.(*tabular.ScanOp)
	require.True(t, ok, "single pattern group compiles to a bare scan")
	assert.Equal(t, "a", scan.Table())

	rows := drainRows(t, op)
	assert.Len(t, rows, 2)
}

func TestCompileScanCollectsJoinAndTemplateColumns(t *testing.T) {
	_, graph, byTable := abcMappings(t)

	groups := []*pushdown.PatternGroup{{Mapping: byTable["b"]}}

	op, err := Compile(abcSource(t), groups, graph, nil, CompileOptions{})
	require.NoError(t, err)

	scan := op.(*tabular.ScanOp)

	// Template column b_id plus both FK columns.
	assert.ElementsMatch(t, []string{"b_id", "a_id", "c_id"}, scan.Columns())
}

func TestCompileTwoTableJoin(t *testing.T) {
	_, graph, byTable := abcMappings(t)

	stats := map[string]*TableStats{
		"a": {RowCount: 2},
		"b": {RowCount: 3},
	}

	groups := []*pushdown.PatternGroup{
		{Mapping: byTable["a"]},
		{Mapping: byTable["b"]},
	}

	op, err := Compile(abcSource(t), groups, graph, stats, CompileOptions{})
	require.NoError(t, err)

	rows := drainRows(t, op)
	require.Len(t, rows, 3)

	for _, row := range rows {
		assert.Contains(t, row, "name_from_A")
		assert.Contains(t, row, "b_id")
	}
}

func TestCompileThreeTableKeyPropagation(t *testing.T) {
	_, graph, byTable := abcMappings(t)

	stats := map[string]*TableStats{
		"a": {RowCount: 2},
		"b": {RowCount: 3},
		"c": {RowCount: 2},
	}

	groups := []*pushdown.PatternGroup{
		{Mapping: byTable["a"]},
		{Mapping: byTable["b"]},
		{Mapping: byTable["c"]},
	}

	// The caller asks only for C's name; the intermediate joins must still
	// materialize c_id, the downstream join key.
	op, err := Compile(abcSource(t), groups, graph, stats, CompileOptions{
		OutputColumns: map[string]struct{}{"name_from_C": {}},
	})
	require.NoError(t, err)

	rows := drainRows(t, op)
	require.Len(t, rows, 3)

	for _, row := range rows {
		assert.Contains(t, row, "name_from_C")
		assert.NotNil(t, row["name_from_C"])
	}
}

func TestCompileOptionalPreservesRequiredRows(t *testing.T) {
	const turtle = `
@prefix rr: <http://www.w3.org/ns/r2rml#> .
@prefix ex: <http://example.com/ns#> .

<http://example.com/map/Req>
    rr:logicalTable [ rr:tableName "req" ] ;
    rr:subjectMap [ rr:template "http://example.com/r/{id}" ] ;
    rr:predicateObjectMap [
        rr:predicate ex:opt ;
        rr:objectMap [
            rr:parentTriplesMap <http://example.com/map/Opt> ;
            rr:joinCondition [ rr:child "opt_id" ; rr:parent "opt_id" ]
        ]
    ] .

<http://example.com/map/Opt>
    rr:logicalTable [ rr:tableName "opt" ] ;
    rr:subjectMap [ rr:template "http://example.com/o/{opt_id}" ] ;
    rr:predicateObjectMap [
        rr:predicate ex:note ;
        rr:objectMap [ rr:column "note" ]
    ] .
`

	set, err := r2rml.ParseTurtleMappings([]byte(turtle))
	require.NoError(t, err)

	graph, err := r2rml.BuildJoinGraph(set)
	require.NoError(t, err)

	source := tabular.NewArrowTableSource(nil)

	req := makeRecord(t,
		[]arrow.Field{int64Field("id"), int64Field("opt_id")},
		[][]any{
			{int64(1), int64(100)},
			{int64(2), int64(200)},
			{int64(3), int64(100)},
			{int64(4), int64(300)},
			{int64(5), int64(400)},
		})
	source.AddTable("req", req)
	req.Release()

	// The optional table has two rows; they match three of the five required rows.
	opt := makeRecord(t,
		[]arrow.Field{int64Field("opt_id"), stringField("note")},
		[][]any{
			{int64(100), "matched"},
			{int64(300), "also"},
		})
	source.AddTable("opt", opt)
	opt.Release()

	reqMapping, _ := set.ByTable("req")
	optMapping, _ := set.ByTable("opt")

	// The optional table is smaller; the orientation rule must still keep the
	// required side as probe.
	stats := map[string]*TableStats{
		"req": {RowCount: 5},
		"opt": {RowCount: 2},
	}

	groups := []*pushdown.PatternGroup{
		{Mapping: reqMapping},
		{Mapping: optMapping, Optional: true},
	}

	op, err := Compile(source, groups, graph, stats, CompileOptions{})
	require.NoError(t, err)

	rows := drainRows(t, op)
	require.Len(t, rows, 5, "OPTIONAL must not drop required rows")

	withNote := 0

	for _, row := range rows {
		if row["note"] != nil {
			withNote++
		}
	}

	assert.Equal(t, 3, withNote, "opt_id 100 matches twice, 300 once")
}

func TestCompileSkipsDisconnectedTable(t *testing.T) {
	const turtle = `
@prefix rr: <http://www.w3.org/ns/r2rml#> .
@prefix ex: <http://example.com/ns#> .

<http://example.com/map/A>
    rr:logicalTable [ rr:tableName "a" ] ;
    rr:subjectMap [ rr:template "http://example.com/a/{a_id}" ] ;
    rr:predicateObjectMap [
        rr:predicate ex:v ;
        rr:objectMap [ rr:column "name_from_A" ]
    ] .

<http://example.com/map/Island>
    rr:logicalTable [ rr:tableName "island" ] ;
    rr:subjectMap [ rr:template "http://example.com/i/{i_id}" ] ;
    rr:predicateObjectMap [
        rr:predicate ex:w ;
        rr:objectMap [ rr:column "w" ]
    ] .
`

	set, err := r2rml.ParseTurtleMappings([]byte(turtle))
	require.NoError(t, err)

	graph, err := r2rml.BuildJoinGraph(set)
	require.NoError(t, err)

	source := abcSource(t)

	island := makeRecord(t,
		[]arrow.Field{int64Field("i_id"), stringField("w")},
		[][]any{{int64(1), "w"}})
	source.AddTable("island", island)
	island.Release()

	aMapping, _ := set.ByTable("a")
	islandMapping, _ := set.ByTable("island")

	groups := []*pushdown.PatternGroup{
		{Mapping: aMapping},
		{Mapping: islandMapping},
	}

	op, err := Compile(source, groups, graph, map[string]*TableStats{
		"a":      {RowCount: 2},
		"island": {RowCount: 1},
	}, CompileOptions{})
	require.NoError(t, err)

	// No Cartesian product: only the connected component survives.
	rows := drainRows(t, op)
	assert.Len(t, rows, 1)
}

func TestCompileNoGroups(t *testing.T) {
	_, graph, _ := abcMappings(t)

	_, err := Compile(abcSource(t), nil, graph, nil, CompileOptions{})
	require.Error(t, err)
}

func TestCompilePropagatesPushdownPredicates(t *testing.T) {
	_, graph, byTable := abcMappings(t)

	groups := []*pushdown.PatternGroup{{
		Mapping: byTable["a"],
		Predicates: []pushdown.Predicate{
			{Op: pushdown.OpEq, Column: "name_from_A", Value: "a-one"},
		},
	}}

	op, err := Compile(abcSource(t), groups, graph, nil, CompileOptions{})
	require.NoError(t, err)

	rows := drainRows(t, op)
	require.Len(t, rows, 1)
	assert.Equal(t, "a-one", rows[0]["name_from_A"])
}
