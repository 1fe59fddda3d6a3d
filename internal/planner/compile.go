// Package planner compiles routed pattern groups and the join graph into an
// executable operator tree with greedy join ordering.
package planner

import (
	"math"

	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/mlog"

	"github.com/fluree/fluree-go/internal/pushdown"
	"github.com/fluree/fluree-go/internal/r2rml"
	"github.com/fluree/fluree-go/internal/tabular"
)

// TableStats carries per-table planning statistics.
type TableStats struct {
	// RowCount is the estimated table cardinality.
	RowCount int64
	// EdgeSelectivity estimates the fraction of probe rows surviving a join,
	// keyed by edge predicate IRI. Absent selectivity means 1.0.
	EdgeSelectivity map[string]float64
}

// CompileOptions parameterizes compilation.
type CompileOptions struct {
	BatchSize          int
	UseColumnarBatches bool
	CopyBatches        bool
	Vectorized         bool
	// OutputColumns trims the final projection. The compiler augments the set
	// handed to every intermediate join with the downstream join-key columns
	// so later joins still find their keys.
	OutputColumns map[string]struct{}
	TimeTravel    *tabular.TimeTravel
	Allocator     memory.Allocator
	Logger        mlog.Logger
}

// scanNode pairs a pattern group with its compiled scan.
type scanNode struct {
	group *pushdown.PatternGroup
	scan  *tabular.ScanOp
	rows  int64
}

// Compile builds the operator tree: one scan leaf per pattern group with its
// pushdown predicates and projected columns, then hash joins layered in
// greedy order. Time-travel options propagate to every scan.
func Compile(source tabular.Source, groups []*pushdown.PatternGroup, graph *r2rml.JoinGraph, stats map[string]*TableStats, opts CompileOptions) (tabular.Operator, error) {
	if len(groups) == 0 {
		return nil, apperr.New(apperr.KindInvalidConfiguration, "nothing to compile: no pattern groups")
	}

	logger := opts.Logger
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	nodes := make([]*scanNode, 0, len(groups))

	for _, group := range groups {
		node := buildScan(source, group, graph, stats, opts)
		nodes = append(nodes, node)
	}

	if len(nodes) == 1 {
		return nodes[0].scan, nil
	}

	ordered := greedyOrder(nodes, graph, stats, logger)

	return foldJoins(ordered, graph, opts, logger)
}

// buildScan collects the columns a group's scan must project: the pushdown
// predicates' columns, the subject-template columns, and the join columns of
// every edge touching the table.
func buildScan(source tabular.Source, group *pushdown.PatternGroup, graph *r2rml.JoinGraph, stats map[string]*TableStats, opts CompileOptions) *scanNode {
	table := group.Mapping.Table

	colSet := make(map[string]struct{})

	var columns []string

	addCol := func(c string) {
		if _, ok := colSet[c]; !ok {
			colSet[c] = struct{}{}
			columns = append(columns, c)
		}
	}

	for _, pred := range group.Predicates {
		addCol(pred.Column)
	}

	for _, c := range group.Mapping.TemplateColumns {
		addCol(c)
	}

	for _, om := range group.Mapping.Predicates {
		if om.Kind == r2rml.ObjectColumn {
			addCol(om.Column)
		}
	}

	for _, edge := range graph.EdgesForTable(table) {
		for _, jc := range edge.Columns {
			if edge.ChildTable == table {
				addCol(jc.Child)
			}

			if edge.ParentTable == table {
				addCol(jc.Parent)
			}
		}
	}

	var rows int64
	if st, ok := stats[table]; ok {
		rows = st.RowCount
	}

	scan := tabular.NewScan(source, tabular.ScanOptions{
		Table:              table,
		Columns:            columns,
		Predicates:         group.Predicates,
		BatchSize:          opts.BatchSize,
		UseColumnarBatches: opts.UseColumnarBatches,
		CopyBatches:        opts.CopyBatches,
		TimeTravel:         opts.TimeTravel,
		Rows:               rows,
		Logger:             opts.Logger,
	})

	return &scanNode{group: group, scan: scan, rows: rows}
}

// greedyOrder picks the join order: start with the smallest required table, then at
// each step take the not-yet-joined table that shares an edge with the
// accumulated set and minimizes accumulated-rows × new-rows × selectivity.
// A table with no connecting edge is skipped with a warning; the planner
// never synthesizes a Cartesian product.
func greedyOrder(nodes []*scanNode, graph *r2rml.JoinGraph, stats map[string]*TableStats, logger mlog.Logger) []*scanNode {
	remaining := make(map[string]*scanNode, len(nodes))
	for _, n := range nodes {
		remaining[n.group.Mapping.Table] = n
	}

	// The start is the smallest required table; an OPTIONAL group must join
	// against an already-required accumulated side to keep its left-outer
	// orientation, so it never seeds the order unless every group is optional.
	var start *scanNode

	for _, n := range nodes {
		if n.group.Optional {
			continue
		}

		if start == nil || n.rows < start.rows {
			start = n
		}
	}

	if start == nil {
		start = nodes[0]
		for _, n := range nodes[1:] {
			if n.rows < start.rows {
				start = n
			}
		}
	}

	ordered := []*scanNode{start}
	accRows := math.Max(float64(start.rows), 1)

	delete(remaining, start.group.Mapping.Table)

	joined := map[string]struct{}{start.group.Mapping.Table: {}}

	for len(remaining) > 0 {
		var (
			best     *scanNode
			bestCost = math.Inf(1)
		)

		for _, cand := range remaining {
			edge := edgeToSet(graph, joined, cand.group.Mapping.Table)
			if edge == nil {
				continue
			}

			sel := edgeSelectivity(stats, cand.group.Mapping.Table, edge.Predicate)

			cost := accRows * math.Max(float64(cand.rows), 1) * sel
			if cost < bestCost {
				bestCost = cost
				best = cand
			}
		}

		if best == nil {
			for table := range remaining {
				logger.Warnf("planner: table %q shares no join edge with the joined set; skipping (no Cartesian product is emitted)", table)
			}

			break
		}

		ordered = append(ordered, best)
		joined[best.group.Mapping.Table] = struct{}{}
		accRows *= math.Max(float64(best.rows), 1)

		delete(remaining, best.group.Mapping.Table)
	}

	return ordered
}

// edgeSelectivity looks up the edge's selectivity in the candidate table's
// stats; absent selectivity means 1.0.
func edgeSelectivity(stats map[string]*TableStats, table, predicate string) float64 {
	st, ok := stats[table]
	if !ok || st.EdgeSelectivity == nil {
		return 1.0
	}

	sel, ok := st.EdgeSelectivity[predicate]
	if !ok || sel <= 0 {
		return 1.0
	}

	return sel
}

func edgeToSet(graph *r2rml.JoinGraph, joined map[string]struct{}, table string) *r2rml.JoinEdge {
	for other := range joined {
		if edge := graph.EdgeBetween(table, other); edge != nil {
			return edge
		}
	}

	return nil
}

// foldJoins layers a hash join per ordered step. Orientation: for FK-based
// inner joins the child (fact) side probes and the parent (dimension) side
// builds; for OPTIONAL the required side is always the probe regardless of
// fact/dimension identity. The output-column set of each intermediate join is
// augmented with the join-key columns of every later step.
func foldJoins(ordered []*scanNode, graph *r2rml.JoinGraph, opts CompileOptions, logger mlog.Logger) (tabular.Operator, error) {
	var acc tabular.Operator = ordered[0].scan

	joined := map[string]struct{}{ordered[0].group.Mapping.Table: {}}

	for step := 1; step < len(ordered); step++ {
		next := ordered[step]
		table := next.group.Mapping.Table

		edge := edgeToSet(graph, joined, table)
		if edge == nil {
			// greedyOrder only admits connected tables; this is a defensive stop.
			return nil, apperr.New(apperr.KindInvalidConfiguration, "no join edge for table %q", table)
		}

		childKeys := make([]string, 0, len(edge.Columns))
		parentKeys := make([]string, 0, len(edge.Columns))

		for _, jc := range edge.Columns {
			childKeys = append(childKeys, jc.Child)
			parentKeys = append(parentKeys, jc.Parent)
		}

		nextIsParent := edge.ParentTable == table

		var (
			build, probe         tabular.Operator
			buildKeys, probeKeys []string
			joinType             = tabular.InnerJoin
		)

		switch {
		case next.group.Optional:
			// OPTIONAL: the required accumulated side always probes.
			joinType = tabular.LeftOuterJoin
			build, probe = next.scan, acc

			if nextIsParent {
				buildKeys, probeKeys = parentKeys, childKeys
			} else {
				buildKeys, probeKeys = childKeys, parentKeys
			}
		case nextIsParent:
			// The dimension table builds, the accumulated fact side probes.
			build, probe = next.scan, acc
			buildKeys, probeKeys = parentKeys, childKeys
		default:
			// The new table is the fact side: it probes the accumulated build.
			build, probe = acc, next.scan
			buildKeys, probeKeys = parentKeys, childKeys
		}

		acc = tabular.NewHashJoin(build, probe, tabular.HashJoinOptions{
			Type:          joinType,
			BuildKeys:     buildKeys,
			ProbeKeys:     probeKeys,
			Vectorized:    opts.Vectorized,
			OutputColumns: joinOutputColumns(opts.OutputColumns, ordered, graph, step),
			Allocator:     opts.Allocator,
			Logger:        opts.Logger,
		})

		joined[table] = struct{}{}
	}

	return acc, nil
}

// joinOutputColumns augments the caller's projection with the union of
// join-key columns of every later step in the order, so an intermediate join
// never drops a column a downstream join still keys on. A nil caller
// projection keeps everything and needs no augmentation.
func joinOutputColumns(requested map[string]struct{}, ordered []*scanNode, graph *r2rml.JoinGraph, step int) map[string]struct{} {
	if requested == nil {
		return nil
	}

	out := make(map[string]struct{}, len(requested))
	for c := range requested {
		out[c] = struct{}{}
	}

	joined := make(map[string]struct{}, step+1)
	for i := 0; i <= step; i++ {
		joined[ordered[i].group.Mapping.Table] = struct{}{}
	}

	for later := step + 1; later < len(ordered); later++ {
		table := ordered[later].group.Mapping.Table

		edge := edgeToSet(graph, joined, table)
		if edge == nil {
			continue
		}

		for _, jc := range edge.Columns {
			out[jc.Child] = struct{}{}
			out[jc.Parent] = struct{}{}
		}

		joined[table] = struct{}{}
	}

	return out
}
