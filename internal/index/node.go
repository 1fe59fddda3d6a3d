package index

import (
	"github.com/google/btree"
)

// EmptyID is the sentinel id of a node that exists only logically; resolving
// it never touches storage.
const EmptyID = "empty"

// btreeDegree matches the fan-out the persisted nodes are written with.
const btreeDegree = 16

// NodeSummary is the unresolved pointer a parent holds for a child: enough to
// locate the serialized node and range-check against it without fetching.
// First is ≤ every key in the subtree; Rhs, when present, is > every key.
type NodeSummary struct {
	ID    string `json:"id"`
	Leaf  bool   `json:"leaf"`
	First *Flake `json:"first,omitempty"`
	Rhs   *Flake `json:"rhs,omitempty"`
	Size  int64  `json:"size"`
}

// Empty reports whether the summary points at the empty sentinel.
func (n *NodeSummary) Empty() bool {
	return n == nil || n.ID == "" || n.ID == EmptyID
}

// Contains range-checks a flake against the summary under the index order
// without resolving the node.
func (n *NodeSummary) Contains(idx Type, f *Flake) bool {
	if n.First != nil && idx.Compare(f, n.First) < 0 {
		return false
	}

	if n.Rhs != nil && idx.Compare(f, n.Rhs) >= 0 {
		return false
	}

	return true
}

// ResolvedNode is a realized branch or leaf. Branch children are sorted by
// the index comparator on each child's First; leaf flakes are a sorted set.
// The metadata (index, leaf flag, bounds) comes from the parent's pointer,
// never from the serialized bytes, so one serialized node can back multiple
// logical positions.
type ResolvedNode struct {
	Summary *NodeSummary
	Index   Type

	// Children is populated for branches.
	Children *btree.BTreeG[*NodeSummary]
	// Flakes is populated for leaves.
	Flakes *btree.BTreeG[*Flake]
}

// Leaf reports whether the node realized as a leaf.
func (n *ResolvedNode) Leaf() bool {
	return n.Flakes != nil
}

// newChildSet builds the sorted child map of a branch, keyed by each child's
// First under the index order.
func newChildSet(idx Type, children []*NodeSummary) *btree.BTreeG[*NodeSummary] {
	t := btree.NewG[*NodeSummary](btreeDegree, func(a, b *NodeSummary) bool {
		return idx.Less(a.First, b.First)
	})

	for _, c := range children {
		t.ReplaceOrInsert(c)
	}

	return t
}

// newFlakeSet builds the sorted flake set of a leaf.
func newFlakeSet(idx Type, flakes []*Flake) *btree.BTreeG[*Flake] {
	t := btree.NewG[*Flake](btreeDegree, idx.Less)

	for _, f := range flakes {
		t.ReplaceOrInsert(f)
	}

	return t
}

// ChildFor descends one level: it returns the child summary whose range holds
// the flake, falling back to the first child for keys below every First.
func (n *ResolvedNode) ChildFor(f *Flake) *NodeSummary {
	if n.Children == nil {
		return nil
	}

	var match *NodeSummary

	probe := &NodeSummary{First: f}
	n.Children.DescendLessOrEqual(probe, func(c *NodeSummary) bool {
		match = c
		return false
	})

	if match == nil {
		match, _ = n.Children.Min()
	}

	return match
}
