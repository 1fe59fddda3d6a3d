package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fluree/fluree-go/internal/cache"
)

func newTestCache(t *testing.T) *cache.ResolverCache {
	t.Helper()

	c, err := cache.New(2<<20, nil, nil)
	require.NoError(t, err)

	return c
}

func TestResolveLeaf(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	serializer := JSONSerializer{}

	data, err := serializer.SerializeLeaf([]*Flake{
		{S: 2, P: 1, O: "b", T: 1, Op: true},
		{S: 1, P: 1, O: "a", T: 1, Op: true},
	})
	require.NoError(t, err)

	reader := NewMockFileReader(ctrl)
	reader.EXPECT().
		ReadFile(gomock.Any(), "fluree:memory://l/main/index/spot/leaf1.json").
		Return(data, nil)

	r := NewResolver(reader, newTestCache(t), serializer, nil)

	node := &NodeSummary{ID: "fluree:memory://l/main/index/spot/leaf1.json", Leaf: true}

	resolved, err := r.Resolve(context.Background(), SPOT, node, "")
	require.NoError(t, err)
	require.True(t, resolved.Leaf())
	assert.Equal(t, 2, resolved.Flakes.Len())

	// The flake set is sorted by the index comparator.
	first, ok := resolved.Flakes.Min()
	require.True(t, ok)
	assert.Equal(t, int64(1), first.S)
}

func TestResolveBranchSortsChildren(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	serializer := JSONSerializer{}

	data, err := serializer.SerializeBranch([]*NodeSummary{
		{ID: "b", Leaf: true, First: &Flake{S: 100}, Size: 2},
		{ID: "a", Leaf: true, First: &Flake{S: 1}, Size: 3},
	})
	require.NoError(t, err)

	reader := NewMockFileReader(ctrl)
	reader.EXPECT().
		ReadFile(gomock.Any(), gomock.Any()).
		Return(data, nil)

	r := NewResolver(reader, newTestCache(t), serializer, nil)

	resolved, err := r.Resolve(context.Background(), SPOT, &NodeSummary{ID: "branch1"}, "")
	require.NoError(t, err)
	require.False(t, resolved.Leaf())

	min, ok := resolved.Children.Min()
	require.True(t, ok)
	assert.Equal(t, "a", min.ID)

	child := resolved.ChildFor(&Flake{S: 50})
	require.NotNil(t, child)
	assert.Equal(t, "a", child.ID)

	child = resolved.ChildFor(&Flake{S: 200})
	require.NotNil(t, child)
	assert.Equal(t, "b", child.ID)
}

func TestResolveCachesByNodeID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	serializer := JSONSerializer{}

	data, err := serializer.SerializeLeaf(nil)
	require.NoError(t, err)

	reader := NewMockFileReader(ctrl)
	reader.EXPECT().
		ReadFile(gomock.Any(), "leaf1").
		Return(data, nil).
		Times(1)

	r := NewResolver(reader, newTestCache(t), serializer, nil)

	node := &NodeSummary{ID: "leaf1", Leaf: true}
	ctx := context.Background()

	_, err = r.Resolve(ctx, SPOT, node, "salt")
	require.NoError(t, err)

	_, err = r.Resolve(ctx, SPOT, node, "salt")
	require.NoError(t, err)
}

func TestResolveSaltIsolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	serializer := JSONSerializer{}

	data, err := serializer.SerializeLeaf(nil)
	require.NoError(t, err)

	reader := NewMockFileReader(ctrl)
	reader.EXPECT().
		ReadFile(gomock.Any(), "leaf1").
		Return(data, nil).
		Times(2)

	c := newTestCache(t)
	r := NewResolver(reader, c, serializer, nil)

	node := &NodeSummary{ID: "leaf1", Leaf: true}
	ctx := context.Background()

	// The same serialized node under two tempid salts yields two independent
	// cache entries.
	_, err = r.Resolve(ctx, SPOT, node, "tenant-a")
	require.NoError(t, err)

	_, err = r.Resolve(ctx, SPOT, node, "tenant-b")
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
}

func TestResolveEmptySentinelSkipsStorage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No ReadFile expectation: touching storage would fail the test.
	reader := NewMockFileReader(ctrl)

	r := NewResolver(reader, newTestCache(t), JSONSerializer{}, nil)

	resolved, err := r.Resolve(context.Background(), SPOT, &NodeSummary{ID: EmptyID, Leaf: true}, "")
	require.NoError(t, err)
	assert.True(t, resolved.Leaf())
	assert.Equal(t, 0, resolved.Flakes.Len())
}

func TestResolveMissingNode(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := NewMockFileReader(ctrl)
	reader.EXPECT().
		ReadFile(gomock.Any(), "gone").
		Return(nil, nil)

	r := NewResolver(reader, newTestCache(t), JSONSerializer{}, nil)

	_, err := r.Resolve(context.Background(), SPOT, &NodeSummary{ID: "gone", Leaf: true}, "")
	require.Error(t, err)
}

func TestSerdeRoundTrip(t *testing.T) {
	serializer := JSONSerializer{}

	flakes := []*Flake{
		{S: 1, P: 2, O: "v", T: 3, Op: true},
		{S: 4, P: 5, O: float64(7), T: 6, Op: false, M: map[string]any{"lang": "en"}},
	}

	leafData, err := serializer.SerializeLeaf(flakes)
	require.NoError(t, err)

	back, err := serializer.DeserializeLeaf(leafData)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, int64(1), back[0].S)
	assert.Equal(t, true, back[0].Op)
	assert.Equal(t, "v", back[0].O)

	children := []*NodeSummary{
		{ID: "c1", Leaf: true, First: &Flake{S: 1, P: 1, O: "a", T: 1, Op: true}, Rhs: &Flake{S: 9, P: 1, O: "z", T: 1, Op: true}, Size: 12},
	}

	branchData, err := serializer.SerializeBranch(children)
	require.NoError(t, err)

	backChildren, err := serializer.DeserializeBranch(branchData)
	require.NoError(t, err)
	require.Len(t, backChildren, 1)
	assert.Equal(t, "c1", backChildren[0].ID)
	assert.True(t, backChildren[0].Leaf)
	assert.Equal(t, int64(9), backChildren[0].Rhs.S)
	assert.Equal(t, int64(12), backChildren[0].Size)
}
