package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareOrders(t *testing.T) {
	a := &Flake{S: 1, P: 10, O: "x", T: 5}
	b := &Flake{S: 1, P: 10, O: "y", T: 5}
	c := &Flake{S: 2, P: 1, O: "a", T: 5}

	tests := []struct {
		name string
		idx  Type
		x, y *Flake
		want int
	}{
		{"spot orders by subject first", SPOT, a, c, -1},
		{"spot falls through to object", SPOT, a, b, -1},
		{"post orders by predicate first", POST, c, a, -1},
		{"opst orders by object first", OPST, c, b, -1},
		{"tspo newest t first", TSPO, &Flake{T: 9}, &Flake{T: 3}, -1},
		{"equal flakes", SPOT, a, a, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.idx.Compare(tt.x, tt.y))
			assert.Equal(t, -tt.want, tt.idx.Compare(tt.y, tt.x))
		})
	}
}

func TestCompareNilBounds(t *testing.T) {
	f := &Flake{S: 1}

	assert.Equal(t, -1, SPOT.Compare(nil, f))
	assert.Equal(t, 1, SPOT.Compare(f, nil))
	assert.Equal(t, 0, SPOT.Compare(nil, nil))
}

func TestCompareValuesMixedKinds(t *testing.T) {
	// nil < bool < number < string
	assert.Equal(t, -1, CompareValues(nil, false))
	assert.Equal(t, -1, CompareValues(true, int64(0)))
	assert.Equal(t, -1, CompareValues(int64(99), "a"))
	assert.Equal(t, 0, CompareValues(int64(3), float64(3)))
}

func TestSummaryContains(t *testing.T) {
	n := &NodeSummary{
		ID:    "node-1",
		First: &Flake{S: 10},
		Rhs:   &Flake{S: 20},
	}

	assert.True(t, n.Contains(SPOT, &Flake{S: 10}))
	assert.True(t, n.Contains(SPOT, &Flake{S: 15}))
	assert.False(t, n.Contains(SPOT, &Flake{S: 9}))
	assert.False(t, n.Contains(SPOT, &Flake{S: 20}))
}

func TestParseType(t *testing.T) {
	for _, s := range []string{"spot", "post", "opst", "tspo"} {
		typ, ok := ParseType(s)
		assert.True(t, ok)
		assert.Equal(t, Type(s), typ)
	}

	_, ok := ParseType("psot")
	assert.False(t, ok)
}
