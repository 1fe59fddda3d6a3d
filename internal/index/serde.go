package index

import (
	"encoding/json"

	"github.com/fluree/fluree-go/pkg/apperr"
)

// Serializer owns the persisted encoding of index nodes. Branch files carry
// child summaries, leaf files carry flake arrays; flakes are encoded as
// [s p o t op m] tuples.
type Serializer interface {
	SerializeBranch(children []*NodeSummary) ([]byte, error)
	DeserializeBranch(data []byte) ([]*NodeSummary, error)
	SerializeLeaf(flakes []*Flake) ([]byte, error)
	DeserializeLeaf(data []byte) ([]*Flake, error)
}

// JSONSerializer is the default Serializer, matching the on-disk JSON shapes:
// branches as {"children": [...]}, leaves as {"flakes": [...]}.
type JSONSerializer struct{}

type branchFile struct {
	Children []*summaryFile `json:"children"`
}

type summaryFile struct {
	ID    string          `json:"id"`
	Leaf  bool            `json:"leaf"`
	First json.RawMessage `json:"first,omitempty"`
	Rhs   json.RawMessage `json:"rhs,omitempty"`
	Size  int64           `json:"size"`
}

type leafFile struct {
	Flakes []json.RawMessage `json:"flakes"`
}

// SerializeBranch implements Serializer.
func (JSONSerializer) SerializeBranch(children []*NodeSummary) ([]byte, error) {
	file := branchFile{Children: make([]*summaryFile, 0, len(children))}

	for _, c := range children {
		sf := &summaryFile{ID: c.ID, Leaf: c.Leaf, Size: c.Size}

		var err error

		if c.First != nil {
			sf.First, err = marshalFlake(c.First)
			if err != nil {
				return nil, err
			}
		}

		if c.Rhs != nil {
			sf.Rhs, err = marshalFlake(c.Rhs)
			if err != nil {
				return nil, err
			}
		}

		file.Children = append(file.Children, sf)
	}

	return json.Marshal(file)
}

// DeserializeBranch implements Serializer.
func (JSONSerializer) DeserializeBranch(data []byte) ([]*NodeSummary, error) {
	var file branchFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, apperr.Wrap(apperr.KindIntegrity, err, "parsing branch file")
	}

	children := make([]*NodeSummary, 0, len(file.Children))

	for _, sf := range file.Children {
		c := &NodeSummary{ID: sf.ID, Leaf: sf.Leaf, Size: sf.Size}

		var err error

		if len(sf.First) > 0 {
			c.First, err = unmarshalFlake(sf.First)
			if err != nil {
				return nil, err
			}
		}

		if len(sf.Rhs) > 0 {
			c.Rhs, err = unmarshalFlake(sf.Rhs)
			if err != nil {
				return nil, err
			}
		}

		children = append(children, c)
	}

	return children, nil
}

// SerializeLeaf implements Serializer.
func (JSONSerializer) SerializeLeaf(flakes []*Flake) ([]byte, error) {
	file := leafFile{Flakes: make([]json.RawMessage, 0, len(flakes))}

	for _, f := range flakes {
		raw, err := marshalFlake(f)
		if err != nil {
			return nil, err
		}

		file.Flakes = append(file.Flakes, raw)
	}

	return json.Marshal(file)
}

// DeserializeLeaf implements Serializer.
func (JSONSerializer) DeserializeLeaf(data []byte) ([]*Flake, error) {
	var file leafFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, apperr.Wrap(apperr.KindIntegrity, err, "parsing leaf file")
	}

	flakes := make([]*Flake, 0, len(file.Flakes))

	for _, raw := range file.Flakes {
		f, err := unmarshalFlake(raw)
		if err != nil {
			return nil, err
		}

		flakes = append(flakes, f)
	}

	return flakes, nil
}

func marshalFlake(f *Flake) (json.RawMessage, error) {
	return json.Marshal([]any{f.S, f.P, f.O, f.T, f.Op, f.M})
}

func unmarshalFlake(raw json.RawMessage) (*Flake, error) {
	var tuple []any
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return nil, apperr.Wrap(apperr.KindIntegrity, err, "parsing flake tuple")
	}

	if len(tuple) < 5 {
		return nil, apperr.New(apperr.KindIntegrity, "flake tuple has %d elements, want at least 5", len(tuple))
	}

	f := &Flake{O: tuple[2]}

	var ok bool

	if f.S, ok = asInt64(tuple[0]); !ok {
		return nil, apperr.New(apperr.KindIntegrity, "flake subject %v is not an integer", tuple[0])
	}

	if f.P, ok = asInt64(tuple[1]); !ok {
		return nil, apperr.New(apperr.KindIntegrity, "flake predicate %v is not an integer", tuple[1])
	}

	if f.T, ok = asInt64(tuple[3]); !ok {
		return nil, apperr.New(apperr.KindIntegrity, "flake t %v is not an integer", tuple[3])
	}

	if f.Op, ok = tuple[4].(bool); !ok {
		return nil, apperr.New(apperr.KindIntegrity, "flake op %v is not a boolean", tuple[4])
	}

	if len(tuple) > 5 {
		f.M = tuple[5]
	}

	return f, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// GarbageRecord is the persisted shape of a garbage file: the index nodes a
// reindex made unreachable, eligible for explicit erase.
type GarbageRecord struct {
	LedgerID string   `json:"ledger-id"`
	Block    int64    `json:"block"`
	Garbage  []string `json:"garbage"`
}

// RootRecord is the persisted shape of an index root file, pointing at the
// four index roots as of one transaction.
type RootRecord struct {
	LedgerID  string           `json:"ledger-id"`
	T         int64            `json:"t"`
	Ecount    map[string]int64 `json:"ecount,omitempty"`
	Stats     map[string]any   `json:"stats,omitempty"`
	Spot      *NodeSummary     `json:"spot,omitempty"`
	Post      *NodeSummary     `json:"post,omitempty"`
	Opst      *NodeSummary     `json:"opst,omitempty"`
	Tspo      *NodeSummary     `json:"tspo,omitempty"`
	Timestamp int64            `json:"timestamp"`
	PrevIndex string           `json:"prevIndex,omitempty"`
	Fork      string           `json:"fork,omitempty"`
	ForkBlock int64            `json:"forkBlock,omitempty"`
}
