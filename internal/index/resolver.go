package index

import (
	"context"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
	"github.com/fluree/fluree-go/pkg/mlog"

	"github.com/fluree/fluree-go/internal/cache"
)

// FileReader fetches the raw bytes behind a node address. The connection
// facade provides it so the resolver stays ignorant of backends.
type FileReader interface {
	ReadFile(ctx context.Context, address string) ([]byte, error)
}

// Resolver lazily materializes branch and leaf nodes from storage, memoized
// through the resolver cache. Node metadata is reconstituted from the
// parent's pointer, not from the serialized bytes.
type Resolver struct {
	reader     FileReader
	cache      *cache.ResolverCache
	serializer Serializer
	logger     mlog.Logger
}

// NewResolver builds a resolver over the given reader and cache.
func NewResolver(reader FileReader, c *cache.ResolverCache, serializer Serializer, logger mlog.Logger) *Resolver {
	if serializer == nil {
		serializer = JSONSerializer{}
	}

	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	return &Resolver{
		reader:     reader,
		cache:      c,
		serializer: serializer,
		logger:     logger,
	}
}

// Resolve realizes an unresolved node summary. The cache key includes the
// tenant/tempid salt so sanitized reads are never shared across queries.
// Empty-sentinel nodes resolve in place without storage I/O.
func (r *Resolver) Resolve(ctx context.Context, idx Type, node *NodeSummary, salt string) (*ResolvedNode, error) {
	if node.Empty() {
		return r.emptyNode(idx, node), nil
	}

	key := salt + "|" + string(idx) + "|" + node.ID

	v, err := r.cache.Lookup(ctx, key, func(ctx context.Context) (any, error) {
		return r.load(ctx, idx, node)
	})
	if err != nil {
		return nil, err
	}

	resolved, ok := v.(*ResolvedNode)
	if !ok {
		return nil, apperr.New(apperr.KindIntegrity, "cache entry for %q is not a resolved node", key)
	}

	return resolved, nil
}

func (r *Resolver) load(ctx context.Context, idx Type, node *NodeSummary) (*ResolvedNode, error) {
	data, err := r.reader.ReadFile(ctx, node.ID)
	if err != nil {
		return nil, err
	}

	if data == nil {
		return nil, apperr.NewWithCode(apperr.KindNotFound, constant.ErrIndexNodeNotFound, "index node %q not found", node.ID)
	}

	resolved := &ResolvedNode{Summary: node, Index: idx}

	if node.Leaf {
		flakes, err := r.serializer.DeserializeLeaf(data)
		if err != nil {
			return nil, err
		}

		resolved.Flakes = newFlakeSet(idx, flakes)
	} else {
		children, err := r.serializer.DeserializeBranch(data)
		if err != nil {
			return nil, err
		}

		resolved.Children = newChildSet(idx, children)
	}

	r.logger.Debugf("resolved %s node %s (%d bytes)", idx, node.ID, len(data))

	return resolved, nil
}

func (r *Resolver) emptyNode(idx Type, node *NodeSummary) *ResolvedNode {
	resolved := &ResolvedNode{Summary: node, Index: idx}

	if node == nil || node.Leaf {
		resolved.Flakes = newFlakeSet(idx, nil)
	} else {
		resolved.Children = newChildSet(idx, nil)
	}

	return resolved
}
