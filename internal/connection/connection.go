// Package connection binds a storage substrate, resolver cache, serializer
// and name service into the single handle the rest of the system talks to.
package connection

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
	"github.com/fluree/fluree-go/pkg/mlog"
	"github.com/fluree/fluree-go/pkg/motel"
	"github.com/google/uuid"

	"github.com/fluree/fluree-go/internal/cache"
	"github.com/fluree/fluree-go/internal/index"
	"github.com/fluree/fluree-go/internal/storage"
)

// Indexer rebuilds the B-tree indexes of a ledger out of band.
type Indexer interface {
	Index(ctx context.Context, alias string) error
}

// IndexerOptions parameterizes a new indexer.
type IndexerOptions struct {
	ReindexMinBytes int64
	ReindexMaxBytes int64
}

// IndexerFactory builds an Indexer bound to this connection.
type IndexerFactory func(opts IndexerOptions) Indexer

// Config holds everything a connection binds together. Only Store is
// mandatory; every other collaborator has a working default.
type Config struct {
	Store            storage.Store `validate:"required"`
	Serializer       index.Serializer
	NameService      NameService
	Normalizer       Normalizer
	DefaultContext   map[string]any
	Parallelism      int   `env:"FLUREE_PARALLELISM"`
	CacheMemoryBytes int64 `env:"FLUREE_CACHE_BYTES"`
	IndexerFactory   IndexerFactory
	Logger           mlog.Logger
}

// Connection is the facade over one storage substrate. It is safe for
// concurrent use; Close is terminal and further operations raise Closed.
type Connection struct {
	id             string
	store          storage.Store
	cache          *cache.ResolverCache
	resolver       *index.Resolver
	serializer     index.Serializer
	ns             NameService
	normalize      Normalizer
	defaultContext map[string]any
	parallelism    int
	indexerFactory IndexerFactory
	logger         mlog.Logger
	closed         atomic.Bool
}

// New validates the configuration and builds a connection.
func New(cfg Config) (*Connection, error) {
	if cfg.Store == nil {
		return nil, apperr.New(apperr.KindInvalidConfiguration, "connection requires a storage substrate")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	c := &Connection{
		id:             uuid.NewString(),
		store:          cfg.Store,
		serializer:     cfg.Serializer,
		ns:             cfg.NameService,
		normalize:      cfg.Normalizer,
		defaultContext: cfg.DefaultContext,
		parallelism:    cfg.Parallelism,
		indexerFactory: cfg.IndexerFactory,
		logger:         logger,
	}

	if c.serializer == nil {
		c.serializer = index.JSONSerializer{}
	}

	if c.ns == nil {
		c.ns = NewStorageNameService(cfg.Store)
	}

	if c.normalize == nil {
		c.normalize = CanonicalJSON
	}

	if c.parallelism <= 0 {
		c.parallelism = 4
	}

	resolverCache, err := cache.New(cfg.CacheMemoryBytes, nil, logger)
	if err != nil {
		return nil, err
	}

	c.cache = resolverCache
	c.resolver = index.NewResolver(c, resolverCache, c.serializer, logger)

	return c, nil
}

// ID returns the connection's unique id.
func (c *Connection) ID() string { return c.id }

// Method returns the address method of the bound substrate.
func (c *Connection) Method() storage.Method { return c.store.Method() }

// Parallelism returns the configured pipeline parallelism.
func (c *Connection) Parallelism() int { return c.parallelism }

// DefaultContext returns the connection-wide JSON-LD context, if any.
func (c *Connection) DefaultContext() map[string]any { return c.defaultContext }

// Resolver returns the index resolver bound to this connection.
func (c *Connection) Resolver() *index.Resolver { return c.resolver }

// NameService returns the bound name service.
func (c *Connection) NameService() NameService { return c.ns }

// NewIndexer builds an indexer from the configured factory.
func (c *Connection) NewIndexer(opts IndexerOptions) (Indexer, error) {
	if c.indexerFactory == nil {
		return nil, apperr.New(apperr.KindUnsupported, "connection has no indexer factory")
	}

	return c.indexerFactory(opts), nil
}

// Close marks the connection closed and purges the resolver cache.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.cache.Purge()
	c.logger.Debugf("connection %s closed", c.id)

	return nil
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool { return c.closed.Load() }

func (c *Connection) guard() error {
	if c.closed.Load() {
		return apperr.NewWithCode(apperr.KindClosed, constant.ErrConnectionClosed, "connection %s is closed", c.id)
	}

	return nil
}

// splitLedger accepts "alias" or "alias/branch" and defaults branch to main.
func splitLedger(ledger string) (string, string) {
	alias, branch, ok := strings.Cut(ledger, "/")
	if !ok || branch == "" {
		return alias, "main"
	}

	return alias, branch
}

// WriteCommit normalizes and content-writes a commit record for the ledger,
// returning the write record with the commit's stable address.
func (c *Connection) WriteCommit(ctx context.Context, ledger string, commit any) (*storage.WriteResult, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	tracer := motel.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "connection.write_commit")
	defer span.End()

	data, err := c.normalize(commit)
	if err != nil {
		motel.HandleSpanError(&span, "Failed to normalize commit", err)

		return nil, err
	}

	alias, branch := splitLedger(ledger)

	res, err := c.store.WriteContent(ctx, storage.CommitDir(alias, branch), data)
	if err != nil {
		motel.HandleSpanError(&span, "Failed to write commit", err)

		return nil, err
	}

	return res, nil
}

// ReadCommit reads a commit back as parsed JSON; an absent address yields (nil, nil).
func (c *Connection) ReadCommit(ctx context.Context, address string) (any, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	tracer := motel.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "connection.read_commit")
	defer span.End()

	v, err := c.store.ReadJSON(ctx, address, false)
	if err != nil {
		motel.HandleSpanError(&span, "Failed to read commit", err)

		return nil, err
	}

	return v, nil
}

// WriteContext content-writes a JSON-LD @context document for the ledger.
func (c *Connection) WriteContext(ctx context.Context, ledger string, contextDoc any) (*storage.WriteResult, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	data, err := c.normalize(contextDoc)
	if err != nil {
		return nil, err
	}

	alias, branch := splitLedger(ledger)

	return c.store.WriteContent(ctx, storage.ContextDir(alias, branch), data)
}

// ReadContext reads a context document; an absent address yields (nil, nil).
func (c *Connection) ReadContext(ctx context.Context, address string) (any, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	return c.store.ReadJSON(ctx, address, false)
}

// WriteIndexFile content-writes serialized index-node bytes for the ledger
// under the index type's directory.
func (c *Connection) WriteIndexFile(ctx context.Context, ledger string, idx index.Type, data []byte) (*storage.WriteResult, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	alias, branch := splitLedger(ledger)

	return c.store.WriteContent(ctx, storage.IndexDir(alias, branch, string(idx)), data)
}

// WriteGarbage content-writes the record of index nodes a reindex made
// unreachable.
func (c *Connection) WriteGarbage(ctx context.Context, ledger string, record *index.GarbageRecord) (*storage.WriteResult, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	data, err := c.normalize(record)
	if err != nil {
		return nil, err
	}

	alias, branch := splitLedger(ledger)

	return c.store.WriteContent(ctx, alias+"/"+branch+"/garbage", data)
}

// WriteIndexRoot content-writes an index root record pointing at the four
// index roots as of one transaction.
func (c *Connection) WriteIndexRoot(ctx context.Context, ledger string, root *index.RootRecord) (*storage.WriteResult, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	data, err := c.normalize(root)
	if err != nil {
		return nil, err
	}

	alias, branch := splitLedger(ledger)

	return c.store.WriteContent(ctx, alias+"/"+branch+"/index/root", data)
}

// ReadFile fetches raw bytes by address; it implements index.FileReader for
// the resolver. An absent address yields (nil, nil).
func (c *Connection) ReadFile(ctx context.Context, address string) ([]byte, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	addr, err := storage.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	return c.store.ReadBytes(ctx, addr.Path)
}

// Address resolves the head address of a ledger branch through the name service.
func (c *Connection) Address(alias, branch string) (string, error) {
	if err := c.guard(); err != nil {
		return "", err
	}

	return c.ns.Address(alias, branch)
}

// Alias extracts the ledger alias from an address.
func (c *Connection) Alias(address string) (string, error) {
	if err := c.guard(); err != nil {
		return "", err
	}

	return c.ns.Alias(address)
}

// Lookup reads a head pointer and returns the commit address it holds.
func (c *Connection) Lookup(ctx context.Context, headAddress string) (string, error) {
	if err := c.guard(); err != nil {
		return "", err
	}

	return c.ns.Lookup(ctx, headAddress)
}

// Exists reports whether the address holds a value.
func (c *Connection) Exists(ctx context.Context, address string) (bool, error) {
	if err := c.guard(); err != nil {
		return false, err
	}

	return c.ns.Exists(ctx, address)
}

// Push points a branch head at a commit and returns the head's address.
func (c *Connection) Push(ctx context.Context, headPath, commitAddress string) (string, error) {
	if err := c.guard(); err != nil {
		return "", err
	}

	tracer := motel.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "connection.push")
	defer span.End()

	resolved, err := c.ns.Push(ctx, headPath, commitAddress)
	if err != nil {
		motel.HandleSpanError(&span, "Failed to push head", err)

		return "", err
	}

	return resolved, nil
}
