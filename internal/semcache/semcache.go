// Package semcache is a semantic cache for retrieved context.
//
// Lookups embed the query and take the single nearest cached query; a match
// scoring at or above the threshold is a hit. Entries are keyed by the
// literal query text, so re-adding a query overwrites its entry. The cache
// never fails a request: every error on Get is a miss and every error on Add
// is dropped after logging.
package semcache

import (
	"context"
	"log/slog"

	"github.com/airac/airac/internal/embedder"
	"github.com/airac/airac/internal/metrics"
	"github.com/airac/airac/internal/vectorindex"
	"github.com/airac/airac/pkg/types"
)

// DefaultThreshold is the minimum cosine similarity for a cache hit
const DefaultThreshold = 0.95

// Cache stores query embeddings with the context they resolved to
type Cache struct {
	embedder  embedder.Embedder
	index     vectorindex.Index
	threshold float64
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Cache
type Option func(*Cache)

// WithThreshold overrides the hit threshold
func WithThreshold(threshold float64) Option {
	return func(c *Cache) {
		if threshold > 0 {
			c.threshold = threshold
		}
	}
}

// WithLogger sets the logger for swallowed failures
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records lookups and writes
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates a semantic cache over the given index
func New(emb embedder.Embedder, index vectorindex.Index, opts ...Option) *Cache {
	c := &Cache{
		embedder:  emb,
		index:     index,
		threshold: DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the configured hit threshold
func (c *Cache) Threshold() float64 {
	return c.threshold
}

// Get returns the cached context for the nearest equivalent query
func (c *Cache) Get(ctx context.Context, query string) (types.ParentContext, bool) {
	emb, err := c.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		c.lookupFailed("embed query", err)
		return types.ParentContext{}, false
	}

	matches, err := c.index.Query(ctx, vectorindex.QueryRequest{
		Vector:          emb.Vector,
		TopK:            1,
		IncludeMetadata: true,
	})
	if err != nil {
		c.lookupFailed("query cache index", err)
		return types.ParentContext{}, false
	}

	if len(matches) == 0 || matches[0].Score < c.threshold {
		c.metrics.CacheLookup(metrics.CacheMiss)
		if len(matches) > 0 {
			c.logger.Debug("semantic cache miss", "nearest", matches[0].ID, "score", matches[0].Score)
		}
		return types.ParentContext{}, false
	}

	pc, err := types.ContextFromMetadata(matches[0].Metadata)
	if err != nil {
		c.lookupFailed("decode cache entry", err)
		return types.ParentContext{}, false
	}

	c.metrics.CacheLookup(metrics.CacheHit)
	c.logger.Debug("semantic cache hit", "cached_query", matches[0].ID, "score", matches[0].Score)
	return pc, true
}

// Add stores the context a query resolved to, replacing any entry for the
// same query text
func (c *Cache) Add(ctx context.Context, query string, pc types.ParentContext) {
	emb, err := c.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		c.writeFailed("embed query", err)
		return
	}

	err = c.index.Upsert(ctx, []vectorindex.Vector{{
		ID:       query,
		Values:   emb.Vector,
		Metadata: vectorindex.Metadata(pc.Metadata()),
	}})
	if err != nil {
		c.writeFailed("upsert cache entry", err)
		return
	}

	c.metrics.CacheWrite(metrics.ResultOK)
}

func (c *Cache) lookupFailed(op string, err error) {
	c.metrics.CacheLookup(metrics.CacheError)
	c.logger.Warn("semantic cache lookup failed", "op", op, "error", err)
}

func (c *Cache) writeFailed(op string, err error) {
	c.metrics.CacheWrite(metrics.ResultError)
	c.logger.Warn("semantic cache write failed", "op", op, "error", err)
}
