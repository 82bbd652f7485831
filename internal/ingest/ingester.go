// Package ingest builds the document index from a knowledge base file.
//
// Parents are split into title-prefixed children (prose fragments and
// table rows). Children are embedded in batches and upserted with the full
// parent attached as metadata, so a single nearest child is enough to
// ground an answer.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/airac/airac/internal/embedder"
	"github.com/airac/airac/internal/metrics"
	"github.com/airac/airac/internal/vectorindex"
	"github.com/airac/airac/pkg/types"
)

// Defaults
const (
	DefaultBatchSize         = 50
	DefaultConcurrency       = 4
	DefaultRequestsPerSecond = 5.0
)

// Config contains configuration for the ingester
type Config struct {
	BatchSize         int     // Children per embed+upsert round (default: 50)
	Concurrency       int     // Batches in flight (default: 4)
	RequestsPerSecond float64 // Embedding calls per second; <= 0 disables pacing
	ChunkSize         int
	ChunkOverlap      int
}

// Stats summarises one ingestion run
type Stats struct {
	Parents     int
	TextChunks  int
	TableChunks int
	Batches     int
	Upserted    int
	Duration    time.Duration
}

// Ingester embeds children and upserts them into the document index
type Ingester struct {
	embedder embedder.Embedder
	index    vectorindex.Index
	splitter *Splitter
	logger   *slog.Logger
	metrics  *metrics.Metrics

	batchSize   int
	concurrency int
	limiter     *rate.Limiter

	lock RunLock
}

// Option configures an Ingester
type Option func(*Ingester)

// WithLogger sets the ingester logger
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithMetrics counts ingested chunks
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Ingester) {
		i.metrics = m
	}
}

// New creates an ingester writing to index
func New(emb embedder.Embedder, index vectorindex.Index, cfg Config, opts ...Option) *Ingester {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > embedder.MaxBatchSize {
		cfg.BatchSize = embedder.MaxBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	i := &Ingester{
		embedder:    emb,
		index:       index,
		splitter:    NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:      slog.Default(),
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		limiter:     rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run ingests parents. The first failing batch cancels the rest; batches
// already upserted stay in the index.
func (i *Ingester) Run(ctx context.Context, parents []types.ParentDocument) (*Stats, error) {
	start := time.Now()
	if err := i.index.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("ensure %s: %w", i.index.Name(), err)
	}

	lookup := make(map[string]*types.ParentDocument, len(parents))
	for idx := range parents {
		lookup[parents[idx].ID] = &parents[idx]
	}

	children := BuildChildren(parents, i.splitter)
	stats := &Stats{Parents: len(parents)}
	for _, c := range children {
		if c.ChunkType == types.ChunkTable {
			stats.TableChunks++
		} else {
			stats.TextChunks++
		}
	}

	var upserted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)

	for offset := 0; offset < len(children); offset += i.batchSize {
		end := min(offset+i.batchSize, len(children))
		batch := children[offset:end]
		stats.Batches++

		g.Go(func() error {
			if err := i.limiter.Wait(gctx); err != nil {
				return err
			}
			n, err := i.ingestBatch(gctx, batch, lookup)
			if err != nil {
				return fmt.Errorf("batch at %d: %w", offset, err)
			}
			upserted.Add(int64(n))
			i.metrics.ChunksIngested(n)
			i.logger.Debug("batch upserted", "offset", offset, "size", n)
			return nil
		})
	}

	err := g.Wait()
	stats.Upserted = int(upserted.Load())
	stats.Duration = time.Since(start)
	if err != nil {
		return stats, err
	}

	i.logger.Info("ingestion complete",
		"index", i.index.Name(),
		"parents", stats.Parents,
		"text_chunks", stats.TextChunks,
		"table_chunks", stats.TableChunks,
		"upserted", stats.Upserted,
		"duration", stats.Duration,
	)
	return stats, nil
}

func (i *Ingester) ingestBatch(ctx context.Context, batch []types.ChildChunk, parents map[string]*types.ParentDocument) (int, error) {
	texts := make([]string, len(batch))
	for idx, c := range batch {
		texts[idx] = c.Text
	}

	resp, err := i.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Embeddings) != len(batch) {
		return 0, fmt.Errorf("embed: got %d embeddings for %d texts", len(resp.Embeddings), len(batch))
	}

	vectors := make([]vectorindex.Vector, 0, len(batch))
	for idx, c := range batch {
		md, err := childMetadata(c, parents[c.ParentID])
		if err != nil {
			return 0, err
		}
		vectors = append(vectors, vectorindex.Vector{
			ID:       c.ChildID,
			Values:   resp.Embeddings[idx].Vector,
			Metadata: md,
		})
	}

	if err := i.index.Upsert(ctx, vectors); err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}
	return len(vectors), nil
}

// childMetadata attaches the parent to the child record. The parent tables
// and the original chunk data are stored as JSON strings.
func childMetadata(c types.ChildChunk, parent *types.ParentDocument) (vectorindex.Metadata, error) {
	original, err := encodeJSON(c.OriginalData)
	if err != nil {
		return nil, fmt.Errorf("encode original data for %s: %w", c.ChildID, err)
	}

	md := vectorindex.Metadata{
		"parent_id":            c.ParentID,
		"parent_source":        "",
		"parent_title":         "",
		types.MetaParentText:   "",
		"child_text":           c.Text,
		"original_data":        original,
		types.MetaParentTables: "[]",
	}
	if parent != nil {
		md["parent_source"] = parent.Source
		md["parent_title"] = parent.Title
		md[types.MetaParentText] = parent.Text
		md[types.MetaParentTables] = types.EncodeTables(parent.Tables)
	}
	return md, nil
}

func encodeJSON(v any) (string, error) {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}
