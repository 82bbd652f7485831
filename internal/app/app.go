// Package app assembles the query pipeline and the ingester from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/airac/airac/internal/config"
	"github.com/airac/airac/internal/embedder"
	"github.com/airac/airac/internal/generator"
	"github.com/airac/airac/internal/ingest"
	"github.com/airac/airac/internal/metrics"
	"github.com/airac/airac/internal/pipeline"
	"github.com/airac/airac/internal/retriever"
	"github.com/airac/airac/internal/semcache"
	"github.com/airac/airac/internal/vectorindex"
)

// App holds the long-lived components of a running process
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Embedder embedder.Embedder
	Cache    *semcache.Cache
	Pipeline *pipeline.Pipeline

	closers []io.Closer
}

// Close releases index connections and the embedder
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build constructs the full query path and ensures both indexes exist.
// A missing credential yields an error wrapping config.ErrMissingConfig.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	secrets, err := cfg.Secrets()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	emb, err := newEmbedder(cfg, secrets.EmbedderKey)
	if err != nil {
		return nil, err
	}
	a.Embedder = emb
	a.closers = append(a.closers, emb)

	docs, err := a.openIndex(cfg, secrets.PineconeKey, cfg.VectorIndex.DocumentIndex, emb.Dimension())
	if err != nil {
		return nil, err
	}
	cacheIndex, err := a.openIndex(cfg, secrets.PineconeKey, cfg.Cache.Index, emb.Dimension())
	if err != nil {
		return nil, err
	}
	for _, idx := range []vectorindex.Index{docs, cacheIndex} {
		if err := idx.Ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensure index %s: %w", idx.Name(), err)
		}
	}

	a.Cache = semcache.New(emb, cacheIndex,
		semcache.WithThreshold(cfg.Cache.Threshold),
		semcache.WithLogger(logger.With("component", "semcache")),
		semcache.WithMetrics(a.Metrics),
	)

	pool, err := generator.NewCredentialPool(secrets.GeneratorKeys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrMissingConfig, err)
	}
	completer := generator.NewOpenAICompleter(generator.OpenAIConfig{
		BaseURL: cfg.Generator.BaseURL,
		Model:   cfg.Generator.Model,
		Timeout: config.Seconds(cfg.Generator.TimeoutSecs),
	})
	gen := generator.New(pool, completer,
		generator.WithLogger(logger.With("component", "generator")),
		generator.WithMetrics(a.Metrics),
	)

	a.Pipeline = pipeline.New(a.Cache, retriever.New(emb, docs), gen,
		pipeline.WithLogger(logger.With("component", "pipeline")),
		pipeline.WithMetrics(a.Metrics),
	)

	logger.Info("pipeline ready",
		"embedder", emb.Provider(),
		"model", emb.Model(),
		"backend", cfg.VectorIndex.Backend,
		"document_index", docs.Name(),
		"cache_index", cacheIndex.Name(),
		"generation_model", completer.Model(),
		"credentials", pool.Len(),
	)
	ok = true
	return a, nil
}

// BuildIngester constructs the ingester for the document index. It needs
// only the embedding and index credentials.
func BuildIngester(cfg *config.Config, logger *slog.Logger) (*ingest.Ingester, *App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	embKey, err := cfg.EmbedderSecret()
	if err != nil {
		return nil, nil, err
	}
	pcKey, err := cfg.PineconeSecret()
	if err != nil {
		return nil, nil, err
	}

	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	emb, err := newEmbedder(cfg, embKey)
	if err != nil {
		return nil, nil, err
	}
	a.Embedder = emb
	a.closers = append(a.closers, emb)

	docs, err := a.openIndex(cfg, pcKey, cfg.VectorIndex.DocumentIndex, emb.Dimension())
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}

	ing := ingest.New(emb, docs, ingest.Config{
		BatchSize:         cfg.Ingest.BatchSize,
		Concurrency:       cfg.Ingest.Concurrency,
		RequestsPerSecond: cfg.Ingest.RequestsPerSecond,
		ChunkSize:         cfg.Ingest.ChunkSize,
		ChunkOverlap:      cfg.Ingest.ChunkOverlap,
	},
		ingest.WithLogger(logger.With("component", "ingest")),
		ingest.WithMetrics(a.Metrics),
	)
	return ing, a, nil
}

// NewEmbedder constructs the configured embedder on its own, for smoke tests
func NewEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	key, err := cfg.EmbedderSecret()
	if err != nil {
		return nil, err
	}
	return newEmbedder(cfg, key)
}

func newEmbedder(cfg *config.Config, key string) (embedder.Embedder, error) {
	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedder.Provider,
		APIKey:    key,
		BaseURL:   cfg.Embedder.BaseURL,
		Model:     cfg.Embedder.Model,
		Task:      cfg.Embedder.Task,
		Dimension: cfg.Embedder.Dimension,
		Timeout:   config.Seconds(cfg.Embedder.TimeoutSecs),
		CacheSize: cfg.Embedder.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return emb, nil
}

// openIndex opens a named index on the configured backend. SQLite indexes
// share one store per App.
func (a *App) openIndex(cfg *config.Config, pineconeKey, name string, dimension int) (vectorindex.Index, error) {
	spec := vectorindex.Spec{
		Name:      name,
		Dimension: dimension,
		Cloud:     cfg.VectorIndex.Pinecone.Cloud,
		Region:    cfg.VectorIndex.Pinecone.Region,
	}

	switch cfg.VectorIndex.Backend {
	case config.BackendPinecone:
		idx, err := vectorindex.NewPinecone(vectorindex.PineconeConfig{
			APIKey:     pineconeKey,
			ControlURL: cfg.VectorIndex.Pinecone.ControlURL,
			Spec:       spec,
			Timeout:    config.Seconds(cfg.VectorIndex.Pinecone.TimeoutSecs),
			Logger:     a.Logger.With("component", "pinecone", "index", name),
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, idx)
		return idx, nil

	case config.BackendSQLite:
		store, err := a.sqliteStore(cfg.VectorIndex.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store.Index(spec)

	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", config.ErrInvalidConfig, cfg.VectorIndex.Backend)
	}
}

func (a *App) sqliteStore(path string) (*vectorindex.SQLiteStore, error) {
	for _, c := range a.closers {
		if s, ok := c.(*vectorindex.SQLiteStore); ok {
			return s, nil
		}
	}
	dbPath, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	store, err := vectorindex.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store)
	a.Logger.Debug("opened local index store", "path", dbPath, "driver", vectorindex.DriverName, "mode", vectorindex.BuildMode)
	return store, nil
}
