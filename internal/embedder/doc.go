// Package embedder turns query and document text into vector embeddings.
//
// Three providers are available:
//
//   - jina: the Jina AI embeddings API (jina-embeddings-v3, 1024 dimensions,
//     task retrieval.passage). This is the production provider.
//   - openai: any OpenAI-compatible /embeddings endpoint via go-openai.
//   - local: offline feature-hashing vectors for development and tests.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  embedder.ProviderJina,
//	    APIKey:    os.Getenv("JINA_API_KEY"),
//	    CacheSize: 1000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "What time is breakfast served?",
//	})
//
// # Batch Processing
//
// Ingestion embeds children in batches of up to MaxBatchSize texts:
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: texts,
//	})
//
// # Error Handling
//
// A non-success response surfaces as *ProviderError with the raw body.
// No retry happens at this layer; callers decide what a failure means.
//
//	var perr *embedder.ProviderError
//	if errors.As(err, &perr) {
//	    log.Printf("status %d: %s", perr.StatusCode, perr.Body)
//	}
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // any provider-side failure
//	}
//
// # Caching
//
// With CacheSize > 0, embeddings are memoized in an LRU keyed by the
// SHA-256 of model, task and text. Cached vectors are copied on the way in
// and out so callers can mutate what they receive.
package embedder
