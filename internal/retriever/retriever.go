// Package retriever finds the child chunk nearest to a query in the
// document index. Unlike the semantic cache it does not hide failures.
package retriever

import (
	"context"
	"fmt"

	"github.com/airac/airac/internal/embedder"
	"github.com/airac/airac/internal/vectorindex"
)

// TopK is the number of document matches requested per query
const TopK = 1

// Retriever embeds queries and searches the document index
type Retriever struct {
	embedder embedder.Embedder
	index    vectorindex.Index
}

// New creates a document retriever
func New(emb embedder.Embedder, index vectorindex.Index) *Retriever {
	return &Retriever{embedder: emb, index: index}
}

// Get returns the best matching child for the query, or no matches when the
// index has nothing. Embedding and index errors are returned to the caller.
func (r *Retriever) Get(ctx context.Context, query string) ([]vectorindex.Match, error) {
	emb, err := r.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.index.Query(ctx, vectorindex.QueryRequest{
		Vector:          emb.Vector,
		TopK:            TopK,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.index.Name(), err)
	}
	return matches, nil
}
