package vectorindex

import (
	"context"
	"errors"
	"fmt"
)

// Supported similarity metrics
const (
	MetricCosine     = "cosine"
	MetricDotProduct = "dotproduct"
	MetricEuclidean  = "euclidean"
)

var (
	// ErrIndexNotReady is returned while a freshly created index is still provisioning
	ErrIndexNotReady = errors.New("index not ready")
	// ErrDimensionMismatch is returned when a vector does not match the index dimension
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrUnsupportedMetric is returned when a backend cannot serve the requested metric
	ErrUnsupportedMetric = errors.New("unsupported similarity metric")
	// ErrInvalidSpec is returned for an index spec without name or dimension
	ErrInvalidSpec = errors.New("invalid index spec")
)

// Metadata is the free-form payload stored next to a vector
type Metadata map[string]any

// Vector is one record to upsert. ID is unique within an index; a later
// upsert with the same ID replaces values and metadata.
type Vector struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// Match is one nearest-neighbour result. Score is cosine similarity,
// higher is more similar.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// QueryRequest describes a nearest-neighbour search
type QueryRequest struct {
	Vector          []float32
	TopK            int
	IncludeMetadata bool
}

// Spec describes a named index and how to create it when missing
type Spec struct {
	Name      string
	Dimension int
	Metric    string
	Cloud     string // Serverless cloud (remote backends only)
	Region    string // Serverless region (remote backends only)
}

// Validate checks that the spec can be used to create an index
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}
	if s.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidSpec)
	}
	return nil
}

func (s Spec) metric() string {
	if s.Metric == "" {
		return MetricCosine
	}
	return s.Metric
}

// Index is a named vector index with lazy creation.
//
// Ensure creates the index with the spec's dimension and metric when it
// does not exist yet. Upsert and Query call it on first use, so callers only
// need to call it explicitly to front-load creation at startup.
type Index interface {
	// Ensure creates the index if missing and waits until it is usable
	Ensure(ctx context.Context) error

	// Upsert inserts or replaces vectors by ID
	Upsert(ctx context.Context, vectors []Vector) error

	// Query returns at most TopK matches ordered by descending score
	Query(ctx context.Context, req QueryRequest) ([]Match, error)

	// Name returns the index name
	Name() string

	// Close releases resources held by the index client
	Close() error
}
