package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	DefaultPineconeCloud   = "aws"
	DefaultPineconeRegion  = "us-east-1"
	DefaultPineconeTimeout = 15 * time.Second
)

// APIError is returned for non-success responses from the index service
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinecone %s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// PineconeConfig configures a Pinecone index client
type PineconeConfig struct {
	APIKey     string
	ControlURL string // Optional: override control plane (tests, local emulator)
	Spec       Spec
	Timeout    time.Duration
	ReadyRetry RetryConfig
	Logger     *slog.Logger
}

// dataPlane is the subset of *pinecone.IndexConnection the index uses
type dataPlane interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	Close() error
}

// PineconeIndex is a client for one named serverless index.
// The data plane connection is opened on first use.
type PineconeIndex struct {
	client     *pinecone.Client
	spec       Spec
	timeout    time.Duration
	readyRetry RetryConfig
	logger     *slog.Logger
	dial       func(host string) (dataPlane, error)

	mu   sync.Mutex
	conn dataPlane
}

// NewPinecone creates a Pinecone index client. No network calls happen
// until Ensure, Upsert or Query.
func NewPinecone(cfg PineconeConfig) (*PineconeIndex, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone api key is required")
	}
	if err := cfg.Spec.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultPineconeTimeout
	}
	retry := cfg.ReadyRetry
	if retry.MaxRetries == 0 {
		retry = DefaultReadyRetry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	spec := cfg.Spec
	spec.Metric = spec.metric()
	if spec.Cloud == "" {
		spec.Cloud = DefaultPineconeCloud
	}
	if spec.Region == "" {
		spec.Region = DefaultPineconeRegion
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:     cfg.APIKey,
		Host:       cfg.ControlURL,
		RestClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}

	p := &PineconeIndex{
		client:     client,
		spec:       spec,
		timeout:    timeout,
		readyRetry: retry,
		logger:     logger,
	}
	p.dial = p.dialHost
	return p, nil
}

func (p *PineconeIndex) dialHost(host string) (dataPlane, error) {
	return p.client.Index(pinecone.NewIndexConnParams{Host: host})
}

// Ensure lists indexes, creates the configured one when missing and waits
// for it to become ready. Concurrent callers in the same process are
// serialized; creation races between processes are not handled.
func (p *PineconeIndex) Ensure(ctx context.Context) error {
	_, err := p.dataConn(ctx)
	return err
}

func (p *PineconeIndex) dataConn(ctx context.Context) (dataPlane, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		return p.conn, nil
	}

	exists, err := p.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := p.create(ctx); err != nil {
			return nil, err
		}
		p.logger.Info("created index",
			"index", p.spec.Name, "dimension", p.spec.Dimension, "metric", p.spec.Metric)
	}

	desc, err := retryWithBackoff(ctx, p.readyRetry, func() (*pinecone.Index, error) {
		d, err := p.client.DescribeIndex(ctx, p.spec.Name)
		if err != nil {
			return nil, wrapPineconeError("describe index", err)
		}
		if d.Status == nil || !d.Status.Ready || d.Host == "" {
			state := "unknown"
			if d.Status != nil {
				state = string(d.Status.State)
			}
			return nil, fmt.Errorf("%w: %s is %s", ErrIndexNotReady, p.spec.Name, state)
		}
		return d, nil
	})
	if err != nil {
		return nil, fmt.Errorf("wait for index %s: %w", p.spec.Name, err)
	}

	conn, err := p.dial(desc.Host)
	if err != nil {
		return nil, fmt.Errorf("connect to index %s: %w", p.spec.Name, err)
	}
	p.conn = conn
	return conn, nil
}

func (p *PineconeIndex) exists(ctx context.Context) (bool, error) {
	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return false, wrapPineconeError("list indexes", err)
	}
	for _, idx := range indexes {
		if idx != nil && idx.Name == p.spec.Name {
			return true, nil
		}
	}
	return false, nil
}

func (p *PineconeIndex) create(ctx context.Context) error {
	_, err := p.client.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      p.spec.Name,
		Dimension: int32(p.spec.Dimension),
		Metric:    pinecone.IndexMetric(p.spec.Metric),
		Cloud:     pinecone.Cloud(p.spec.Cloud),
		Region:    p.spec.Region,
	})
	if err == nil {
		return nil
	}

	// Another process may have created it between list and create.
	var apiErr *APIError
	if err = wrapPineconeError("create index", err); errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return nil
	}
	return err
}

// Upsert writes vectors to the default namespace
func (p *PineconeIndex) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	records := make([]*pinecone.Vector, len(vectors))
	for i, v := range vectors {
		if len(v.Values) != p.spec.Dimension {
			return fmt.Errorf("%w: vector %q has %d values, index %s expects %d",
				ErrDimensionMismatch, v.ID, len(v.Values), p.spec.Name, p.spec.Dimension)
		}
		rec := &pinecone.Vector{Id: v.ID, Values: v.Values}
		if len(v.Metadata) > 0 {
			md, err := structpb.NewStruct(v.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata for %q: %w", v.ID, err)
			}
			rec.Metadata = md
		}
		records[i] = rec
	}

	conn, err := p.dataConn(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	n, err := conn.UpsertVectors(ctx, records)
	if err != nil {
		return wrapPineconeError("upsert", err)
	}
	p.logger.Debug("upserted vectors", "index", p.spec.Name, "count", n)
	return nil
}

// Query runs a nearest-neighbour search against the default namespace
func (p *PineconeIndex) Query(ctx context.Context, req QueryRequest) ([]Match, error) {
	if req.TopK <= 0 {
		return []Match{}, nil
	}
	conn, err := p.dataConn(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          req.Vector,
		TopK:            uint32(req.TopK),
		IncludeMetadata: req.IncludeMetadata,
	})
	if err != nil {
		return nil, wrapPineconeError("query", err)
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		match := Match{ID: m.Vector.Id, Score: float64(m.Score)}
		if m.Vector.Metadata != nil {
			match.Metadata = m.Vector.Metadata.AsMap()
		}
		matches = append(matches, match)
	}
	sortMatches(matches)
	if len(matches) > req.TopK {
		matches = matches[:req.TopK]
	}
	return matches, nil
}

// Name returns the index name
func (p *PineconeIndex) Name() string {
	return p.spec.Name
}

// Close closes the data plane connection
func (p *PineconeIndex) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// wrapPineconeError turns SDK status errors into *APIError
func wrapPineconeError(op string, err error) error {
	var pe *pinecone.PineconeError
	if errors.As(err, &pe) {
		return &APIError{Op: op, StatusCode: pe.Code, Body: pe.Error()}
	}
	return fmt.Errorf("pinecone %s: %w", op, err)
}
