// Package pipeline runs a query through retrieval and generation.
//
// Every invocation walks the same two stages in order. retrieve_doc
// resolves grounding context from the semantic cache or, on a miss, from
// the document index, and populates the cache when the index produced a
// usable match. get_answer renders the grounding prompt and asks the
// generator for the answer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/airac/airac/internal/metrics"
	"github.com/airac/airac/internal/vectorindex"
	"github.com/airac/airac/pkg/types"
)

// Stage names, in execution order
const (
	StageRetrieve = "retrieve_doc"
	StageAnswer   = "get_answer"
)

// ErrEmptyQuery is returned for queries that are blank after trimming
var ErrEmptyQuery = errors.New("query is empty")

// ContextCache looks up and stores resolved context by query similarity
type ContextCache interface {
	Get(ctx context.Context, query string) (types.ParentContext, bool)
	Add(ctx context.Context, query string, pc types.ParentContext)
}

// DocumentRetriever finds the nearest document chunk for a query
type DocumentRetriever interface {
	Get(ctx context.Context, query string) ([]vectorindex.Match, error)
}

// Generator turns a grounding prompt into answer text
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatState is the record threaded through the stages of one invocation
type ChatState struct {
	Query           string
	RetrievedText   string
	RetrievedTables []types.TableRow
	Answer          string

	// CacheHit reports whether the context came from the semantic cache
	CacheHit bool
}

// Context returns the retrieved context as a ParentContext
func (s *ChatState) Context() types.ParentContext {
	return types.ParentContext{Text: s.RetrievedText, Tables: s.RetrievedTables}
}

type stage struct {
	name string
	run  func(ctx context.Context, state *ChatState) error
}

// Pipeline is the two-stage query orchestrator. It holds no per-query
// state and is safe for concurrent use.
type Pipeline struct {
	cache     ContextCache
	retriever DocumentRetriever
	generator Generator
	logger    *slog.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration

	stages []stage
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records stage durations and query outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithTimeout bounds each invocation; zero means no bound
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// New builds a pipeline from its collaborators
func New(cache ContextCache, retriever DocumentRetriever, generator Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		cache:     cache,
		retriever: retriever,
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.stages = []stage{
		{name: StageRetrieve, run: p.retrieveDoc},
		{name: StageAnswer, run: p.getAnswer},
	}
	return p
}

// Invoke answers query and returns the answer text
func (p *Pipeline) Invoke(ctx context.Context, query string) (string, error) {
	state, err := p.Run(ctx, query)
	if err != nil {
		return "", err
	}
	return state.Answer, nil
}

// Run answers query and returns the final state
func (p *Pipeline) Run(ctx context.Context, query string) (*ChatState, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	state := &ChatState{Query: query}
	for _, s := range p.stages {
		start := time.Now()
		err := s.run(ctx, state)
		p.metrics.ObserveStage(s.name, time.Since(start))
		if err != nil {
			p.metrics.Query(metrics.ResultError)
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}

	p.metrics.Query(metrics.ResultOK)
	return state, nil
}

func (p *Pipeline) retrieveDoc(ctx context.Context, state *ChatState) error {
	if pc, ok := p.cache.Get(ctx, state.Query); ok {
		state.RetrievedText = pc.Text
		state.RetrievedTables = pc.Tables
		state.CacheHit = true
		return nil
	}

	matches, err := p.retriever.Get(ctx, state.Query)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		p.logger.Info("no matching document", "query", state.Query)
		return nil
	}

	pc, err := types.ContextFromMetadata(matches[0].Metadata)
	if err != nil {
		p.logger.Warn("discarding document match", "id", matches[0].ID, "error", err)
		return nil
	}

	state.RetrievedText = pc.Text
	state.RetrievedTables = pc.Tables
	p.cache.Add(ctx, state.Query, pc)
	return nil
}

func (p *Pipeline) getAnswer(ctx context.Context, state *ChatState) error {
	prompt, err := BuildPrompt(state.Query, state.Context())
	if err != nil {
		return err
	}

	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	state.Answer = answer
	return nil
}
