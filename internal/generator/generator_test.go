package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airac/airac/internal/metrics"
)

// scriptedCompleter returns the scripted errors in order, then succeeds.
type scriptedCompleter struct {
	mu          sync.Mutex
	errs        []error
	credentials []string
}

func (s *scriptedCompleter) Complete(ctx context.Context, credential, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = append(s.credentials, credential)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "answer from " + credential, nil
}

func newPool(t *testing.T, keys ...string) *CredentialPool {
	t.Helper()
	pool, err := NewCredentialPool(keys)
	require.NoError(t, err)
	return pool
}

func TestGenerate_Success(t *testing.T) {
	pool := newPool(t, "k1", "k2")
	comp := &scriptedCompleter{}
	c := New(pool, comp)

	text, err := c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "answer from k1", text)
	assert.Equal(t, []string{"k1"}, comp.credentials)
	assert.Equal(t, "k1", pool.Current())
}

func TestGenerate_RotatesOnceOnRateLimit(t *testing.T) {
	pool := newPool(t, "k1", "k2", "k3")
	comp := &scriptedCompleter{errs: []error{errors.New("googleapi: Error 429: Resource exhausted")}}
	m := metrics.New()
	c := New(pool, comp, WithMetrics(m))

	text, err := c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "answer from k2", text)
	assert.Equal(t, []string{"k1", "k2"}, comp.credentials)

	// Rotation persists for the next call
	_, err = c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2", "k2"}, comp.credentials)
}

func TestGenerate_SecondFailurePropagates(t *testing.T) {
	pool := newPool(t, "k1", "k2", "k3")
	comp := &scriptedCompleter{errs: []error{
		errors.New("quota exceeded"),
		errors.New("quota exceeded"),
	}}
	c := New(pool, comp)

	_, err := c.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	// Exactly two attempts and exactly one rotation
	assert.Equal(t, []string{"k1", "k2"}, comp.credentials)
	assert.Equal(t, "k2", pool.Current())
}

func TestGenerate_NonRateLimitPassesThrough(t *testing.T) {
	pool := newPool(t, "k1", "k2")
	boom := errors.New("connection reset by peer")
	comp := &scriptedCompleter{errs: []error{boom}}
	c := New(pool, comp)

	_, err := c.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"k1"}, comp.credentials)
	assert.Equal(t, "k1", pool.Current(), "pool must not rotate")
}

func TestGenerate_RetryFailsWithOtherError(t *testing.T) {
	pool := newPool(t, "k1", "k2")
	boom := errors.New("internal error")
	comp := &scriptedCompleter{errs: []error{errors.New("HTTP 429"), boom}}
	c := New(pool, comp)

	_, err := c.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, comp.credentials, 2)
}

func TestGenerate_SingleKeyPool(t *testing.T) {
	pool := newPool(t, "only")
	comp := &scriptedCompleter{errs: []error{errors.New("429")}}
	c := New(pool, comp)

	text, err := c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "answer from only", text)
	assert.Equal(t, []string{"only", "only"}, comp.credentials)
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "api error 429", err: &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}, want: true},
		{name: "wrapped api error 429", err: fmt.Errorf("call: %w", &openai.APIError{HTTPStatusCode: 429}), want: true},
		{name: "request error 429", err: &openai.RequestError{HTTPStatusCode: 429, Err: errors.New("x")}, want: true},
		{name: "api error 500", err: &openai.APIError{HTTPStatusCode: 500, Message: "oops"}, want: false},
		{name: "message 429", err: errors.New("error, status code: 429"), want: true},
		{name: "message quota", err: errors.New("You exceeded your current Quota"), want: true},
		{name: "unrelated", err: errors.New("context deadline exceeded"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimited(tt.err))
		})
	}
}

// End to end over HTTP: the first key is throttled, the second answers.
func TestOpenAICompleter_RotationOverHTTP(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth := r.Header.Get("Authorization")
		mu.Lock()
		seen = append(seen, auth)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if auth == "Bearer throttled" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Resource has been exhausted","type":"rate_limit","code":429}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"gemini-2.5-flash-lite","choices":[{"index":0,"message":{"role":"assistant","content":"Breakfast is served 7-9am."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	completer := NewOpenAICompleter(OpenAIConfig{BaseURL: server.URL})
	c := New(newPool(t, "throttled", "fresh"), completer)

	text, err := c.Generate(context.Background(), "When is breakfast?")
	require.NoError(t, err)
	assert.Equal(t, "Breakfast is served 7-9am.", text)
	assert.Equal(t, []string{"Bearer throttled", "Bearer fresh"}, seen)
}

func TestOpenAICompleter_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	completer := NewOpenAICompleter(OpenAIConfig{BaseURL: server.URL, Model: "custom"})
	assert.Equal(t, "custom", completer.Model())

	_, err := completer.Complete(context.Background(), "k", "prompt")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
