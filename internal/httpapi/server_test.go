package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airac/airac/internal/metrics"
)

type fakePipeline struct {
	answer  string
	err     error
	queries []string
}

func (f *fakePipeline) Invoke(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.answer, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(p Invoker) *httptest.Server {
	s := NewServer(p, Config{Logger: quietLogger(), Metrics: metrics.New().Handler()})
	return httptest.NewServer(s.Handler())
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRoot(t *testing.T) {
	ts := newTestServer(nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "AIRAC API is running", body["message"])

	resp, err = http.Get(ts.URL + "/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		pipeline Invoker
		want     string
	}{
		{name: "operational", pipeline: &fakePipeline{}, want: PipelineOperational},
		{name: "degraded", pipeline: nil, want: PipelineFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(tt.pipeline)
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/health")
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var body HealthResponse
			decode(t, resp, &body)
			assert.Equal(t, "healthy", body.Status)
			assert.Equal(t, "API is operational", body.Message)
			assert.Equal(t, tt.want, body.RAGPipeline)
		})
	}
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name       string
		pipeline   *fakePipeline
		body       string
		wantStatus int
		wantAnswer string
		wantCalls  int
	}{
		{
			name:       "answer",
			pipeline:   &fakePipeline{answer: "Breakfast is served 7-9am."},
			body:       `{"query":"When is breakfast?"}`,
			wantStatus: http.StatusOK,
			wantAnswer: "Breakfast is served 7-9am.",
			wantCalls:  1,
		},
		{
			name:       "pipeline failure becomes apology",
			pipeline:   &fakePipeline{err: errors.New("index unavailable")},
			body:       `{"query":"When is breakfast?"}`,
			wantStatus: http.StatusOK,
			wantAnswer: ApologyMessage,
			wantCalls:  1,
		},
		{
			name:       "whitespace query rejected",
			pipeline:   &fakePipeline{},
			body:       `{"query":"   "}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing query rejected",
			pipeline:   &fakePipeline{},
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid json rejected",
			pipeline:   &fakePipeline{},
			body:       `{"query":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(tt.pipeline)
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/query", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Len(t, tt.pipeline.queries, tt.wantCalls)

			if tt.wantStatus == http.StatusOK {
				var body QueryResponse
				decode(t, resp, &body)
				assert.Equal(t, tt.wantAnswer, body.Response)
			} else {
				resp.Body.Close()
			}
		})
	}
}

func TestQuery_TrimsBeforeInvoke(t *testing.T) {
	p := &fakePipeline{answer: "ok"}
	ts := newTestServer(p)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/query", "application/json", strings.NewReader(`{"query":"  When is breakfast?\n"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{"When is breakfast?"}, p.queries)
}

func TestQuery_BodyTooLarge(t *testing.T) {
	p := &fakePipeline{answer: "ok"}
	s := NewServer(p, Config{Logger: quietLogger()})

	body := `{"query":"` + strings.Repeat("a", MaxRequestBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, p.queries)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "request body too large", resp.Detail)
}

func TestQuery_Degraded(t *testing.T) {
	ts := newTestServer(nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/query", "application/json", strings.NewReader(`{"query":"hi"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestQuery_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(&fakePipeline{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/query")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(&fakePipeline{})
	defer ts.Close()

	t.Run("allowed origin preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+"/query", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", "POST")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://evil.example")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(&fakePipeline{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	s := NewServer(&fakePipeline{}, Config{Addr: "127.0.0.1:0", Logger: quietLogger()})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}
