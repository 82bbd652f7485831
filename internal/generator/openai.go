package generator

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is Gemini's OpenAI-compatible endpoint
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	// DefaultModel is the generation model
	DefaultModel   = "gemini-2.5-flash-lite"
	DefaultTimeout = 60 * time.Second
)

// ErrEmptyCompletion is returned when the provider answers without choices
var ErrEmptyCompletion = errors.New("completion returned no choices")

// Completer sends one prompt under one credential
type Completer interface {
	Complete(ctx context.Context, credential, prompt string) (string, error)
}

// OpenAICompleter calls an OpenAI-compatible chat completions API. One
// client is kept per credential.
type OpenAICompleter struct {
	baseURL    string
	model      string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*openai.Client
}

// OpenAIConfig configures an OpenAICompleter
type OpenAIConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOpenAICompleter creates a completer; credentials are supplied per call
func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAICompleter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		clients:    make(map[string]*openai.Client),
	}
}

// Model returns the configured model name
func (c *OpenAICompleter) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the reply text
func (c *OpenAICompleter) Complete(ctx context.Context, credential, prompt string) (string, error) {
	resp, err := c.client(credential).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAICompleter) client(credential string) *openai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.clients[credential]; ok {
		return cl
	}
	config := openai.DefaultConfig(credential)
	config.BaseURL = c.baseURL
	config.HTTPClient = c.httpClient
	cl := openai.NewClientWithConfig(config)
	c.clients[credential] = cl
	return cl
}
