package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string // Optional: override provider endpoint
	Model     string
	Task      string // Jina task adapter, e.g. retrieval.passage
	Dimension int    // Optional: override provider default
	Timeout   time.Duration
	CacheSize int // 0 disables the in-memory cache
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderJina:
		return NewJinaProvider(cfg, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg, cache)
	case ProviderLocal:
		return NewLocalProvider(cfg, cache)
	case "":
		return nil, ErrNoProviderEnabled
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DefaultDimension returns the vector size a provider produces when no
// override is configured.
func DefaultDimension(provider string) int {
	switch strings.ToLower(provider) {
	case ProviderJina:
		return JinaDimension
	case ProviderOpenAI:
		return OpenAIDimension
	default:
		return LocalDimension
	}
}

// RequiresAPIKey reports whether the provider needs a credential
func RequiresAPIKey(provider string) bool {
	switch strings.ToLower(provider) {
	case ProviderJina, ProviderOpenAI:
		return true
	default:
		return false
	}
}
