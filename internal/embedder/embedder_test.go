package embedder

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  string
		equal bool
	}{
		{
			name:  "empty string",
			text:  "",
			want:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			equal: true,
		},
		{
			name:  "simple text",
			text:  "hello world",
			want:  "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
			equal: true,
		},
		{
			name:  "same text produces same hash",
			text:  "What time is breakfast served?",
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeHash(tt.text)
			if tt.equal {
				assert.Equal(t, tt.want, got)
				return
			}
			assert.Equal(t, got, ComputeHash(tt.text))
		})
	}
}

func TestCacheKeyScopesModelAndTask(t *testing.T) {
	base := cacheKey("jina-embeddings-v3", "retrieval.passage", "breakfast")
	assert.NotEqual(t, base, cacheKey("jina-embeddings-v3", "retrieval.query", "breakfast"))
	assert.NotEqual(t, base, cacheKey("other-model", "retrieval.passage", "breakfast"))
	assert.Equal(t, base, cacheKey("jina-embeddings-v3", "retrieval.passage", "breakfast"))
}

func TestValidateBatchRequest(t *testing.T) {
	tooMany := make([]string, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("text %d", i)
	}

	tests := []struct {
		name    string
		req     BatchEmbeddingRequest
		wantErr error
	}{
		{name: "valid", req: BatchEmbeddingRequest{Texts: []string{"a", "b"}}},
		{name: "empty batch", req: BatchEmbeddingRequest{}, wantErr: ErrInvalidInput},
		{name: "empty text", req: BatchEmbeddingRequest{Texts: []string{"a", ""}}, wantErr: ErrInvalidInput},
		{name: "too large", req: BatchEmbeddingRequest{Texts: tooMany}, wantErr: ErrBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("get returns a copy", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("k", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3})

		got, ok := cache.Get("k")
		assert.True(t, ok)
		got.Vector[0] = 99

		again, _ := cache.Get("k")
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("set stores a copy", func(t *testing.T) {
		cache := NewCache(10)
		emb := &Embedding{Vector: []float32{1, 2, 3}}
		cache.Set("k", emb)
		emb.Vector[0] = 42

		got, _ := cache.Get("k")
		assert.Equal(t, float32(1), got.Vector[0])
	})

	t.Run("lru eviction", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("a", &Embedding{Vector: []float32{1}})
		cache.Set("b", &Embedding{Vector: []float32{2}})
		cache.Set("c", &Embedding{Vector: []float32{3}})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("a")
		assert.False(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(0)
		cache.Set("a", &Embedding{Vector: []float32{1}})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})
}

func TestProviderErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("embed query: %w", &ProviderError{Provider: ProviderJina, StatusCode: 500, Body: "boom"})

	assert.ErrorIs(t, err, ErrProviderFailed)

	var perr *ProviderError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, 500, perr.StatusCode)
	assert.Contains(t, err.Error(), "boom")
}
