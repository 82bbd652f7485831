package embedder

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkCache(b *testing.B) {
	cache := NewCache(10000)
	emb := &Embedding{
		Vector:    make([]float32, JinaDimension),
		Dimension: JinaDimension,
		Provider:  ProviderJina,
		Model:     DefaultJinaModel,
	}

	for i := 0; i < 1000; i++ {
		cache.Set(fmt.Sprintf("hash-%d", i), emb)
	}

	b.Run("get-hit", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = cache.Get(fmt.Sprintf("hash-%d", i%1000))
		}
	})

	b.Run("get-miss", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = cache.Get(fmt.Sprintf("missing-%d", i))
		}
	})

	b.Run("parallel", func(b *testing.B) {
		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				if i%3 == 0 {
					cache.Set(fmt.Sprintf("hash-%d", i%2000), emb)
				} else {
					_, _ = cache.Get(fmt.Sprintf("hash-%d", i%2000))
				}
				i++
			}
		})
	})
}

func BenchmarkLocalProvider(b *testing.B) {
	provider, err := NewLocalProvider(Config{}, nil)
	if err != nil {
		b.Fatalf("NewLocalProvider() error = %v", err)
	}
	ctx := context.Background()

	b.Run("single", func(b *testing.B) {
		req := EmbeddingRequest{Text: "What time is breakfast served in the mess?"}
		for i := 0; i < b.N; i++ {
			if _, err := provider.GenerateEmbedding(ctx, req); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("batch-50", func(b *testing.B) {
		texts := make([]string, DefaultBatchSize)
		for i := range texts {
			texts[i] = fmt.Sprintf("Dining | chunk %d about meal times", i)
		}
		req := BatchEmbeddingRequest{Texts: texts}
		for i := 0; i < b.N; i++ {
			if _, err := provider.GenerateBatch(ctx, req); err != nil {
				b.Fatal(err)
			}
		}
	})
}
