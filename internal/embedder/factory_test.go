package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantProvider string
		wantErr      error
	}{
		{name: "jina", cfg: Config{Provider: "jina", APIKey: "k"}, wantProvider: ProviderJina},
		{name: "jina uppercase", cfg: Config{Provider: "JINA", APIKey: "k"}, wantProvider: ProviderJina},
		{name: "openai", cfg: Config{Provider: "openai", APIKey: "k"}, wantProvider: ProviderOpenAI},
		{name: "local", cfg: Config{Provider: "local", CacheSize: 10}, wantProvider: ProviderLocal},
		{name: "jina without key", cfg: Config{Provider: "jina"}, wantErr: ErrNoProviderEnabled},
		{name: "empty provider", cfg: Config{}, wantErr: ErrNoProviderEnabled},
		{name: "unknown provider", cfg: Config{Provider: "word2vec"}, wantErr: ErrUnsupportedModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer emb.Close()
			assert.Equal(t, tt.wantProvider, emb.Provider())
		})
	}
}

func TestDefaultDimension(t *testing.T) {
	assert.Equal(t, JinaDimension, DefaultDimension("jina"))
	assert.Equal(t, OpenAIDimension, DefaultDimension("openai"))
	assert.Equal(t, LocalDimension, DefaultDimension("local"))
}

func TestRequiresAPIKey(t *testing.T) {
	assert.True(t, RequiresAPIKey("jina"))
	assert.True(t, RequiresAPIKey("openai"))
	assert.False(t, RequiresAPIKey("local"))
}
