package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Secrets are the credentials resolved from the environment
type Secrets struct {
	EmbedderKey   string
	PineconeKey   string
	GeneratorKeys []string
}

// LoadDotEnv loads the given .env files, or ./.env when none are given.
// Missing files are ignored and existing variables are never overwritten.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// EmbedderSecret resolves the embedding provider key
func (c *Config) EmbedderSecret() (string, error) {
	if c.Embedder.Provider == "local" {
		return "", nil
	}
	key := strings.TrimSpace(os.Getenv(c.Embedder.APIKeyEnv))
	if key == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrMissingConfig, c.Embedder.APIKeyEnv)
	}
	return key, nil
}

// PineconeSecret resolves the Pinecone key; the SQLite backend needs none
func (c *Config) PineconeSecret() (string, error) {
	if c.VectorIndex.Backend != BackendPinecone {
		return "", nil
	}
	key := strings.TrimSpace(os.Getenv(c.VectorIndex.Pinecone.APIKeyEnv))
	if key == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrMissingConfig, c.VectorIndex.Pinecone.APIKeyEnv)
	}
	return key, nil
}

// GeneratorSecrets resolves the generation key pool from the comma
// separated list variable, falling back to the single key variable
func (c *Config) GeneratorSecrets() ([]string, error) {
	keys := splitKeys(os.Getenv(c.Generator.APIKeysEnv))
	if len(keys) == 0 {
		keys = splitKeys(os.Getenv(c.Generator.APIKeyEnv))
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: neither %s nor %s is set", ErrMissingConfig, c.Generator.APIKeysEnv, c.Generator.APIKeyEnv)
	}
	return keys, nil
}

// Secrets resolves every credential the query path needs
func (c *Config) Secrets() (*Secrets, error) {
	emb, err := c.EmbedderSecret()
	if err != nil {
		return nil, err
	}
	pc, err := c.PineconeSecret()
	if err != nil {
		return nil, err
	}
	gen, err := c.GeneratorSecrets()
	if err != nil {
		return nil, err
	}
	return &Secrets{EmbedderKey: emb, PineconeKey: pc, GeneratorKeys: gen}, nil
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
