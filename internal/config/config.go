package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "BOOKQA_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (BOOKQA_*). A double underscore selects a
// nested key: BOOKQA_SERVER__PORT sets server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Lists replace the defaults rather than merging element-wise.
	lists := map[string]*[]string{
		"documents":              &cfg.Documents,
		"server.allowed_origins": &cfg.Server.AllowedOrigins,
	}
	for key, dst := range lists {
		if !k.Exists(key) {
			continue
		}
		if s, ok := k.Get(key).(string); ok {
			*dst = splitAndTrim(s)
		} else {
			*dst = k.Strings(key)
		}
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized completion providers.
var validProviders = map[ProviderType]bool{
	ProviderGroq:   true,
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// validEmbeddingProviders is the set of recognized embedding providers.
var validEmbeddingProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// Validate checks that the configuration contains valid values. Every
// failure is a configuration error.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return apperr.Configuration("provider is required")
	}
	if !validProviders[c.Provider] {
		return apperr.Configuration("invalid provider %q: must be one of groq, openai, ollama", c.Provider)
	}
	if c.Model == "" {
		return apperr.Configuration("model is required")
	}

	if !validEmbeddingProviders[c.EmbeddingProvider] {
		return apperr.Configuration("invalid embedding_provider %q: must be one of openai, ollama", c.EmbeddingProvider)
	}
	if c.EmbeddingModel == "" {
		return apperr.Configuration("embedding_model is required")
	}
	if c.EmbeddingDimensions <= 0 {
		return apperr.Configuration("embedding_dimensions must be positive")
	}

	if c.ChunkSize <= 0 {
		return apperr.Configuration("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return apperr.Configuration("chunk_overlap (%d) must be in [0, chunk_size (%d))", c.ChunkOverlap, c.ChunkSize)
	}

	positive := []struct {
		name  string
		value int
	}{
		{"retrieval_k", c.RetrievalK},
		{"snippet_length", c.SnippetLength},
		{"embed_timeout_seconds", c.EmbedTimeoutSeconds},
		{"compress_timeout_seconds", c.CompressTimeoutSeconds},
		{"complete_timeout_seconds", c.CompleteTimeoutSeconds},
		{"embed_batch_size", c.EmbedBatchSize},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return apperr.Configuration("%s must be positive, got %d", p.name, p.value)
		}
	}

	nonNegative := []struct {
		name  string
		value int
	}{
		{"compression_concurrency", c.CompressionConcurrency},
		{"ingest_concurrency", c.IngestConcurrency},
		{"max_retries", c.MaxRetries},
		{"retry_delay_ms", c.RetryDelayMS},
		{"requests_per_minute", c.RequestsPerMinute},
	}
	for _, n := range nonNegative {
		if n.value < 0 {
			return apperr.Configuration("%s must be non-negative, got %d", n.name, n.value)
		}
	}

	if c.VectorDBPath == "" {
		return apperr.Configuration("vector_db_path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return apperr.Configuration("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

// Address returns the host:port the HTTP server listens on.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderGroq:
		return "GROQ_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
