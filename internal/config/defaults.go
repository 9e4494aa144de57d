package config

// DefaultConfigFile is the config file looked up in the working directory.
const DefaultConfigFile = ".bookqa.yml"

// ProviderPreset describes the default models for a completion provider.
type ProviderPreset struct {
	Model             string
	EmbeddingProvider ProviderType
	EmbeddingModel    string
	Dimensions        int
}

// providerPresets maps each completion provider to sensible model choices.
var providerPresets = map[ProviderType]ProviderPreset{
	ProviderGroq: {
		Model:             "llama-3.1-8b-instant",
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    "nomic-embed-text",
		Dimensions:        768,
	},
	ProviderOpenAI: {
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		Dimensions:        1536,
	},
	ProviderOllama: {
		Model:             "llama3.1",
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    "nomic-embed-text",
		Dimensions:        768,
	},
}

// DefaultAllowedOrigins are the browser origins allowed by CORS by default.
var DefaultAllowedOrigins = []string{
	"http://localhost:5000",
	"http://127.0.0.1:5000",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:               ProviderGroq,
		Model:                  "llama-3.1-8b-instant",
		EmbeddingProvider:      ProviderOllama,
		EmbeddingModel:         "nomic-embed-text",
		EmbeddingDimensions:    768,
		VectorDBPath:           "vector_db",
		HistoryDB:              "bookqa.db",
		RetrievalK:             5,
		CompressionConcurrency: 0,
		ChunkSize:              1800,
		ChunkOverlap:           200,
		SnippetLength:          500,
		EmbedTimeoutSeconds:    30,
		CompressTimeoutSeconds: 30,
		CompleteTimeoutSeconds: 60,
		EmbedBatchSize:         32,
		IngestConcurrency:      4,
		MaxRetries:             3,
		RetryDelayMS:           500,
		RequestsPerMinute:      0,
		Documents:              []string{},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
		},
	}
}

// GetPreset returns the preset for the given provider, falling back to Groq.
func GetPreset(provider ProviderType) ProviderPreset {
	if preset, ok := providerPresets[provider]; ok {
		return preset
	}
	return providerPresets[ProviderGroq]
}
