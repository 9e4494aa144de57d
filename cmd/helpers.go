package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/ziadkadry99/textbook-qa/internal/config"
	"github.com/ziadkadry99/textbook-qa/internal/db"
	"github.com/ziadkadry99/textbook-qa/internal/embeddings"
	"github.com/ziadkadry99/textbook-qa/internal/history"
	"github.com/ziadkadry99/textbook-qa/internal/llm"
	"github.com/ziadkadry99/textbook-qa/internal/qa"
	"github.com/ziadkadry99/textbook-qa/internal/retriever"
	"github.com/ziadkadry99/textbook-qa/internal/vectordb"
)

// app holds the components shared by the query-side commands.
type app struct {
	cfg      *config.Config
	index    *vectordb.Index
	service  *qa.Service
	history  *history.Store
	database *db.DB
}

func (a *app) Close() error {
	if a.database != nil {
		return a.database.Close()
	}
	return nil
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `bookqa init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createEmbedderFromConfig wraps the configured embedding model in a
// timeout-bounded gateway.
func createEmbedderFromConfig(cfg *config.Config) (*embeddings.Gateway, error) {
	e, err := embeddings.NewEmbedder(string(cfg.EmbeddingProvider), cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embeddings.NewGateway(e, cfg.EmbedTimeout()), nil
}

// createLLMProviderFromConfig creates a rate-limited provider for model.
func createLLMProviderFromConfig(cfg *config.Config, model string) (llm.Provider, error) {
	p, err := llm.NewProvider(string(cfg.Provider), model)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	return llm.NewRateLimitedProvider(p, cfg.RequestsPerMinute), nil
}

// openHistory opens the query history database. An empty path disables it.
func openHistory(cfg *config.Config) (*db.DB, *history.Store, error) {
	if cfg.HistoryDB == "" {
		return nil, nil, nil
	}
	database, err := db.Open(cfg.HistoryDB)
	if err != nil {
		return nil, nil, fmt.Errorf("opening history database: %w", err)
	}
	return database, history.NewStore(database), nil
}

// buildApp wires the index, retriever, synthesizer and history store into a
// question-answering service. A missing or unreadable index is logged and
// leaves the service not ready rather than failing startup.
func buildApp(ctx context.Context, cfg *config.Config, withHistory bool) (*app, error) {
	gateway, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	index, err := vectordb.New()
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	if err := index.Load(ctx, cfg.VectorDBPath); err != nil {
		if errors.Is(err, vectordb.ErrIndexNotFound) {
			logger.Warn("no vector index found; run `bookqa ingest` first", "path", cfg.VectorDBPath)
		} else {
			logger.Error("could not load vector index", "path", cfg.VectorDBPath, "error", err)
		}
	} else if model := index.EmbeddingModel(); model != "" && model != gateway.Name() {
		logger.Warn("index was built with a different embedding model", "index_model", model, "configured", gateway.Name())
	}

	extractProvider, err := createLLMProviderFromConfig(cfg, cfg.ExtractionModel())
	if err != nil {
		return nil, err
	}
	answerProvider := extractProvider
	if cfg.ExtractionModel() != cfg.Model {
		if answerProvider, err = createLLMProviderFromConfig(cfg, cfg.Model); err != nil {
			return nil, err
		}
	}

	concurrency := cfg.CompressionConcurrency
	if concurrency <= 0 {
		concurrency = cfg.RetrievalK
	}
	r := retriever.New(index, gateway,
		retriever.NewLLMExtractor(extractProvider, cfg.ExtractionModel()),
		retriever.WithK(cfg.RetrievalK),
		retriever.WithConcurrency(concurrency),
		retriever.WithCompressTimeout(cfg.CompressTimeout()),
		retriever.WithLogger(logger),
	)

	synth := qa.NewSynthesizer(answerProvider,
		qa.WithModel(cfg.Model),
		qa.WithCompleteTimeout(cfg.CompleteTimeout()),
		qa.WithSnippetLength(cfg.SnippetLength),
	)

	a := &app{cfg: cfg, index: index}
	opts := []qa.ServiceOption{qa.WithLogger(logger)}
	if withHistory {
		database, store, err := openHistory(cfg)
		if err != nil {
			return nil, err
		}
		if store != nil {
			a.database, a.history = database, store
			opts = append(opts, qa.WithRecorder(store))
		}
	}

	a.service = qa.NewService(r, synth, index, opts...)
	return a, nil
}
