package indexer

import (
	"context"
	"time"

	"github.com/ziadkadry99/textbook-qa/internal/history"
	"github.com/ziadkadry99/textbook-qa/internal/vectordb"
)

// Summary describes the outcome of one ingestion run.
type Summary struct {
	Processed int
	Skipped   int
	Chunks    int
	// Failures maps a document path to the reason it was skipped.
	Failures map[string]string
	Duration time.Duration
}

// ProgressFunc is called as each document finishes.
type ProgressFunc func(processed int, total int, currentFile string)

// BatchEmbedder embeds chunk texts, index-aligned.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// Recorder stores a summary of each ingestion run.
type Recorder interface {
	RecordIngest(ctx context.Context, run history.IngestRun) error
}

// prepared is a loaded and chunked document waiting to be embedded.
type prepared struct {
	path   string
	chunks []vectordb.Chunk
	err    error
}
