// Package indexer builds the vector index from source documents:
// load -> chunk -> embed -> add -> persist.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
	"github.com/ziadkadry99/textbook-qa/internal/chunker"
	"github.com/ziadkadry99/textbook-qa/internal/config"
	"github.com/ziadkadry99/textbook-qa/internal/history"
	"github.com/ziadkadry99/textbook-qa/internal/loader"
	"github.com/ziadkadry99/textbook-qa/internal/util"
	"github.com/ziadkadry99/textbook-qa/internal/vectordb"
)

// Pipeline orchestrates ingestion into one on-disk index.
type Pipeline struct {
	embedder   BatchEmbedder
	index      *vectordb.Index
	chunker    *chunker.Chunker
	cfg        *config.Config
	onProgress ProgressFunc
	recorder   Recorder
	logger     *slog.Logger
}

// NewPipeline creates a new Pipeline.
func NewPipeline(
	embedder BatchEmbedder,
	index *vectordb.Index,
	c *chunker.Chunker,
	cfg *config.Config,
) *Pipeline {
	return &Pipeline{
		embedder: embedder,
		index:    index,
		chunker:  c,
		cfg:      cfg,
		logger:   slog.Default(),
	}
}

// SetProgressFunc sets the progress callback.
func (p *Pipeline) SetProgressFunc(fn ProgressFunc) {
	p.onProgress = fn
}

// SetRecorder records each run's summary.
func (p *Pipeline) SetRecorder(r Recorder) {
	p.recorder = r
}

// SetLogger sets the logger used for skipped documents.
func (p *Pipeline) SetLogger(l *slog.Logger) {
	if l != nil {
		p.logger = l
	}
}

// Run ingests the documents matched by patterns. An existing index at the
// configured path is extended; otherwise a new one is created. Documents
// that cannot be read, contain no text, or fail to embed are skipped and
// reported in the summary. Re-ingesting a document adds its chunks again.
func (p *Pipeline) Run(ctx context.Context, patterns []string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Failures: make(map[string]string)}
	dir := p.cfg.VectorDBPath

	if err := p.index.Load(ctx, dir); err != nil && !errors.Is(err, vectordb.ErrIndexNotFound) {
		return nil, fmt.Errorf("loading existing index: %w", err)
	}
	if model := p.index.EmbeddingModel(); model != "" && model != p.embedder.Name() {
		return nil, apperr.Configuration("index at %s was built with %s, but %s is configured", dir, model, p.embedder.Name())
	}
	p.index.SetEmbeddingModel(p.embedder.Name())

	paths, err := loader.Expand(patterns)
	if err != nil {
		return nil, apperr.InvalidInput("ingest", err.Error())
	}
	if len(paths) == 0 {
		return nil, apperr.InvalidInput("ingest", "no documents matched")
	}

	concurrency := p.cfg.IngestConcurrency
	if concurrency < 1 {
		concurrency = 4
	}
	docs := NewBatcher(concurrency, p.chunker).Prepare(ctx, paths)

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if doc.err != nil {
			p.skip(summary, doc.path, doc.err)
		} else if err := p.addDocument(ctx, doc.chunks); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			p.skip(summary, doc.path, err)
		} else {
			summary.Processed++
			summary.Chunks += len(doc.chunks)
			p.logger.Debug("indexed document", "path", doc.path, "chunks", len(doc.chunks))
		}

		if p.onProgress != nil {
			p.onProgress(i+1, len(docs), doc.path)
		}
	}

	if summary.Processed > 0 {
		if err := p.index.Persist(ctx, dir); err != nil {
			return summary, fmt.Errorf("persist index: %w", err)
		}
	}

	summary.Duration = time.Since(start)
	p.record(ctx, start, summary)
	return summary, nil
}

// addDocument embeds all chunks of one document before adding any of them,
// so a failed batch never leaves a partial document in the index.
func (p *Pipeline) addDocument(ctx context.Context, chunks []vectordb.Chunk) error {
	batchSize := p.cfg.EmbedBatchSize
	if batchSize < 1 {
		batchSize = 32
	}

	entries := make([]vectordb.Entry, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		batch := chunks[start:min(start+batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		var vecs [][]float32
		err := util.Retry(ctx, p.cfg.MaxRetries+1, p.cfg.RetryDelay(), apperr.IsProvider,
			func(ctx context.Context) error {
				var err error
				vecs, err = p.embedder.EmbedBatch(ctx, texts)
				return err
			})
		if err != nil {
			return err
		}

		for i, c := range batch {
			entries = append(entries, vectordb.Entry{Chunk: c, Vector: vecs[i]})
		}
	}

	return p.index.Add(ctx, entries)
}

func (p *Pipeline) skip(summary *Summary, path string, err error) {
	err = apperr.Ingestion(path, err)
	summary.Skipped++
	summary.Failures[path] = err.Error()
	p.logger.Warn("skipping document", "path", path, "error", err)
}

func (p *Pipeline) record(ctx context.Context, start time.Time, summary *Summary) {
	if p.recorder == nil {
		return
	}
	run := history.IngestRun{
		StartedAt:  start,
		Processed:  summary.Processed,
		Skipped:    summary.Skipped,
		Chunks:     summary.Chunks,
		Failures:   summary.Failures,
		DurationMS: summary.Duration.Milliseconds(),
	}
	if err := p.recorder.RecordIngest(context.WithoutCancel(ctx), run); err != nil {
		p.logger.Warn("failed to record ingest run", "error", err)
	}
}
