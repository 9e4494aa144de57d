// Package retriever implements two-stage retrieval: a similarity search over
// the vector index followed by per-chunk extraction of the query-relevant text.
package retriever

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
	"github.com/ziadkadry99/textbook-qa/internal/vectordb"
)

const (
	// DefaultK is the number of chunks fetched before compression.
	DefaultK = 5
	// DefaultCompressTimeout bounds one extraction call.
	DefaultCompressTimeout = 30 * time.Second
)

var (
	errIndexNotReady     = errors.New("vector index not loaded")
	errExtractorNotReady = errors.New("compressor not initialized")
)

// Index is the read side of the vector index.
type Index interface {
	Search(ctx context.Context, vector []float32, k int) ([]vectordb.Result, error)
	IsReady() bool
}

// QueryEmbedder embeds a query string.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CompressedResult is a chunk that survived compression. Text is the
// extracted sub-span, or the whole chunk when Fallback is set.
type CompressedResult struct {
	Chunk    vectordb.Chunk
	Score    float32
	Text     string
	Fallback bool
}

// Retriever runs recall then compression. It is safe for concurrent use.
type Retriever struct {
	index           Index
	embedder        QueryEmbedder
	extractor       Extractor
	k               int
	concurrency     int
	compressTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithK sets how many chunks stage one fetches.
func WithK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.k = k
		}
	}
}

// WithConcurrency caps concurrent extraction calls. Zero means K.
func WithConcurrency(n int) Option {
	return func(r *Retriever) { r.concurrency = n }
}

// WithCompressTimeout bounds each extraction call.
func WithCompressTimeout(d time.Duration) Option {
	return func(r *Retriever) {
		if d > 0 {
			r.compressTimeout = d
		}
	}
}

// WithLogger sets the logger used for compression fallbacks.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Retriever. A nil extractor is allowed at construction, but
// Retrieve reports not-ready until one is present.
func New(index Index, embedder QueryEmbedder, extractor Extractor, opts ...Option) *Retriever {
	r := &Retriever{
		index:           index,
		embedder:        embedder,
		extractor:       extractor,
		k:               DefaultK,
		compressTimeout: DefaultCompressTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency <= 0 {
		r.concurrency = r.k
	}
	return r
}

// K returns the stage-one fetch size.
func (r *Retriever) K() int { return r.k }

// Ready reports whether both the index and the extractor are usable.
func (r *Retriever) Ready() bool {
	return r.index != nil && r.index.IsReady() && r.extractor != nil
}

// Search runs stage one only: embed the query and return the k nearest
// chunks. A non-positive k uses the configured K.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]vectordb.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.InvalidInput("search", "query must not be empty")
	}
	if r.index == nil || !r.index.IsReady() {
		return nil, apperr.NotReady("search", errIndexNotReady)
	}
	if k <= 0 {
		k = r.k
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := r.index.Search(ctx, vec, k)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, "search", err)
	}
	return results, nil
}

// Retrieve returns the compressed chunks for query in stage-one rank order.
// A chunk whose extraction fails or times out is kept unmodified; a chunk
// judged irrelevant is dropped.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]CompressedResult, error) {
	if r.extractor == nil {
		return nil, apperr.NotReady("retrieve", errExtractorNotReady)
	}
	results, err := r.Search(ctx, query, r.k)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	slots := r.compress(ctx, query, results)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]CompressedResult, 0, len(slots))
	for _, s := range slots {
		if s.keep {
			out = append(out, s.CompressedResult)
		}
	}
	return out, nil
}

type slot struct {
	CompressedResult
	keep bool
}

// compress runs the extractor over results with bounded concurrency. Each
// goroutine writes only its own slot, so the output keeps the input order.
func (r *Retriever) compress(ctx context.Context, query string, results []vectordb.Result) []slot {
	slots := make([]slot, len(results))
	sem := make(chan struct{}, r.concurrency)

	var wg sync.WaitGroup
loop:
	for i, res := range results {
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, res vectordb.Result) {
			defer wg.Done()
			defer func() { <-sem }()
			slots[i] = r.compressOne(ctx, query, res)
		}(i, res)
	}
	wg.Wait()
	return slots
}

func (r *Retriever) compressOne(ctx context.Context, query string, res vectordb.Result) slot {
	cctx, cancel := context.WithTimeout(ctx, r.compressTimeout)
	defer cancel()

	s := slot{CompressedResult: CompressedResult{Chunk: res.Chunk, Score: res.Score}}

	text, keep, err := r.extractor.Extract(cctx, query, res.Chunk.Text)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("compression failed, keeping chunk unmodified",
				"source", res.Chunk.Source,
				"page", res.Chunk.Page,
				"chunk", res.Chunk.ChunkIndex,
				"error", err)
		}
		s.Text = res.Chunk.Text
		s.Fallback = true
		s.keep = true
		return s
	}
	s.Text = text
	s.keep = keep
	return s
}
