package indexer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ziadkadry99/textbook-qa/internal/chunker"
	"github.com/ziadkadry99/textbook-qa/internal/loader"
)

// Batcher loads and chunks documents concurrently with configurable parallelism.
type Batcher struct {
	concurrency int
	chunker     *chunker.Chunker
}

// NewBatcher creates a new Batcher with the given concurrency limit.
func NewBatcher(concurrency int, c *chunker.Chunker) *Batcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batcher{
		concurrency: concurrency,
		chunker:     c,
	}
}

// Prepare loads and chunks every path. Results are in input order; a
// document that cannot be loaded or yields no chunks carries an error.
func (b *Batcher) Prepare(ctx context.Context, paths []string) []prepared {
	out := make([]prepared, len(paths))
	sem := make(chan struct{}, b.concurrency)

	var wg sync.WaitGroup
	for i, path := range paths {
		out[i].path = path

		select {
		case <-ctx.Done():
			out[i].err = ctx.Err()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()

			doc, err := loader.Load(path)
			if err != nil {
				out[i].err = fmt.Errorf("load: %w", err)
				return
			}
			chunks := ChunkDocument(b.chunker, doc)
			if len(chunks) == 0 {
				out[i].err = loader.ErrEmpty
				return
			}
			out[i].chunks = chunks
		}(i, path)
	}

	wg.Wait()
	return out
}
