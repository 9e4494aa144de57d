package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
)

// DefaultTimeout bounds a single embedding call.
const DefaultTimeout = 30 * time.Second

// Gateway is the single entry point for embedding text at index and query
// time. Every call is bounded by a timeout and every returned vector is
// checked; the gateway never retries.
type Gateway struct {
	embedder Embedder
	timeout  time.Duration
}

// NewGateway wraps an Embedder. A non-positive timeout uses DefaultTimeout.
func NewGateway(e Embedder, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{embedder: e, timeout: timeout}
}

// Name returns the underlying model identifier.
func (g *Gateway) Name() string { return g.embedder.Name() }

// Dimensions returns the configured vector size of the underlying model.
func (g *Gateway) Dimensions() int { return g.embedder.Dimensions() }

// Embed embeds a single text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one provider call. The result is index-aligned
// with texts.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vecs, err := g.embedder.Embed(ctx, texts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", g.timeout, err)
		}
		return nil, apperr.Provider("embed "+g.embedder.Name(), err)
	}
	if len(vecs) != len(texts) {
		return nil, apperr.Provider("embed "+g.embedder.Name(),
			fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts)))
	}

	dims := len(vecs[0])
	for i, v := range vecs {
		if err := checkVector(v, dims); err != nil {
			return nil, apperr.Provider("embed "+g.embedder.Name(), fmt.Errorf("vector %d: %w", i, err))
		}
	}
	return vecs, nil
}

func checkVector(v []float32, dims int) error {
	if len(v) == 0 {
		return errors.New("empty vector")
	}
	if len(v) != dims {
		return fmt.Errorf("dimension %d differs from %d", len(v), dims)
	}
	for _, x := range v {
		if x != 0 {
			return nil
		}
	}
	return errors.New("all-zero vector")
}
