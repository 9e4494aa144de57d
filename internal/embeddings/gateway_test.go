package embeddings

import (
	"context"
	"errors"
	"hash/fnv"
	"testing"
	"time"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
)

// hashEmbedder returns deterministic vectors derived from an FNV hash of each text.
type hashEmbedder struct {
	dims  int
	calls int
}

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	h.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, h.dims)
		for j, ch := range text {
			f := fnv.New32a()
			f.Write([]byte{byte(ch), byte(j)})
			vec[f.Sum32()%uint32(h.dims)] += 1
		}
		vec[0] += 0.5
		out[i] = vec
	}
	return out, nil
}

func (h *hashEmbedder) Dimensions() int { return h.dims }
func (h *hashEmbedder) Name() string    { return "hash" }

// scriptedEmbedder returns whatever it is told to.
type scriptedEmbedder struct {
	vecs [][]float32
	err  error
	wait time.Duration
}

func (s *scriptedEmbedder) Embed(ctx context.Context, _ []string) ([][]float32, error) {
	if s.wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.wait):
		}
	}
	return s.vecs, s.err
}

func (s *scriptedEmbedder) Dimensions() int { return 3 }
func (s *scriptedEmbedder) Name() string    { return "scripted" }

func TestGatewayEmbedBatchIsIndexAligned(t *testing.T) {
	h := &hashEmbedder{dims: 16}
	g := NewGateway(h, time.Second)
	texts := []string{"inertia", "momentum", "inertia"}

	vecs, err := g.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	if h.calls != 1 {
		t.Errorf("expected one provider call, got %d", h.calls)
	}

	single, err := g.Embed(context.Background(), "momentum")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i := range single {
		if single[i] != vecs[1][i] {
			t.Fatalf("batch vector 1 differs from single embed at %d", i)
		}
		if vecs[0][i] != vecs[2][i] {
			t.Fatalf("identical texts produced different vectors at %d", i)
		}
	}
}

func TestGatewayEmptyBatch(t *testing.T) {
	h := &hashEmbedder{dims: 8}
	vecs, err := NewGateway(h, 0).EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("got %v, %v; want nil, nil", vecs, err)
	}
	if h.calls != 0 {
		t.Error("provider must not be called for an empty batch")
	}
}

func TestGatewayRejectsBadProviderOutput(t *testing.T) {
	tests := []struct {
		name string
		emb  *scriptedEmbedder
	}{
		{"provider error", &scriptedEmbedder{err: errors.New("connection refused")}},
		{"count mismatch", &scriptedEmbedder{vecs: [][]float32{{1, 2, 3}}}},
		{"empty vector", &scriptedEmbedder{vecs: [][]float32{{1, 2, 3}, {}}}},
		{"zero vector", &scriptedEmbedder{vecs: [][]float32{{0, 0, 0}, {1, 0, 0}}}},
		{"ragged dimensions", &scriptedEmbedder{vecs: [][]float32{{1, 2, 3}, {1, 2}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vecs, err := NewGateway(tt.emb, time.Second).EmbedBatch(context.Background(), []string{"a", "b"})
			if err == nil {
				t.Fatalf("expected error, got %v", vecs)
			}
			if !apperr.IsProvider(err) {
				t.Errorf("expected provider error, got %v", err)
			}
			if vecs != nil {
				t.Error("no vectors may be returned on failure")
			}
		})
	}
}

func TestGatewayTimeout(t *testing.T) {
	emb := &scriptedEmbedder{vecs: [][]float32{{1, 1, 1}}, wait: time.Second}
	start := time.Now()
	_, err := NewGateway(emb, 20*time.Millisecond).Embed(context.Background(), "slow")
	if !apperr.IsProvider(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("timeout was not enforced")
	}
}

func TestNewEmbedderFactory(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewEmbedder("openai", "text-embedding-3-small", 0); !apperr.IsConfiguration(err) {
		t.Errorf("expected configuration error for missing key, got %v", err)
	}
	if _, err := NewEmbedder("nope", "x", 0); !apperr.IsConfiguration(err) {
		t.Errorf("expected configuration error for unknown provider, got %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "test-key")
	e, err := NewEmbedder("openai", "text-embedding-3-small", 0)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	if e.Dimensions() != 1536 {
		t.Errorf("Dimensions = %d, want 1536", e.Dimensions())
	}

	t.Setenv("OLLAMA_HOST", "")
	e, err = NewEmbedder("ollama", "nomic-embed-text", 768)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	o, ok := e.(*OllamaEmbedder)
	if !ok {
		t.Fatal("expected *OllamaEmbedder")
	}
	if o.baseURL != defaultOllamaBaseURL {
		t.Errorf("baseURL = %q", o.baseURL)
	}
	if o.Name() != "ollama/nomic-embed-text" {
		t.Errorf("Name = %q", o.Name())
	}
}
