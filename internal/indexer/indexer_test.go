package indexer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
	"github.com/ziadkadry99/textbook-qa/internal/chunker"
	"github.com/ziadkadry99/textbook-qa/internal/config"
	"github.com/ziadkadry99/textbook-qa/internal/embeddings"
	"github.com/ziadkadry99/textbook-qa/internal/history"
	"github.com/ziadkadry99/textbook-qa/internal/loader"
	"github.com/ziadkadry99/textbook-qa/internal/vectordb"
)

// --- Mock embedder ---

// mockEmbedder derives vectors from character codes. The first failures
// calls return an error.
type mockEmbedder struct {
	name     string
	failures int64
	calls    atomic.Int64
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if n := m.calls.Add(1); n <= m.failures {
		return nil, errors.New("upstream unavailable")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 16)
		for j, ch := range text {
			vec[(int(ch)+j)%16]++
		}
		vec[0] += 0.25
		out[i] = vec
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return 16 }

func (m *mockEmbedder) Name() string {
	if m.name == "" {
		return "mock/embed"
	}
	return m.name
}

type mockRecorder struct {
	mu   sync.Mutex
	runs []history.IngestRun
}

func (m *mockRecorder) RecordIngest(_ context.Context, run history.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// --- Helpers ---

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.VectorDBPath = filepath.Join(t.TempDir(), "vector_db")
	cfg.ChunkSize = 120
	cfg.ChunkOverlap = 20
	cfg.EmbedBatchSize = 2
	cfg.MaxRetries = 2
	cfg.RetryDelayMS = 1
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config, e embeddings.Embedder) (*Pipeline, *vectordb.Index) {
	t.Helper()
	c, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	ix, err := vectordb.New()
	if err != nil {
		t.Fatalf("vectordb.New: %v", err)
	}
	p := NewPipeline(embeddings.NewGateway(e, time.Second), ix, c, cfg)
	p.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return p, ix
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const physicsText = "Newton's first law of motion states that a body remains at rest or in uniform motion unless acted upon by an external force.\n\n" +
	"The second law relates force, mass and acceleration. The third law says every action has an equal and opposite reaction.\f" +
	"Momentum is the product of mass and velocity. It is conserved in an isolated system."

const chemistryText = "An atom consists of a nucleus surrounded by electrons. Protons and neutrons make up the nucleus."

// --- Tests ---

func TestChunkDocument(t *testing.T) {
	c, err := chunker.New(40, 5)
	if err != nil {
		t.Fatal(err)
	}
	doc := &loader.Document{
		Source: "book.pdf",
		Pages: []loader.Page{
			{Number: 1, Text: "Short first page."},
			{Number: 2, Text: "   "},
			{Number: 3, Text: "The third page is long enough to need more than one chunk of text."},
		},
	}

	chunks := ChunkDocument(c, doc)
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want at least 3", len(chunks))
	}
	if chunks[0].Page != 1 || chunks[0].ChunkIndex != 0 || chunks[0].Source != "book.pdf" {
		t.Errorf("first chunk = %+v", chunks[0])
	}
	for i, ch := range chunks[1:] {
		if ch.Page != 3 {
			t.Errorf("chunk %d on page %d, want 3", i+1, ch.Page)
		}
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has index %d, want %d", i+1, ch.ChunkIndex, i)
		}
	}
}

func TestBatcherKeepsInputOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		paths = append(paths, writeDoc(t, dir, name, "Contents of "+name))
	}
	paths = append(paths, filepath.Join(dir, "missing.txt"))

	c, _ := chunker.New(100, 10)
	got := NewBatcher(3, c).Prepare(context.Background(), paths)

	if len(got) != len(paths) {
		t.Fatalf("got %d results, want %d", len(got), len(paths))
	}
	for i, p := range got[:4] {
		if p.path != paths[i] || p.err != nil {
			t.Errorf("result %d = %+v", i, p)
		}
		if !strings.Contains(p.chunks[0].Text, filepath.Base(paths[i])) {
			t.Errorf("result %d has chunks of another document", i)
		}
	}
	if got[4].err == nil {
		t.Error("expected an error for the missing document")
	}
}

func TestRunIngestsAndSkips(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	physics := writeDoc(t, dir, "physics.txt", physicsText)
	chemistry := writeDoc(t, dir, "chemistry.md", chemistryText)
	empty := writeDoc(t, dir, "empty.txt", "  \n\f  ")
	missing := filepath.Join(dir, "missing.pdf")

	p, ix := newPipeline(t, cfg, &mockEmbedder{})
	rec := &mockRecorder{}
	p.SetRecorder(rec)

	var progressCalls []string
	p.SetProgressFunc(func(processed, total int, current string) {
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
		progressCalls = append(progressCalls, current)
	})

	summary, err := p.Run(context.Background(), []string{physics, chemistry, empty, missing})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 2 || summary.Skipped != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Chunks == 0 || summary.Chunks != ix.Count() {
		t.Errorf("chunks = %d, index count = %d", summary.Chunks, ix.Count())
	}
	if _, ok := summary.Failures[filepath.Clean(empty)]; !ok {
		t.Errorf("empty document not reported: %v", summary.Failures)
	}
	if _, ok := summary.Failures[filepath.Clean(missing)]; !ok {
		t.Errorf("missing document not reported: %v", summary.Failures)
	}
	if len(progressCalls) != 4 {
		t.Errorf("progress called %d times, want 4", len(progressCalls))
	}

	// The persisted index reloads with the same contents.
	reloaded, _ := vectordb.New()
	if err := reloaded.Load(context.Background(), cfg.VectorDBPath); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Count() != summary.Chunks {
		t.Errorf("reloaded %d entries, want %d", reloaded.Count(), summary.Chunks)
	}
	if reloaded.EmbeddingModel() != "mock/embed" {
		t.Errorf("EmbeddingModel = %q", reloaded.EmbeddingModel())
	}

	if len(rec.runs) != 1 || rec.runs[0].Processed != 2 || rec.runs[0].Skipped != 2 {
		t.Errorf("recorded runs = %+v", rec.runs)
	}
}

func TestRunPagesFromFormFeeds(t *testing.T) {
	cfg := testConfig(t)
	path := writeDoc(t, t.TempDir(), "physics.txt", physicsText)
	p, ix := newPipeline(t, cfg, &mockEmbedder{})

	if _, err := p.Run(context.Background(), []string{path}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	e := &mockEmbedder{}
	vecs, _ := e.Embed(context.Background(), []string{"Momentum is the product of mass and velocity."})
	results, err := ix.Search(context.Background(), vecs[0], ix.Count())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	pages := map[int]bool{}
	for _, r := range results {
		pages[r.Chunk.Page] = true
	}
	if !pages[1] || !pages[2] {
		t.Errorf("expected chunks from pages 1 and 2, got %v", pages)
	}
}

func TestRunAppendsToExistingIndex(t *testing.T) {
	cfg := testConfig(t)
	path := writeDoc(t, t.TempDir(), "chemistry.txt", chemistryText)

	p, _ := newPipeline(t, cfg, &mockEmbedder{})
	first, err := p.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// A fresh process ingesting the same document again duplicates it.
	p2, ix2 := newPipeline(t, cfg, &mockEmbedder{})
	second, err := p2.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if ix2.Count() != first.Chunks+second.Chunks {
		t.Errorf("count = %d, want %d", ix2.Count(), first.Chunks+second.Chunks)
	}
}

func TestRunRejectsDifferentEmbeddingModel(t *testing.T) {
	cfg := testConfig(t)
	path := writeDoc(t, t.TempDir(), "chemistry.txt", chemistryText)

	p, _ := newPipeline(t, cfg, &mockEmbedder{name: "ollama/nomic-embed-text"})
	if _, err := p.Run(context.Background(), []string{path}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	p2, _ := newPipeline(t, cfg, &mockEmbedder{name: "openai/text-embedding-3-small"})
	_, err := p2.Run(context.Background(), []string{path})
	if !apperr.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunFailsOnCorruptIndex(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(cfg.VectorDBPath, 0o755); err != nil {
		t.Fatal(err)
	}
	writeDoc(t, cfg.VectorDBPath, "index.gob.gz", "not a gzip stream")
	path := writeDoc(t, t.TempDir(), "chemistry.txt", chemistryText)

	p, _ := newPipeline(t, cfg, &mockEmbedder{})
	_, err := p.Run(context.Background(), []string{path})
	if !errors.Is(err, vectordb.ErrIndexCorrupt) {
		t.Fatalf("expected corrupt index error, got %v", err)
	}
}

func TestRunNoDocuments(t *testing.T) {
	cfg := testConfig(t)
	p, _ := newPipeline(t, cfg, &mockEmbedder{})

	_, err := p.Run(context.Background(), []string{filepath.Join(t.TempDir(), "*.pdf")})
	if !apperr.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRunRetriesEmbedding(t *testing.T) {
	cfg := testConfig(t)
	path := writeDoc(t, t.TempDir(), "chemistry.txt", chemistryText)

	e := &mockEmbedder{failures: 1}
	p, ix := newPipeline(t, cfg, e)
	summary, err := p.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 || ix.Count() == 0 {
		t.Errorf("summary = %+v, count = %d", summary, ix.Count())
	}
	if e.calls.Load() < 2 {
		t.Errorf("expected a retry, got %d calls", e.calls.Load())
	}
}

func TestRunSkipsDocumentWhenEmbeddingKeepsFailing(t *testing.T) {
	cfg := testConfig(t)
	path := writeDoc(t, t.TempDir(), "chemistry.txt", chemistryText)

	e := &mockEmbedder{failures: 100}
	p, ix := newPipeline(t, cfg, e)
	summary, err := p.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 0 || summary.Skipped != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if got := e.calls.Load(); got != int64(cfg.MaxRetries+1) {
		t.Errorf("embed calls = %d, want %d", got, cfg.MaxRetries+1)
	}
	if ix.Count() != 0 {
		t.Errorf("no entries should be added, got %d", ix.Count())
	}
	if _, err := os.Stat(filepath.Join(cfg.VectorDBPath, "index.gob.gz")); !os.IsNotExist(err) {
		t.Error("nothing should be persisted when no document was processed")
	}
	if !strings.Contains(summary.Failures[filepath.Clean(path)], "upstream unavailable") {
		t.Errorf("failure reason = %q", summary.Failures[filepath.Clean(path)])
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	path := writeDoc(t, t.TempDir(), "chemistry.txt", chemistryText)
	p, _ := newPipeline(t, cfg, &mockEmbedder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Run(ctx, []string{path}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
