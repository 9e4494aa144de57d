package qa

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
	"github.com/ziadkadry99/textbook-qa/internal/embeddings"
	"github.com/ziadkadry99/textbook-qa/internal/history"
	"github.com/ziadkadry99/textbook-qa/internal/llm"
	"github.com/ziadkadry99/textbook-qa/internal/retriever"
	"github.com/ziadkadry99/textbook-qa/internal/vectordb"
)

const newtonChunk = "Newton's first law of motion states that a body remains at rest or in uniform motion unless acted upon by an external force."

// scriptedProvider answers extraction prompts with extract and everything
// else with answer.
type scriptedProvider struct {
	mu       sync.Mutex
	extract  func(prompt string) string
	answer   string
	err      error
	block    bool
	prompts  []string
	answered int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	prompt := req.Messages[0].Content
	isAnswer := strings.HasPrefix(prompt, "Answer the question based ONLY")

	p.mu.Lock()
	if isAnswer {
		p.answered++
		p.prompts = append(p.prompts, prompt)
	}
	p.mu.Unlock()

	if !isAnswer {
		out := retriever.NoOutput
		if p.extract != nil {
			out = p.extract(prompt)
		}
		return &llm.CompletionResponse{Content: out}, nil
	}
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: p.answer}, nil
}

func (p *scriptedProvider) answerCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answered
}

// runeEmbedder maps characters onto vector positions so texts sharing
// words land close together.
type runeEmbedder struct{ dims int }

func (r runeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, r.dims)
		for j, ch := range strings.ToLower(text) {
			vec[(int(ch)+j%3)%r.dims]++
		}
		vec[0] += 0.1
		out[i] = vec
	}
	return out, nil
}

func (r runeEmbedder) Dimensions() int { return r.dims }
func (r runeEmbedder) Name() string    { return "rune" }

type memRecorder struct {
	mu      sync.Mutex
	records []history.QueryRecord
	err     error
}

func (m *memRecorder) RecordQuery(_ context.Context, rec history.QueryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildService indexes chunks and wires the full query path around provider.
func buildService(t *testing.T, provider llm.Provider, chunks []vectordb.Chunk, opts ...ServiceOption) *Service {
	t.Helper()
	ctx := context.Background()

	gw := embeddings.NewGateway(runeEmbedder{dims: 48}, time.Second)
	ix, err := vectordb.New()
	if err != nil {
		t.Fatalf("vectordb.New: %v", err)
	}
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vecs, err := gw.EmbedBatch(ctx, texts)
		if err != nil {
			t.Fatalf("EmbedBatch: %v", err)
		}
		entries := make([]vectordb.Entry, len(chunks))
		for i := range chunks {
			entries[i] = vectordb.Entry{Chunk: chunks[i], Vector: vecs[i]}
		}
		if err := ix.Add(ctx, entries); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	r := retriever.New(ix, gw, retriever.NewLLMExtractor(provider, ""), retriever.WithLogger(quietLogger()))
	synth := NewSynthesizer(provider)
	opts = append([]ServiceOption{WithLogger(quietLogger())}, opts...)
	return NewService(r, synth, ix, opts...)
}

func textbookChunks() []vectordb.Chunk {
	return []vectordb.Chunk{
		{Text: newtonChunk, Source: "physics.pdf", Page: 12},
		{Text: "Electric charge is conserved in an isolated system.", Source: "physics.pdf", Page: 40},
		{Text: "Photosynthesis converts light energy into chemical energy.", Source: "biology.pdf", Page: 7},
	}
}

func TestAskNewtonFirstLaw(t *testing.T) {
	provider := &scriptedProvider{
		answer: "A body stays at rest or in uniform motion unless a force acts on it.",
		extract: func(prompt string) string {
			if strings.Contains(prompt, "first law of motion") {
				return "Newton's first law of motion states that a body remains at rest"
			}
			return retriever.NoOutput
		},
	}
	svc := buildService(t, provider, textbookChunks())

	ans, err := svc.Ask(context.Background(), "What is Newton's first law?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Answer == "" {
		t.Fatal("expected a non-empty answer")
	}
	if len(ans.RetrievedDocuments) != 1 {
		t.Fatalf("got %d documents, want 1: %+v", len(ans.RetrievedDocuments), ans.RetrievedDocuments)
	}
	doc := ans.RetrievedDocuments[0]
	if !strings.Contains(doc.Snippet, "Newton's first law") {
		t.Errorf("snippet = %q", doc.Snippet)
	}
	if doc.Page != "12" || doc.Link != "physics.pdf" {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Snippet != newtonChunk {
		t.Errorf("snippet should be the original chunk text, got %q", doc.Snippet)
	}

	if provider.answerCalls() != 1 {
		t.Errorf("answer calls = %d, want exactly 1", provider.answerCalls())
	}
	if !strings.Contains(provider.prompts[0], "Newton's first law of motion states that a body remains at rest") {
		t.Errorf("prompt is missing the extracted context: %q", provider.prompts[0])
	}
}

func TestAskEveryChunkDropped(t *testing.T) {
	provider := &scriptedProvider{answer: "The context does not say who wrote Hamlet."}
	svc := buildService(t, provider, textbookChunks())

	ans, err := svc.Ask(context.Background(), "Who wrote Hamlet?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.RetrievedDocuments == nil || len(ans.RetrievedDocuments) != 0 {
		t.Errorf("expected empty non-nil documents, got %#v", ans.RetrievedDocuments)
	}
	if ans.Answer == "" {
		t.Error("expected a non-empty answer")
	}
	if provider.answerCalls() != 1 {
		t.Fatalf("the model must still be called once, got %d", provider.answerCalls())
	}
	if !strings.Contains(provider.prompts[0], "Question: Who wrote Hamlet?") {
		t.Errorf("prompt = %q", provider.prompts[0])
	}
}

func TestAskNotReady(t *testing.T) {
	provider := &scriptedProvider{answer: "unused"}
	svc := buildService(t, provider, nil)

	_, err := svc.Ask(context.Background(), "What is inertia?")
	if !apperr.IsNotReady(err) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if provider.answerCalls() != 0 {
		t.Error("model must not be called before the index is loaded")
	}
	if h := svc.Health(); h.Ready || h.Entries != 0 {
		t.Errorf("Health = %+v", h)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	svc := buildService(t, &scriptedProvider{answer: "x"}, textbookChunks())
	for _, q := range []string{"", "   \n"} {
		_, err := svc.Ask(context.Background(), q)
		if !apperr.IsInvalidInput(err) {
			t.Errorf("Ask(%q) = %v, want invalid input", q, err)
		}
	}
}

func TestAskEmptyCompletionIsProviderError(t *testing.T) {
	provider := &scriptedProvider{answer: "  \n"}
	svc := buildService(t, provider, textbookChunks())

	ans, err := svc.Ask(context.Background(), "What is Newton's first law?")
	if ans != nil {
		t.Errorf("expected no answer, got %+v", ans)
	}
	if !apperr.IsProvider(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestAskProviderFailureIsStructured(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("503 from upstream")}
	svc := buildService(t, provider, textbookChunks())

	_, err := svc.Ask(context.Background(), "What is charge?")
	var e *apperr.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	if e.Kind != apperr.KindProvider {
		t.Errorf("Kind = %q", e.Kind)
	}
	if !strings.Contains(e.Detail(), "503 from upstream") {
		t.Errorf("Detail = %q", e.Detail())
	}
}

func TestAskRecordsHistory(t *testing.T) {
	rec := &memRecorder{}
	provider := &scriptedProvider{
		answer: "Charge is conserved.",
		extract: func(prompt string) string {
			if strings.Contains(prompt, "Electric charge is conserved") {
				return "Electric charge is conserved"
			}
			return retriever.NoOutput
		},
	}
	svc := buildService(t, provider, textbookChunks(), WithRecorder(rec))

	if _, err := svc.Ask(context.Background(), "  Is charge conserved?  "); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if _, err := svc.Ask(context.Background(), ""); err == nil {
		t.Fatal("expected an error for an empty question")
	}

	if len(rec.records) != 2 {
		t.Fatalf("got %d records, want 2", len(rec.records))
	}
	ok := rec.records[0]
	if ok.Question != "Is charge conserved?" || ok.Answer != "Charge is conserved." {
		t.Errorf("record = %+v", ok)
	}
	if len(ok.Sources) != 1 || ok.Sources[0] != "physics.pdf#40" {
		t.Errorf("Sources = %v", ok.Sources)
	}
	if ok.ErrorKind != "" {
		t.Errorf("ErrorKind = %q", ok.ErrorKind)
	}
	if bad := rec.records[1]; bad.ErrorKind != "invalid_input" || bad.Answer != "" {
		t.Errorf("failure record = %+v", bad)
	}
}

func TestAskIgnoresRecorderFailure(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	svc := buildService(t, &scriptedProvider{answer: "ok"}, textbookChunks(), WithRecorder(rec))

	if _, err := svc.Ask(context.Background(), "What is energy?"); err != nil {
		t.Fatalf("recorder failure must not fail the query: %v", err)
	}
}

func TestHealthReady(t *testing.T) {
	svc := buildService(t, &scriptedProvider{answer: "ok"}, textbookChunks())
	h := svc.Health()
	if !h.Ready || h.Entries != 3 {
		t.Errorf("Health = %+v, want ready with 3 entries", h)
	}
}

func TestServiceSearch(t *testing.T) {
	svc := buildService(t, &scriptedProvider{answer: "ok"}, textbookChunks())

	results, err := svc.Search(context.Background(), "Newton's first law of motion", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Error("results must be ordered by descending score")
	}

	if _, err := svc.Search(context.Background(), " ", 2); !apperr.IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestBuildPromptIsGrounded(t *testing.T) {
	p := BuildPrompt("Inertia resists change.", "What is inertia?")
	for _, want := range []string{"ONLY", "Inertia resists change.", "Question: What is inertia?", "say so"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestSynthesizerJoinsContextAndCitesOriginalText(t *testing.T) {
	provider := &scriptedProvider{answer: "answer"}
	synth := NewSynthesizer(provider, WithSnippetLength(10))

	compressed := []retriever.CompressedResult{
		{Chunk: vectordb.Chunk{Text: "first original chunk text", Source: "a.pdf", Page: 1}, Text: "first"},
		{Chunk: vectordb.Chunk{Text: "second", Source: "b.pdf", Page: 2}, Text: "second"},
	}
	ans, err := synth.Answer(context.Background(), "q?", compressed)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(provider.prompts[0], "first\n\nsecond") {
		t.Errorf("context block not joined by a blank line: %q", provider.prompts[0])
	}
	if got := ans.RetrievedDocuments[0].Snippet; got != "first orig..." {
		t.Errorf("snippet = %q", got)
	}
	if got := ans.RetrievedDocuments[1]; got.Snippet != "second" || got.Page != "2" || got.Link != "b.pdf" {
		t.Errorf("doc = %+v", got)
	}
}

func TestSynthesizerTimeout(t *testing.T) {
	provider := &scriptedProvider{block: true}
	synth := NewSynthesizer(provider, WithCompleteTimeout(20*time.Millisecond))

	_, err := synth.Answer(context.Background(), "q?", nil)
	if !apperr.IsProvider(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline in chain, got %v", err)
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		text  string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is longer", 4, "this..."},
		{"ééééé", 2, "éé..."},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := Snippet(tt.text, tt.limit); got != tt.want {
			t.Errorf("Snippet(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
		}
	}
}
