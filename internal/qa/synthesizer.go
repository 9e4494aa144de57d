// Package qa assembles retrieved context into a grounded answer.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
	"github.com/ziadkadry99/textbook-qa/internal/llm"
	"github.com/ziadkadry99/textbook-qa/internal/retriever"
)

const (
	// DefaultSnippetLength is the citation snippet limit in runes.
	DefaultSnippetLength = 500
	// DefaultCompleteTimeout bounds the answer completion call.
	DefaultCompleteTimeout = 60 * time.Second

	truncationMarker = "..."
	contextSeparator = "\n\n"
)

// groundingPrompt is sent with every question, including those with no context.
const groundingPrompt = `Answer the question based ONLY on the following context:
%s

Question: %s

Provide a clear and concise answer. If the context doesn't contain enough information to answer the question, say so.`

// BuildPrompt renders the grounding prompt for a question and its context block.
func BuildPrompt(contextBlock, question string) string {
	return fmt.Sprintf(groundingPrompt, contextBlock, question)
}

// Synthesizer turns compressed chunks into an answer with citations.
type Synthesizer struct {
	provider   llm.Provider
	model      string
	timeout    time.Duration
	snippetLen int
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithModel overrides the provider's default model.
func WithModel(model string) SynthesizerOption {
	return func(s *Synthesizer) { s.model = model }
}

// WithCompleteTimeout bounds the completion call.
func WithCompleteTimeout(d time.Duration) SynthesizerOption {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSnippetLength sets the citation snippet limit in runes.
func WithSnippetLength(n int) SynthesizerOption {
	return func(s *Synthesizer) {
		if n > 0 {
			s.snippetLen = n
		}
	}
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(provider llm.Provider, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		provider:   provider,
		timeout:    DefaultCompleteTimeout,
		snippetLen: DefaultSnippetLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer makes exactly one completion call. An empty compressed slice still
// reaches the model so it can state that the context is insufficient.
func (s *Synthesizer) Answer(ctx context.Context, question string, compressed []retriever.CompressedResult) (*Answer, error) {
	texts := make([]string, len(compressed))
	docs := make([]DocumentInfo, 0, len(compressed))
	for i, c := range compressed {
		texts[i] = c.Text
		docs = append(docs, DocumentInfo{
			Page:    strconv.Itoa(c.Chunk.Page),
			Link:    c.Chunk.Source,
			Snippet: Snippet(c.Chunk.Text, s.snippetLen),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := llm.UserPrompt(s.model, BuildPrompt(strings.Join(texts, contextSeparator), question))
	resp, err := s.provider.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", s.timeout, err)
		}
		return nil, apperr.Provider("complete "+s.provider.Name(), err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, apperr.Provider("complete "+s.provider.Name(), errors.New("model returned an empty answer"))
	}

	return &Answer{Answer: text, RetrievedDocuments: docs}, nil
}

// Snippet truncates text to limit runes, appending a marker when cut.
func Snippet(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i] + truncationMarker
		}
		n++
	}
	return text
}
