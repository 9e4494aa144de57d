package retriever

import (
	"context"
	"strings"

	"github.com/ziadkadry99/textbook-qa/internal/llm"
)

// NoOutput is the sentinel the extraction model returns when nothing in a
// chunk is relevant.
const NoOutput = "NO_OUTPUT"

const extractPrompt = `Given the following question and context, extract any part of the context *AS IS* that is relevant to answer the question. If none of the context is relevant return ` + NoOutput + `.

Remember, *DO NOT* edit the extracted parts of the context.

> Question: %QUESTION%
> Context:
>>>
%CONTEXT%
>>>
Extracted relevant parts:`

// Extractor pulls the query-relevant part out of a chunk. keep is false when
// nothing is relevant.
type Extractor interface {
	Extract(ctx context.Context, query, chunkText string) (extracted string, keep bool, err error)
}

// LLMExtractor implements Extractor with a completion model.
type LLMExtractor struct {
	provider  llm.Provider
	model     string
	maxTokens int
}

// NewLLMExtractor creates an extractor. An empty model uses the provider's default.
func NewLLMExtractor(provider llm.Provider, model string) *LLMExtractor {
	return &LLMExtractor{provider: provider, model: model, maxTokens: 1024}
}

// ExtractPrompt renders the extraction prompt for a query and chunk.
func ExtractPrompt(query, chunkText string) string {
	r := strings.NewReplacer("%QUESTION%", query, "%CONTEXT%", chunkText)
	return r.Replace(extractPrompt)
}

func (e *LLMExtractor) Extract(ctx context.Context, query, chunkText string) (string, bool, error) {
	req := llm.UserPrompt(e.model, ExtractPrompt(query, chunkText))
	req.MaxTokens = e.maxTokens

	resp, err := e.provider.Complete(ctx, req)
	if err != nil {
		return "", false, err
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" || out == NoOutput {
		return "", false, nil
	}
	return out, true, nil
}
