package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
	"github.com/ziadkadry99/textbook-qa/internal/qa"
	"github.com/ziadkadry99/textbook-qa/internal/vectordb"
)

const (
	defaultSearchLimit = 5
	maxResultText      = 1000
)

// handleAskTextbook runs the full retrieve, compress and answer pipeline.
func (s *Server) handleAskTextbook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	answer, err := s.service.Ask(ctx, question)
	if err != nil {
		return mcp.NewToolResultError(toolError("ask", err)), nil
	}

	return mcp.NewToolResultText(formatAnswer(answer)), nil
}

// handleSearchTextbook runs a similarity search without compression.
func (s *Server) handleSearchTextbook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.service.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(toolError("search", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No results found. The textbooks may not be ingested yet. Run `bookqa ingest` to index them."), nil
	}

	return mcp.NewToolResultText(vectordb.FormatResults(results, maxResultText)), nil
}

func toolError(op string, err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return fmt.Sprintf("%s failed (%s): %s", op, e.Reason(), e.Detail())
	}
	return fmt.Sprintf("%s failed: %v", op, err)
}

// formatAnswer renders an answer and its citations as plain text.
func formatAnswer(a *qa.Answer) string {
	var sb strings.Builder
	sb.WriteString(a.Answer)
	sb.WriteString("\n")

	if len(a.RetrievedDocuments) == 0 {
		sb.WriteString("\nNo supporting passages were found.\n")
		return sb.String()
	}

	sb.WriteString("\nSources:\n")
	for i, d := range a.RetrievedDocuments {
		sb.WriteString(fmt.Sprintf("[%d] %s, page %s\n", i+1, d.Link, d.Page))
		if d.Snippet != "" {
			sb.WriteString("    ")
			sb.WriteString(strings.ReplaceAll(d.Snippet, "\n", " "))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
