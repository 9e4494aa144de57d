package vectordb

import (
	"fmt"
	"strings"
)

// FormatResults renders search results as human-readable text. Chunk text
// longer than maxText runes is cut; zero keeps it whole.
func FormatResults(results []Result, maxText int) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n\n", len(results)))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("--- Result %d (similarity: %.4f) ---\n", i+1, r.Score))
		if r.Chunk.Source != "" {
			sb.WriteString(fmt.Sprintf("Source: %s\n", r.Chunk.Source))
		}
		sb.WriteString(fmt.Sprintf("Page: %d  Chunk: %d\n", r.Chunk.Page, r.Chunk.ChunkIndex))

		text := r.Chunk.Text
		if runes := []rune(text); maxText > 0 && len(runes) > maxText {
			text = string(runes[:maxText]) + "..."
		}
		sb.WriteString("\n")
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
