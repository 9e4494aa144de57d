package indexer

import (
	"github.com/ziadkadry99/textbook-qa/internal/chunker"
	"github.com/ziadkadry99/textbook-qa/internal/loader"
	"github.com/ziadkadry99/textbook-qa/internal/vectordb"
)

// ChunkDocument splits every page of doc into index chunks. Pages without
// text produce nothing; ChunkIndex restarts at zero on each page.
func ChunkDocument(c *chunker.Chunker, doc *loader.Document) []vectordb.Chunk {
	var out []vectordb.Chunk
	for _, page := range doc.Pages {
		for i, text := range c.Chunk(page.Text) {
			out = append(out, vectordb.Chunk{
				Text:       text,
				Source:     doc.Source,
				Page:       page.Number,
				ChunkIndex: i,
			})
		}
	}
	return out
}
