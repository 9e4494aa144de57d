package vectordb

// Chunk is the unit of indexing: a bounded slice of one page of a source document.
type Chunk struct {
	Text       string
	Source     string
	Page       int // 1-based
	ChunkIndex int // position within the page's chunk sequence
}

// Entry pairs a chunk with its embedding vector.
type Entry struct {
	Chunk  Chunk
	Vector []float32
}

// Result is a chunk returned by a similarity search. Score is the cosine
// similarity to the query vector.
type Result struct {
	Chunk Chunk
	Score float32
}
