package vectordb

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
)

const (
	collectionName = "textbook"
	indexFile      = "index.gob.gz"
)

var (
	// ErrIndexNotFound means no persisted index exists at the given path.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexCorrupt means a persisted index exists but cannot be used.
	ErrIndexCorrupt = errors.New("index corrupt")
)

// Index is an append-only vector index over chromem-go. It never
// de-duplicates: adding the same chunk twice yields two entries.
//
// Searches may run concurrently with Add. Each entry becomes visible on its
// own, so a reader sees a prefix of an in-flight Add but never a partial entry.
type Index struct {
	mu  sync.RWMutex // guards db and col
	db  *chromem.DB
	col *chromem.Collection

	// addMu serializes writers so sequence numbers and the manifest stay
	// consistent with the collection.
	addMu   sync.Mutex
	nextSeq int64
	model   string

	dims atomic.Int64
}

// New creates an empty in-memory index.
func New() (*Index, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Index{db: db, col: col}, nil
}

// noEmbed is installed as the collection's embedding function. Vectors are
// always supplied with the entry, so chromem must never embed on its own.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embeddings must be supplied with each entry")
}

func (ix *Index) collection() *chromem.Collection {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.col
}

// SetEmbeddingModel records the embedding model name in the manifest on the
// next Persist.
func (ix *Index) SetEmbeddingModel(name string) {
	ix.addMu.Lock()
	defer ix.addMu.Unlock()
	ix.model = name
}

// EmbeddingModel returns the model name recorded for this index, if any.
func (ix *Index) EmbeddingModel() string {
	ix.addMu.Lock()
	defer ix.addMu.Unlock()
	return ix.model
}

// Dimensions returns the vector size of the stored entries, or 0 when empty.
func (ix *Index) Dimensions() int {
	return int(ix.dims.Load())
}

// Add appends entries in order. All entries are validated before any is
// added. If ctx is cancelled midway, the entries already added stay.
func (ix *Index) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ix.addMu.Lock()
	defer ix.addMu.Unlock()

	dims := ix.Dimensions()
	if dims == 0 {
		dims = len(entries[0].Vector)
	}
	for i, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("entry %d (%s p.%d): empty vector", i, e.Chunk.Source, e.Chunk.Page)
		}
		if len(e.Vector) != dims {
			return fmt.Errorf("entry %d (%s p.%d): vector has %d dimensions, index has %d",
				i, e.Chunk.Source, e.Chunk.Page, len(e.Vector), dims)
		}
		if e.Chunk.Text == "" {
			return fmt.Errorf("entry %d (%s p.%d): empty chunk text", i, e.Chunk.Source, e.Chunk.Page)
		}
	}
	ix.dims.Store(int64(dims))

	col := ix.collection()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := chromem.Document{
			ID:        uuid.NewString(),
			Content:   e.Chunk.Text,
			Embedding: slices.Clone(e.Vector),
			Metadata:  chunkMetadata(e.Chunk, ix.nextSeq),
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document: %w", err)
		}
		ix.nextSeq++
	}
	return nil
}

// scored carries the insertion sequence used to break similarity ties.
type scored struct {
	Result
	seq int64
}

// Search returns at most k entries ordered by descending cosine similarity.
// Equal similarities are ordered by insertion, earliest first.
func (ix *Index) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) == 0 {
		return nil, errors.New("query vector is empty")
	}

	col := ix.collection()
	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	if dims := ix.Dimensions(); dims != 0 && len(vector) != dims {
		return nil, fmt.Errorf("query vector has %d dimensions, index has %d", len(vector), dims)
	}

	// chromem does not order ties, so rank the whole collection here.
	raw, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	ranked := make([]scored, len(raw))
	for i, r := range raw {
		chunk, seq := metadataToChunk(r.Metadata)
		chunk.Text = r.Content
		ranked[i] = scored{Result: Result{Chunk: chunk, Score: r.Similarity}, seq: seq}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]Result, 0, min(k, len(ranked)))
	for _, r := range ranked[:min(k, len(ranked))] {
		out = append(out, r.Result)
	}
	return out, nil
}

// IsReady reports whether the index holds at least one entry from a
// successful build or load.
func (ix *Index) IsReady() bool {
	return ix.Count() > 0
}

// Count returns the number of entries.
func (ix *Index) Count() int {
	return ix.collection().Count()
}

// Persist writes the index and its manifest to dir, creating it if needed.
// Each file is written to a temporary name and renamed into place.
func (ix *Index) Persist(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ix.addMu.Lock()
	defer ix.addMu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	ix.mu.RLock()
	db, col := ix.db, ix.col
	ix.mu.RUnlock()

	tmp := filepath.Join(dir, "index.tmp.gob.gz")
	if err := db.ExportToFile(tmp, true, "", collectionName); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("export index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, indexFile)); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}

	m := &Manifest{
		NextSeq:        ix.nextSeq,
		Entries:        col.Count(),
		Dimensions:     ix.Dimensions(),
		EmbeddingModel: ix.model,
	}
	if err := m.write(dir); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load replaces the in-memory state with the index persisted in dir. It
// returns an error wrapping ErrIndexNotFound when dir holds no index and
// ErrIndexCorrupt when the files cannot be decoded or disagree. On error the
// current state is left untouched.
func (ix *Index) Load(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(dir, indexFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
		}
		return fmt.Errorf("stat index: %w", err)
	}

	m, err := ReadManifest(dir)
	if err != nil {
		return fmt.Errorf("%w: manifest: %v", ErrIndexCorrupt, err)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(path, "", collectionName); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	col := db.GetCollection(collectionName, noEmbed)
	if col == nil {
		return fmt.Errorf("%w: collection %q missing", ErrIndexCorrupt, collectionName)
	}
	if n := col.Count(); n != m.Entries {
		return fmt.Errorf("%w: manifest lists %d entries, found %d", ErrIndexCorrupt, m.Entries, n)
	}
	if m.Entries > 0 && m.Dimensions <= 0 {
		return fmt.Errorf("%w: manifest has no dimensions", ErrIndexCorrupt)
	}

	ix.addMu.Lock()
	defer ix.addMu.Unlock()
	ix.mu.Lock()
	ix.db, ix.col = db, col
	ix.mu.Unlock()
	ix.nextSeq = m.NextSeq
	ix.dims.Store(int64(m.Dimensions))
	ix.model = m.EmbeddingModel
	return nil
}

// chunkMetadata converts a chunk's provenance to chromem's flat metadata.
func chunkMetadata(c Chunk, seq int64) map[string]string {
	return map[string]string{
		"source":      c.Source,
		"page":        strconv.Itoa(c.Page),
		"chunk_index": strconv.Itoa(c.ChunkIndex),
		"seq":         strconv.FormatInt(seq, 10),
	}
}

// metadataToChunk converts flat metadata back to chunk provenance.
func metadataToChunk(m map[string]string) (Chunk, int64) {
	page, _ := strconv.Atoi(m["page"])
	idx, _ := strconv.Atoi(m["chunk_index"])
	seq, _ := strconv.ParseInt(m["seq"], 10, 64)
	return Chunk{Source: m["source"], Page: page, ChunkIndex: idx}, seq
}
