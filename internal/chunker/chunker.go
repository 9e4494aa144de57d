// Package chunker splits page text into overlapping, bounded-length chunks.
//
// Text is split with a hierarchy of separators, coarsest first. Each
// separator stays attached to the unit before it, so every chunk is a
// contiguous substring of the input (trimmed of surrounding whitespace).
// Units are merged greedily up to the maximum size; the next chunk starts
// with the tail of the previous one, up to the configured overlap.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
)

const (
	// DefaultChunkSize is the default maximum chunk length in runes.
	DefaultChunkSize = 1800
	// DefaultChunkOverlap is the default overlap between consecutive chunks in runes.
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences, words,
// then single runes.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Segment is a chunk together with its byte offsets in the source text.
type Segment struct {
	Text  string
	Start int
	End   int
}

// Chunker splits text. It is safe for concurrent use.
type Chunker struct {
	maxSize    int
	overlap    int
	separators []string
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithSeparators replaces the separator hierarchy. Without a trailing ""
// separator, a unit larger than the maximum size is emitted as-is.
func WithSeparators(seps ...string) Option {
	return func(c *Chunker) {
		c.separators = append([]string(nil), seps...)
	}
}

// New creates a Chunker. Invalid sizing is reported here, never at chunk time.
func New(maxSize, overlap int, opts ...Option) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, apperr.Configuration("chunk_size must be positive, got %d", maxSize)
	}
	if overlap < 0 {
		return nil, apperr.Configuration("chunk_overlap must not be negative, got %d", overlap)
	}
	if overlap >= maxSize {
		return nil, apperr.Configuration("chunk_overlap (%d) must be less than chunk_size (%d)", overlap, maxSize)
	}

	c := &Chunker{
		maxSize:    maxSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.separators) == 0 {
		return nil, apperr.Configuration("at least one separator is required")
	}
	return c, nil
}

// MaxSize returns the configured maximum chunk length.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into chunk strings. Empty or whitespace-only input
// yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	segs := c.Segments(text)
	if len(segs) == 0 {
		return nil
	}
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Text
	}
	return out
}

// Segments splits text and reports where each chunk came from.
func (c *Chunker) Segments(text string) []Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	spans := c.split(text, 0, len(text), c.separators)
	segs := make([]Segment, 0, len(spans))
	for _, sp := range spans {
		start, end := trimSpan(text, sp.start, sp.end)
		if start >= end {
			continue
		}
		segs = append(segs, Segment{Text: text[start:end], Start: start, End: end})
	}
	return segs
}

// unit is a contiguous byte range of the input with its length in runes.
type unit struct {
	start int
	end   int
	size  int
}

func (c *Chunker) split(text string, start, end int, seps []string) []unit {
	sep, finer := pickSeparator(text[start:end], seps)

	var out, pending []unit
	for _, u := range splitUnits(text, start, end, sep) {
		if u.size <= c.maxSize {
			pending = append(pending, u)
			continue
		}
		out = append(out, c.merge(pending)...)
		pending = nil
		if len(finer) == 0 {
			// Nothing finer to split on; emit the oversize unit on its own.
			out = append(out, u)
			continue
		}
		out = append(out, c.split(text, u.start, u.end, finer)...)
	}
	return append(out, c.merge(pending)...)
}

// merge packs contiguous units into chunks of at most maxSize runes, carrying
// up to overlap runes of the previous chunk into the next one.
func (c *Chunker) merge(units []unit) []unit {
	var (
		out    []unit
		window []unit
		total  int
	)
	for _, u := range units {
		if total+u.size > c.maxSize && len(window) > 0 {
			out = append(out, joinUnits(window, total))
			for len(window) > 0 && (total > c.overlap || total+u.size > c.maxSize) {
				total -= window[0].size
				window = window[1:]
			}
		}
		window = append(window, u)
		total += u.size
	}
	if len(window) > 0 {
		out = append(out, joinUnits(window, total))
	}
	return out
}

func joinUnits(window []unit, total int) unit {
	return unit{start: window[0].start, end: window[len(window)-1].end, size: total}
}

// pickSeparator returns the first separator present in s and the finer
// separators after it.
func pickSeparator(s string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(s, sep) {
			return sep, seps[i+1:]
		}
	}
	return seps[len(seps)-1], nil
}

// splitUnits cuts text[start:end] after every occurrence of sep. An empty
// separator yields one unit per rune.
func splitUnits(text string, start, end int, sep string) []unit {
	var units []unit
	if sep == "" {
		for pos := start; pos < end; {
			_, w := utf8.DecodeRuneInString(text[pos:end])
			units = append(units, unit{start: pos, end: pos + w, size: 1})
			pos += w
		}
		return units
	}

	for pos := start; pos < end; {
		next := end
		if i := strings.Index(text[pos:end], sep); i >= 0 {
			next = pos + i + len(sep)
		}
		units = append(units, unit{start: pos, end: next, size: utf8.RuneCountInString(text[pos:next])})
		pos = next
	}
	return units
}

func trimSpan(text string, start, end int) (int, int) {
	s := text[start:end]
	left := strings.TrimLeftFunc(s, unicode.IsSpace)
	start += len(s) - len(left)
	return start, start + len(strings.TrimRightFunc(left, unicode.IsSpace))
}
