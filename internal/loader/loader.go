// Package loader turns source documents on disk into numbered pages of text.
package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupported is returned for file types the loader cannot read.
	ErrUnsupported = errors.New("unsupported document type")
	// ErrEmpty is returned when no page of a document yields any text.
	ErrEmpty = errors.New("document has no extractable text")
)

// Page is one page of extracted text. Text may be empty when extraction
// failed for that page; such pages are skipped at indexing time.
type Page struct {
	Number int // 1-based
	Text   string
}

// Document is a loaded source document.
type Document struct {
	Source      string // identifier used in citations
	Path        string
	ContentHash string // SHA-256 of the file bytes
	Pages       []Page
}

// TextPages reports how many pages carry non-blank text.
func (d *Document) TextPages() int {
	n := 0
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) != "" {
			n++
		}
	}
	return n
}

// Supported reports whether path has an extension the loader can read.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md", ".text":
		return true
	}
	return false
}

// Load reads the document at path. PDFs are read page by page; plain text
// files are split into pages on form feeds.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	var pages []Page
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err = readPDF(path, info.Size())
	case ".txt", ".md", ".text":
		pages, err = readText(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	hash, err := hashFile(path)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Source:      filepath.ToSlash(filepath.Clean(path)),
		Path:        path,
		ContentHash: hash,
		Pages:       pages,
	}
	if doc.TextPages() == 0 {
		return nil, ErrEmpty
	}
	return doc, nil
}

func readText(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(string(data), "\f")
	pages := make([]Page, len(parts))
	for i, p := range parts {
		pages[i] = Page{Number: i + 1, Text: p}
	}
	return pages, nil
}

// hashFile computes the SHA-256 digest of the given file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
