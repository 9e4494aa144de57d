package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// excludedDirs are skipped when a directory is expanded.
var excludedDirs = []string{".git", "node_modules", "vendor", "__pycache__", ".venv", ".idea", ".vscode"}

// Expand resolves a list of document paths, directories and glob patterns
// into an ordered, de-duplicated list of files. Directories contribute every
// supported file beneath them. Plain paths are passed through even when
// they do not exist, so the caller can report them as skipped.
func Expand(patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if isGlob(pattern) {
			if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
				return nil, fmt.Errorf("invalid glob pattern %q", pattern)
			}
			matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("expand %q: %w", pattern, err)
			}
			sort.Strings(matches)
			for _, m := range matches {
				if Supported(m) {
					add(m)
				}
			}
			continue
		}

		info, err := os.Stat(pattern)
		if err == nil && info.IsDir() {
			files, err := walkDir(pattern)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
			continue
		}
		add(pattern)
	}
	return out, nil
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

func walkDir(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip entries we cannot read instead of aborting.
			return nil
		}
		if d.IsDir() {
			if path != root && isExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func isExcludedDir(name string) bool {
	for _, excl := range excludedDirs {
		if strings.EqualFold(name, excl) {
			return true
		}
	}
	return false
}
