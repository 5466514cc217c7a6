package catalog

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind distinguishes files from directories in scan output.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// PathInfo is a single surviving entry from one scan pass. Paths are
// repo-relative with forward slashes.
type PathInfo struct {
	Path string
	Kind Kind
}

// Matcher decides whether a repo-relative path is excluded from the scan.
// The gitignore-equivalent pattern source is owned by the caller.
type Matcher interface {
	Match(relPath string, isDir bool) bool
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(relPath string, isDir bool) bool

func (f MatcherFunc) Match(relPath string, isDir bool) bool {
	return f(relPath, isDir)
}

// GlobMatcher matches paths against glob-ish exclude patterns: literal
// names match any path component, "*.ext" matches by suffix, and a
// trailing "/" restricts the pattern to directories.
type GlobMatcher struct {
	patterns []string
}

func NewGlobMatcher(patterns []string) *GlobMatcher {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		cleaned = append(cleaned, p)
	}
	return &GlobMatcher{patterns: cleaned}
}

func (m *GlobMatcher) Match(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	base := relPath
	if i := strings.LastIndex(relPath, "/"); i >= 0 {
		base = relPath[i+1:]
	}
	for _, p := range m.patterns {
		dirOnly := strings.HasSuffix(p, "/")
		pat := strings.TrimSuffix(p, "/")
		if dirOnly && !isDir {
			continue
		}
		if strings.HasPrefix(pat, "*.") {
			if strings.HasSuffix(base, pat[1:]) {
				return true
			}
			continue
		}
		if base == pat || relPath == pat {
			return true
		}
		// A pattern with a slash matches as a path prefix.
		if strings.Contains(pat, "/") && strings.HasPrefix(relPath, pat+"/") {
			return true
		}
	}
	return false
}

// Scanner walks a repository root and records surviving entries.
type Scanner struct {
	log *slog.Logger
}

func NewScanner(log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{log: log}
}

// Scan enumerates the tree under root, skipping anything the matcher
// excludes. Unreadable subtrees are logged and skipped; only an unreadable
// root aborts the scan. Output is sorted by path, so two scans of the same
// filesystem snapshot with the same ignore set are identical.
func (s *Scanner) Scan(root string, ignore Matcher) ([]PathInfo, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("scan root %s: %w", root, err)
	}

	var infos []PathInfo
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.Warn("scan: skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if ignore != nil && ignore.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		kind := KindFile
		if d.IsDir() {
			kind = KindDirectory
		}
		infos = append(infos, PathInfo{Path: rel, Kind: kind})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// CountFiles returns the number of file entries in a scan result.
func CountFiles(infos []PathInfo) int {
	n := 0
	for _, pi := range infos {
		if pi.Kind == KindFile {
			n++
		}
	}
	return n
}
