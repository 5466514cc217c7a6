package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestScan_TenFilesAllPathsOnce(t *testing.T) {
	root := t.TempDir()
	paths := []string{
		"README.md", "go.mod", "main.go",
		"internal/a.go", "internal/b.go",
		"internal/sub/c.go", "internal/sub/d.go",
		"docs/guide.md", "docs/api.md",
		"scripts/build.sh",
	}
	for _, p := range paths {
		writeFile(t, root, p)
	}

	infos, err := NewScanner(nil).Scan(root, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := CountFiles(infos); got != 10 {
		t.Fatalf("expected 10 files, got %d", got)
	}

	tree := BuildTree(infos)
	list := tree.RenderPathList()
	for _, p := range paths {
		if n := strings.Count(list, p); n != 1 {
			t.Errorf("path list: expected %q exactly once, got %d", p, n)
		}
	}
}

func TestRenderings_Lossless(t *testing.T) {
	infos := []PathInfo{
		{Path: "src", Kind: KindDirectory},
		{Path: "src/app.go", Kind: KindFile},
		{Path: "src/util", Kind: KindDirectory},
		{Path: "src/util/io.go", Kind: KindFile},
		{Path: "README.md", Kind: KindFile},
	}
	tree := BuildTree(infos)

	// Path list recovers every file path.
	fromList := strings.Split(tree.RenderPathList(), "\n")
	wantFiles := map[string]bool{"src/app.go": true, "src/util/io.go": true, "README.md": true}
	if len(fromList) != len(wantFiles) {
		t.Fatalf("path list: expected %d entries, got %d: %v", len(wantFiles), len(fromList), fromList)
	}
	for _, p := range fromList {
		if !wantFiles[p] {
			t.Errorf("path list: unexpected entry %q", p)
		}
	}

	// JSON rendering recovers the same file set.
	jsonOut, err := tree.RenderJSON()
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	var nodes []jsonNode
	if err := json.Unmarshal([]byte(jsonOut), &nodes); err != nil {
		t.Fatalf("unmarshal rendered json: %v", err)
	}
	fromJSON := map[string]bool{}
	var walk func(prefix string, nodes []jsonNode)
	walk = func(prefix string, nodes []jsonNode) {
		for _, n := range nodes {
			p := n.Name
			if prefix != "" {
				p = prefix + "/" + n.Name
			}
			if n.Kind == KindFile {
				fromJSON[p] = true
			}
			walk(p, n.Children)
		}
	}
	walk("", nodes)
	if len(fromJSON) != len(wantFiles) {
		t.Fatalf("json: expected %d files, got %d", len(wantFiles), len(fromJSON))
	}
	for p := range wantFiles {
		if !fromJSON[p] {
			t.Errorf("json: missing %q", p)
		}
	}

	// Indented rendering mentions every node name.
	indented := tree.RenderIndented()
	for _, name := range []string{"src/", "util/", "app.go", "io.go", "README.md"} {
		if !strings.Contains(indented, name) {
			t.Errorf("indented: missing %q in:\n%s", name, indented)
		}
	}
}

func TestScan_Deterministic(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, root, fmt.Sprintf("pkg%d/file%d.go", i%4, i))
	}
	s := NewScanner(nil)
	first, err := s.Scan(root, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	second, err := s.Scan(root, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("scan lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("entry %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestScan_IgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go")
	writeFile(t, root, "node_modules/lib/index.js")
	writeFile(t, root, "dist/out.min.js")
	writeFile(t, root, "kept/notes.log")

	m := NewGlobMatcher([]string{"node_modules/", "dist", "*.log"})
	infos, err := NewScanner(nil).Scan(root, m)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, pi := range infos {
		if strings.HasPrefix(pi.Path, "node_modules") || strings.HasPrefix(pi.Path, "dist") {
			t.Errorf("ignored dir leaked: %s", pi.Path)
		}
		if strings.HasSuffix(pi.Path, ".log") {
			t.Errorf("ignored extension leaked: %s", pi.Path)
		}
	}
	if got := CountFiles(infos); got != 1 {
		t.Errorf("expected 1 surviving file, got %d", got)
	}
}

func TestSummarize_SixHundredFiles(t *testing.T) {
	var infos []PathInfo
	infos = append(infos, PathInfo{Path: "src", Kind: KindDirectory})
	infos = append(infos, PathInfo{Path: "README.md", Kind: KindFile})
	infos = append(infos, PathInfo{Path: "Dockerfile", Kind: KindFile})
	for i := 0; i < 598; i++ {
		infos = append(infos, PathInfo{Path: fmt.Sprintf("src/file%03d.go", i), Kind: KindFile})
	}
	if got := CountFiles(infos); got != 600 {
		t.Fatalf("setup: expected 600 files, got %d", got)
	}

	out := Summarize(infos)

	if !strings.Contains(out, "600 files") {
		t.Errorf("summary missing total count: %q", firstLine(out))
	}
	if !strings.Contains(out, "src/ - 598 files") {
		t.Errorf("summary missing top-level breakdown:\n%s", out)
	}
	if !strings.Contains(out, "README.md") || !strings.Contains(out, "Dockerfile") {
		t.Errorf("summary missing canonical project files:\n%s", out)
	}
	if !strings.Contains(out, ".go: 598") {
		t.Errorf("summary missing extension histogram:\n%s", out)
	}

	// Materially shorter than a flat 600-line listing.
	flat := BuildTree(infos).RenderPathList()
	if len(out)*2 > len(flat) {
		t.Errorf("summary not materially shorter: summary=%d flat=%d", len(out), len(flat))
	}
}

func TestSummarize_SizeBoundedByGroups(t *testing.T) {
	small := summarizeN(t, 600)
	large := summarizeN(t, 6000)
	// Same top-level layout: output should not grow with file count.
	if len(large) > len(small)+64 {
		t.Errorf("summary grew with file count: %d vs %d bytes", len(large), len(small))
	}
	if !strings.Contains(large, "6000 files") {
		t.Errorf("summary missing total count for 6000 files")
	}
}

func summarizeN(t *testing.T, n int) string {
	t.Helper()
	infos := []PathInfo{{Path: "src", Kind: KindDirectory}}
	for i := 0; i < n; i++ {
		infos = append(infos, PathInfo{Path: fmt.Sprintf("src/f%06d.go", i), Kind: KindFile})
	}
	return Summarize(infos)
}

func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}
