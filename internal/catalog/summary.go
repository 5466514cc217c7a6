package catalog

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// canonicalPatterns is the fixed set of project-file markers, matched
// case-insensitively by substring against root-level file names.
var canonicalPatterns = []string{
	"readme",
	"license",
	"contributing",
	"changelog",
	"package.json",
	"go.mod",
	"cargo.toml",
	"pom.xml",
	"build.gradle",
	"requirements.txt",
	"pyproject.toml",
	"setup.py",
	"gemfile",
	"composer.json",
	"makefile",
	"cmakelists",
	"dockerfile",
	"docker-compose",
	".csproj",
	".sln",
}

const summaryGuidance = `Note: this repository is too large for a full file listing, so the
structure above is a statistical summary. To explore further, start from
the canonical project files, then read the top-level directories with the
highest file counts. Use the extension histogram to judge the primary
languages before requesting individual files.`

type groupStat struct {
	name    string
	isDir   bool
	files   int
	subdirs int
	exts    map[string]int
}

// Summarize renders the bounded summary document used in place of the
// full tree for large repositories. Output size depends on the number of
// top-level entries and fixed caps, not on the total file count.
func Summarize(infos []PathInfo) string {
	totalFiles := CountFiles(infos)

	groups := make(map[string]*groupStat)
	var order []string
	globalExts := make(map[string]int)
	var rootFiles []string

	for _, pi := range infos {
		top := pi.Path
		rest := ""
		if i := strings.Index(pi.Path, "/"); i >= 0 {
			top = pi.Path[:i]
			rest = pi.Path[i+1:]
		}
		g, ok := groups[top]
		if !ok {
			g = &groupStat{name: top, exts: make(map[string]int)}
			groups[top] = g
			order = append(order, top)
		}
		switch pi.Kind {
		case KindDirectory:
			if rest == "" {
				g.isDir = true
			} else {
				g.subdirs++
			}
		case KindFile:
			ext := strings.ToLower(path.Ext(pi.Path))
			if ext != "" {
				globalExts[ext]++
			}
			if rest == "" {
				rootFiles = append(rootFiles, top)
			} else {
				g.files++
				if ext != "" {
					g.exts[ext]++
				}
			}
		}
	}
	sort.Strings(order)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Repository summary: %d files total\n\n", totalFiles)

	sb.WriteString("Top-level structure:\n")
	for _, name := range order {
		g := groups[name]
		if !g.isDir {
			continue
		}
		fmt.Fprintf(&sb, "  %s/ - %d files, %d subdirectories", g.name, g.files, g.subdirs)
		if tops := topExtensions(g.exts, 5); len(tops) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(tops, ", "))
		}
		sb.WriteString("\n")
	}
	for _, name := range rootFiles {
		fmt.Fprintf(&sb, "  %s\n", name)
	}

	if canon := canonicalFiles(rootFiles); len(canon) > 0 {
		sb.WriteString("\nProject files:\n")
		for _, f := range canon {
			fmt.Fprintf(&sb, "  %s\n", f)
		}
	}

	if tops := topExtensions(globalExts, 10); len(tops) > 0 {
		sb.WriteString("\nExtension histogram (top 10):\n")
		for _, e := range tops {
			fmt.Fprintf(&sb, "  %s\n", e)
		}
	}

	sb.WriteString("\n")
	sb.WriteString(summaryGuidance)
	sb.WriteString("\n")
	return sb.String()
}

// canonicalFiles filters root-level file names against the fixed pattern
// set, case-insensitive substring match.
func canonicalFiles(rootFiles []string) []string {
	var out []string
	for _, f := range rootFiles {
		lower := strings.ToLower(f)
		for _, p := range canonicalPatterns {
			if strings.Contains(lower, p) {
				out = append(out, f)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// topExtensions returns the n most frequent extensions formatted as
// "ext: count", ties broken alphabetically for determinism.
func topExtensions(exts map[string]int, n int) []string {
	type ec struct {
		ext   string
		count int
	}
	list := make([]ec, 0, len(exts))
	for e, c := range exts {
		list = append(list, ec{e, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].ext < list[j].ext
	})
	if len(list) > n {
		list = list[:n]
	}
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = fmt.Sprintf("%s: %d", e.ext, e.count)
	}
	return out
}
