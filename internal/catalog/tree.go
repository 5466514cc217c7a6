package catalog

import (
	"encoding/json"
	"sort"
	"strings"
)

// Tree is an arena of nodes addressed by path key. Edges are stored as id
// references rather than pointers, which rules out cycles and keeps the
// structure directly serializable.
type Tree struct {
	nodes map[string]*node
	roots []string
}

type node struct {
	Name     string
	Kind     Kind
	Children []string // ordered path keys
}

// BuildTree constructs the arena from one scan pass. Intermediate
// directories implied by file paths are created even if the scan did not
// emit them separately.
func BuildTree(infos []PathInfo) *Tree {
	t := &Tree{nodes: make(map[string]*node)}
	for _, pi := range infos {
		t.insert(pi.Path, pi.Kind)
	}
	t.sortChildren()
	return t
}

func (t *Tree) insert(path string, kind Kind) {
	segments := strings.Split(path, "/")
	key := ""
	for i, seg := range segments {
		parent := key
		if key == "" {
			key = seg
		} else {
			key = key + "/" + seg
		}
		if _, ok := t.nodes[key]; ok {
			continue
		}
		k := KindDirectory
		if i == len(segments)-1 {
			k = kind
		}
		t.nodes[key] = &node{Name: seg, Kind: k}
		if parent == "" {
			t.roots = append(t.roots, key)
		} else {
			p := t.nodes[parent]
			p.Children = append(p.Children, key)
		}
	}
}

func (t *Tree) sortChildren() {
	sort.Strings(t.roots)
	for _, n := range t.nodes {
		sort.Strings(n.Children)
	}
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// RenderIndented renders the tree as compact indented text, directories
// suffixed with a slash.
func (t *Tree) RenderIndented() string {
	var sb strings.Builder
	var walk func(keys []string, depth int)
	walk = func(keys []string, depth int) {
		for _, key := range keys {
			n := t.nodes[key]
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString(n.Name)
			if n.Kind == KindDirectory {
				sb.WriteString("/")
			}
			sb.WriteString("\n")
			walk(n.Children, depth+1)
		}
	}
	walk(t.roots, 0)
	return sb.String()
}

type jsonNode struct {
	Name     string     `json:"name"`
	Kind     Kind       `json:"kind"`
	Children []jsonNode `json:"children,omitempty"`
}

// RenderJSON renders the tree as nested JSON.
func (t *Tree) RenderJSON() (string, error) {
	var build func(keys []string) []jsonNode
	build = func(keys []string) []jsonNode {
		out := make([]jsonNode, 0, len(keys))
		for _, key := range keys {
			n := t.nodes[key]
			out = append(out, jsonNode{
				Name:     n.Name,
				Kind:     n.Kind,
				Children: build(n.Children),
			})
		}
		return out
	}
	b, err := json.MarshalIndent(build(t.roots), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RenderPathList renders the tree as a flat newline-separated list of
// file paths (directories omitted).
func (t *Tree) RenderPathList() string {
	keys := make([]string, 0, len(t.nodes))
	for key, n := range t.nodes {
		if n.Kind == KindFile {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return strings.Join(keys, "\n")
}
