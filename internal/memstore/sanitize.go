package memstore

import (
	"strings"
	"unicode"
)

// SanitizeNodeID rewrites an arbitrary string into an identifier the
// graph backend accepts. Colons, slashes, spaces and hyphens become
// underscores, runs of underscores collapse to one, and leading or
// trailing underscores are trimmed. Identifiers that would start with a
// digit get an "n_" prefix; an input that sanitizes to nothing becomes
// "node".
func SanitizeNodeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch r {
		case ':', '/', '\\', ' ', '-':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return "node"
	}
	if r := []rune(s)[0]; unicode.IsDigit(r) {
		s = "n_" + s
	}
	return s
}

// SanitizeMetadata applies SanitizeNodeID to every string value under a
// key that names a graph relationship or node identity. Other values
// pass through untouched.
func SanitizeMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if s, ok := v.(string); ok && isIdentityKey(k) {
			out[k] = SanitizeNodeID(s)
			continue
		}
		out[k] = v
	}
	return out
}

func isIdentityKey(key string) bool {
	switch key {
	case "relationship", "relation", "source_node", "target_node", "node_id":
		return true
	}
	return strings.HasSuffix(key, "_id") && key != "user_id" && key != "run_id" && key != "agent_id"
}
