package generate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/alexchenyu/OpenDeepWiki/internal/llmretry"
)

// Model output arrives in one of three wrappings, tried in order: a
// <documentation_structure> tagged block, a fenced code block, or the
// raw buffer.
var (
	taggedBlockRe = regexp.MustCompile(`(?s)<documentation_structure>\s*(.*?)\s*</documentation_structure>`)
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
)

// ExtractStructure locates the catalogue payload in raw model output and
// parses it. Parse failures come back classified so the retry policy can
// treat them as cheap.
func ExtractStructure(raw string) (*Catalogue, error) {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return nil, llmretry.NewError(llmretry.KindModel, "extract structure", fmt.Errorf("empty output"))
	}
	if m := taggedBlockRe.FindStringSubmatch(payload); len(m) > 1 {
		payload = m[1]
	} else if m := fencedBlockRe.FindStringSubmatch(payload); len(m) > 1 {
		payload = m[1]
	}

	var cat Catalogue
	if err := json.Unmarshal([]byte(payload), &cat); err != nil {
		// A bare array is also accepted; some outputs skip the wrapper.
		var items []CatalogueItem
		if err2 := json.Unmarshal([]byte(payload), &items); err2 == nil {
			cat.Items = items
		} else {
			return nil, llmretry.NewError(llmretry.KindJSONParse, "extract structure",
				fmt.Errorf("%w (raw: %s)", err, truncateForLog(payload, 200)))
		}
	}
	if err := cat.Validate(); err != nil {
		return nil, llmretry.NewError(llmretry.KindModel, "extract structure", err)
	}
	return &cat, nil
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
