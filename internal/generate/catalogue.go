package generate

import (
	"fmt"
	"strings"

	"github.com/alexchenyu/OpenDeepWiki/internal/store"
)

// Catalogue is the documentation structure the model produces.
type Catalogue struct {
	Items []CatalogueItem `json:"items"`
}

// CatalogueItem is one section. Name is a stable slug, Title the display
// heading, Prompt the generation instruction for the section body.
type CatalogueItem struct {
	Title    string          `json:"title"`
	Name     string          `json:"name"`
	Prompt   string          `json:"prompt"`
	Children []CatalogueItem `json:"children,omitempty"`
}

// MaxCatalogueDepth bounds section nesting. Anything deeper is a model
// mistake, not a real documentation layout.
const MaxCatalogueDepth = 5

// Validate checks the catalogue has a usable minimum shape: at least two
// named top-level sections and bounded nesting.
func (c *Catalogue) Validate() error {
	if len(c.Items) < 2 {
		return fmt.Errorf("catalogue needs at least 2 top-level sections, got %d", len(c.Items))
	}
	return validateItems(c.Items, 1)
}

func validateItems(items []CatalogueItem, depth int) error {
	if depth > MaxCatalogueDepth {
		return fmt.Errorf("catalogue nesting exceeds depth %d", MaxCatalogueDepth)
	}
	for i := range items {
		item := &items[i]
		if strings.TrimSpace(item.Title) == "" {
			return fmt.Errorf("section %d at depth %d has no title", i, depth)
		}
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("section %q has no name", item.Title)
		}
		if err := validateItems(item.Children, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Flatten converts the nested catalogue into persistable entries. Each
// entry gets a fresh ULID; URL is the slash-joined path of names from
// the root; Order preserves document order depth-first.
func (c *Catalogue) Flatten(repoID string) []store.CatalogEntry {
	var out []store.CatalogEntry
	order := 0
	var walk func(items []CatalogueItem, parentID, parentURL string)
	walk = func(items []CatalogueItem, parentID, parentURL string) {
		for i := range items {
			item := &items[i]
			url := item.Name
			if parentURL != "" {
				url = parentURL + "/" + item.Name
			}
			entry := store.CatalogEntry{
				ID:           store.NewULID(),
				RepositoryID: repoID,
				Name:         item.Name,
				Title:        item.Title,
				Prompt:       item.Prompt,
				URL:          url,
				ParentID:     parentID,
				Order:        order,
			}
			order++
			out = append(out, entry)
			walk(item.Children, entry.ID, url)
		}
	}
	walk(c.Items, "", "")
	return out
}
