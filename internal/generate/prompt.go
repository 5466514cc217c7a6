package generate

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a senior technical writer producing the documentation catalogue for a code repository.

You explore the repository with the read_file tool, then produce a JSON catalogue of documentation sections:

{"items": [{"title": "...", "name": "...", "prompt": "...", "children": [...]}]}

Rules:
- "title" is the human heading, "name" a lowercase-hyphenated slug unique among siblings
- "prompt" tells a later writer exactly what that section must cover, naming concrete files and symbols
- At least 2 top-level sections; nest at most 5 levels deep
- Cover the whole repository: purpose, setup, architecture, each major subsystem, public interfaces
- Base every section on files you actually inspected, never on guesses

When the structure is final, emit it inside <documentation_structure> tags:

<documentation_structure>
{"items": [...]}
</documentation_structure>`

const refinementPrompt = `The structure so far is empty or unusable. Produce a complete replacement now:
- at least 2 named top-level sections
- nesting no deeper than 5 levels
- every section with title, name and prompt
Respond with the full JSON structure inside <documentation_structure> tags. Do not call any more tools.`

// buildUserPrompt assembles the opening message: repository identity plus
// its structure rendering (flat listing for small repos, grouped summary
// for large ones).
func buildUserPrompt(repoName, structure string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Repository: %s\n\n", repoName))
	sb.WriteString("Repository structure:\n")
	sb.WriteString(structure)
	sb.WriteString("\n\nExplore the files you need, then produce the documentation catalogue.")
	return sb.String()
}
