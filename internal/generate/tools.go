package generate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/alexchenyu/OpenDeepWiki/internal/budget"
)

// Toolbox executes the model's tool calls against one repository. The
// destructive tools (write_document, multi_edit) share a hard cap
// enforced here, not trusted to the model; calls beyond the cap get an
// error result and are not applied. A Toolbox lives for one invocation.
type Toolbox struct {
	root          string
	estimator     budget.Estimator
	maxReadTokens int
	writeCap      int

	writes   int
	document string
	logger   *slog.Logger
}

func NewToolbox(root string, estimator budget.Estimator, maxReadTokens, writeCap int, logger *slog.Logger) *Toolbox {
	return &Toolbox{
		root:          root,
		estimator:     estimator,
		maxReadTokens: maxReadTokens,
		writeCap:      writeCap,
		logger:        logger,
	}
}

// Document returns the buffer captured from write tool calls.
func (t *Toolbox) Document() string { return t.document }

// Execute runs one tool call. The error return marks a tool-level
// failure the model should see, not a host failure.
func (t *Toolbox) Execute(call ToolCall) (string, error) {
	switch call.Name {
	case "read_file":
		return t.readFile(call.Input)
	case "write_document":
		return t.writeDocument(call.Input)
	case "multi_edit":
		return t.multiEdit(call.Input)
	default:
		return "", fmt.Errorf("unknown tool: %s", call.Name)
	}
}

func (t *Toolbox) readFile(input json.RawMessage) (string, error) {
	var args struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("decode read_file input: %w", err)
	}
	if args.FilePath == "" {
		return "", fmt.Errorf("read_file: file_path is required")
	}
	clean := filepath.Clean(args.FilePath)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("read_file: path %q escapes the repository", args.FilePath)
	}
	data, err := os.ReadFile(filepath.Join(t.root, clean))
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	content := t.estimator.Truncate(string(data), t.maxReadTokens)
	if len(content) < len(data) {
		t.logger.Debug("read_file truncated", "path", clean, "max_tokens", t.maxReadTokens)
	}
	return content, nil
}

func (t *Toolbox) writeDocument(input json.RawMessage) (string, error) {
	if t.writes >= t.writeCap {
		return "", fmt.Errorf("write limit of %d calls reached; respond with the final structure as text", t.writeCap)
	}
	var args struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("decode write_document input: %w", err)
	}
	if strings.TrimSpace(args.Content) == "" {
		return "", fmt.Errorf("write_document: content is empty")
	}
	t.writes++
	t.document = args.Content
	return "document updated", nil
}

func (t *Toolbox) multiEdit(input json.RawMessage) (string, error) {
	if t.writes >= t.writeCap {
		return "", fmt.Errorf("write limit of %d calls reached; respond with the final structure as text", t.writeCap)
	}
	var args struct {
		Edits []struct {
			OldString string `json:"old_string"`
			NewString string `json:"new_string"`
		} `json:"edits"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("decode multi_edit input: %w", err)
	}
	if len(args.Edits) == 0 {
		return "", fmt.Errorf("multi_edit: no edits")
	}
	if t.document == "" {
		return "", fmt.Errorf("multi_edit: no document written yet")
	}
	doc := t.document
	for i, e := range args.Edits {
		if e.OldString == "" || !strings.Contains(doc, e.OldString) {
			return "", fmt.Errorf("multi_edit: edit %d old_string not found", i)
		}
		doc = strings.Replace(doc, e.OldString, e.NewString, 1)
	}
	t.writes++
	t.document = doc
	return fmt.Sprintf("applied %d edits", len(args.Edits)), nil
}

// toolDefinitions returns the tool schema advertised to the model.
func toolDefinitions() []anthropic.ToolUnionParam {
	toolParams := []anthropic.ToolParam{
		{
			Name:        "read_file",
			Description: anthropic.String("Read a file from the repository. Returns its text content, truncated if very large."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"file_path": map[string]interface{}{"type": "string", "description": "Path relative to the repository root (required)"},
				},
				Required: []string{"file_path"},
			},
		},
		{
			Name:        "write_document",
			Description: anthropic.String("Write the complete documentation structure. Replaces any previous write."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"content": map[string]interface{}{"type": "string", "description": "Full documentation structure as JSON (required)"},
				},
				Required: []string{"content"},
			},
		},
		{
			Name:        "multi_edit",
			Description: anthropic.String("Apply a list of string replacements to the previously written document."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]interface{}{
					"edits": map[string]interface{}{
						"type":        "array",
						"description": "Edits applied in order; each old_string must appear in the document",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"old_string": map[string]interface{}{"type": "string"},
								"new_string": map[string]interface{}{"type": "string"},
							},
							"required": []string{"old_string", "new_string"},
						},
					},
				},
				Required: []string{"edits"},
			},
		},
	}

	tools := make([]anthropic.ToolUnionParam, len(toolParams))
	for i := range toolParams {
		tool := toolParams[i]
		tools[i] = anthropic.ToolUnionParam{OfTool: &tool}
	}
	return tools
}
