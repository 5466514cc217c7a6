package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// extractCSV flattens CSV rows into "header: value" lines so column
// meaning survives into the embedding.
func extractCSV(r io.Reader) (string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	headers := records[0]
	var out strings.Builder
	out.WriteString("Headers: " + strings.Join(headers, ", "))
	for _, row := range records[1:] {
		out.WriteString("\n")
		for j, cell := range row {
			if j > 0 {
				out.WriteString(", ")
			}
			if j < len(headers) {
				out.WriteString(headers[j] + ": " + cell)
			} else {
				out.WriteString(cell)
			}
		}
	}
	return out.String(), nil
}
