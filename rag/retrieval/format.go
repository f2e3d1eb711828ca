package retrieval

import (
	"fmt"
	"strings"
)

// NoDocumentsFound is the formatted context returned for empty searches.
const NoDocumentsFound = "No relevant documents found."

// FormatContext renders ranked documents as an LLM context block. A positive
// maxLength truncates the output.
func FormatContext(hits []Scored, maxLength int) string {
	if len(hits) == 0 {
		return NoDocumentsFound
	}
	parts := make([]string, 0, len(hits))
	for i, hit := range hits {
		doc := hit.Document
		var sb strings.Builder
		fmt.Fprintf(&sb, "[Document %d] (Relevance: %.1f)\n", i+1, hit.Score)
		line := func(label, value string) {
			if value != "" {
				fmt.Fprintf(&sb, "%s: %s\n", label, value)
			}
		}
		line("Name", doc.DisplayName())
		line("Category", doc.Category)
		line("Description", doc.Description)
		line("Distance", doc.Distance)
		line("Cost", doc.Cost)
		line("Best Time", doc.BestTime)
		line("Tips", doc.Tips)
		parts = append(parts, sb.String())
	}

	context := strings.Join(parts, "\n---\n")
	if maxLength > 0 && len(context) > maxLength {
		context = context[:maxLength] + "\n... (truncated)"
	}
	return context
}
