package retrieval

import (
	"strings"

	"github.com/studyforge/certrag/internal/corpus"
)

// BuildContext concatenates one delimited block per result, in result
// order. The block layout is byte-exact: answer generation prompts
// were tuned against these delimiters and header/content/summary
// ordering.
func BuildContext(results []corpus.SearchResult) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString("\n<document>\n")
		b.WriteString(r.SectionHeader)
		b.WriteString("\n\nText:\n")
		b.WriteString(r.Content)
		b.WriteString("\n\nSummary:\n")
		b.WriteString(r.Summary)
		b.WriteString("\n</document>\n")
	}
	return b.String()
}
