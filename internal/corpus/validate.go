package corpus

import "fmt"

var knownContentTypes = map[string]bool{
	ContentTypeVideo:        true,
	ContentTypeText:         true,
	ContentTypeChapterIntro: true,
}

// ValidationReport summarizes a pass over loaded passages. Issues are
// human-readable and reference passages by chunk id where one exists.
type ValidationReport struct {
	TotalChunks  int            `json:"total_chunks"`
	Chapters     map[string]int `json:"chapters"`
	ContentTypes map[string]int `json:"content_types"`
	Issues       []string       `json:"issues"`
}

// OK reports whether validation found no issues.
func (r ValidationReport) OK() bool { return len(r.Issues) == 0 }

// Validate checks passages for the defects that break indexing:
// missing required fields, unknown content types and duplicate chunk
// ids. It never fails; callers decide what to do with the report.
func Validate(passages []Passage) ValidationReport {
	report := ValidationReport{
		TotalChunks:  len(passages),
		Chapters:     map[string]int{},
		ContentTypes: map[string]int{},
	}
	seen := make(map[string]bool, len(passages))

	for i, p := range passages {
		name := p.ChunkID
		if name == "" {
			name = fmt.Sprintf("chunk #%d", i)
			report.Issues = append(report.Issues, fmt.Sprintf("%s: missing chunk_id", name))
		} else if seen[p.ChunkID] {
			report.Issues = append(report.Issues, fmt.Sprintf("%s: duplicate chunk_id", name))
		}
		seen[p.ChunkID] = true

		if p.Content == "" {
			report.Issues = append(report.Issues, fmt.Sprintf("%s: empty content", name))
		}
		if p.Summary == "" {
			report.Issues = append(report.Issues, fmt.Sprintf("%s: empty summary", name))
		}
		if p.SectionHeader == "" {
			report.Issues = append(report.Issues, fmt.Sprintf("%s: empty section_header", name))
		}
		if p.Metadata.ChapterNum == "" {
			report.Issues = append(report.Issues, fmt.Sprintf("%s: missing metadata.chapter_num", name))
		}
		if !knownContentTypes[p.Metadata.ContentType] {
			report.Issues = append(report.Issues, fmt.Sprintf("%s: unknown content_type %q", name, p.Metadata.ContentType))
		}

		report.Chapters[p.Metadata.ChapterNum]++
		report.ContentTypes[p.Metadata.ContentType]++
	}
	return report
}

// ValidateEmbeddings checks that every chunk in an embedding file
// carries a vector of the expected dimension.
func ValidateEmbeddings(file *EmbeddingFile, wantDim int) []string {
	var issues []string
	if file.EmbeddingDimension != 0 && file.EmbeddingDimension != wantDim {
		issues = append(issues, fmt.Sprintf("file reports dimension %d, want %d", file.EmbeddingDimension, wantDim))
	}
	for _, p := range file.Chunks {
		if len(p.Embedding) != wantDim {
			issues = append(issues, fmt.Sprintf("%s: embedding has %d dimensions, want %d", p.ChunkID, len(p.Embedding), wantDim))
		}
	}
	return issues
}
