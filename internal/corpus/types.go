// Package corpus holds the study-material data model shared by the index,
// retrieval and exam packages, plus loaders for the chunk and embedding
// interchange files produced by the ingestion tooling.
package corpus

// Content types carried in chunk metadata.
const (
	ContentTypeVideo        = "video"
	ContentTypeText         = "text"
	ContentTypeChapterIntro = "chapter_intro"
)

// Metadata is the filterable envelope attached to every passage.
// Chapter and section numbers are strings ("1", "2.3") to match the
// source material's own numbering.
type Metadata struct {
	ChapterNum  string `json:"chapter_num"`
	SectionNum  string `json:"section_num"`
	ContentType string `json:"content_type"`
}

// Passage is one indexed unit of study material: the full text, its
// AI-generated summary and the section heading it came from. The
// embedding is computed over header+summary+content combined and is
// only populated on the ingestion path.
type Passage struct {
	ChunkID       string    `json:"chunk_id"`
	Content       string    `json:"content"`
	Summary       string    `json:"summary"`
	SectionHeader string    `json:"section_header"`
	Metadata      Metadata  `json:"metadata"`
	Embedding     []float32 `json:"embedding,omitempty"`
}

// CombinedText returns the text that gets embedded for a passage:
// section header, summary and content joined by blank lines.
func (p Passage) CombinedText() string {
	return combineForEmbedding(p.SectionHeader, p.Summary, p.Content)
}

// SearchResult is a passage scored against a query. Scores from the
// vector index are cosine similarities; after reranking they are
// synthetic rank-position scores. Either way a result list is ordered
// by non-increasing score.
type SearchResult struct {
	Passage
	Score float64 `json:"score"`
}

// Filter restricts a search to passages whose metadata matches every
// set field. Empty fields do not constrain.
type Filter struct {
	Chapter     string
	ContentType string
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return f.Chapter == "" && f.ContentType == ""
}

// ChunkFile is the cleaned-material interchange format: one file per
// section with its chunks. Loaders only care about the chunks array.
type ChunkFile struct {
	Metadata map[string]any `json:"metadata,omitempty"`
	Chunks   []Passage      `json:"chunks"`
}

// EmbeddingFile is the output of the embedding generator and the input
// to the index uploader.
type EmbeddingFile struct {
	NumChunks          int       `json:"num_chunks"`
	EmbeddingDimension int       `json:"embedding_dimension"`
	Model              string    `json:"model,omitempty"`
	Chunks             []Passage `json:"chunks"`
}
