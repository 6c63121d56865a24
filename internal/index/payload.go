package index

import (
	"hash/fnv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/studyforge/certrag/internal/corpus"
)

// pointID derives the stable numeric point id for a chunk. Hashing the
// chunk id keeps uploads idempotent: re-uploading a chunk overwrites
// its previous point instead of duplicating it.
func pointID(chunkID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(chunkID))
	return h.Sum64()
}

func passagePayload(p corpus.Passage) map[string]any {
	return map[string]any{
		"chunk_id":       p.ChunkID,
		"content":        p.Content,
		"summary":        p.Summary,
		"section_header": p.SectionHeader,
		"metadata": map[string]any{
			"chapter_num":  p.Metadata.ChapterNum,
			"section_num":  p.Metadata.SectionNum,
			"content_type": p.Metadata.ContentType,
		},
	}
}

// passageFromPayload rebuilds a passage from a stored point. Protobuf
// getters are nil safe, so missing fields come back as zero values.
func passageFromPayload(payload map[string]*qdrant.Value) corpus.Passage {
	p := corpus.Passage{
		ChunkID:       payload["chunk_id"].GetStringValue(),
		Content:       payload["content"].GetStringValue(),
		Summary:       payload["summary"].GetStringValue(),
		SectionHeader: payload["section_header"].GetStringValue(),
	}
	if meta := payload["metadata"].GetStructValue(); meta != nil {
		fields := meta.GetFields()
		p.Metadata = corpus.Metadata{
			ChapterNum:  fields["chapter_num"].GetStringValue(),
			SectionNum:  fields["section_num"].GetStringValue(),
			ContentType: fields["content_type"].GetStringValue(),
		}
	}
	return p
}

// buildFilter translates the equality filter into qdrant must
// conditions over the indexed metadata fields. A zero filter returns
// nil so unfiltered searches skip filter evaluation entirely.
func buildFilter(f corpus.Filter) *qdrant.Filter {
	if f.IsZero() {
		return nil
	}
	var conditions []*qdrant.Condition
	if f.Chapter != "" {
		conditions = append(conditions, keywordCondition("metadata.chapter_num", f.Chapter))
	}
	if f.ContentType != "" {
		conditions = append(conditions, keywordCondition("metadata.content_type", f.ContentType))
	}
	return &qdrant.Filter{Must: conditions}
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
