package corpus

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Report files that live alongside chunk files but carry no chunks.
var skippedFiles = map[string]bool{
	"chapter_overview.json":  true,
	"validation_report.json": true,
	"ai_summary_report.json": true,
}

func combineForEmbedding(header, summary, content string) string {
	return strings.TrimSpace(header + "\n\n" + summary + "\n\n" + content)
}

// LoadChunkDir walks dir recursively and collects passages from every
// JSON chunk file, skipping the cleaning reports. File order follows
// the directory walk so repeated loads are stable.
func LoadChunkDir(dir string) ([]Passage, error) {
	var passages []Passage
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") || skippedFiles[d.Name()] {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var file ChunkFile
		if err := json.Unmarshal(raw, &file); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		passages = append(passages, file.Chunks...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return passages, nil
}

// LoadEmbeddings reads an embedding file written by SaveEmbeddings.
func LoadEmbeddings(path string) (*EmbeddingFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read embeddings: %w", err)
	}
	var file EmbeddingFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse embeddings: %w", err)
	}
	return &file, nil
}

// SaveEmbeddings writes passages with their vectors in the interchange
// format the index uploader expects.
func SaveEmbeddings(path, model string, passages []Passage) error {
	dim := 0
	if len(passages) > 0 {
		dim = len(passages[0].Embedding)
	}
	file := EmbeddingFile{
		NumChunks:          len(passages),
		EmbeddingDimension: dim,
		Model:              model,
		Chunks:             passages,
	}
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal embeddings: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}
	return nil
}
