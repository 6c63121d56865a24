package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/studyforge/certrag/internal/corpus"
)

// ExpandedResultCap bounds the merged result set regardless of how
// many expansion queries ran.
const ExpandedResultCap = 12

// optionK sizes per-option sub-queries. Options are narrower in scope
// than the full scenario, so they get fewer slots.
func optionK(k int) int {
	if half := k / 2; half > 3 {
		return half
	}
	return 3
}

type subQuery struct {
	text string
	k    int
}

// RetrieveForScenario maximizes recall for a structured exam question
// by running one retrieval for the scenario plus question and one
// narrower retrieval per answer option. Sub-queries run concurrently;
// each is read-only against the index. Results merge by chunk id with
// first surfacing winning, in deterministic precedence: the main
// query, then options in their given order. The merged set is sorted
// by descending score and capped at ExpandedResultCap.
func (r *Retriever) RetrieveForScenario(ctx context.Context, scenario, question string, options []string, k int, filter corpus.Filter) ([]corpus.SearchResult, string, error) {
	if k <= 0 {
		return nil, "", fmt.Errorf("k must be positive, got %d", k)
	}

	queries := make([]subQuery, 0, 1+len(options))
	queries = append(queries, subQuery{text: scenario + "\n\n" + question, k: k})
	for _, opt := range options {
		queries = append(queries, subQuery{text: question + "\n" + opt, k: optionK(k)})
	}

	resultSets := make([][]corpus.SearchResult, len(queries))
	errs := make([]error, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q subQuery) {
			defer wg.Done()
			resultSets[i], _, errs[i] = r.Retrieve(ctx, q.text, q.k, filter)
		}(i, q)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, "", err
		}
	}

	seen := make(map[string]bool)
	var merged []corpus.SearchResult
	for _, set := range resultSets {
		for _, res := range set {
			if seen[res.ChunkID] {
				continue
			}
			seen[res.ChunkID] = true
			merged = append(merged, res)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > ExpandedResultCap {
		merged = merged[:ExpandedResultCap]
	}

	r.logger.Printf("scenario expansion: %d sub-queries, %d unique passages", len(queries), len(merged))
	return merged, BuildContext(merged), nil
}
