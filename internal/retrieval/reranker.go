package retrieval

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/studyforge/certrag/internal/corpus"
	"github.com/studyforge/certrag/internal/llm"
	"github.com/studyforge/certrag/internal/metrics"
	"github.com/studyforge/certrag/internal/usage"
)

const (
	indicesOpenTag  = "<relevant_indices>"
	indicesCloseTag = "</relevant_indices>"

	// An index list is tiny; this bounds judge spend per rerank.
	rerankMaxTokens = 50
)

// Reranker asks a judge model to pick the best k candidates out of an
// oversampled pool. It never fails: judge errors and unusable
// responses degrade to the upstream similarity order.
type Reranker struct {
	judge   llm.Judge
	tracker *usage.Tracker
	logger  *log.Logger
}

func NewReranker(judge llm.Judge, tracker *usage.Tracker) *Reranker {
	return &Reranker{
		judge:   judge,
		tracker: tracker,
		logger:  log.New(log.Writer(), "[RERANK] ", log.LstdFlags),
	}
}

func (r *Reranker) Model() string { return r.judge.Model() }

// Rerank returns exactly min(k, len(candidates)) results. With k or
// fewer candidates the input comes back unchanged, judge untouched.
// Otherwise selected results carry fresh descending synthetic scores;
// the original candidates are never mutated.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []corpus.SearchResult, k int) []corpus.SearchResult {
	if len(candidates) == 0 || k <= 0 {
		return []corpus.SearchResult{}
	}
	if len(candidates) <= k {
		return candidates
	}

	raw, u, err := r.judge.Judge(ctx, llm.JudgeRequest{
		Prompt:        rerankPrompt(query, candidates, k),
		Prefill:       indicesOpenTag,
		StopSequences: []string{indicesCloseTag},
		MaxTokens:     rerankMaxTokens,
	})
	if err != nil {
		r.logger.Printf("judge call failed, using vector order: %v", err)
		metrics.RerankDegraded.Inc()
		return candidates[:k]
	}
	r.tracker.Record(r.judge.Model(), u)

	indices := parseIndices(raw, len(candidates))
	if len(indices) == 0 {
		r.logger.Printf("unusable judge response %q, using vector order", snippet(raw))
		metrics.RerankDegraded.Inc()
		return candidates[:k]
	}
	if len(indices) > k {
		indices = indices[:k]
	}

	selected := make(map[int]bool, len(indices))
	reranked := make([]corpus.SearchResult, 0, k)
	for _, idx := range indices {
		res := candidates[idx]
		res.Score = syntheticScore(len(reranked))
		reranked = append(reranked, res)
		selected[idx] = true
	}

	// Judge picked fewer than k: pad with the best unselected
	// candidates, keeping the score sequence descending.
	for idx := 0; idx < len(candidates) && len(reranked) < k; idx++ {
		if selected[idx] {
			continue
		}
		res := candidates[idx]
		res.Score = syntheticScore(len(reranked))
		reranked = append(reranked, res)
	}
	return reranked
}

// syntheticScore makes rank order visible in the score field. The
// values carry no meaning beyond strictly descending.
func syntheticScore(rank int) float64 {
	return 1.0 - float64(rank)*0.05
}

func rerankPrompt(query string, candidates []corpus.SearchResult, k int) string {
	var docs strings.Builder
	for i, c := range candidates {
		if i > 0 {
			docs.WriteString("\n\n")
		}
		fmt.Fprintf(&docs, "[%d] Section: %s\nSummary: %s", i, c.SectionHeader, c.Summary)
	}

	return fmt.Sprintf(`Query: %s

You are given %d documents, each with an index number [0-%d] in square brackets.

Your task: Select the %d MOST relevant documents that would best help answer the query.

Consider:
- Direct relevance to the query topic
- Information completeness
- Accuracy and specificity
- Complementary information (avoid redundancy)

<documents>
%s
</documents>

Output ONLY the indices of the %d most relevant documents, in order of relevance (most relevant first).
Format: comma-separated numbers, no spaces, inside XML tags.

%s`, query, len(candidates), len(candidates)-1, k, docs.String(), k, indicesOpenTag)
}

// parseIndices extracts valid zero-based candidate indices from the
// judge output. The marker tags may reappear when a provider ignores
// prefill; junk tokens and out-of-range values are dropped, duplicates
// keep their first position.
func parseIndices(raw string, n int) []int {
	s := strings.TrimSpace(raw)
	if _, after, ok := strings.Cut(s, indicesOpenTag); ok {
		s = after
	}
	if before, _, ok := strings.Cut(s, indicesCloseTag); ok {
		s = before
	}

	var indices []int
	seen := make(map[int]bool)
	for _, token := range strings.Split(s, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil || idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
	}
	return indices
}

func snippet(s string) string {
	if len(s) <= 80 {
		return s
	}
	return s[:80] + "..."
}
