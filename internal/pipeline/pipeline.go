// Package pipeline wires the retrieval engine to answer generation
// behind one long-lived service object shared by the API server, the
// CLI and the exam evaluator.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/studyforge/certrag/internal/answer"
	"github.com/studyforge/certrag/internal/corpus"
	"github.com/studyforge/certrag/internal/index"
	"github.com/studyforge/certrag/internal/llm"
	"github.com/studyforge/certrag/internal/retrieval"
	"github.com/studyforge/certrag/internal/usage"
)

// Request sizing defaults. Oversampling by DefaultInitialK gives the
// reranker enough of a pool to be selective.
const (
	DefaultK        = 3
	DefaultInitialK = 20
	DefaultSearchK  = 5
	DefaultExamK    = 10
)

// DefaultChapters covers the study corpus this system ships with.
var DefaultChapters = []string{"1", "2", "3", "4"}

// Retriever is the query side of the retrieval engine.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filter corpus.Filter) ([]corpus.SearchResult, string, error)
	RetrieveForScenario(ctx context.Context, scenario, question string, options []string, k int, filter corpus.Filter) ([]corpus.SearchResult, string, error)
}

// Reranker narrows an oversampled candidate pool to the best k.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []corpus.SearchResult, k int) []corpus.SearchResult
	Model() string
}

// Answerer generates answer text from assembled context.
type Answerer interface {
	Answer(ctx context.Context, query, contextText string, maxTokens int, temperature float64) (string, error)
	AnswerExam(ctx context.Context, scenario, question string, options []string, contextText string) (answer.ExamAnswer, error)
	Model() string
}

// Index is the slice of the vector index the pipeline consumes.
type Index interface {
	Collection() string
	Dimension() int
	Describe(ctx context.Context) (index.Info, error)
	Count(ctx context.Context, filter corpus.Filter) (uint64, error)
}

var (
	_ Retriever = (*retrieval.Retriever)(nil)
	_ Reranker  = (*retrieval.Reranker)(nil)
	_ Answerer  = (*answer.Engine)(nil)
	_ Index     = (*index.Store)(nil)
)

// Components collects the pipeline's collaborators; cmd wiring builds
// them from config.
type Components struct {
	Retriever Retriever
	Reranker  Reranker
	Engine    Answerer
	Index     Index
	Embedder  llm.Embedder
	Tracker   *usage.Tracker
	Chapters  []string
}

// Pipeline answers questions over the indexed corpus. Safe for
// concurrent use; the usage tracker is its only mutable state.
type Pipeline struct {
	retriever Retriever
	reranker  Reranker
	engine    Answerer
	index     Index
	embedder  llm.Embedder
	tracker   *usage.Tracker
	chapters  []string
	logger    *log.Logger
}

func New(c Components) *Pipeline {
	if c.Tracker == nil {
		c.Tracker = usage.NewTracker()
	}
	if len(c.Chapters) == 0 {
		c.Chapters = DefaultChapters
	}
	return &Pipeline{
		retriever: c.Retriever,
		reranker:  c.Reranker,
		engine:    c.Engine,
		index:     c.Index,
		embedder:  c.Embedder,
		tracker:   c.Tracker,
		chapters:  c.Chapters,
		logger:    log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	}
}

// Tracker exposes the shared usage aggregation point.
func (p *Pipeline) Tracker() *usage.Tracker { return p.tracker }

// QueryOptions tunes one query. Zero values select the defaults.
type QueryOptions struct {
	K           int
	InitialK    int
	Filter      corpus.Filter
	MaxTokens   int
	Temperature float64
}

// Response is the full answer envelope returned to API and CLI callers.
type Response struct {
	Query             string                `json:"query"`
	Answer            string                `json:"answer"`
	Sources           []corpus.SearchResult `json:"sources"`
	NumSources        int                   `json:"num_sources"`
	RetrievalMetadata map[string]any        `json:"retrieval_metadata"`
	LLMMetadata       map[string]any        `json:"llm_metadata"`
}

// Query answers a question from plain top-k retrieval.
func (p *Pipeline) Query(ctx context.Context, query string, opts QueryOptions) (*Response, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	k := opts.K
	if k <= 0 {
		k = DefaultK
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = answer.DefaultMaxTokens
	}

	results, contextText, err := p.retriever.Retrieve(ctx, query, k, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	answerText, err := p.engine.Answer(ctx, query, contextText, maxTokens, opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}

	p.logger.Printf("answered query with %d sources (k=%d)", len(results), k)
	return &Response{
		Query:      query,
		Answer:     answerText,
		Sources:    results,
		NumSources: len(results),
		RetrievalMetadata: map[string]any{
			"k":                   k,
			"chapter_filter":      filterValue(opts.Filter.Chapter),
			"content_type_filter": filterValue(opts.Filter.ContentType),
			"context_length":      len(contextText),
		},
		LLMMetadata: p.llmMetadata(maxTokens, opts.Temperature),
	}, nil
}

// QueryWithRerank answers a question from an oversampled retrieval
// narrowed by the judge. Rerank degradation is invisible here: the
// reranker falls back internally and the query still succeeds.
func (p *Pipeline) QueryWithRerank(ctx context.Context, query string, opts QueryOptions) (*Response, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	k := opts.K
	if k <= 0 {
		k = DefaultK
	}
	initialK := opts.InitialK
	if initialK <= 0 {
		initialK = DefaultInitialK
	}
	if initialK < k {
		initialK = k
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = answer.DefaultMaxTokens
	}

	candidates, _, err := p.retriever.Retrieve(ctx, query, initialK, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	reranked := p.reranker.Rerank(ctx, query, candidates, k)
	contextText := retrieval.BuildContext(reranked)

	answerText, err := p.engine.Answer(ctx, query, contextText, maxTokens, opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}

	p.logger.Printf("reranked %d candidates to %d sources", len(candidates), len(reranked))
	return &Response{
		Query:      query,
		Answer:     answerText,
		Sources:    reranked,
		NumSources: len(reranked),
		RetrievalMetadata: map[string]any{
			"k":                   k,
			"initial_k":           initialK,
			"reranker_model":      p.reranker.Model(),
			"chapter_filter":      filterValue(opts.Filter.Chapter),
			"content_type_filter": filterValue(opts.Filter.ContentType),
			"context_length":      len(contextText),
		},
		LLMMetadata: p.llmMetadata(maxTokens, opts.Temperature),
	}, nil
}

// Search runs retrieval only, no answer generation.
func (p *Pipeline) Search(ctx context.Context, query string, k int, filter corpus.Filter) ([]corpus.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if k <= 0 {
		k = DefaultSearchK
	}
	results, _, err := p.retriever.Retrieve(ctx, query, k, filter)
	return results, err
}

// ExamOptions tunes exam answering. Zero values select the defaults.
type ExamOptions struct {
	K      int
	Filter corpus.Filter
}

// ExamResponse is the verdict for one exam question plus the evidence
// that produced it.
type ExamResponse struct {
	Answer     string                `json:"answer"`
	Reasoning  string                `json:"reasoning"`
	Confidence string                `json:"confidence"`
	Sources    []corpus.SearchResult `json:"sources"`
	NumSources int                   `json:"num_sources"`
}

// AnswerExam answers a multiple-choice question through scenario
// expansion and the strict-JSON exam prompt.
func (p *Pipeline) AnswerExam(ctx context.Context, scenario, question string, options []string, opts ExamOptions) (*ExamResponse, error) {
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("options must not be empty")
	}
	k := opts.K
	if k <= 0 {
		k = DefaultExamK
	}

	results, contextText, err := p.retriever.RetrieveForScenario(ctx, scenario, question, options, k, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("retrieve for scenario: %w", err)
	}
	verdict, err := p.engine.AnswerExam(ctx, scenario, question, options, contextText)
	if err != nil {
		return nil, fmt.Errorf("answer exam: %w", err)
	}

	p.logger.Printf("exam question answered %s (%s confidence, %d sources)",
		verdict.Answer, verdict.Confidence, len(results))
	return &ExamResponse{
		Answer:     verdict.Answer,
		Reasoning:  verdict.Reasoning,
		Confidence: verdict.Confidence,
		Sources:    results,
		NumSources: len(results),
	}, nil
}

// Health reports whether the pipeline can serve queries.
type Health struct {
	Status       string `json:"status"`
	Collection   string `json:"collection"`
	Points       uint64 `json:"points_count"`
	EmbeddingDim int    `json:"embedding_dim"`
	LLMModel     string `json:"llm_model"`
}

func (p *Pipeline) Health(ctx context.Context) (Health, error) {
	info, err := p.index.Describe(ctx)
	if err != nil {
		return Health{Status: "unhealthy"}, err
	}
	return Health{
		Status:       "healthy",
		Collection:   info.Collection,
		Points:       info.PointsCount,
		EmbeddingDim: p.embedder.Dimension(),
		LLMModel:     p.engine.Model(),
	}, nil
}

// ChapterInfo pairs a chapter number with its passage count.
type ChapterInfo struct {
	Chapter  string `json:"chapter"`
	Passages uint64 `json:"passages"`
}

// Chapters lists the corpus chapters with their passage counts.
func (p *Pipeline) Chapters(ctx context.Context) ([]ChapterInfo, error) {
	out := make([]ChapterInfo, 0, len(p.chapters))
	for _, ch := range p.chapters {
		n, err := p.index.Count(ctx, corpus.Filter{Chapter: ch})
		if err != nil {
			return nil, fmt.Errorf("count chapter %s: %w", ch, err)
		}
		out = append(out, ChapterInfo{Chapter: ch, Passages: n})
	}
	return out, nil
}

// RetrievalStats describes the retrieval configuration.
type RetrievalStats struct {
	EmbeddingModel string `json:"embedding_model"`
	Collection     string `json:"collection"`
	EmbeddingDim   int    `json:"embedding_dim"`
}

// Stats is the point-in-time operational summary.
type Stats struct {
	Retrieval RetrievalStats `json:"retrieval"`
	LLM       usage.Stats    `json:"llm"`
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Retrieval: RetrievalStats{
			EmbeddingModel: p.embedder.Model(),
			Collection:     p.index.Collection(),
			EmbeddingDim:   p.embedder.Dimension(),
		},
		LLM: p.tracker.Snapshot(),
	}
}

func (p *Pipeline) llmMetadata(maxTokens int, temperature float64) map[string]any {
	return map[string]any{
		"model":       p.engine.Model(),
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
}

// filterValue keeps absent filters null in JSON output rather than "".
func filterValue(s string) any {
	if s == "" {
		return nil
	}
	return s
}
