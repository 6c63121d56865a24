package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/studyforge/certrag/internal/answer"
	"github.com/studyforge/certrag/internal/corpus"
	"github.com/studyforge/certrag/internal/index"
	"github.com/studyforge/certrag/internal/llm"
	"github.com/studyforge/certrag/internal/retrieval"
	"github.com/studyforge/certrag/internal/usage"
)

type stubRetriever struct {
	results     []corpus.SearchResult
	contextText string
	err         error

	calls      int
	lastQuery  string
	lastK      int
	lastFilter corpus.Filter

	scenarioResults []corpus.SearchResult
	scenarioContext string
	scenarioErr     error
	lastScenario    string
	lastOptions     []string
}

func (r *stubRetriever) Retrieve(ctx context.Context, query string, k int, filter corpus.Filter) ([]corpus.SearchResult, string, error) {
	r.calls++
	r.lastQuery, r.lastK, r.lastFilter = query, k, filter
	return r.results, r.contextText, r.err
}

func (r *stubRetriever) RetrieveForScenario(ctx context.Context, scenario, question string, options []string, k int, filter corpus.Filter) ([]corpus.SearchResult, string, error) {
	r.calls++
	r.lastScenario, r.lastQuery, r.lastOptions = scenario, question, options
	r.lastK, r.lastFilter = k, filter
	return r.scenarioResults, r.scenarioContext, r.scenarioErr
}

type stubReranker struct {
	out            []corpus.SearchResult
	calls          int
	lastK          int
	lastCandidates []corpus.SearchResult
}

func (r *stubReranker) Rerank(ctx context.Context, query string, candidates []corpus.SearchResult, k int) []corpus.SearchResult {
	r.calls++
	r.lastK, r.lastCandidates = k, candidates
	if r.out != nil {
		return r.out
	}
	if len(candidates) > k {
		return candidates[:k]
	}
	return candidates
}

func (r *stubReranker) Model() string { return "stub-judge" }

type stubAnswerer struct {
	answerText string
	err        error
	verdict    answer.ExamAnswer
	examErr    error

	calls           int
	lastQuery       string
	lastContext     string
	lastMaxTokens   int
	lastTemperature float64
	lastScenario    string
	lastOptions     []string
}

func (a *stubAnswerer) Answer(ctx context.Context, query, contextText string, maxTokens int, temperature float64) (string, error) {
	a.calls++
	a.lastQuery, a.lastContext = query, contextText
	a.lastMaxTokens, a.lastTemperature = maxTokens, temperature
	return a.answerText, a.err
}

func (a *stubAnswerer) AnswerExam(ctx context.Context, scenario, question string, options []string, contextText string) (answer.ExamAnswer, error) {
	a.calls++
	a.lastScenario, a.lastQuery, a.lastOptions = scenario, question, options
	a.lastContext = contextText
	return a.verdict, a.examErr
}

func (a *stubAnswerer) Model() string { return "gen-model" }

type stubIndex struct {
	info        index.Info
	describeErr error
	counts      map[string]uint64
	countErr    error
}

func (s *stubIndex) Collection() string { return "test_corpus" }
func (s *stubIndex) Dimension() int     { return 4 }

func (s *stubIndex) Describe(ctx context.Context) (index.Info, error) {
	if s.describeErr != nil {
		return index.Info{}, s.describeErr
	}
	return s.info, nil
}

func (s *stubIndex) Count(ctx context.Context, f corpus.Filter) (uint64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.counts[f.Chapter], nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}
func (stubEmbedder) Model() string  { return "embed-model" }
func (stubEmbedder) Dimension() int { return 1536 }

func sr(id string, score float64) corpus.SearchResult {
	return corpus.SearchResult{
		Passage: corpus.Passage{ChunkID: id, Content: "content " + id, Summary: "summary " + id, SectionHeader: "header " + id},
		Score:   score,
	}
}

func newFixture() (*Pipeline, *stubRetriever, *stubReranker, *stubAnswerer, *stubIndex) {
	ret := &stubRetriever{}
	rer := &stubReranker{}
	ans := &stubAnswerer{}
	idx := &stubIndex{counts: map[string]uint64{}}
	p := New(Components{
		Retriever: ret,
		Reranker:  rer,
		Engine:    ans,
		Index:     idx,
		Embedder:  stubEmbedder{},
		Tracker:   usage.NewTracker(),
	})
	return p, ret, rer, ans, idx
}

func TestQueryDefaults(t *testing.T) {
	p, ret, _, ans, _ := newFixture()
	ret.results = []corpus.SearchResult{sr("a", 0.9), sr("b", 0.8)}
	ret.contextText = "CTX"
	ans.answerText = "An answer."

	resp, err := p.Query(context.Background(), "what is zero trust?", QueryOptions{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if ret.lastQuery != "what is zero trust?" || ret.lastK != DefaultK {
		t.Fatalf("retriever got query=%q k=%d", ret.lastQuery, ret.lastK)
	}
	if ans.lastContext != "CTX" || ans.lastMaxTokens != answer.DefaultMaxTokens || ans.lastTemperature != 0 {
		t.Fatalf("answerer request wrong: ctx=%q max=%d temp=%v", ans.lastContext, ans.lastMaxTokens, ans.lastTemperature)
	}

	if resp.Query != "what is zero trust?" || resp.Answer != "An answer." || resp.NumSources != 2 {
		t.Fatalf("response envelope wrong: %+v", resp)
	}
	if !reflect.DeepEqual(resp.Sources, ret.results) {
		t.Fatalf("sources = %+v", resp.Sources)
	}
	if resp.RetrievalMetadata["k"] != DefaultK || resp.RetrievalMetadata["context_length"] != 3 {
		t.Fatalf("retrieval metadata wrong: %+v", resp.RetrievalMetadata)
	}
	if resp.RetrievalMetadata["chapter_filter"] != nil {
		t.Fatalf("absent filter must be nil: %+v", resp.RetrievalMetadata)
	}
	if resp.LLMMetadata["model"] != "gen-model" || resp.LLMMetadata["max_tokens"] != answer.DefaultMaxTokens {
		t.Fatalf("llm metadata wrong: %+v", resp.LLMMetadata)
	}
}

func TestQueryForwardsOptions(t *testing.T) {
	p, ret, _, ans, _ := newFixture()
	filter := corpus.Filter{Chapter: "2", ContentType: corpus.ContentTypeText}

	resp, err := p.Query(context.Background(), "q", QueryOptions{K: 7, Filter: filter, MaxTokens: 500, Temperature: 0.3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if ret.lastK != 7 || ret.lastFilter != filter {
		t.Fatalf("retriever got k=%d filter=%+v", ret.lastK, ret.lastFilter)
	}
	if ans.lastMaxTokens != 500 || ans.lastTemperature != 0.3 {
		t.Fatalf("answerer knobs wrong: %d %v", ans.lastMaxTokens, ans.lastTemperature)
	}
	if resp.RetrievalMetadata["chapter_filter"] != "2" || resp.RetrievalMetadata["content_type_filter"] != corpus.ContentTypeText {
		t.Fatalf("filter metadata wrong: %+v", resp.RetrievalMetadata)
	}
}

func TestQueryErrors(t *testing.T) {
	p, ret, _, ans, _ := newFixture()

	if _, err := p.Query(context.Background(), "", QueryOptions{}); err == nil {
		t.Fatalf("empty query must be rejected")
	}
	if ret.calls != 0 {
		t.Fatalf("rejected query must not retrieve")
	}

	boom := errors.New("index offline")
	ret.err = boom
	if _, err := p.Query(context.Background(), "q", QueryOptions{}); !errors.Is(err, boom) {
		t.Fatalf("retrieve error lost: %v", err)
	}
	if ans.calls != 0 {
		t.Fatalf("failed retrieval must not generate")
	}

	ret.err = nil
	ans.err = errors.New("provider down")
	if _, err := p.Query(context.Background(), "q", QueryOptions{}); err == nil {
		t.Fatalf("answer error must propagate")
	}
}

func TestQueryWithRerankFlow(t *testing.T) {
	p, ret, rer, ans, _ := newFixture()
	candidates := []corpus.SearchResult{sr("a", 0.9), sr("b", 0.8), sr("c", 0.7), sr("d", 0.6), sr("e", 0.5)}
	ret.results = candidates
	ret.contextText = "RAW CONTEXT, UNUSED"
	rer.out = []corpus.SearchResult{sr("c", 1.0), sr("a", 0.95)}
	ans.answerText = "refined"

	resp, err := p.QueryWithRerank(context.Background(), "q", QueryOptions{K: 2})
	if err != nil {
		t.Fatalf("QueryWithRerank: %v", err)
	}

	if ret.lastK != DefaultInitialK {
		t.Fatalf("oversample k = %d, want %d", ret.lastK, DefaultInitialK)
	}
	if rer.lastK != 2 || !reflect.DeepEqual(rer.lastCandidates, candidates) {
		t.Fatalf("reranker got k=%d candidates=%v", rer.lastK, rer.lastCandidates)
	}
	// Context is rebuilt from the reranked subset, not the raw pull.
	if want := retrieval.BuildContext(rer.out); ans.lastContext != want {
		t.Fatalf("answer context = %q, want rebuilt %q", ans.lastContext, want)
	}
	if !reflect.DeepEqual(resp.Sources, rer.out) || resp.NumSources != 2 {
		t.Fatalf("response sources wrong: %+v", resp.Sources)
	}
	if resp.RetrievalMetadata["initial_k"] != DefaultInitialK || resp.RetrievalMetadata["reranker_model"] != "stub-judge" {
		t.Fatalf("rerank metadata wrong: %+v", resp.RetrievalMetadata)
	}
}

func TestQueryWithRerankInitialKFloor(t *testing.T) {
	p, ret, _, _, _ := newFixture()

	if _, err := p.QueryWithRerank(context.Background(), "q", QueryOptions{K: 8, InitialK: 5}); err != nil {
		t.Fatalf("QueryWithRerank: %v", err)
	}
	// The pool can never be smaller than the requested k.
	if ret.lastK != 8 {
		t.Fatalf("oversample k = %d, want 8", ret.lastK)
	}
}

func TestSearch(t *testing.T) {
	p, ret, _, ans, _ := newFixture()
	ret.results = []corpus.SearchResult{sr("a", 0.9)}

	results, err := p.Search(context.Background(), "q", 0, corpus.Filter{Chapter: "1"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ret.lastK != DefaultSearchK || ret.lastFilter.Chapter != "1" {
		t.Fatalf("search request wrong: k=%d filter=%+v", ret.lastK, ret.lastFilter)
	}
	if len(results) != 1 || ans.calls != 0 {
		t.Fatalf("search must retrieve without generating: %d results, %d generations", len(results), ans.calls)
	}

	if _, err := p.Search(context.Background(), "", 5, corpus.Filter{}); err == nil {
		t.Fatalf("empty query must be rejected")
	}
}

func TestAnswerExamFlow(t *testing.T) {
	p, ret, _, ans, _ := newFixture()
	ret.scenarioResults = []corpus.SearchResult{sr("a", 0.9), sr("b", 0.8), sr("c", 0.7)}
	ret.scenarioContext = "SCENARIO CTX"
	ans.verdict = answer.ExamAnswer{Answer: "B", Reasoning: "because", Confidence: "high"}
	options := []string{"One", "Two", "Three", "Four"}

	resp, err := p.AnswerExam(context.Background(), "scen", "which?", options, ExamOptions{})
	if err != nil {
		t.Fatalf("AnswerExam: %v", err)
	}

	if ret.lastScenario != "scen" || ret.lastK != DefaultExamK || !reflect.DeepEqual(ret.lastOptions, options) {
		t.Fatalf("scenario retrieval wrong: %q k=%d options=%v", ret.lastScenario, ret.lastK, ret.lastOptions)
	}
	if ans.lastContext != "SCENARIO CTX" {
		t.Fatalf("exam answer context = %q", ans.lastContext)
	}
	if resp.Answer != "B" || resp.Confidence != "high" || resp.NumSources != 3 {
		t.Fatalf("exam response wrong: %+v", resp)
	}

	if _, err := p.AnswerExam(context.Background(), "s", "", options, ExamOptions{}); err == nil {
		t.Fatalf("empty question must be rejected")
	}
	if _, err := p.AnswerExam(context.Background(), "s", "q", nil, ExamOptions{}); err == nil {
		t.Fatalf("empty options must be rejected")
	}
}

func TestHealth(t *testing.T) {
	p, _, _, _, idx := newFixture()
	idx.info = index.Info{Collection: "test_corpus", PointsCount: 42, VectorSize: 4, Status: "Green"}

	h, err := p.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	want := Health{Status: "healthy", Collection: "test_corpus", Points: 42, EmbeddingDim: 1536, LLMModel: "gen-model"}
	if h != want {
		t.Fatalf("health = %+v, want %+v", h, want)
	}

	idx.describeErr = index.ErrUnavailable
	h, err = p.Health(context.Background())
	if err == nil || h.Status != "unhealthy" {
		t.Fatalf("unreachable index must fail health: %+v err=%v", h, err)
	}
}

func TestChapters(t *testing.T) {
	ret := &stubRetriever{}
	idx := &stubIndex{counts: map[string]uint64{"1": 10, "2": 7}}
	p := New(Components{
		Retriever: ret, Reranker: &stubReranker{}, Engine: &stubAnswerer{},
		Index: idx, Embedder: stubEmbedder{},
		Chapters: []string{"1", "2"},
	})

	chapters, err := p.Chapters(context.Background())
	if err != nil {
		t.Fatalf("Chapters: %v", err)
	}
	want := []ChapterInfo{{Chapter: "1", Passages: 10}, {Chapter: "2", Passages: 7}}
	if !reflect.DeepEqual(chapters, want) {
		t.Fatalf("chapters = %+v, want %+v", chapters, want)
	}

	idx.countErr = index.ErrUnavailable
	if _, err := p.Chapters(context.Background()); !errors.Is(err, index.ErrUnavailable) {
		t.Fatalf("count error lost: %v", err)
	}
}

func TestChaptersDefault(t *testing.T) {
	p, _, _, _, _ := newFixture()
	chapters, err := p.Chapters(context.Background())
	if err != nil {
		t.Fatalf("Chapters: %v", err)
	}
	if len(chapters) != len(DefaultChapters) {
		t.Fatalf("expected default chapter list, got %+v", chapters)
	}
}

func TestStats(t *testing.T) {
	p, _, _, _, _ := newFixture()
	p.Tracker().Record("gen-model", llm.Usage{InputTokens: 100, OutputTokens: 10})

	stats := p.Stats()
	wantRetrieval := RetrievalStats{EmbeddingModel: "embed-model", Collection: "test_corpus", EmbeddingDim: 1536}
	if stats.Retrieval != wantRetrieval {
		t.Fatalf("retrieval stats = %+v", stats.Retrieval)
	}
	if stats.LLM.TotalInputTokens != 100 || stats.LLM.TotalOutputTokens != 10 {
		t.Fatalf("llm stats = %+v", stats.LLM)
	}
}
