package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/studyforge/certrag/internal/corpus"
	"github.com/studyforge/certrag/internal/index"
	"github.com/studyforge/certrag/internal/pipeline"
	"github.com/studyforge/certrag/internal/retrieval"
)

// QueryRequest is the Q&A payload. Zero-valued knobs select the
// pipeline defaults.
type QueryRequest struct {
	Query             string  `json:"query"`
	K                 int     `json:"k"`
	ChapterFilter     string  `json:"chapter_filter"`
	ContentTypeFilter string  `json:"content_type_filter"`
	UseReranking      bool    `json:"use_reranking"`
	MaxTokens         int     `json:"max_tokens"`
	Temperature       float64 `json:"temperature"`
}

func (r *QueryRequest) validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query is required")
	}
	if r.K != 0 && (r.K < 1 || r.K > 10) {
		return errors.New("k must be between 1 and 10")
	}
	if r.MaxTokens != 0 && (r.MaxTokens < 100 || r.MaxTokens > 4000) {
		return errors.New("max_tokens must be between 100 and 4000")
	}
	if r.Temperature < 0 || r.Temperature > 1 {
		return errors.New("temperature must be between 0 and 1")
	}
	return nil
}

// SearchRequest asks for retrieval only, no answer generation.
type SearchRequest struct {
	Query             string `json:"query"`
	K                 int    `json:"k"`
	ChapterFilter     string `json:"chapter_filter"`
	ContentTypeFilter string `json:"content_type_filter"`
}

func (r *SearchRequest) validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query is required")
	}
	if r.K != 0 && (r.K < 1 || r.K > 20) {
		return errors.New("k must be between 1 and 20")
	}
	return nil
}

// SearchResponse lists scored passages for a search query.
type SearchResponse struct {
	Query      string                `json:"query"`
	Results    []corpus.SearchResult `json:"results"`
	NumResults int                   `json:"num_results"`
}

// ExamRequest is a multiple-choice question payload. Scenario may be
// empty for standalone questions.
type ExamRequest struct {
	Scenario      string   `json:"scenario"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	K             int      `json:"k"`
	ChapterFilter string   `json:"chapter_filter"`
}

func (r *ExamRequest) validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return errors.New("question is required")
	}
	if len(r.Options) < 2 {
		return errors.New("at least two options are required")
	}
	if r.K != 0 && (r.K < 1 || r.K > 20) {
		return errors.New("k must be between 1 and 20")
	}
	return nil
}

// ChaptersResponse lists corpus chapters with passage counts.
type ChaptersResponse struct {
	Chapters []pipeline.ChapterInfo `json:"chapters"`
	Total    int                    `json:"total"`
}

// Handler serves the study API over one shared pipeline.
type Handler struct {
	Pipe Pipeline
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/query", h.query)
	g.POST("/search", h.search)
	g.POST("/exam", h.exam)
	g.GET("/health", h.health)
	g.GET("/chapters", h.chapters)
	g.GET("/stats", h.stats)
}

func (h *Handler) query(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	opts := pipeline.QueryOptions{
		K:           req.K,
		Filter:      corpus.Filter{Chapter: req.ChapterFilter, ContentType: req.ContentTypeFilter},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	ctx := c.Request().Context()
	var (
		resp *pipeline.Response
		err  error
	)
	if req.UseReranking {
		resp, err = h.Pipe.QueryWithRerank(ctx, req.Query, opts)
	} else {
		resp, err = h.Pipe.Query(ctx, req.Query, opts)
	}
	if err != nil {
		return httpError("query", err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	filter := corpus.Filter{Chapter: req.ChapterFilter, ContentType: req.ContentTypeFilter}
	results, err := h.Pipe.Search(c.Request().Context(), req.Query, req.K, filter)
	if err != nil {
		return httpError("search", err)
	}
	return c.JSON(http.StatusOK, SearchResponse{
		Query:      req.Query,
		Results:    results,
		NumResults: len(results),
	})
}

func (h *Handler) exam(c echo.Context) error {
	var req ExamRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	opts := pipeline.ExamOptions{
		K:      req.K,
		Filter: corpus.Filter{Chapter: req.ChapterFilter},
	}
	resp, err := h.Pipe.AnswerExam(c.Request().Context(), req.Scenario, req.Question, req.Options, opts)
	if err != nil {
		return httpError("exam", err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) health(c echo.Context) error {
	info, err := h.Pipe.Health(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("health check failed: %v", err))
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) chapters(c echo.Context) error {
	infos, err := h.Pipe.Chapters(c.Request().Context())
	if err != nil {
		return httpError("chapters", err)
	}
	return c.JSON(http.StatusOK, ChaptersResponse{Chapters: infos, Total: len(infos)})
}

func (h *Handler) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Pipe.Stats())
}

// httpError maps pipeline failures to status codes: embedding
// failures are an upstream problem, index outages are service-level,
// everything else is a plain 500.
func httpError(op string, err error) *echo.HTTPError {
	switch {
	case errors.Is(err, retrieval.ErrEmbedding):
		return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("%s failed: %v", op, err))
	case errors.Is(err, index.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("%s failed: %v", op, err))
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("%s failed: %v", op, err))
	}
}
