// Package server exposes the question answering pipeline as a REST
// API: Q&A with optional reranking, semantic search, exam answering
// and operational endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studyforge/certrag/internal/corpus"
	"github.com/studyforge/certrag/internal/pipeline"
)

// Pipeline is the slice of the answering pipeline the HTTP layer
// consumes.
type Pipeline interface {
	Query(ctx context.Context, query string, opts pipeline.QueryOptions) (*pipeline.Response, error)
	QueryWithRerank(ctx context.Context, query string, opts pipeline.QueryOptions) (*pipeline.Response, error)
	Search(ctx context.Context, query string, k int, filter corpus.Filter) ([]corpus.SearchResult, error)
	AnswerExam(ctx context.Context, scenario, question string, options []string, opts pipeline.ExamOptions) (*pipeline.ExamResponse, error)
	Health(ctx context.Context) (pipeline.Health, error)
	Chapters(ctx context.Context) ([]pipeline.ChapterInfo, error)
	Stats() pipeline.Stats
}

var _ Pipeline = (*pipeline.Pipeline)(nil)

// Options carries the server's own settings; everything the handlers
// need beyond these lives in the pipeline.
type Options struct {
	// JWTSecret protects the /api group when non-empty. Probes and
	// metrics stay open either way.
	JWTSecret []byte
	// Debug turns on echo's verbose error output.
	Debug bool
}

// New assembles the echo router with middleware, probes and the /api
// route group.
func New(pipe Pipeline, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Debug = opts.Debug
	e.Use(middleware.Recover())

	logger := log.New(log.Writer(), "[SERVER] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))

	e.GET("/", describe)
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	if len(opts.JWTSecret) > 0 {
		api.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, opts.JWTSecret) })
	}
	h := &Handler{Pipe: pipe}
	h.Register(api)
	return e
}

// Run serves the API until the listener fails or the process exits.
func Run(addr string, pipe Pipeline, opts Options) error {
	if addr == "" {
		addr = ":8000"
	}
	e := New(pipe, opts)
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

func describe(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "CompTIA Security+ study assistant API",
		"endpoints": map[string]string{
			"query":    "POST /api/query",
			"search":   "POST /api/search",
			"exam":     "POST /api/exam",
			"health":   "GET /api/health",
			"chapters": "GET /api/chapters",
			"stats":    "GET /api/stats",
		},
	})
}
