package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/studyforge/certrag/internal/corpus"
	"github.com/studyforge/certrag/internal/pipeline"
	"github.com/studyforge/certrag/internal/usage"
)

// DefaultEvalK sizes exam retrieval; scenario questions need a wider
// evidence pool than plain Q&A.
const DefaultEvalK = 10

// Answerer is the slice of the pipeline the evaluator drives.
type Answerer interface {
	AnswerExam(ctx context.Context, scenario, question string, options []string, opts pipeline.ExamOptions) (*pipeline.ExamResponse, error)
}

var _ Answerer = (*pipeline.Pipeline)(nil)

// Evaluator scores the pipeline against exam questions with known
// correct answers.
type Evaluator struct {
	pipe    Answerer
	tracker *usage.Tracker
	logger  *log.Logger
}

func NewEvaluator(pipe Answerer, tracker *usage.Tracker) *Evaluator {
	if tracker == nil {
		tracker = usage.NewTracker()
	}
	return &Evaluator{
		pipe:    pipe,
		tracker: tracker,
		logger:  log.New(log.Writer(), "[EVAL] ", log.LstdFlags),
	}
}

// Result records one scored question.
type Result struct {
	QuestionID      string `json:"question_id"`
	Correct         bool   `json:"correct"`
	PredictedAnswer string `json:"predicted_answer"`
	ActualAnswer    string `json:"actual_answer"`
	Reasoning       string `json:"reasoning"`
	Confidence      string `json:"confidence"`
	NumSources      int    `json:"num_sources"`
}

// Summary aggregates one evaluation run. Accuracy is a percentage.
type Summary struct {
	RunID           string      `json:"run_id"`
	TotalQuestions  int         `json:"total_questions"`
	Correct         int         `json:"correct"`
	Incorrect       int         `json:"incorrect"`
	Accuracy        float64     `json:"accuracy"`
	Usage           usage.Stats `json:"usage"`
	CostPerQuestion float64     `json:"cost_per_question"`
	Results         []Result    `json:"results"`
}

// EvaluateQuestion scores one question. The question's own chapter
// restricts retrieval unless chapterFilter overrides it.
func (e *Evaluator) EvaluateQuestion(ctx context.Context, q Question, k int, chapterFilter string) (Result, error) {
	if k <= 0 {
		k = DefaultEvalK
	}
	filter := corpus.Filter{Chapter: chapterFilter}
	if filter.Chapter == "" {
		filter.Chapter = q.Chapter
	}

	resp, err := e.pipe.AnswerExam(ctx, q.Scenario, q.Question, q.Options, pipeline.ExamOptions{K: k, Filter: filter})
	if err != nil {
		return Result{}, fmt.Errorf("question %s: %w", q.ID, err)
	}

	actual := q.CorrectLetter()
	recorded := actual
	if recorded == "" {
		recorded = q.CorrectAnswer
	}
	return Result{
		QuestionID:      q.ID,
		Correct:         actual != "" && resp.Answer == actual,
		PredictedAnswer: resp.Answer,
		ActualAnswer:    recorded,
		Reasoning:       resp.Reasoning,
		Confidence:      resp.Confidence,
		NumSources:      resp.NumSources,
	}, nil
}

// Evaluate scores every question in order and aggregates the run. A
// question that fails outright (retrieval or generation error) aborts
// the run with the partial summary discarded.
func (e *Evaluator) Evaluate(ctx context.Context, questions []Question, k int, chapterFilter string) (Summary, error) {
	runID := uuid.NewString()
	e.logger.Printf("run %s: evaluating %d questions (k=%d)", runID, len(questions), k)

	summary := Summary{RunID: runID, Results: make([]Result, 0, len(questions))}
	for i, q := range questions {
		res, err := e.EvaluateQuestion(ctx, q, k, chapterFilter)
		if err != nil {
			return Summary{RunID: runID}, err
		}
		summary.Results = append(summary.Results, res)
		if res.Correct {
			summary.Correct++
		}
		e.logger.Printf("[%d/%d] %s: predicted=%s actual=%s correct=%t",
			i+1, len(questions), q.ID, res.PredictedAnswer, res.ActualAnswer, res.Correct)
	}

	summary.TotalQuestions = len(summary.Results)
	summary.Incorrect = summary.TotalQuestions - summary.Correct
	summary.Usage = e.tracker.Snapshot()
	if summary.TotalQuestions > 0 {
		summary.Accuracy = float64(summary.Correct) / float64(summary.TotalQuestions) * 100
		summary.CostPerQuestion = summary.Usage.TotalCost / float64(summary.TotalQuestions)
	}

	e.logger.Printf("run %s: %d/%d correct (%.1f%%), $%.4f total",
		runID, summary.Correct, summary.TotalQuestions, summary.Accuracy, summary.Usage.TotalCost)
	return summary, nil
}

// WriteReport saves the summary as indented JSON.
func WriteReport(path string, summary Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
