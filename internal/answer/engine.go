// Package answer composes grounded answers from retrieved context:
// free-form answers for Q&A and strict-JSON verdicts for
// multiple-choice exam questions.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/studyforge/certrag/internal/llm"
	"github.com/studyforge/certrag/internal/usage"
)

// DefaultMaxTokens bounds free-form answers when the caller does not
// pick a budget.
const DefaultMaxTokens = 2500

// examMaxTokens bounds the strict-JSON exam verdict; a letter plus a
// short justification never needs more.
const examMaxTokens = 1024

// Engine turns a query plus assembled context into answer text. The
// prompt pins the model to the supplied documents.
type Engine struct {
	generator llm.Generator
	tracker   *usage.Tracker
	logger    *log.Logger
}

func NewEngine(generator llm.Generator, tracker *usage.Tracker) *Engine {
	return &Engine{
		generator: generator,
		tracker:   tracker,
		logger:    log.New(log.Writer(), "[ANSWER] ", log.LstdFlags),
	}
}

func (e *Engine) Model() string { return e.generator.Model() }

// Answer generates a free-form answer grounded in contextText.
// maxTokens <= 0 selects DefaultMaxTokens.
func (e *Engine) Answer(ctx context.Context, query, contextText string, maxTokens int, temperature float64) (string, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	raw, u, err := e.generator.Generate(ctx, llm.GenerateRequest{
		Prompt:      answerPrompt(query, contextText),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	e.tracker.Record(e.generator.Model(), u)
	return strings.TrimSpace(raw), nil
}

// ExamAnswer is the structured verdict for one exam question. Answer
// is a bare option letter; Confidence is one of high, medium, low.
type ExamAnswer struct {
	Answer     string `json:"answer"`
	Reasoning  string `json:"reasoning"`
	Confidence string `json:"confidence"`
}

// AnswerExam picks one option for a multiple-choice question, grounded
// in contextText. The model answers in strict JSON; unusable output
// degrades to option A at low confidence rather than an error, so one
// bad completion cannot abort a whole evaluation run.
func (e *Engine) AnswerExam(ctx context.Context, scenario, question string, options []string, contextText string) (ExamAnswer, error) {
	raw, u, err := e.generator.Generate(ctx, llm.GenerateRequest{
		Prompt:    examPrompt(scenario, question, options, contextText),
		MaxTokens: examMaxTokens,
	})
	if err != nil {
		return ExamAnswer{}, fmt.Errorf("generate exam answer: %w", err)
	}
	e.tracker.Record(e.generator.Model(), u)
	return e.parseExamAnswer(raw, len(options)), nil
}

func answerPrompt(query, contextText string) string {
	return fmt.Sprintf(`You have been tasked with helping us to answer the following query:
<query>
%s
</query>

You have access to the following documents which are meant to provide context as you answer the query:
<documents>
%s
</documents>

Please remain faithful to the underlying context, and only deviate from it if you are 100%% sure that you know the answer already.
Answer the question now, and avoid providing preamble such as 'Here is the answer', etc`, query, contextText)
}

func examPrompt(scenario, question string, options []string, contextText string) string {
	letters := make([]string, len(options))
	var opts strings.Builder
	for i, opt := range options {
		letters[i] = optionLetter(i)
		fmt.Fprintf(&opts, "%s. %s\n", letters[i], opt)
	}

	var b strings.Builder
	b.WriteString("You are answering a multiple-choice certification exam question.\n\n")
	fmt.Fprintf(&b, "You have access to the following study material:\n<documents>\n%s\n</documents>\n\n", contextText)
	if scenario != "" {
		fmt.Fprintf(&b, "<scenario>\n%s\n</scenario>\n\n", scenario)
	}
	fmt.Fprintf(&b, "<question>\n%s\n</question>\n\n", question)
	fmt.Fprintf(&b, "<options>\n%s</options>\n\n", opts.String())
	b.WriteString("Base your answer on the study material above. Pick exactly one option.\n")
	fmt.Fprintf(&b, `Respond ONLY as strict JSON with keys:
{"answer": string one of [%s], "reasoning": string, "confidence": string one of [high, medium, low]}`, strings.Join(letters, ", "))
	return b.String()
}

func optionLetter(i int) string { return string(rune('A' + i)) }

// parseExamAnswer tolerates prose around the JSON object and sloppy
// letter formats. Output that names no valid option degrades to A.
func (e *Engine) parseExamAnswer(raw string, numOptions int) ExamAnswer {
	var ans ExamAnswer
	if err := json.Unmarshal([]byte(extractFirstJSON(raw)), &ans); err != nil {
		e.logger.Printf("exam verdict not valid JSON, keeping raw text as reasoning: %v", err)
		return ExamAnswer{Answer: "A", Reasoning: strings.TrimSpace(raw), Confidence: "low"}
	}

	if letter := normalizeLetter(ans.Answer, numOptions); letter != "" {
		ans.Answer = letter
	} else {
		e.logger.Printf("exam verdict names no valid option (%q), defaulting to A", ans.Answer)
		ans.Answer = "A"
		ans.Confidence = "low"
	}
	ans.Reasoning = strings.TrimSpace(ans.Reasoning)
	switch strings.ToLower(ans.Confidence) {
	case "high", "medium", "low":
		ans.Confidence = strings.ToLower(ans.Confidence)
	default:
		ans.Confidence = "low"
	}
	return ans
}

// normalizeLetter reduces answers like "b", "C.", "(D) text" or a
// 1-based position to the bare option letter, or "" when the answer
// names no option in range.
func normalizeLetter(s string, numOptions int) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimLeft(s, "([{\"'")
	if s == "" || numOptions <= 0 {
		return ""
	}
	ch := s[0]
	switch {
	case ch >= 'A' && ch <= 'Z':
		if int(ch-'A') < numOptions {
			return string(ch)
		}
	case ch >= '1' && ch <= '9':
		if int(ch-'1') < numOptions {
			return string(rune('A' + ch - '1'))
		}
	}
	return ""
}

// extractFirstJSON returns the first balanced JSON object in s, or s
// unchanged when none completes.
func extractFirstJSON(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return s
}
