// Package exam parses multiple-choice exam questions from their text
// interchange formats and scores the pipeline against them.
package exam

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Question is one multiple-choice exam item. Options are an ordered
// list; the letter for option i is 'A'+i.
type Question struct {
	ID            string   `json:"id"`
	Scenario      string   `json:"scenario"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
	Chapter       string   `json:"chapter,omitempty"`
}

type section int

const (
	sectionScenario section = iota
	sectionQuestion
	sectionOptions
	sectionExplanation
)

var (
	labeledOptionRe = regexp.MustCompile(`^([A-D]|[1-4])\.\s*(.+)$`)
	answerLineRe    = regexp.MustCompile(`(?i)^(?:Correct answer|Answer):\s*(.+)$`)
)

// ParseQuestion parses one exam question from its text form. Two
// layouts are accepted: labeled options ("A. ..." or "1. ...") closed
// by a "Correct answer: X" line, and unlabeled options introduced by a
// bare "answer" line. Scenario lines run until the first line ending
// in "?", which starts the question.
func ParseQuestion(text, id string) Question {
	var (
		scenarioLines    []string
		questionLines    []string
		options          []string
		correctAnswer    string
		explanationLines []string
	)

	current := sectionScenario
	unlabeled := false

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := labeledOptionRe.FindStringSubmatch(line); m != nil &&
			(current == sectionQuestion || current == sectionOptions) {
			current = sectionOptions
			unlabeled = false
			options = append(options, m[2])
			continue
		}

		if m := answerLineRe.FindStringSubmatch(line); m != nil {
			current = sectionExplanation
			correctAnswer = strings.TrimSpace(m[1])
			continue
		}

		if strings.EqualFold(line, "answer") && current == sectionQuestion {
			current = sectionOptions
			unlabeled = true
			continue
		}

		switch current {
		case sectionScenario:
			if strings.HasSuffix(line, "?") {
				current = sectionQuestion
				questionLines = append(questionLines, line)
			} else {
				scenarioLines = append(scenarioLines, line)
			}
		case sectionQuestion:
			questionLines = append(questionLines, line)
		case sectionOptions:
			if unlabeled {
				options = append(options, line)
			}
		case sectionExplanation:
			explanationLines = append(explanationLines, line)
		}
	}

	if id == "" {
		id = "unknown"
	}
	return Question{
		ID:            id,
		Scenario:      strings.Join(scenarioLines, " "),
		Question:      strings.Join(questionLines, " "),
		Options:       options,
		CorrectAnswer: correctAnswer,
		Explanation:   strings.Join(explanationLines, " "),
	}
}

// Letter returns the option letter for a zero-based position.
func Letter(i int) string { return string(rune('A' + i)) }

// CorrectLetter reduces the correct-answer field, which files write as
// a bare letter, a 1-based position, or the full option text, to the
// option letter. Returns "" when no option can be identified.
func (q Question) CorrectLetter() string {
	raw := strings.TrimSpace(q.CorrectAnswer)
	if raw == "" {
		return ""
	}
	for i, opt := range q.Options {
		if strings.EqualFold(raw, strings.TrimSpace(opt)) {
			return Letter(i)
		}
	}

	s := strings.ToUpper(raw)
	n := len(q.Options)
	ch := s[0]
	switch {
	case ch >= 'A' && ch <= 'Z':
		if n == 0 || int(ch-'A') < n {
			return string(ch)
		}
	case ch >= '1' && ch <= '9':
		if idx := int(ch - '1'); n == 0 || idx < n {
			return Letter(idx)
		}
	}
	return ""
}

// LoadQuestions reads exam questions from path. A .json file holds an
// array of Question objects; any other extension is parsed as plain
// text with questions separated by lines of three or more dashes.
// Questions without an id get sequential Q1, Q2, ... ids.
func LoadQuestions(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}

	var questions []Question
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
		for i := range questions {
			if questions[i].ID == "" {
				questions[i].ID = fmt.Sprintf("Q%d", i+1)
			}
		}
		return questions, nil
	}

	for i, block := range splitQuestionBlocks(string(data)) {
		questions = append(questions, ParseQuestion(block, fmt.Sprintf("Q%d", i+1)))
	}
	return questions, nil
}

func splitQuestionBlocks(text string) []string {
	var blocks []string
	var current []string
	flush := func() {
		if block := strings.TrimSpace(strings.Join(current, "\n")); block != "" {
			blocks = append(blocks, block)
		}
		current = current[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if isSeparator(line) {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

// isSeparator matches lines of three or more dashes.
func isSeparator(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) < 3 {
		return false
	}
	for _, r := range line {
		if r != '-' {
			return false
		}
	}
	return true
}
