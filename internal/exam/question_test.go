package exam

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseQuestionLabeled(t *testing.T) {
	text := `A large corporation has recently experienced a significant data breach.
The CEO wants to ensure that such a breach does not happen again.
Which of the following options would be the MOST effective?
A. Implementing a dedicated incident response team
B. Hiring an external firm for penetration testing
C. Conducting regular security training
D. Increasing the IT budget
Correct answer: A
An incident response team covers both prevention and detection.`

	q := ParseQuestion(text, "Q1")
	if q.ID != "Q1" {
		t.Fatalf("id = %q", q.ID)
	}
	if q.Scenario != "A large corporation has recently experienced a significant data breach. The CEO wants to ensure that such a breach does not happen again." {
		t.Fatalf("scenario = %q", q.Scenario)
	}
	if q.Question != "Which of the following options would be the MOST effective?" {
		t.Fatalf("question = %q", q.Question)
	}
	wantOptions := []string{
		"Implementing a dedicated incident response team",
		"Hiring an external firm for penetration testing",
		"Conducting regular security training",
		"Increasing the IT budget",
	}
	if !reflect.DeepEqual(q.Options, wantOptions) {
		t.Fatalf("options = %v", q.Options)
	}
	if q.CorrectAnswer != "A" {
		t.Fatalf("correct answer = %q", q.CorrectAnswer)
	}
	if q.Explanation != "An incident response team covers both prevention and detection." {
		t.Fatalf("explanation = %q", q.Explanation)
	}
}

func TestParseQuestionNumericLabels(t *testing.T) {
	text := `Which port does HTTPS use?
1. 80
2. 443
3. 22
4. 3389
Answer: 2`

	q := ParseQuestion(text, "")
	if q.ID != "unknown" {
		t.Fatalf("default id = %q", q.ID)
	}
	if q.Scenario != "" {
		t.Fatalf("scenario should be empty, got %q", q.Scenario)
	}
	if !reflect.DeepEqual(q.Options, []string{"80", "443", "22", "3389"}) {
		t.Fatalf("options = %v", q.Options)
	}
	if q.CorrectAnswer != "2" {
		t.Fatalf("correct answer = %q", q.CorrectAnswer)
	}
}

func TestParseQuestionUnlabeled(t *testing.T) {
	text := `You are hardening a wireless network for a small office.
Which encryption protocol should you choose?
answer
WPA3
WEP
WPA
TKIP`

	q := ParseQuestion(text, "Q7")
	if q.Question != "Which encryption protocol should you choose?" {
		t.Fatalf("question = %q", q.Question)
	}
	if !reflect.DeepEqual(q.Options, []string{"WPA3", "WEP", "WPA", "TKIP"}) {
		t.Fatalf("options = %v", q.Options)
	}
	if q.CorrectAnswer != "" {
		t.Fatalf("unlabeled format carries no answer line, got %q", q.CorrectAnswer)
	}
}

func TestParseQuestionMultiLineQuestion(t *testing.T) {
	text := `The SOC reports repeated failed logins.
What should the analyst do FIRST?
Consider the incident response lifecycle.
A. Contain the host
B. Review authentication logs
Correct answer: B`

	q := ParseQuestion(text, "Q2")
	if q.Question != "What should the analyst do FIRST? Consider the incident response lifecycle." {
		t.Fatalf("question = %q", q.Question)
	}
	if len(q.Options) != 2 {
		t.Fatalf("options = %v", q.Options)
	}
}

func TestParseQuestionOptionLikeScenarioLine(t *testing.T) {
	// "A. Smith" only counts as an option once the question started.
	text := `A. Smith is the new security administrator at a bank.
What should A. Smith configure first?
A. Firewall rules
B. Password policy
Correct answer: A`

	q := ParseQuestion(text, "Q3")
	if q.Scenario != "A. Smith is the new security administrator at a bank." {
		t.Fatalf("scenario = %q", q.Scenario)
	}
	if !reflect.DeepEqual(q.Options, []string{"Firewall rules", "Password policy"}) {
		t.Fatalf("options = %v", q.Options)
	}
}

func TestCorrectLetter(t *testing.T) {
	options := []string{"Phishing", "Vishing", "Smishing", "Whaling"}
	cases := []struct {
		answer string
		want   string
	}{
		{"A", "A"},
		{"b", "B"},
		{"B. Disable SSID broadcast", "B"},
		{"2", "B"},
		{"Vishing", "B"},
		{"vishing", "B"},
		{"F", ""},
		{"9", ""},
		{"", ""},
	}
	for _, tc := range cases {
		q := Question{Options: options, CorrectAnswer: tc.answer}
		if got := q.CorrectLetter(); got != tc.want {
			t.Fatalf("CorrectLetter(%q) = %q, want %q", tc.answer, got, tc.want)
		}
	}
}

func TestLoadQuestionsText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.txt")
	content := `First scenario here.
First question?
A. One
B. Two
Correct answer: A
---
Second scenario here.
Second question?
A. Three
B. Four
Correct answer: B
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	questions, err := LoadQuestions(path)
	if err != nil {
		t.Fatalf("LoadQuestions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].ID != "Q1" || questions[1].ID != "Q2" {
		t.Fatalf("ids = %q, %q", questions[0].ID, questions[1].ID)
	}
	if questions[0].CorrectAnswer != "A" || questions[1].CorrectAnswer != "B" {
		t.Fatalf("answers = %q, %q", questions[0].CorrectAnswer, questions[1].CorrectAnswer)
	}
	if questions[1].Question != "Second question?" {
		t.Fatalf("question = %q", questions[1].Question)
	}
}

func TestLoadQuestionsJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.json")
	content := `[
  {"scenario": "s", "question": "q?", "options": ["a", "b"], "correct_answer": "A", "chapter": "2"},
  {"id": "custom", "question": "q2?", "options": ["c", "d"], "correct_answer": "B"}
]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	questions, err := LoadQuestions(path)
	if err != nil {
		t.Fatalf("LoadQuestions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].ID != "Q1" || questions[0].Chapter != "2" {
		t.Fatalf("first question: %+v", questions[0])
	}
	if questions[1].ID != "custom" {
		t.Fatalf("explicit id lost: %+v", questions[1])
	}
}

func TestLoadQuestionsMissingFile(t *testing.T) {
	if _, err := LoadQuestions(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
