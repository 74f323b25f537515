package evaluate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestEvaluateExtractsScore(t *testing.T) {
	stub := &stubGenerator{response: "Score: 7/10\nGood understanding"}
	evaluator := NewEvaluator(stub, nil, zap.NewNop())

	score, feedback, err := evaluator.Evaluate(context.Background(), "What is SQL?", "A query language.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 7 {
		t.Fatalf("expected score 7, got %d", score)
	}
	if feedback != "Score: 7/10\nGood understanding" {
		t.Fatalf("expected full generated text as feedback, got %q", feedback)
	}

	if !strings.Contains(stub.lastPrompt, "Question: What is SQL?") {
		t.Fatalf("prompt missing question: %q", stub.lastPrompt)
	}
	if !strings.Contains(stub.lastPrompt, "Answer: A query language.") {
		t.Fatalf("prompt missing answer: %q", stub.lastPrompt)
	}
}

func TestEvaluateGeneratorError(t *testing.T) {
	stub := &stubGenerator{err: errors.New("quota exceeded")}
	evaluator := NewEvaluator(stub, nil, zap.NewNop())

	_, _, err := evaluator.Evaluate(context.Background(), "q", "a")
	if !errors.Is(err, ErrModelInvocation) {
		t.Fatalf("expected ErrModelInvocation, got %v", err)
	}
}

func TestScoreLineParser(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"score with denominator", "Score: 7/10\nGood understanding", 7},
		{"lowercase marker", "your score is 9.", 9},
		{"no score line", "Decent answer overall.", 0},
		{"score line without digits", "Score: excellent", 0},
		{"marker on later line", "Well argued.\nFinal score: 4", 4},
		{"out of range clamped", "Score: 95", 10},
		{"empty input", "", 0},
	}

	parser := ScoreLineParser{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, feedback := parser.Parse(tc.raw)
			if got != tc.want {
				t.Fatalf("Parse(%q) score = %d, want %d", tc.raw, got, tc.want)
			}
			if feedback != tc.raw {
				t.Fatalf("feedback should be the raw text, got %q", feedback)
			}
		})
	}
}

func TestGenerateQuestions(t *testing.T) {
	stub := &stubGenerator{response: "- What is a table?\n\n2. What is a primary key?\n* What is a join?\nWhat is an index?"}
	evaluator := NewEvaluator(stub, nil, zap.NewNop())

	questions, err := evaluator.GenerateQuestions(context.Background(), "SQL", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"What is a table?", "What is a primary key?", "What is a join?"}
	if len(questions) != len(want) {
		t.Fatalf("expected %d questions, got %d: %v", len(want), len(questions), questions)
	}
	for i := range want {
		if questions[i] != want[i] {
			t.Fatalf("question %d: got %q, want %q", i, questions[i], want[i])
		}
	}
}

func TestGenerateQuestionsFewerThanRequested(t *testing.T) {
	stub := &stubGenerator{response: "- Only one question?"}
	evaluator := NewEvaluator(stub, nil, zap.NewNop())

	questions, err := evaluator.GenerateQuestions(context.Background(), "Python", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected the single question with no backfill, got %v", questions)
	}
}

func TestGenerateQuestionsEmptyOutput(t *testing.T) {
	stub := &stubGenerator{response: "\n  \n- \n"}
	evaluator := NewEvaluator(stub, nil, zap.NewNop())

	_, err := evaluator.GenerateQuestions(context.Background(), "Python", 3)
	if !errors.Is(err, ErrEmptyGeneration) {
		t.Fatalf("expected ErrEmptyGeneration, got %v", err)
	}
}
