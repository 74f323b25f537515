package evaluate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

var (
	// ErrModelInvocation marks a failed generation call. Recoverable: the
	// caller may retry the affected step.
	ErrModelInvocation = errors.New("model invocation failed")

	// ErrEmptyGeneration marks a generation that produced no usable content.
	ErrEmptyGeneration = errors.New("model returned no usable content")
)

// ContentGenerator is the external text-generation capability. Generation is
// expensive and assumed deterministic enough under fixed decoding, so each
// operation calls it exactly once with no retry.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// ResponseParser turns free-form evaluator output into a score and feedback.
// The contract: extract the first integer on the first line containing a
// score marker, default 0. Kept behind an interface so a structured-output
// contract can replace it without touching the session engine.
type ResponseParser interface {
	Parse(raw string) (score int, feedback string)
}

const defaultMaxLogLength = 200

// Evaluator scores free-text answers and generates interview questions.
type Evaluator struct {
	generator ContentGenerator
	parser    ResponseParser
	log       *zap.Logger
	maxLogLen int
}

func NewEvaluator(generator ContentGenerator, parser ResponseParser, log *zap.Logger) *Evaluator {
	if parser == nil {
		parser = ScoreLineParser{}
	}
	return &Evaluator{
		generator: generator,
		parser:    parser,
		log:       log,
		maxLogLen: defaultMaxLogLength,
	}
}

// Evaluate builds one prompt for the question/answer pair, generates once,
// and parses the output into a score in [0,10] plus the full feedback text.
func (e *Evaluator) Evaluate(ctx context.Context, question, answer string) (int, string, error) {
	prompt := fmt.Sprintf(
		"Evaluate this answer to the interview question.\n\n"+
			"Question: %s\nAnswer: %s\n\n"+
			"Give a score from 0 to 10 with brief feedback.",
		question, answer,
	)

	e.log.Debug("answer evaluation request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", truncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}

	e.log.Debug("answer evaluation response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", truncateForLog(raw, e.maxLogLen)),
	)

	score, feedback := e.parser.Parse(raw)
	return score, feedback, nil
}

// GenerateQuestions asks for count beginner questions on topic and cleans up
// the output: lines are stripped of leading bullet markers and whitespace,
// blanks are discarded, and the list is truncated to count. If the model
// returns fewer usable lines the caller receives fewer; there is no
// synthetic backfill.
func (e *Evaluator) GenerateQuestions(ctx context.Context, topic string, count int) ([]string, error) {
	prompt := fmt.Sprintf("List %d beginner-level interview questions on the topic '%s'.", count, topic)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}

	e.log.Debug("question generation response",
		zap.String("topic", topic),
		zap.String("response_preview", truncateForLog(raw, e.maxLogLen)),
	)

	var questions []string
	for _, line := range strings.Split(raw, "\n") {
		q := stripBullet(line)
		if q == "" {
			continue
		}
		questions = append(questions, q)
		if len(questions) == count {
			break
		}
	}

	if len(questions) == 0 {
		return nil, ErrEmptyGeneration
	}

	return questions, nil
}

// stripBullet removes a leading list marker ("-", "*", "1.", "1)") and
// surrounding whitespace.
func stripBullet(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "-*•")

	trimmed := strings.TrimLeft(s, "0123456789")
	if trimmed != s && len(trimmed) > 0 && (trimmed[0] == '.' || trimmed[0] == ')') {
		s = trimmed[1:]
	}

	return strings.TrimSpace(s)
}

func truncateForLog(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
