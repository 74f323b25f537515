// Package session owns the interview state machine. One engine drives one
// candidate's session; the proctor monitor runs concurrently and is sampled,
// not pushed, at answer-submission time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"proctorview/internal/models"
	"proctorview/internal/transcribe"
)

var (
	// ErrNotVerified is returned when the question loop is requested before
	// the identity gate has passed.
	ErrNotVerified = errors.New("candidate identity is not verified")

	// ErrNotInProgress is returned for answer submission outside an active
	// interview.
	ErrNotInProgress = errors.New("no interview in progress")

	// ErrNotCompleted is returned when a report is requested before the
	// interview finished.
	ErrNotCompleted = errors.New("interview is not completed")

	// ErrRestarted marks an operation whose result arrived after the
	// session was restarted. The stale result is discarded.
	ErrRestarted = errors.New("session was restarted")

	// ErrAnswerSuperseded marks an evaluation that finished after a
	// concurrent submission already answered the same question. The
	// duplicate result is discarded; each question gets exactly one record.
	ErrAnswerSuperseded = errors.New("question was already answered by a concurrent submission")

	// ErrNoQuestions is returned when question generation produced nothing
	// usable; the session remains where it was so the step can be retried.
	ErrNoQuestions = errors.New("question generation returned no questions")

	// ErrEmptyReport guards report generation with zero records. Unreachable
	// while the loop invariant holds, but checked defensively.
	ErrEmptyReport = errors.New("report has no answer records")
)

// Verifier is the identity gate.
type Verifier interface {
	Verify(ctx context.Context, candidateID string, reference, probe []byte) models.VerificationResult
}

// QuestionSource generates the interview questions for a topic.
type QuestionSource interface {
	GenerateQuestions(ctx context.Context, topic string, count int) ([]string, error)
}

// AnswerScorer evaluates one answer into a score and feedback.
type AnswerScorer interface {
	Evaluate(ctx context.Context, question, answer string) (int, string, error)
}

// SnapshotSource is the proctor monitor's slot. Latest never blocks; the
// snapshot may be stale by up to one sampling interval.
type SnapshotSource interface {
	Latest() (models.FrameSnapshot, bool)
	Reset()
}

// Archiver persists a completed interview. Optional.
type Archiver interface {
	Archive(ctx context.Context, sess models.Session, report models.Report) error
}

// Timeouts bounds the blocking external calls.
type Timeouts struct {
	Verification time.Duration
	Generation   time.Duration
	Speech       time.Duration
}

// Deps wires an engine's collaborators.
type Deps struct {
	Verifier      Verifier
	Questions     QuestionSource
	Scorer        AnswerScorer
	Snapshots     SnapshotSource
	Transcriber   transcribe.Transcriber
	Archiver      Archiver
	QuestionCount int
	Timeouts      Timeouts
	Logger        *zap.Logger
}

// Engine is the session orchestrator. All state transitions happen under its
// mutex; external model calls run outside the lock, tagged with the session
// generation so an in-flight call that completes after a restart cannot
// mutate the new session's state.
type Engine struct {
	deps Deps
	log  *zap.Logger

	mu         sync.Mutex
	sess       models.Session
	generation uint64
}

func NewEngine(candidate string, deps Deps) *Engine {
	if deps.QuestionCount <= 0 {
		deps.QuestionCount = 3
	}
	return &Engine{
		deps: deps,
		log:  deps.Logger,
		sess: models.Session{
			ID:        uuid.NewString(),
			Candidate: candidate,
			State:     models.StateUnverified,
		},
	}
}

// Verify runs the identity gate. The session moves to Verifying for the
// duration of the model call, then to Verified on success or back to
// Unverified on mismatch or failure. The candidate may retry indefinitely.
func (e *Engine) Verify(ctx context.Context, reference, probe []byte) (models.VerificationResult, error) {
	e.mu.Lock()
	if e.sess.State != models.StateUnverified {
		state := e.sess.State
		e.mu.Unlock()
		return models.VerificationResult{}, fmt.Errorf("identity check not allowed in state %q", state)
	}
	e.sess.State = models.StateVerifying
	gen := e.generation
	candidate := e.sess.Candidate
	e.mu.Unlock()

	vctx, cancel := e.bound(ctx, e.deps.Timeouts.Verification)
	defer cancel()
	result := e.deps.Verifier.Verify(vctx, candidate, reference, probe)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		// The session was restarted while the model call was in flight.
		return result, ErrRestarted
	}

	if result.Success && result.Verified {
		e.sess.State = models.StateVerified
		e.log.Info("Candidate verified",
			zap.String("candidate", candidate),
			zap.Float64("confidence", result.Confidence),
		)
	} else {
		e.sess.State = models.StateUnverified
		e.log.Info("Candidate not verified",
			zap.String("candidate", candidate),
			zap.String("message", result.Message),
		)
	}

	return result, nil
}

// Start generates the questions for the chosen topic and opens the question
// loop. Zero generated questions leaves the session in Verified with a
// surfaced error so the candidate can retry.
func (e *Engine) Start(ctx context.Context, topic string) error {
	e.mu.Lock()
	if e.sess.State != models.StateVerified {
		e.mu.Unlock()
		return ErrNotVerified
	}
	gen := e.generation
	count := e.deps.QuestionCount
	e.mu.Unlock()

	gctx, cancel := e.bound(ctx, e.deps.Timeouts.Generation)
	defer cancel()
	questions, err := e.deps.Questions.GenerateQuestions(gctx, topic, count)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return ErrRestarted
	}
	if err != nil {
		return fmt.Errorf("generate questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	e.sess.Topic = topic
	e.sess.Questions = questions
	e.sess.Index = 0
	e.sess.Records = nil
	e.sess.State = models.StateInProgress

	e.log.Info("Interview started",
		zap.String("candidate", e.sess.Candidate),
		zap.String("topic", topic),
		zap.Int("questions", len(questions)),
	)
	return nil
}

// CurrentQuestion returns the question awaiting an answer.
func (e *Engine) CurrentQuestion() (question string, index, total int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.State != models.StateInProgress {
		return "", 0, 0, ErrNotInProgress
	}
	return e.sess.Questions[e.sess.Index], e.sess.Index, len(e.sess.Questions), nil
}

// SubmitAnswer evaluates the answer to the current question, correlates it
// with the monitor's latest snapshot, appends the record, and advances the
// index. A failed evaluation leaves the session exactly where it was; the
// state machine never silently advances past a failed step.
func (e *Engine) SubmitAnswer(ctx context.Context, answer string) (models.AnswerRecord, bool, error) {
	e.mu.Lock()
	if e.sess.State != models.StateInProgress {
		e.mu.Unlock()
		return models.AnswerRecord{}, false, ErrNotInProgress
	}
	question := e.sess.Questions[e.sess.Index]
	index := e.sess.Index
	gen := e.generation
	e.mu.Unlock()

	sctx, cancel := e.bound(ctx, e.deps.Timeouts.Generation)
	defer cancel()
	score, feedback, err := e.deps.Scorer.Evaluate(sctx, question, answer)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return models.AnswerRecord{}, false, ErrRestarted
	}
	// A concurrent submission may have answered this question while the
	// model call was in flight. Only the first result is appended.
	if e.sess.Index != index {
		return models.AnswerRecord{}, false, ErrAnswerSuperseded
	}
	if err != nil {
		return models.AnswerRecord{}, false, err
	}

	// Non-blocking read; whatever is latest, possibly stale by up to one
	// sampling interval.
	snapshot, _ := e.deps.Snapshots.Latest()

	record := models.AnswerRecord{
		Question: question,
		Answer:   answer,
		Score:    score,
		Feedback: feedback,
		Emotion:  copySnapshot(snapshot),
		Flags:    append([]string(nil), snapshot.Flags...),
	}
	e.sess.Records = append(e.sess.Records, record)
	e.sess.Index++

	completed := e.sess.Index == len(e.sess.Questions)
	if completed {
		e.sess.State = models.StateCompleted
		e.log.Info("Interview completed",
			zap.String("candidate", e.sess.Candidate),
			zap.Int("answers", len(e.sess.Records)),
		)
		e.archiveLocked()
	}

	return record, completed, nil
}

// SubmitSpokenAnswer transcribes the audio within the speech timeout and
// submits the text. Transcription failure yields an empty answer rather than
// blocking the session.
func (e *Engine) SubmitSpokenAnswer(ctx context.Context, audio []byte) (models.AnswerRecord, bool, error) {
	text := transcribe.CaptureText(ctx, e.deps.Transcriber, audio, e.deps.Timeouts.Speech, e.log)
	return e.SubmitAnswer(ctx, text)
}

// Report recomputes the final report from the records.
func (e *Engine) Report() (models.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.State != models.StateCompleted {
		return models.Report{}, ErrNotCompleted
	}
	if len(e.sess.Records) == 0 {
		return models.Report{}, ErrEmptyReport
	}
	return models.BuildReport(append([]models.AnswerRecord(nil), e.sess.Records...)), nil
}

// Restart aborts the current session and starts over from Unverified.
// Identity is re-checked on every restart so a stale verification can never
// carry into a new run. The generation bump invalidates any model call still
// in flight, and the monitor slot is cleared so the new session never reads
// the previous run's snapshot. The returned copy is the prior session as it
// ended: Aborted when the interview was cut short, Completed when it had
// already finished.
func (e *Engine) Restart() models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	prior := e.sess
	prior.Questions = append([]string(nil), e.sess.Questions...)
	prior.Records = append([]models.AnswerRecord(nil), e.sess.Records...)
	if prior.State != models.StateCompleted {
		prior.State = models.StateAborted
	}

	e.generation++
	if e.deps.Snapshots != nil {
		e.deps.Snapshots.Reset()
	}

	e.sess = models.Session{
		ID:        uuid.NewString(),
		Candidate: prior.Candidate,
		State:     models.StateUnverified,
	}

	e.log.Info("Session restarted",
		zap.String("candidate", prior.Candidate),
		zap.String("prior_state", string(prior.State)),
	)
	return prior
}

// State returns the current session state.
func (e *Engine) State() models.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.State
}

// Snapshot returns a copy of the session for read-only use.
func (e *Engine) Snapshot() models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sess
	sess.Questions = append([]string(nil), e.sess.Questions...)
	sess.Records = append([]models.AnswerRecord(nil), e.sess.Records...)
	return sess
}

// archiveLocked persists the completed interview. Best effort: archive
// failure is logged, never surfaced to the candidate.
func (e *Engine) archiveLocked() {
	if e.deps.Archiver == nil {
		return
	}

	report := models.BuildReport(append([]models.AnswerRecord(nil), e.sess.Records...))
	sess := e.sess

	if err := e.deps.Archiver.Archive(context.Background(), sess, report); err != nil {
		e.log.Error("Failed to archive interview",
			zap.String("session", sess.ID),
			zap.Error(err),
		)
	}
}

func (e *Engine) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func copySnapshot(s models.FrameSnapshot) models.FrameSnapshot {
	out := s
	out.Flags = append([]string(nil), s.Flags...)
	return out
}
