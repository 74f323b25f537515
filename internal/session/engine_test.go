package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"proctorview/internal/models"
)

type stubVerifier struct {
	result models.VerificationResult
}

func (s *stubVerifier) Verify(_ context.Context, _ string, _, _ []byte) models.VerificationResult {
	return s.result
}

type stubQuestions struct {
	questions []string
	err       error
}

func (s *stubQuestions) GenerateQuestions(_ context.Context, _ string, _ int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.questions, nil
}

type stubScorer struct {
	mu       sync.Mutex
	score    int
	feedback string
	err      error
	entered  chan struct{} // when set, receives one signal per Evaluate call
	block    chan struct{} // when set, Evaluate waits until closed
	answers  []string
}

func (s *stubScorer) Evaluate(_ context.Context, _, answer string) (int, string, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, answer)
	if s.err != nil {
		return 0, "", s.err
	}
	return s.score, s.feedback, nil
}

type stubSnapshots struct {
	mu     sync.Mutex
	snap   models.FrameSnapshot
	has    bool
	resets int
}

func (s *stubSnapshots) Latest() (models.FrameSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.has
}

func (s *stubSnapshots) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = models.FrameSnapshot{}
	s.has = false
	s.resets++
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	return s.text, s.err
}

type recordingArchiver struct {
	mu       sync.Mutex
	sessions []models.Session
	reports  []models.Report
}

func (a *recordingArchiver) Archive(_ context.Context, sess models.Session, report models.Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = append(a.sessions, sess)
	a.reports = append(a.reports, report)
	return nil
}

func verifiedResult() models.VerificationResult {
	return models.VerificationResult{Verified: true, Confidence: 0.8, Message: "Match success", Success: true}
}

func newTestEngine(deps Deps) *Engine {
	if deps.Verifier == nil {
		deps.Verifier = &stubVerifier{result: verifiedResult()}
	}
	if deps.Questions == nil {
		deps.Questions = &stubQuestions{questions: []string{"q1", "q2", "q3"}}
	}
	if deps.Scorer == nil {
		deps.Scorer = &stubScorer{score: 6, feedback: "Score: 6\nFine"}
	}
	if deps.Snapshots == nil {
		deps.Snapshots = &stubSnapshots{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.QuestionCount = 3
	return NewEngine("alice", deps)
}

func TestFullLifecycle(t *testing.T) {
	scorer := &stubScorer{score: 6, feedback: "Score: 6\nFine"}
	snapshots := &stubSnapshots{
		snap: models.FrameSnapshot{Emotion: "happy", Confidence: 0.9, Flags: []string{"multiple_faces"}},
		has:  true,
	}
	archiver := &recordingArchiver{}
	e := newTestEngine(Deps{Scorer: scorer, Snapshots: snapshots, Archiver: archiver})

	if e.State() != models.StateUnverified {
		t.Fatalf("new session should be unverified, got %s", e.State())
	}

	res, err := e.Verify(context.Background(), []byte("ref"), []byte("probe"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Verified || e.State() != models.StateVerified {
		t.Fatalf("expected verified session, got state %s", e.State())
	}

	if err := e.Start(context.Background(), "SQL"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if e.State() != models.StateInProgress {
		t.Fatalf("expected in_progress, got %s", e.State())
	}

	for i := 0; i < 3; i++ {
		q, index, total, err := e.CurrentQuestion()
		if err != nil {
			t.Fatalf("current question %d: %v", i, err)
		}
		if index != i || total != 3 {
			t.Fatalf("expected index %d of 3, got %d of %d", i, index, total)
		}
		if q != fmt.Sprintf("q%d", i+1) {
			t.Fatalf("unexpected question order: %q at index %d", q, i)
		}

		record, completed, err := e.SubmitAnswer(context.Background(), "my answer")
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if record.Score != 6 {
			t.Fatalf("unexpected score %d", record.Score)
		}
		if record.Emotion.Emotion != "happy" {
			t.Fatalf("record missing snapshot correlation: %+v", record.Emotion)
		}
		if len(record.Flags) != 1 || record.Flags[0] != "multiple_faces" {
			t.Fatalf("record missing snapshot flags: %v", record.Flags)
		}

		// Invariant: len(records) == index after every submission.
		sess := e.Snapshot()
		if len(sess.Records) != sess.Index {
			t.Fatalf("invariant broken: %d records, index %d", len(sess.Records), sess.Index)
		}

		if completed != (i == 2) {
			t.Fatalf("completed = %v at question %d", completed, i)
		}
	}

	if e.State() != models.StateCompleted {
		t.Fatalf("expected completed, got %s", e.State())
	}

	report, err := e.Report()
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.AverageScore != 6 {
		t.Fatalf("expected average 6, got %v", report.AverageScore)
	}
	if len(report.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(report.Records))
	}

	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	if len(archiver.sessions) != 1 {
		t.Fatalf("expected 1 archived interview, got %d", len(archiver.sessions))
	}
	if archiver.reports[0].AverageScore != 6 {
		t.Fatalf("archived report average = %v", archiver.reports[0].AverageScore)
	}
}

func TestMismatchedFacesKeepSessionUnverified(t *testing.T) {
	verifier := &stubVerifier{result: models.VerificationResult{Message: "Face mismatch", Success: true}}
	e := newTestEngine(Deps{Verifier: verifier})

	res, err := e.Verify(context.Background(), []byte("ref"), []byte("probe"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Verified {
		t.Fatal("expected not-verified result")
	}
	if e.State() != models.StateUnverified {
		t.Fatalf("expected unverified, got %s", e.State())
	}

	// The question loop never starts.
	if err := e.Start(context.Background(), "SQL"); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}

	// Retry is allowed indefinitely.
	verifier.result = verifiedResult()
	if _, err := e.Verify(context.Background(), []byte("ref"), []byte("probe")); err != nil {
		t.Fatalf("retry verify: %v", err)
	}
	if e.State() != models.StateVerified {
		t.Fatalf("expected verified after retry, got %s", e.State())
	}
}

func TestStartWithNoQuestionsStaysVerified(t *testing.T) {
	e := newTestEngine(Deps{Questions: &stubQuestions{err: errors.New("model returned no usable content")}})

	if _, err := e.Verify(context.Background(), nil, nil); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := e.Start(context.Background(), "SQL"); err == nil {
		t.Fatal("expected error from empty generation")
	}
	if e.State() != models.StateVerified {
		t.Fatalf("session should remain verified, got %s", e.State())
	}

	// The step can be retried in place.
	e.deps.Questions = &stubQuestions{questions: []string{"q1"}}
	if err := e.Start(context.Background(), "SQL"); err != nil {
		t.Fatalf("retry start: %v", err)
	}
}

func TestFailedEvaluationDoesNotAdvance(t *testing.T) {
	scorer := &stubScorer{err: errors.New("model invocation failed")}
	e := newTestEngine(Deps{Scorer: scorer})

	e.Verify(context.Background(), nil, nil)
	e.Start(context.Background(), "SQL")

	if _, _, err := e.SubmitAnswer(context.Background(), "answer"); err == nil {
		t.Fatal("expected evaluation error to surface")
	}

	sess := e.Snapshot()
	if sess.Index != 0 || len(sess.Records) != 0 {
		t.Fatalf("failed step must not advance: index %d, records %d", sess.Index, len(sess.Records))
	}

	// Retry of the single affected step succeeds.
	scorer.err = nil
	scorer.score = 8
	if _, _, err := e.SubmitAnswer(context.Background(), "answer"); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
}

func TestSpokenAnswerFailureYieldsEmptyText(t *testing.T) {
	scorer := &stubScorer{score: 2, feedback: "Score: 2"}
	e := newTestEngine(Deps{
		Scorer:      scorer,
		Transcriber: &stubTranscriber{err: errors.New("recognition failed")},
	})

	e.Verify(context.Background(), nil, nil)
	e.Start(context.Background(), "SQL")

	if _, _, err := e.SubmitSpokenAnswer(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("spoken answer: %v", err)
	}

	scorer.mu.Lock()
	defer scorer.mu.Unlock()
	if len(scorer.answers) != 1 || scorer.answers[0] != "" {
		t.Fatalf("expected empty answer text, got %v", scorer.answers)
	}
}

func TestRestartClearsSessionState(t *testing.T) {
	snapshots := &stubSnapshots{snap: models.FrameSnapshot{Emotion: "sad"}, has: true}
	e := newTestEngine(Deps{Snapshots: snapshots})

	e.Verify(context.Background(), nil, nil)
	e.Start(context.Background(), "SQL")
	e.SubmitAnswer(context.Background(), "first answer")

	before := e.Snapshot()
	if before.Index != 1 || len(before.Records) != 1 {
		t.Fatalf("setup failed: %+v", before)
	}

	e.Restart()

	after := e.Snapshot()
	if after.State != models.StateUnverified {
		t.Fatalf("restart must re-check identity, got state %s", after.State)
	}
	if after.Index != 0 || len(after.Records) != 0 || len(after.Questions) != 0 {
		t.Fatalf("restart must clear session-scoped state: %+v", after)
	}
	if after.ID == before.ID {
		t.Fatal("restart must issue a fresh session id")
	}

	snapshots.mu.Lock()
	resets := snapshots.resets
	snapshots.mu.Unlock()
	if resets != 1 {
		t.Fatalf("expected monitor slot reset on restart, got %d", resets)
	}
}

func TestInFlightEvaluationAfterRestartIsDiscarded(t *testing.T) {
	scorer := &stubScorer{score: 9, feedback: "Score: 9", block: make(chan struct{})}
	e := newTestEngine(Deps{Scorer: scorer})

	e.Verify(context.Background(), nil, nil)
	e.Start(context.Background(), "SQL")

	errs := make(chan error, 1)
	go func() {
		_, _, err := e.SubmitAnswer(context.Background(), "slow answer")
		errs <- err
	}()

	// Give the submission time to enter the model call, then restart.
	time.Sleep(20 * time.Millisecond)
	e.Restart()
	close(scorer.block)

	select {
	case err := <-errs:
		if !errors.Is(err, ErrRestarted) {
			t.Fatalf("expected ErrRestarted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submission never returned")
	}

	sess := e.Snapshot()
	if len(sess.Records) != 0 || sess.Index != 0 {
		t.Fatalf("stale result mutated the new session: %+v", sess)
	}
}

func TestConcurrentSubmissionsAnswerQuestionOnce(t *testing.T) {
	scorer := &stubScorer{
		score:    6,
		feedback: "Score: 6",
		entered:  make(chan struct{}, 2),
		block:    make(chan struct{}),
	}
	e := newTestEngine(Deps{Scorer: scorer})

	e.Verify(context.Background(), nil, nil)
	e.Start(context.Background(), "SQL")

	// Both submissions capture question q1, then sit in the model call
	// until released together.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _, err := e.SubmitAnswer(context.Background(), "racing answer")
			errs <- err
		}()
	}
	for i := 0; i < 2; i++ {
		select {
		case <-scorer.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("submission never reached the model call")
		}
	}
	close(scorer.block)

	var succeeded, superseded int
	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAnswerSuperseded):
				superseded++
			default:
				t.Fatalf("unexpected submission error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("submission never returned")
		}
	}
	if succeeded != 1 || superseded != 1 {
		t.Fatalf("expected one accepted and one superseded submission, got %d/%d", succeeded, superseded)
	}

	// Exactly one record for q1; q2 was not skipped.
	sess := e.Snapshot()
	if sess.Index != 1 || len(sess.Records) != 1 {
		t.Fatalf("duplicate submission advanced the session: index %d, records %d", sess.Index, len(sess.Records))
	}
	if sess.Records[0].Question != "q1" {
		t.Fatalf("unexpected recorded question %q", sess.Records[0].Question)
	}
	if q, _, _, err := e.CurrentQuestion(); err != nil || q != "q2" {
		t.Fatalf("expected q2 to be next, got %q (%v)", q, err)
	}
}

func TestRestartReturnsAbortedPriorSession(t *testing.T) {
	e := newTestEngine(Deps{})

	e.Verify(context.Background(), nil, nil)
	e.Start(context.Background(), "SQL")
	e.SubmitAnswer(context.Background(), "first answer")

	prior := e.Restart()
	if prior.State != models.StateAborted {
		t.Fatalf("mid-interview restart should abort the prior session, got %s", prior.State)
	}
	if len(prior.Records) != 1 {
		t.Fatalf("prior session lost its records: %+v", prior)
	}
	if prior.ID == e.Snapshot().ID {
		t.Fatal("prior session ID must differ from the fresh session")
	}

	// A finished interview is not retroactively aborted.
	e.Verify(context.Background(), nil, nil)
	e.Start(context.Background(), "SQL")
	for i := 0; i < 3; i++ {
		e.SubmitAnswer(context.Background(), "answer")
	}
	prior = e.Restart()
	if prior.State != models.StateCompleted {
		t.Fatalf("completed session should stay completed in the restart result, got %s", prior.State)
	}
}

func TestReportBeforeCompletion(t *testing.T) {
	e := newTestEngine(Deps{})
	if _, err := e.Report(); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted, got %v", err)
	}
}

func TestAverageScoreComputation(t *testing.T) {
	records := []models.AnswerRecord{{Score: 3}, {Score: 7}, {Score: 8}}
	report := models.BuildReport(records)
	if report.AverageScore != 6 {
		t.Fatalf("expected average 6, got %v", report.AverageScore)
	}
}
