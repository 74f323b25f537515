package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"proctorview/internal/evaluate"
	"proctorview/internal/models"
	"proctorview/internal/session"
)

// SessionHandler exposes the interview state machine as commands. Every UI
// action dispatches here; the handler never mutates session state directly.
type SessionHandler struct {
	log      *zap.Logger
	registry *session.Registry
	catalog  *models.Catalog
}

func NewSessionHandler(log *zap.Logger, registry *session.Registry, catalog *models.Catalog) *SessionHandler {
	return &SessionHandler{log: log, registry: registry, catalog: catalog}
}

func (h *SessionHandler) engine(c *gin.Context) (*session.Engine, bool) {
	id, ok := candidateID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "login required"})
		return nil, false
	}
	return h.registry.Get(id).Engine, true
}

type startRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// Start picks a topic and opens the question loop.
func (h *SessionHandler) Start(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "topic is required"})
		return
	}
	if !h.catalog.HasTopic(req.Topic) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unknown topic"})
		return
	}

	if err := engine.Start(c.Request.Context(), req.Topic); err != nil {
		h.respondSessionError(c, err)
		return
	}

	question, index, total, err := engine.CurrentQuestion()
	if err != nil {
		h.respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "started",
		"questions_total": total,
		"question":        gin.H{"index": index, "total": total, "text": question},
	})
}

// Question returns the question awaiting an answer.
func (h *SessionHandler) Question(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	question, index, total, err := engine.CurrentQuestion()
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": index, "total": total, "question": question})
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// Answer submits an answer to the current question. An empty answer is
// accepted; a failed transcription upstream produces exactly that.
func (h *SessionHandler) Answer(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "malformed answer payload"})
		return
	}

	record, completed, err := engine.SubmitAnswer(c.Request.Context(), req.Answer)
	if err != nil {
		h.respondSessionError(c, err)
		return
	}

	resp := gin.H{
		"score":     record.Score,
		"feedback":  record.Feedback,
		"emotion":   record.Emotion,
		"flags":     record.Flags,
		"completed": completed,
	}
	if !completed {
		if question, index, total, qErr := engine.CurrentQuestion(); qErr == nil {
			resp["next_question"] = gin.H{"index": index, "total": total, "text": question}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Report returns the final report for a completed interview.
func (h *SessionHandler) Report(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	report, err := engine.Report()
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Restart aborts the session and returns to the identity gate.
func (h *SessionHandler) Restart(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	aborted := engine.Restart()
	c.JSON(http.StatusOK, gin.H{
		"status": "restarted",
		"prior_session": gin.H{
			"id":       aborted.ID,
			"state":    aborted.State,
			"answered": len(aborted.Records),
		},
	})
}

// respondSessionError maps engine errors onto the surface. Session-level
// failures are recoverable; the candidate retries the affected step.
func (h *SessionHandler) respondSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotVerified),
		errors.Is(err, session.ErrNotInProgress),
		errors.Is(err, session.ErrNotCompleted),
		errors.Is(err, session.ErrRestarted),
		errors.Is(err, session.ErrAnswerSuperseded):
		c.JSON(http.StatusConflict, gin.H{"status": "error", "message": err.Error()})
	case errors.Is(err, session.ErrNoQuestions),
		errors.Is(err, evaluate.ErrEmptyGeneration),
		errors.Is(err, evaluate.ErrModelInvocation):
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": err.Error()})
	default:
		h.log.Error("Unhandled session error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
	}
}
