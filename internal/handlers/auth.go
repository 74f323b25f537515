package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"proctorview/internal/utils"
)

// candidateKey is the cookie-session key holding the asserted identity.
const candidateKey = "candidateID"

type AuthHandler struct {
	log *zap.Logger
}

func NewAuthHandler(log *zap.Logger) *AuthHandler {
	return &AuthHandler{log: log}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
}

// Login asserts the candidate's identity. There is no credential check at
// this surface; real gating happens at face verification.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "username is required"})
		return
	}

	if !utils.IsValidCandidateID(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid username"})
		return
	}

	session := sessions.Default(c)
	session.Set(candidateKey, req.Username)
	if err := session.Save(); err != nil {
		h.log.Error("Failed to save login session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to login"})
		return
	}

	h.log.Info("Candidate logged in", zap.String("candidate", req.Username))
	c.JSON(http.StatusOK, gin.H{"status": "success", "user_id": req.Username})
}

// candidateID reads the asserted identity from the cookie session.
func candidateID(c *gin.Context) (string, bool) {
	session := sessions.Default(c)
	id, ok := session.Get(candidateKey).(string)
	return id, ok && id != ""
}
