package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"proctorview/internal/session"
	"proctorview/internal/utils"
)

type FaceHandler struct {
	log      *zap.Logger
	registry *session.Registry
}

func NewFaceHandler(log *zap.Logger, registry *session.Registry) *FaceHandler {
	return &FaceHandler{log: log, registry: registry}
}

type verifyFaceRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	RegisteredImage string `json:"registered_image" binding:"required"`
	CapturedImage   string `json:"captured_image" binding:"required"`
}

// VerifyFace runs the identity gate on a registered/captured image pair.
func (h *FaceHandler) VerifyFace(c *gin.Context) {
	var req verifyFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "user_id and both images are required"})
		return
	}

	if !utils.IsValidCandidateID(req.UserID) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid user_id"})
		return
	}
	// The asserted body identity must match the logged-in candidate;
	// otherwise any caller could spin up sessions for arbitrary ids.
	if id, ok := candidateID(c); !ok || id != req.UserID {
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "user_id does not match the logged-in candidate"})
		return
	}

	reference, err := base64.StdEncoding.DecodeString(req.RegisteredImage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "registered_image is not valid base64"})
		return
	}
	probe, err := base64.StdEncoding.DecodeString(req.CapturedImage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "captured_image is not valid base64"})
		return
	}

	candidate := h.registry.Get(req.UserID)
	result, err := candidate.Engine.Verify(c.Request.Context(), reference, probe)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"status": "error", "message": err.Error()})
		return
	}

	if !result.Success {
		// Decode or model failures surface as a 400 with the message; they
		// are never fatal to the process.
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": result.Message})
		return
	}

	status := "not_verified"
	if result.Verified {
		status = "verified"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"confidence": result.Confidence,
		"message":    result.Message,
	})
}
