package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"proctorview/internal/proctor"
	"proctorview/internal/session"
	"proctorview/internal/utils"
)

type MonitorHandler struct {
	log      *zap.Logger
	registry *session.Registry
}

func NewMonitorHandler(log *zap.Logger, registry *session.Registry) *MonitorHandler {
	return &MonitorHandler{log: log, registry: registry}
}

type detection struct {
	Flag       string  `json:"flag"`
	Detected   bool    `json:"detected"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

// AnalyzeFrame runs the proctoring pipeline on one uploaded frame. The call
// is one-shot and stateless; sampling cadence is the caller's responsibility
// at this boundary. The analyzed snapshot also lands in the candidate's
// monitor slot so answer submissions correlate with it.
func (h *MonitorHandler) AnalyzeFrame(c *gin.Context) {
	userID := c.PostForm("user_id")
	if !utils.IsValidCandidateID(userID) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid user_id"})
		return
	}
	if id, ok := candidateID(c); !ok || id != userID {
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": "user_id does not match the logged-in candidate"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "frame file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "could not open frame file"})
		return
	}
	defer file.Close()

	frame, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "could not read frame file"})
		return
	}

	candidate := h.registry.Get(userID)
	snapshot := candidate.Monitor.Analyze(c.Request.Context(), frame)
	candidate.Monitor.Record(snapshot)

	timestamp := snapshot.CapturedAt.Format(time.RFC3339)
	detections := []detection{{
		Flag:      proctor.FlagMultipleFaces,
		Timestamp: timestamp,
	}}
	for _, flag := range snapshot.Flags {
		switch flag {
		case proctor.FlagMultipleFaces:
			detections[0].Detected = true
			detections[0].Confidence = 1.0
		default:
			detections = append(detections, detection{
				Flag:      flag,
				Detected:  true,
				Timestamp: timestamp,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "completed",
		"result": gin.H{
			"frame_count": 1,
			"detections":  detections,
		},
	})
}
