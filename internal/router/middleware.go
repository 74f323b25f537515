package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// ctxCandidateKey is the gin-context key carrying the logged-in candidate,
// set by CandidateRequired for the request logger.
const ctxCandidateKey = "candidate"

// CandidateRequired rejects requests from callers that have not logged in.
// Identity is asserted at login; this only guarantees the cookie session
// carries a candidate id.
func CandidateRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, ok := session.Get("candidateID").(string)
		if !ok || id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "login required",
			})
			return
		}
		c.Set(ctxCandidateKey, id)
		c.Next()
	}
}
