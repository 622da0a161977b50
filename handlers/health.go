package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"handyfix/utils"
)

// SessionCounter reports live chat sessions.
type SessionCounter interface {
	Len() int
}

type HealthHandler struct {
	Sessions SessionCounter
}

// Handle returns the latest dependency snapshot. The server itself is always "ok"; a
// degraded recommendation backend only switches chat searches to keyword mode.
func (h *HealthHandler) Handle(c *gin.Context) {
	snapshot := utils.GetHealthStatus()
	status := "ok"
	if !snapshot.CheckedAt.IsZero() && (!snapshot.Recommendation || !snapshot.MLReady) {
		status = "degraded"
	}
	resp := gin.H{
		"status":       status,
		"message":      "Hi, I'm HandyFix",
		"dependencies": snapshot,
	}
	if h.Sessions != nil {
		resp["sessions"] = h.Sessions.Len()
	}
	c.JSON(http.StatusOK, resp)
}
