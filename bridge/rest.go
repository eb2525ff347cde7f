package bridge

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleToolsList returns the tool catalog as plain JSON.
func (s *Server) handleToolsList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.registry.Definitions()})
}

// handleToolCall invokes one tool directly over REST. The registry envelope
// is the response body; tool failures map to 400.
func (s *Server) handleToolCall(c *gin.Context) {
	name := c.Param("name")

	var args map[string]any
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "invalid JSON body: " + err.Error(),
			})
			return
		}
	}

	result := s.registry.Call(c.Request.Context(), name, args)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	c.JSON(status, result)
}
