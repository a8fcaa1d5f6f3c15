package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	feedbackdomain "github.com/stokvelhq/patron/internal/feedback/domain"
)

// CreateFeedback accepts contact, follow and flag submissions. The
// Turnstile token is verified before anything is stored.
func (s *Server) CreateFeedback(c *gin.Context) {
	var req feedbackdomain.CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("message", "required", "message is required"))
		return
	}
	req.RemoteIP = c.ClientIP()

	feedback, err := s.feedbackSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, feedback)
}
