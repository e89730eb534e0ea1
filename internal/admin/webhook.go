package admin

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/roadwatch/roadwatch/internal/chat"
	"github.com/roadwatch/roadwatch/internal/chat/twilio"
	"github.com/roadwatch/roadwatch/internal/models"
	"gorm.io/gorm"
)

// handleTwilioWebhook receives citizen WhatsApp messages and answers them
// synchronously with TwiML. Twilio retries on non-2xx responses, so engine
// failures still return an acknowledgement; the delivery record makes the
// retry harmless.
func (s *Server) handleTwilioWebhook(c *gin.Context) {
	msg, err := twilio.ParseInbound(c.Request)
	if err != nil {
		abortError(c, http.StatusBadRequest, "malformed webhook payload")
		return
	}

	out, err := s.engine.HandleMessage(c.Request.Context(), msg)
	if err != nil {
		log.Printf("admin: webhook message %s: %v", msg.DeliveryID, err)
		out = chat.OutboundMessage{}
	}

	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, twilio.TwiML(out))
}

// handleJoinGet returns the application shell for a join token, letting the
// form prefill the chat-collected name.
func (s *Server) handleJoinGet(c *gin.Context) {
	var app models.TeamApplication
	err := s.db.First(&app, "session_token = ?", c.Param("token")).Error
	if err == gorm.ErrRecordNotFound {
		abortError(c, http.StatusNotFound, "unknown application session")
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}
	if app.Status != models.ApplicationPending {
		abortError(c, http.StatusGone, "application already submitted")
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": app.Name, "status": app.Status})
}

type joinSubmitRequest struct {
	Name       string `json:"name" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Email      string `json:"email"`
	Area       string `json:"area"`
	Motivation string `json:"motivation"`
}

// handleJoinSubmit completes a team application started in chat.
func (s *Server) handleJoinSubmit(c *gin.Context) {
	var req joinSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "name and phone are required")
		return
	}

	var app models.TeamApplication
	err := s.db.First(&app, "session_token = ?", c.Param("token")).Error
	if err == gorm.ErrRecordNotFound {
		abortError(c, http.StatusNotFound, "unknown application session")
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}
	if app.Status != models.ApplicationPending {
		abortError(c, http.StatusConflict, "application already submitted")
		return
	}

	updates := map[string]interface{}{
		"name":       req.Name,
		"phone":      req.Phone,
		"email":      req.Email,
		"area":       req.Area,
		"motivation": req.Motivation,
		"status":     models.ApplicationSubmitted,
	}
	if err := s.db.Model(&app).Updates(updates).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "submission failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.ApplicationSubmitted})
}
