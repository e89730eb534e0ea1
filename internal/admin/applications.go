package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/roadwatch/roadwatch/internal/models"
	"gorm.io/gorm"
)

func (s *Server) handleApplicationList(c *gin.Context) {
	q := s.db.Model(&models.TeamApplication{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var apps []models.TeamApplication
	if err := q.Order("created_at DESC").Find(&apps).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

type applicationReviewRequest struct {
	Status     string `json:"status" binding:"required"`
	ReviewNote string `json:"review_note"`
}

// handleApplicationReview approves or rejects a submitted application.
func (s *Server) handleApplicationReview(c *gin.Context) {
	var req applicationReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "status is required")
		return
	}
	if req.Status != models.ApplicationApproved && req.Status != models.ApplicationRejected {
		abortError(c, http.StatusBadRequest, "status must be approved or rejected")
		return
	}

	var app models.TeamApplication
	err := s.db.First(&app, "id = ?", c.Param("id")).Error
	if err == gorm.ErrRecordNotFound {
		abortError(c, http.StatusNotFound, "application not found")
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}
	if app.Status != models.ApplicationSubmitted {
		abortError(c, http.StatusConflict, "application is "+app.Status+", not submitted")
		return
	}

	updates := map[string]interface{}{
		"status":      req.Status,
		"review_note": req.ReviewNote,
		"reviewed_at": time.Now(),
	}
	if err := s.db.Model(&app).Updates(updates).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "update failed")
		return
	}
	c.JSON(http.StatusOK, app)
}
