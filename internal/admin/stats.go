package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/roadwatch/roadwatch/internal/models"
)

type countRow struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// handleStats returns the dashboard aggregates: totals by status, type and
// division, plus activity for the last seven days.
func (s *Server) handleStats(c *gin.Context) {
	var total int64
	if err := s.db.Model(&models.Report{}).Count(&total).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}

	byStatus, err := s.countBy("status")
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}
	byType, err := s.countBy("type")
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}
	byDivision, err := s.countBy("division_name")
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}

	var lastWeek int64
	err = s.db.Model(&models.Report{}).
		Where("created_at >= ?", time.Now().Add(-7*24*time.Hour)).
		Count(&lastWeek).Error
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}

	var pendingApps int64
	if err := s.db.Model(&models.TeamApplication{}).
		Where("status = ?", models.ApplicationSubmitted).
		Count(&pendingApps).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_reports":        total,
		"by_status":            byStatus,
		"by_type":              byType,
		"by_division":          byDivision,
		"reports_last_7_days":  lastWeek,
		"pending_applications": pendingApps,
	})
}

// countBy groups report counts by one column.
func (s *Server) countBy(column string) ([]countRow, error) {
	var rows []countRow
	err := s.db.Model(&models.Report{}).
		Select(column + " as label, count(*) as count").
		Group(column).Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
