package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/roadwatch/roadwatch/internal/models"
	"github.com/roadwatch/roadwatch/internal/report"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

// handleReportList returns reports newest first, filterable by status,
// type and division.
func (s *Server) handleReportList(c *gin.Context) {
	q := s.db.Model(&models.Report{})

	if status := c.Query("status"); status != "" {
		if !models.ValidStatus(status) {
			abortError(c, http.StatusBadRequest, "unknown status")
			return
		}
		q = q.Where("status = ?", status)
	}
	if reportType := c.Query("type"); reportType != "" {
		q = q.Where("type = ?", reportType)
	}
	if divisionID := c.Query("division_id"); divisionID != "" {
		id, err := strconv.ParseUint(divisionID, 10, 32)
		if err != nil {
			abortError(c, http.StatusBadRequest, "division_id must be numeric")
			return
		}
		q = q.Where("division_id = ?", id)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}

	page, pageSize := pagination(c)
	var reports []models.Report
	err := q.Preload("Receipts").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&reports).Error
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports":   reports,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (s *Server) handleReportGet(c *gin.Context) {
	rep, err := reportByID(s.db, c.Param("id"))
	if err == gorm.ErrRecordNotFound {
		abortError(c, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}
	c.JSON(http.StatusOK, rep)
}

type statusUpdateRequest struct {
	Status             string `json:"status" binding:"required"`
	ResolutionNote     string `json:"resolution_note"`
	ResolutionMediaURL string `json:"resolution_media_url"`
}

// handleReportStatus moves a report through its lifecycle. Terminal
// reports are immutable.
func (s *Server) handleReportStatus(c *gin.Context) {
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "status is required")
		return
	}
	if !models.ValidStatus(req.Status) {
		abortError(c, http.StatusBadRequest, "unknown status")
		return
	}

	rep, err := reportByID(s.db, c.Param("id"))
	if err == gorm.ErrRecordNotFound {
		abortError(c, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}
	if models.TerminalStatus(rep.Status) {
		abortError(c, http.StatusConflict, "report is already "+rep.Status)
		return
	}

	updates := map[string]interface{}{"status": req.Status}
	if req.ResolutionNote != "" {
		updates["resolution_note"] = req.ResolutionNote
	}
	if req.ResolutionMediaURL != "" {
		updates["resolution_media_url"] = req.ResolutionMediaURL
	}
	if models.TerminalStatus(req.Status) {
		updates["resolved_at"] = time.Now()
	}

	if err := s.db.Model(rep).Updates(updates).Error; err != nil {
		abortError(c, http.StatusInternalServerError, "update failed")
		return
	}

	rep, err = reportByID(s.db, rep.ID)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}
	c.JSON(http.StatusOK, rep)
}

// handleReportUpload registers a report submitted through the web form:
// media file plus coordinates, routed and notified like a chat submission.
func (s *Server) handleReportUpload(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.PostForm("latitude"), 64)
	lng, lngErr := strconv.ParseFloat(c.PostForm("longitude"), 64)
	if latErr != nil || lngErr != nil {
		abortError(c, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	reportType := c.PostForm("type")
	if reportType == "" {
		reportType = models.TypeGeneralReport
	}

	div, err := s.resolver.Resolve(lat, lng)
	if err != nil {
		abortError(c, http.StatusBadGateway, "division resolution unavailable")
		return
	}
	if div == nil {
		abortError(c, http.StatusUnprocessableEntity, "location is outside the service area")
		return
	}

	mediaURL := ""
	mediaType := ""
	if file, err := c.FormFile("media"); err == nil {
		if s.uploader == nil {
			abortError(c, http.StatusServiceUnavailable, "media storage is not configured")
			return
		}
		f, err := file.Open()
		if err != nil {
			abortError(c, http.StatusBadRequest, "unreadable media file")
			return
		}
		defer f.Close()
		mediaType = file.Header.Get("Content-Type")
		mediaURL, err = s.uploader.Upload(c.Request.Context(), f, mediaType, "reports")
		if err != nil {
			abortError(c, http.StatusBadGateway, "media upload failed")
			return
		}
	}

	d := report.Draft{
		ReporterHandle: "web:" + c.PostForm("reporter_phone"),
		ReporterName:   c.PostForm("reporter_name"),
		Type:           reportType,
		Description:    c.PostForm("description"),
		MediaURL:       mediaURL,
		MediaType:      mediaType,
		MediaStored:    true,
		Latitude:       lat,
		Longitude:      lng,
		Address:        c.PostForm("address"),
	}
	res, err := s.pipeline.Submit(c.Request.Context(), d, div)
	if err != nil {
		abortError(c, http.StatusBadGateway, "submission failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"report":   res.Report,
		"notified": len(res.NotifiedPhones),
	})
}

// pagination reads page/page_size query parameters with sane bounds.
func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
