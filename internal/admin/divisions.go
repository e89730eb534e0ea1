package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/roadwatch/roadwatch/internal/division"
	"gorm.io/gorm"
)

func (s *Server) handleDivisionList(c *gin.Context) {
	divs, err := division.List(s.db)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"divisions": divs})
}

func (s *Server) handleDivisionGet(c *gin.Context) {
	div, err := division.ByCode(s.db, c.Param("code"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortError(c, http.StatusNotFound, "division not found")
			return
		}
		abortError(c, http.StatusInternalServerError, "query failed")
		return
	}
	c.JSON(http.StatusOK, div)
}

type officerAssignRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	AltPhone string `json:"alt_phone"`
	Email    string `json:"email"`
	Post     string `json:"post"`
}

// handleOfficerAssign installs a new active officer, relieving the
// incumbent in the same transaction.
func (s *Server) handleOfficerAssign(c *gin.Context) {
	var req officerAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "name and phone are required")
		return
	}

	officer, err := division.AssignOfficer(s.db, c.Param("code"), division.OfficerInput{
		Name:     req.Name,
		Phone:    req.Phone,
		AltPhone: req.AltPhone,
		Email:    req.Email,
		Post:     req.Post,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortError(c, http.StatusNotFound, "division not found")
			return
		}
		abortError(c, http.StatusInternalServerError, "assignment failed")
		return
	}
	c.JSON(http.StatusCreated, officer)
}

func (s *Server) handleOfficerRelieve(c *gin.Context) {
	err := division.RelieveOfficer(s.db, c.Param("code"))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			abortError(c, http.StatusNotFound, "division not found")
		case strings.Contains(err.Error(), "no active officer"):
			abortError(c, http.StatusConflict, "division has no active officer")
		default:
			abortError(c, http.StatusInternalServerError, "relieve failed")
		}
		return
	}
	c.Status(http.StatusNoContent)
}
