// Package division provides read and roster operations for administrative
// divisions.
package division

import (
	"fmt"
	"time"

	"github.com/roadwatch/roadwatch/internal/models"
	"gorm.io/gorm"
)

// List returns all divisions with their officer rosters.
func List(db *gorm.DB) ([]models.Division, error) {
	var divs []models.Division
	if err := db.Preload("Officers").Preload("ActiveOfficer").
		Order("code ASC").Find(&divs).Error; err != nil {
		return nil, fmt.Errorf("division: list: %w", err)
	}
	return divs, nil
}

// ByID returns a division with its roster loaded.
func ByID(db *gorm.DB, id uint) (*models.Division, error) {
	var div models.Division
	if err := db.Preload("Officers").Preload("ActiveOfficer").
		First(&div, id).Error; err != nil {
		return nil, fmt.Errorf("division: by id %d: %w", id, err)
	}
	return &div, nil
}

// ByCode returns a division by its unique short code.
func ByCode(db *gorm.DB, code string) (*models.Division, error) {
	var div models.Division
	if err := db.Preload("Officers").Preload("ActiveOfficer").
		Where("code = ?", code).First(&div).Error; err != nil {
		return nil, fmt.Errorf("division: by code %q: %w", code, err)
	}
	return &div, nil
}

// ActiveOfficers returns the division's active officers in roster order,
// capped at max. The active-officer invariant means this is normally zero
// or one entry, but historical data may carry more; roster order keeps the
// result deterministic either way.
func ActiveOfficers(div *models.Division, max int) []models.Officer {
	var active []models.Officer
	for _, o := range div.Officers {
		if !o.IsActive {
			continue
		}
		active = append(active, o)
		if max > 0 && len(active) >= max {
			break
		}
	}
	return active
}

// OfficerInput holds the fields for a new officer assignment.
type OfficerInput struct {
	Name     string
	Phone    string
	AltPhone string
	Email    string
	Post     string
}

// AssignOfficer creates a new active officer for the division identified by
// code, relieving the current active officer in the same transaction. The
// invariant enforced here: at most one officer per division is active.
func AssignOfficer(db *gorm.DB, code string, in OfficerInput) (*models.Officer, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("division: assign officer: name is required")
	}
	if in.Phone == "" {
		return nil, fmt.Errorf("division: assign officer: phone is required")
	}

	var officer *models.Officer
	err := db.Transaction(func(tx *gorm.DB) error {
		var div models.Division
		if err := tx.Where("code = ?", code).First(&div).Error; err != nil {
			return fmt.Errorf("find division %q: %w", code, err)
		}

		now := time.Now()
		if err := tx.Model(&models.Officer{}).
			Where("division_id = ? AND is_active = ?", div.ID, true).
			Updates(map[string]interface{}{
				"is_active":   false,
				"status":      models.OfficerStatusRelieved,
				"relieved_at": now,
			}).Error; err != nil {
			return fmt.Errorf("relieve incumbent: %w", err)
		}

		officer = &models.Officer{
			DivisionID: div.ID,
			Name:       in.Name,
			Phone:      in.Phone,
			AltPhone:   in.AltPhone,
			Email:      in.Email,
			Post:       in.Post,
			IsActive:   true,
			Status:     models.OfficerStatusActive,
			JoinedAt:   now,
		}
		if err := tx.Create(officer).Error; err != nil {
			return fmt.Errorf("create officer: %w", err)
		}

		if err := tx.Model(&models.Division{}).Where("id = ?", div.ID).
			Update("active_officer_id", officer.ID).Error; err != nil {
			return fmt.Errorf("set active officer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("division: assign officer: %w", err)
	}
	return officer, nil
}

// RelieveOfficer relieves the division's current active officer without a
// replacement. The division is left with no active officer.
func RelieveOfficer(db *gorm.DB, code string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		var div models.Division
		if err := tx.Where("code = ?", code).First(&div).Error; err != nil {
			return fmt.Errorf("find division %q: %w", code, err)
		}
		if div.ActiveOfficerID == nil {
			return fmt.Errorf("division %q has no active officer", code)
		}

		now := time.Now()
		if err := tx.Model(&models.Officer{}).
			Where("division_id = ? AND is_active = ?", div.ID, true).
			Updates(map[string]interface{}{
				"is_active":   false,
				"status":      models.OfficerStatusRelieved,
				"relieved_at": now,
			}).Error; err != nil {
			return fmt.Errorf("relieve officer: %w", err)
		}
		if err := tx.Model(&models.Division{}).Where("id = ?", div.ID).
			Update("active_officer_id", nil).Error; err != nil {
			return fmt.Errorf("clear active officer: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("division: relieve officer: %w", err)
	}
	return nil
}
