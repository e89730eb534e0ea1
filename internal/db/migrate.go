package db

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/roadwatch/roadwatch/internal/models"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Session{},
		&models.ProcessedDelivery{},
		&models.Division{},
		&models.Officer{},
		&models.Report{},
		&models.NotificationReceipt{},
		&models.TeamApplication{},
		&models.AdminUser{},
		&models.OTPCode{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DivisionSeed is one division entry in a divisions.yaml seed file.
type DivisionSeed struct {
	Name     string       `yaml:"name"`
	Code     string       `yaml:"code"`
	Boundary [][2]float64 `yaml:"boundary"` // [lat, lng] outer-ring vertices
	Officer  *OfficerSeed `yaml:"officer"`
}

// OfficerSeed is the initial active officer for a seeded division.
type OfficerSeed struct {
	Name     string `yaml:"name"`
	Phone    string `yaml:"phone"`
	AltPhone string `yaml:"alt_phone"`
	Email    string `yaml:"email"`
	Post     string `yaml:"post"`
}

// divisionSeedFile is the top-level structure of divisions.yaml.
type divisionSeedFile struct {
	Divisions []DivisionSeed `yaml:"divisions"`
}

// LoadDivisionSeeds reads division seed entries from a YAML file.
func LoadDivisionSeeds(path string) ([]DivisionSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("db: read seed file %s: %w", path, err)
	}
	var f divisionSeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("db: parse seed file %s: %w", path, err)
	}
	return f.Divisions, nil
}

// SeedDivisions upserts Division rows keyed by code. Boundaries are stored
// as JSON vertex arrays. A seed entry with an officer also creates that
// officer as the division's active officer when the division has none yet.
func SeedDivisions(db *gorm.DB, seeds []DivisionSeed) error {
	for _, s := range seeds {
		if s.Code == "" {
			return fmt.Errorf("db: seed division %q: code is required", s.Name)
		}
		if len(s.Boundary) > 0 && len(s.Boundary) < 3 {
			return fmt.Errorf("db: seed division %q: boundary needs at least 3 vertices", s.Code)
		}

		boundary, err := json.Marshal(s.Boundary)
		if err != nil {
			return fmt.Errorf("db: marshal boundary for division %q: %w", s.Code, err)
		}

		division := models.Division{
			Name:     s.Name,
			Code:     s.Code,
			Boundary: string(boundary),
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "boundary"}),
		}).Create(&division)
		if result.Error != nil {
			return fmt.Errorf("db: seed division %q: %w", s.Code, result.Error)
		}

		if s.Officer == nil {
			continue
		}

		// Seeding never displaces a manually assigned officer.
		var existing models.Division
		if err := db.Where("code = ?", s.Code).First(&existing).Error; err != nil {
			return fmt.Errorf("db: reload seeded division %q: %w", s.Code, err)
		}
		if existing.ActiveOfficerID != nil {
			continue
		}

		officer := models.Officer{
			DivisionID: existing.ID,
			Name:       s.Officer.Name,
			Phone:      s.Officer.Phone,
			AltPhone:   s.Officer.AltPhone,
			Email:      s.Officer.Email,
			Post:       s.Officer.Post,
			IsActive:   true,
			Status:     models.OfficerStatusActive,
			JoinedAt:   time.Now(),
		}
		if err := db.Create(&officer).Error; err != nil {
			return fmt.Errorf("db: seed officer for division %q: %w", s.Code, err)
		}
		if err := db.Model(&models.Division{}).Where("id = ?", existing.ID).
			Update("active_officer_id", officer.ID).Error; err != nil {
			return fmt.Errorf("db: set active officer for division %q: %w", s.Code, err)
		}
	}
	return nil
}
