package models

import "time"

// Division is an administrative jurisdiction with a polygonal boundary and
// an officer roster. The boundary is a JSON array of [lat, lng] vertex
// pairs forming a single outer ring; holes are not supported.
type Division struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	Name            string `gorm:"size:128;not null"`
	Code            string `gorm:"size:16;uniqueIndex;not null"`
	Boundary        string `gorm:"type:text"`
	ActiveOfficerID *uint
	CreatedAt       time.Time
	UpdatedAt       time.Time

	ActiveOfficer *Officer  `gorm:"foreignKey:ActiveOfficerID"`
	Officers      []Officer `gorm:"foreignKey:DivisionID"`
}

// Officer lifecycle statuses.
const (
	OfficerStatusActive   = "active"
	OfficerStatusRelieved = "relieved"
)

// Officer is one roster entry for a division. The roster is append-only:
// relieving an officer flips IsActive/Status rather than deleting the row.
// At most one officer per division has IsActive set; assignment relieves
// the incumbent in the same transaction.
type Officer struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	DivisionID uint   `gorm:"index;not null"`
	Name       string `gorm:"size:128;not null"`
	Phone      string `gorm:"size:24;not null"`
	AltPhone   string `gorm:"size:24"`
	Email      string `gorm:"size:128"`
	Post       string `gorm:"size:64"`
	IsActive   bool   `gorm:"default:false;index"`
	Status     string `gorm:"size:16;default:active"`
	JoinedAt   time.Time
	RelievedAt *time.Time
}
