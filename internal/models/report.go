package models

import "time"

// Report statuses. Resolved and Rejected are terminal.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
	StatusRejected   = "Rejected"
)

// Report types.
const (
	TypeTrafficViolation   = "Traffic Violation"
	TypeTrafficCongestion  = "Traffic Congestion"
	TypeAccident           = "Accident"
	TypeRoadDamage         = "Road Damage"
	TypeIllegalParking     = "Illegal Parking"
	TypeTrafficSignalIssue = "Traffic Signal Issue"
	TypeSuggestion         = "Suggestion"
	TypeJoinRequest        = "Join Request"
	TypeGeneralReport      = "General Report"
)

// MenuReportTypes maps the chat menu options "1".."6" to report types.
var MenuReportTypes = map[string]string{
	"1": TypeTrafficViolation,
	"2": TypeTrafficCongestion,
	"3": TypeAccident,
	"4": TypeRoadDamage,
	"5": TypeIllegalParking,
	"6": TypeTrafficSignalIssue,
}

// Report is a persisted citizen submission. Rows are created by the
// conversation engine or the synchronous upload endpoint; status mutation
// is owned by the admin API. Once terminal, a report is immutable except
// for notification-receipt appends.
type Report struct {
	ID                 string `gorm:"primaryKey;size:40"`
	ReporterHandle     string `gorm:"size:128;index"`
	ReporterName       string `gorm:"size:128"`
	Type               string `gorm:"size:32;index"`
	Description        string `gorm:"type:text"`
	MediaURL           string `gorm:"size:512"`
	MediaType          string `gorm:"size:64"`
	Latitude           float64
	Longitude          float64
	Address            string `gorm:"size:256"`
	Status             string `gorm:"size:16;default:Pending;index"`
	DivisionID         *uint  `gorm:"index"`
	DivisionName       string `gorm:"size:128"`
	DivisionNotified   bool   `gorm:"default:false"`
	ResolutionNote     string `gorm:"type:text"`
	ResolutionMediaURL string `gorm:"size:512"`
	ResolvedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Division *Division             `gorm:"foreignKey:DivisionID"`
	Receipts []NotificationReceipt `gorm:"foreignKey:ReportID"`
}

// NotificationReceipt records one successful officer notification.
type NotificationReceipt struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	ReportID     string    `gorm:"size:40;index;not null"`
	OfficerPhone string    `gorm:"size:24;not null"`
	NotifiedAt   time.Time `gorm:"not null"`
}

// TerminalStatus reports whether s is a terminal report status.
func TerminalStatus(s string) bool {
	return s == StatusResolved || s == StatusRejected
}

// ValidStatus reports whether s is a known report status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}
