package models

import "time"

// Conversation states for a citizen session.
const (
	StateLanguageSelect     = "language_select"
	StateNameCollection     = "name_collection"
	StateMenu               = "menu"
	StateAwaitingReport     = "awaiting_report"
	StateAwaitingSuggestion = "awaiting_suggestion"
	StateAwaitingLocation   = "awaiting_location"
	StateJoinLinkSent       = "join_link_sent"
)

// Session is the durable per-citizen conversation state. One row exists per
// channel-specific user handle; the row is mutated in place for the life of
// the conversation and reset to language selection after the inactivity
// window, never hard-deleted.
type Session struct {
	UserHandle       string    `gorm:"primaryKey;size:128"`
	Platform         string    `gorm:"size:16;default:whatsapp"`
	CurrentState     string    `gorm:"size:32;default:language_select;index"`
	LastOption       string    `gorm:"size:8"`
	Language         string    `gorm:"size:8;default:en"`
	DisplayName      string    `gorm:"size:128"`
	DraftDescription string    `gorm:"type:text"`
	DraftMediaURL    string    `gorm:"size:512"`
	DraftMediaType   string    `gorm:"size:64"`
	LastInteraction  time.Time `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProcessedDelivery records a handled webhook delivery. Chat gateways retry
// deliveries; replaying a recorded delivery ID returns ReplyBody without
// re-running any side effect.
type ProcessedDelivery struct {
	DeliveryID string `gorm:"primaryKey;size:128"`
	UserHandle string `gorm:"size:128;index"`
	ReplyBody  string `gorm:"type:text"`
	ReportID   string `gorm:"size:40"`
	CreatedAt  time.Time
}
