package models

import "time"

// TeamApplication statuses. Pending means the link was issued but the form
// is not yet filled in; submitted applications await review.
const (
	ApplicationPending   = "pending"
	ApplicationSubmitted = "submitted"
	ApplicationApproved  = "approved"
	ApplicationRejected  = "rejected"
)

// TeamApplication is a structured join-team request submitted through the
// application form linked from the chat menu.
type TeamApplication struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	SessionToken string `gorm:"size:64;uniqueIndex"`
	UserHandle   string `gorm:"size:128;index"`
	Name         string `gorm:"size:128"`
	Phone        string `gorm:"size:24"`
	Email        string `gorm:"size:128"`
	Area         string `gorm:"size:128"`
	Motivation   string `gorm:"type:text"`
	Status       string `gorm:"size:16;default:pending;index"`
	ReviewNote   string `gorm:"type:text"`
	CreatedAt    time.Time
	ReviewedAt   *time.Time
}
