package models

import "time"

// AdminUser is an administrative account authenticated via phone OTP.
type AdminUser struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"size:128;not null"`
	Phone        string `gorm:"size:24;uniqueIndex;not null"`
	Role         string `gorm:"size:16;default:viewer"`
	PasswordHash string `gorm:"size:128"`
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// OTPCode is a short-lived one-time code issued to an admin phone.
// Codes are single-use: verification marks the row consumed.
type OTPCode struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Phone     string    `gorm:"size:24;index;not null"`
	Code      string    `gorm:"size:8;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Consumed  bool      `gorm:"default:false"`
	CreatedAt time.Time
}
