package chat

import (
	"fmt"
	"time"

	"github.com/roadwatch/roadwatch/internal/models"
	"gorm.io/gorm"
)

// DefaultIdleTimeout is the inactivity window after which a session decays
// back to language selection.
const DefaultIdleTimeout = 48 * time.Hour

// SessionStore loads and persists per-user conversation sessions. Sessions
// are created on first contact, mutated in place, and reset (never deleted)
// when idle past the timeout.
type SessionStore struct {
	db          *gorm.DB
	idleTimeout time.Duration
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(db *gorm.DB, idleTimeout time.Duration) (*SessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("chat: session store: db is required")
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &SessionStore{db: db, idleTimeout: idleTimeout}, nil
}

// FindOrCreate returns the session for a user handle, creating a fresh one
// in the language-selection state for unknown handles. A session idle past
// the timeout is reset to language selection before being returned.
func (s *SessionStore) FindOrCreate(handle, platform string) (*models.Session, error) {
	var sess models.Session
	err := s.db.First(&sess, "user_handle = ?", handle).Error
	if err == gorm.ErrRecordNotFound {
		sess = models.Session{
			UserHandle:      handle,
			Platform:        platform,
			CurrentState:    models.StateLanguageSelect,
			Language:        LangEnglish,
			LastInteraction: time.Now(),
		}
		if err := s.db.Create(&sess).Error; err != nil {
			return nil, fmt.Errorf("chat: create session %s: %w", handle, err)
		}
		return &sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat: find session %s: %w", handle, err)
	}

	if time.Since(sess.LastInteraction) > s.idleTimeout {
		resetSession(&sess)
	}
	return &sess, nil
}

// Save persists the session and bumps its last-interaction timestamp.
func (s *SessionStore) Save(sess *models.Session) error {
	sess.LastInteraction = time.Now()
	if err := s.db.Save(sess).Error; err != nil {
		return fmt.Errorf("chat: save session %s: %w", sess.UserHandle, err)
	}
	return nil
}

// ExpireIdle resets every session idle past the timeout to the
// language-selection state. Run from the cron scheduler; the engine also
// resets lazily on the next inbound message, so this sweep only keeps the
// table tidy between contacts.
func (s *SessionStore) ExpireIdle() (int64, error) {
	cutoff := time.Now().Add(-s.idleTimeout)
	result := s.db.Model(&models.Session{}).
		Where("last_interaction < ? AND current_state != ?", cutoff, models.StateLanguageSelect).
		Updates(map[string]interface{}{
			"current_state":     models.StateLanguageSelect,
			"last_option":       "",
			"draft_description": "",
			"draft_media_url":   "",
			"draft_media_type":  "",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("chat: expire idle sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// resetSession returns a session to the language-selection state, clearing
// transient conversation fields. Language and display name survive a reset
// only until the flow re-collects them.
func resetSession(sess *models.Session) {
	sess.CurrentState = models.StateLanguageSelect
	sess.LastOption = ""
	sess.DraftDescription = ""
	sess.DraftMediaURL = ""
	sess.DraftMediaType = ""
}

// clearDraft drops the stashed report fields after a submission attempt
// reaches a terminal outcome.
func clearDraft(sess *models.Session) {
	sess.LastOption = ""
	sess.DraftDescription = ""
	sess.DraftMediaURL = ""
	sess.DraftMediaType = ""
}
