package models

import "time"

// RefreshToken is one link in a session's chain of refresh tokens. Each sign-in
// starts a new session; every refresh adds a child of the token it consumed.
// Only a hash of the token is stored.
type RefreshToken struct {
	Base
	UserID    string     `gorm:"type:uuid;not null;index" json:"user_id"`
	SessionID string     `gorm:"type:uuid;not null;index" json:"session_id"`
	ParentID  *string    `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	TokenHash string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
}

// IsRotated reports whether the token has already been exchanged.
func (t *RefreshToken) IsRotated() bool {
	return t.RotatedAt != nil
}
