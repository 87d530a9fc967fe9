package models

import "time"

// User is an identity managed by the built-in identity provider. Deployments
// that delegate to a hosted identity service never populate this table.
type User struct {
	Base
	Email            string     `gorm:"uniqueIndex;not null" json:"email"`
	Password         string     `gorm:"not null" json:"-"`
	FullName         string     `json:"full_name"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	ConfirmationCode *string    `gorm:"uniqueIndex" json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

// IsConfirmed reports whether the user has confirmed their email address.
func (u *User) IsConfirmed() bool {
	return u.EmailConfirmedAt != nil
}
