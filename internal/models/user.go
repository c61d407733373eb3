package models

import (
	"strings"
	"time"
)

type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	FullName       string    `json:"full_name"`
	Phone          string    `json:"phone"`
	Credits        float64   `json:"credits"`
	Role           string    `json:"role"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Computed by the service layer, never stored.
	FirstName  string  `json:"first_name,omitempty"`
	TotalSpent float64 `json:"total_spent,omitempty"`
}

func (u User) RecordID() int64            { return u.ID }
func (u User) RecordUpdatedAt() time.Time { return u.UpdatedAt }

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// DeriveFirstName returns the first word of the full name, falling back to the
// local part of the email.
func DeriveFirstName(fullName, email string) string {
	if fields := strings.Fields(fullName); len(fields) > 0 {
		return fields[0]
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return ""
}

// UserProfilePatch is a partial profile update; nil fields are left untouched.
type UserProfilePatch struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// AuthToken is a single-use email confirmation or password reset token.
type AuthToken struct {
	Token     string
	UserID    int64
	Purpose   string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

const (
	TokenPurposeConfirm = "confirm_email"
	TokenPurposeReset   = "reset_password"
)

// Session is an authenticated sign-in.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}
