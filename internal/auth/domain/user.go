package domain

import (
	"strings"
	"time"
)

// UserStatus is the account state of a user.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusBlocked  UserStatus = "blocked"
)

type User struct {
	ID           string
	Email        string // normalised, see NormalizeEmail
	PasswordHash string // bcrypt or argon2id encoded
	GivenName    string
	FamilyName   string
	Phone        *string
	Status       UserStatus
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the account may log in.
func (u User) IsActive() bool { return u.Status == UserStatusActive }

// PublicUser is the projection returned after registration. It never carries the hash.
type PublicUser struct {
	ID         string
	Email      string
	GivenName  string
	FamilyName string
}

// Public returns the public projection of the user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Email:      u.Email,
		GivenName:  u.GivenName,
		FamilyName: u.FamilyName,
	}
}

// NormalizeEmail trims and lowercases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
