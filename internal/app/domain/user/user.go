// Package user defines the account domain model.
package user

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// MinNameLength is the minimum accepted display-name length.
const MinNameLength = 2

var (
	// ErrInvalidEmail rejects addresses that do not parse.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrNameTooShort rejects display names under the minimum length.
	ErrNameTooShort = errors.New("name must be at least 2 characters")
)

// User is an account. Email addresses are stored normalized and double as
// the login identifier.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	IsStaff      bool      `json:"is_staff" db:"is_staff"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeEmail lowercases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks the account's field constraints.
func (u User) Validate() error {
	addr, err := mail.ParseAddress(u.Email)
	if err != nil || addr.Address != u.Email {
		return ErrInvalidEmail
	}
	if len(strings.TrimSpace(u.Name)) < MinNameLength {
		return ErrNameTooShort
	}
	return nil
}
