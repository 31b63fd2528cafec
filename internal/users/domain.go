package users

import (
	"errors"
	"time"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// User represents a user account for management.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateInput describes a new account.
type CreateInput struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
}

// DeleteSummary reports the rows removed with a user.
type DeleteSummary struct {
	User         User  `json:"user"`
	SalesRemoved int64 `json:"sales_removed"`
}

var (
	// ErrUserNotFound is returned when the user row is missing.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrUsernameTaken is returned on a duplicate username.
	ErrUsernameTaken = errors.New("users: username already exists")
)
