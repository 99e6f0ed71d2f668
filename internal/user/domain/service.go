package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

type Service interface {
	// FindOrCreateByEmail returns the user for email, creating it on first
	// contact. created reports whether a new row was inserted.
	FindOrCreateByEmail(ctx context.Context, email, name string) (user *User, created bool, err error)
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	UpdateProfile(ctx context.Context, id snowflake.ID, req UpdateProfileRequest) (*User, error)
}

var (
	ErrNotFound        = errors.New("user_not_found")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidTimezone = errors.New("invalid_timezone")
)
