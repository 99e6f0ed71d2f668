package authorization

import (
	"context"
	"errors"
)

type Service interface {
	// Authorize checks whether a workspace role may perform action.
	Authorize(ctx context.Context, role string, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidAction = errors.New("invalid_action")
)
