package domain

import "errors"

var (
	ErrForbidden         = errors.New("forbidden")
	ErrWorkspaceNotFound = errors.New("workspace_not_found")
	ErrProvider          = errors.New("billing_provider_error")
	ErrInvalidSignature  = errors.New("invalid_signature")
	ErrInvalidEvent      = errors.New("invalid_event")
)
