package domain

import "errors"

var (
	ErrForbidden         = errors.New("forbidden")
	ErrWorkspaceNotFound = errors.New("workspace_not_found")
	ErrMemberNotFound    = errors.New("member_not_found")
	ErrInviteNotFound    = errors.New("invite_not_found")
	ErrAlreadyMember     = errors.New("already_member")
	ErrInviteNotPending  = errors.New("invite_not_pending")
	ErrInviteExpired     = errors.New("invite_expired")
	ErrEmailMismatch     = errors.New("invite_email_mismatch")
	ErrLastOwner         = errors.New("last_owner")
	ErrOwnerRemoval      = errors.New("owner_removal")
	ErrConcurrentUpdate  = errors.New("concurrent_update")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidRole       = errors.New("invalid_role")
	ErrSlugExhausted     = errors.New("slug_exhausted")
)
