package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	billingdomain "github.com/smallbiznis/teamspace/internal/billing/domain"
	"github.com/smallbiznis/teamspace/internal/ratelimit"
	workspacedomain "github.com/smallbiznis/teamspace/internal/workspace/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", workspacedomain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"billing forbidden", billingdomain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"email mismatch", workspacedomain.ErrEmailMismatch, http.StatusForbidden, "email_mismatch"},
		{"workspace missing", workspacedomain.ErrWorkspaceNotFound, http.StatusNotFound, "not_found"},
		{"invite missing", workspacedomain.ErrInviteNotFound, http.StatusNotFound, "not_found"},
		{"invite not pending", workspacedomain.ErrInviteNotPending, http.StatusConflict, "invalid_state"},
		{"already member", workspacedomain.ErrAlreadyMember, http.StatusConflict, "conflict"},
		{"invite expired", workspacedomain.ErrInviteExpired, http.StatusGone, "expired"},
		{"last owner", workspacedomain.ErrLastOwner, http.StatusUnprocessableEntity, "invariant_violation"},
		{"owner removal", workspacedomain.ErrOwnerRemoval, http.StatusUnprocessableEntity, "invariant_violation"},
		{"invalid role", workspacedomain.ErrInvalidRole, http.StatusBadRequest, "validation_error"},
		{"invalid page token", auditdomain.ErrInvalidPageToken, http.StatusBadRequest, "validation_error"},
		{"provider", fmt.Errorf("%w: card_declined", billingdomain.ErrProvider), http.StatusBadGateway, "provider_error"},
		{"signature", billingdomain.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
		{"rate limited", &ratelimit.LimitError{Key: "k", RetryAfter: time.Second}, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}
}

func TestMapError_ValidationField(t *testing.T) {
	status, payload := mapError(workspacedomain.ErrInvalidName)
	assert.Equal(t, http.StatusBadRequest, status)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "name", payload.Errors[0].Field)
		assert.Equal(t, "invalid_name", payload.Errors[0].Code)
	}
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "name", toSnake("Name"))
	assert.Equal(t, "page_size", toSnake("PageSize"))
}
