package domain

import (
	"errors"
	"strings"
)

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

func ParseRole(value string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

type MemberStatus string

const (
	MemberStatusActive MemberStatus = "ACTIVE"
	// MemberStatusSuspended is reserved; nothing transitions into it yet.
	MemberStatusSuspended MemberStatus = "SUSPENDED"
)

var ErrInvalidMemberStatus = errors.New("invalid_member_status")

func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusActive, MemberStatusSuspended:
		return true
	default:
		return false
	}
}

func ParseMemberStatus(value string) (MemberStatus, error) {
	status := MemberStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", ErrInvalidMemberStatus
	}
	return status, nil
}

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "PENDING"
	InviteStatusAccepted InviteStatus = "ACCEPTED"
	InviteStatusCanceled InviteStatus = "CANCELED"
	InviteStatusExpired  InviteStatus = "EXPIRED"
)

var ErrInvalidInviteStatus = errors.New("invalid_invite_status")

func (s InviteStatus) Valid() bool {
	switch s {
	case InviteStatusPending, InviteStatusAccepted, InviteStatusCanceled, InviteStatusExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether the invite can no longer change state.
func (s InviteStatus) Terminal() bool {
	return s != InviteStatusPending
}

func ParseInviteStatus(value string) (InviteStatus, error) {
	status := InviteStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", ErrInvalidInviteStatus
	}
	return status, nil
}

type Plan string

const (
	PlanFree Plan = "FREE"
	PlanPro  Plan = "PRO"
)

var ErrInvalidPlan = errors.New("invalid_plan")

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro:
		return true
	default:
		return false
	}
}

func ParsePlan(value string) (Plan, error) {
	plan := Plan(strings.ToUpper(strings.TrimSpace(value)))
	if !plan.Valid() {
		return "", ErrInvalidPlan
	}
	return plan, nil
}

type BillingStatus string

const (
	BillingStatusNone     BillingStatus = "NONE"
	BillingStatusActive   BillingStatus = "ACTIVE"
	BillingStatusPastDue  BillingStatus = "PAST_DUE"
	BillingStatusCanceled BillingStatus = "CANCELED"
)

var ErrInvalidBillingStatus = errors.New("invalid_billing_status")

func (s BillingStatus) Valid() bool {
	switch s {
	case BillingStatusNone, BillingStatusActive, BillingStatusPastDue, BillingStatusCanceled:
		return true
	default:
		return false
	}
}

func ParseBillingStatus(value string) (BillingStatus, error) {
	status := BillingStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", ErrInvalidBillingStatus
	}
	return status, nil
}
