package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InviteTTL is how long an invite token stays acceptable.
const InviteTTL = 48 * time.Hour

type Workspace struct {
	ID                          snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name                        string        `gorm:"type:varchar(80);not null" json:"name"`
	Slug                        string        `gorm:"type:varchar(80);not null;uniqueIndex:ux_workspaces_slug" json:"slug"`
	Plan                        Plan          `gorm:"type:varchar(16);not null;default:'FREE'" json:"plan"`
	BillingStatus               BillingStatus `gorm:"type:varchar(16);not null;default:'NONE'" json:"billing_status"`
	StripeCustomerID            *string       `gorm:"type:varchar(255);uniqueIndex:ux_workspaces_stripe_customer" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID        *string       `gorm:"type:varchar(255);uniqueIndex:ux_workspaces_stripe_subscription" json:"stripe_subscription_id,omitempty"`
	SubscriptionStatusChangedAt *time.Time    `json:"subscription_status_changed_at,omitempty"`
	MembershipVersion           int64         `gorm:"not null;default:0" json:"-"`
	CreatedAt                   time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt                   time.Time     `gorm:"not null" json:"updated_at"`
}

func (Workspace) TableName() string { return "workspaces" }

type Member struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID      snowflake.ID `gorm:"not null;uniqueIndex:ux_workspace_members_user_workspace,priority:1" json:"user_id"`
	WorkspaceID snowflake.ID `gorm:"not null;uniqueIndex:ux_workspace_members_user_workspace,priority:2;index:ix_workspace_members_workspace" json:"workspace_id"`
	Role        Role         `gorm:"type:varchar(16);not null" json:"role"`
	Status      MemberStatus `gorm:"type:varchar(16);not null;default:'ACTIVE'" json:"status"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Member) TableName() string { return "workspace_members" }

type Invite struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	WorkspaceID snowflake.ID `gorm:"not null;index:ix_workspace_invites_workspace" json:"workspace_id"`
	Email       string       `gorm:"type:varchar(320);not null" json:"email"`
	Role        Role         `gorm:"type:varchar(16);not null" json:"role"`
	Token       string       `gorm:"type:varchar(64);not null;uniqueIndex:ux_workspace_invites_token" json:"-"`
	Status      InviteStatus `gorm:"type:varchar(16);not null" json:"status"`
	ExpiresAt   time.Time    `gorm:"not null" json:"expires_at"`
	AcceptedAt  *time.Time   `json:"accepted_at,omitempty"`
	CreatorID   snowflake.ID `gorm:"not null" json:"creator_id"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Invite) TableName() string { return "workspace_invites" }

func (i Invite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// WorkspaceListItem is a workspace as seen by one of its members.
type WorkspaceListItem struct {
	Workspace
	Role      Role      `json:"role"`
	IsDefault bool      `json:"is_default"`
	JoinedAt  time.Time `json:"joined_at"`
}

type MemberView struct {
	UserID   snowflake.ID `json:"user_id"`
	Email    string       `json:"email"`
	Name     string       `json:"name"`
	Role     Role         `json:"role"`
	Status   MemberStatus `json:"status"`
	JoinedAt time.Time    `json:"joined_at"`
}

type Summary struct {
	Workspace      Workspace    `json:"workspace"`
	Role           Role         `json:"role"`
	Members        []MemberView `json:"members"`
	PendingInvites []Invite     `json:"pending_invites"`
}

type DashboardMetrics struct {
	MemberCount    int64         `json:"member_count"`
	PendingInvites int64         `json:"pending_invites"`
	Plan           Plan          `json:"plan"`
	BillingStatus  BillingStatus `json:"billing_status"`
}

type DashboardActivity struct {
	ID        snowflake.ID   `json:"id"`
	ActorID   *snowflake.ID  `json:"actor_id,omitempty"`
	Action    string         `json:"action"`
	Target    *string        `json:"target,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type Dashboard struct {
	Workspace      Workspace           `json:"workspace"`
	Membership     Member              `json:"membership"`
	Metrics        DashboardMetrics    `json:"metrics"`
	RecentActivity []DashboardActivity `json:"recent_activity"`
}

type InvitePreview struct {
	WorkspaceID   snowflake.ID `json:"workspace_id"`
	WorkspaceName string       `json:"workspace_name"`
	Email         string       `json:"email"`
	Role          Role         `json:"role"`
	Status        InviteStatus `json:"status"`
	ExpiresAt     time.Time    `json:"expires_at"`
	Expired       bool         `json:"expired"`
	InviterName   string       `json:"inviter_name,omitempty"`
	InviterEmail  string       `json:"inviter_email,omitempty"`
}

type InviteRequest struct {
	WorkspaceID snowflake.ID
	InviterID   snowflake.ID
	Email       string
	Role        string
}

type InviteResult struct {
	Invite    Invite `json:"invite"`
	AcceptURL string `json:"accept_url"`
	Delivered bool   `json:"delivered"`
	// Reused is set when an unexpired pending invite was returned unchanged.
	Reused bool `json:"reused"`
}
