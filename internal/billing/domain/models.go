package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	workspacedomain "github.com/smallbiznis/teamspace/internal/workspace/domain"
)

type Mode string

const (
	ModeLive Mode = "live"
	ModeStub Mode = "stub"
)

const MetadataWorkspaceID = "workspaceId"

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

type SessionResult struct {
	URL  string `json:"url"`
	Mode Mode   `json:"mode"`
}

type WebhookResult struct {
	Received bool `json:"received"`
	Mode     Mode `json:"mode"`
}

type Summary struct {
	WorkspaceID                 snowflake.ID                  `json:"workspace_id"`
	Name                        string                        `json:"name"`
	Plan                        workspacedomain.Plan          `json:"plan"`
	BillingStatus               workspacedomain.BillingStatus `json:"billing_status"`
	HasCustomer                 bool                          `json:"has_customer"`
	HasSubscription             bool                          `json:"has_subscription"`
	SubscriptionStatusChangedAt *time.Time                    `json:"subscription_status_changed_at,omitempty"`
	Mode                        Mode                          `json:"mode"`
	WebhookConfigured           bool                          `json:"webhook_configured"`
}

// BillingState is a reconciled snapshot written onto a workspace. Nil
// pointers leave the stored column unchanged.
type BillingState struct {
	WorkspaceID    snowflake.ID
	Plan           *workspacedomain.Plan
	Status         workspacedomain.BillingStatus
	CustomerID     *string
	SubscriptionID *string
	ChangedAt      time.Time
	UpdatedAt      time.Time
	// Force skips the stale-change guard. Stub checkout is the only
	// authority in stub mode and always applies.
	Force bool
}
