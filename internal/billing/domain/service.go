package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	workspacedomain "github.com/smallbiznis/teamspace/internal/workspace/domain"
)

type Service interface {
	CreateCheckoutSession(ctx context.Context, workspaceID, actorID snowflake.ID) (*SessionResult, error)
	CreatePortalSession(ctx context.Context, workspaceID, actorID snowflake.ID) (*SessionResult, error)
	EnsureStripeCustomer(ctx context.Context, workspaceID snowflake.ID) (string, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)
	GetBillingSummary(ctx context.Context, workspaceID, userID snowflake.ID) (*Summary, error)
}

type Repository interface {
	FindWorkspace(ctx context.Context, id snowflake.ID) (*workspacedomain.Workspace, error)
	FindWorkspaceIDByCustomer(ctx context.Context, customerID string) (snowflake.ID, error)
	FindWorkspaceIDBySubscription(ctx context.Context, subscriptionID string) (snowflake.ID, error)
	SetCustomerIDIfEmpty(ctx context.Context, workspaceID snowflake.ID, customerID string, now time.Time) (int64, error)
	ApplyBillingState(ctx context.Context, state BillingState) (int64, error)
}
