package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/teamspace/internal/billing/domain"
	workspacedomain "github.com/smallbiznis/teamspace/internal/workspace/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) FindWorkspace(ctx context.Context, id snowflake.ID) (*workspacedomain.Workspace, error) {
	var ws workspacedomain.Workspace
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, slug, plan, billing_status, stripe_customer_id, stripe_subscription_id,
			subscription_status_changed_at, created_at, updated_at
		 FROM workspaces WHERE id = ?`,
		id,
	).Scan(&ws).Error
	if err != nil {
		return nil, err
	}
	if ws.ID == 0 {
		return nil, nil
	}
	return &ws, nil
}

func (r *repository) FindWorkspaceIDByCustomer(ctx context.Context, customerID string) (snowflake.ID, error) {
	return r.findWorkspaceID(ctx, `SELECT id FROM workspaces WHERE stripe_customer_id = ? LIMIT 1`, customerID)
}

func (r *repository) FindWorkspaceIDBySubscription(ctx context.Context, subscriptionID string) (snowflake.ID, error) {
	return r.findWorkspaceID(ctx, `SELECT id FROM workspaces WHERE stripe_subscription_id = ? LIMIT 1`, subscriptionID)
}

func (r *repository) findWorkspaceID(ctx context.Context, query, value string) (snowflake.ID, error) {
	if value == "" {
		return 0, nil
	}
	var ids []snowflake.ID
	if err := r.db.WithContext(ctx).Raw(query, value).Scan(&ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

func (r *repository) SetCustomerIDIfEmpty(ctx context.Context, workspaceID snowflake.ID, customerID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE workspaces SET stripe_customer_id = ?, updated_at = ?
		 WHERE id = ? AND stripe_customer_id IS NULL`,
		customerID,
		now,
		workspaceID,
	)
	return res.RowsAffected, res.Error
}

// ApplyBillingState overwrites the billing columns unless a newer provider
// change has already been stored and state.Force is unset.
func (r *repository) ApplyBillingState(ctx context.Context, state domain.BillingState) (int64, error) {
	var plan *string
	if state.Plan != nil {
		value := string(*state.Plan)
		plan = &value
	}
	res := r.db.WithContext(ctx).Exec(
		`UPDATE workspaces SET
			plan = COALESCE(?, plan),
			billing_status = ?,
			stripe_customer_id = COALESCE(?, stripe_customer_id),
			stripe_subscription_id = COALESCE(?, stripe_subscription_id),
			subscription_status_changed_at = ?,
			updated_at = ?
		 WHERE id = ?
		   AND (? OR subscription_status_changed_at IS NULL OR subscription_status_changed_at <= ?)`,
		plan,
		string(state.Status),
		state.CustomerID,
		state.SubscriptionID,
		state.ChangedAt,
		state.UpdatedAt,
		state.WorkspaceID,
		state.Force,
		state.ChangedAt,
	)
	return res.RowsAffected, res.Error
}
