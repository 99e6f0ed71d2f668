package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	"github.com/smallbiznis/teamspace/internal/billing/domain"
	workspacedomain "github.com/smallbiznis/teamspace/internal/workspace/domain"
	"github.com/smallbiznis/teamspace/pkg/db"
	"github.com/smallbiznis/teamspace/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

const (
	outcomeApplied    = "applied"
	outcomeStale      = "stale"
	outcomeDuplicate  = "duplicate"
	outcomeUnresolved = "unresolved"
	outcomeIgnored    = "ignored"
	outcomeConflict   = "conflict"
	outcomeSkipped    = "skipped"
	outcomeRejected   = "rejected"
	outcomeFailed     = "failed"
)

func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookResult, error) {
	ctx, cid := correlation.Ensure(ctx)
	log := s.log.With(zap.String("correlation_id", cid))

	if s.webhookMode() == domain.ModeStub {
		log.Info("skipping webhook handling (stub mode)")
		s.metrics.RecordWebhookEvent(ctx, string(domain.ModeStub), "", outcomeSkipped)
		return &domain.WebhookResult{Received: true, Mode: domain.ModeStub}, nil
	}

	event, err := s.provider.ConstructEvent(payload, signature, s.stripe.WebhookSecret)
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, string(domain.ModeLive), "", outcomeRejected)
		if errors.Is(err, domain.ErrInvalidEvent) {
			log.Warn("malformed stripe event", zap.Error(err))
			return nil, domain.ErrInvalidEvent
		}
		log.Error("invalid stripe signature", zap.Error(err))
		return nil, domain.ErrInvalidSignature
	}

	ctx, cid = correlation.ForEvent(ctx, "stripe", event.ID)
	log = s.log.With(
		zap.String("correlation_id", cid),
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)
	if event.Created.IsZero() {
		event.Created = s.now()
	}

	var outcome string
	switch event.Type {
	case domain.EventCheckoutSessionCompleted:
		outcome, err = s.applyCheckoutCompleted(ctx, log, event)
	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		outcome, err = s.applySubscriptionChange(ctx, log, event)
	default:
		log.Debug("unhandled stripe event")
		outcome = outcomeIgnored
	}
	if err != nil {
		log.Error("stripe event processing failed", zap.Error(err))
		s.metrics.RecordWebhookEvent(ctx, string(domain.ModeLive), event.Type, outcomeFailed)
		return nil, err
	}

	s.metrics.RecordWebhookEvent(ctx, string(domain.ModeLive), event.Type, outcome)
	return &domain.WebhookResult{Received: true, Mode: domain.ModeLive}, nil
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, log *zap.Logger, event *domain.Event) (string, error) {
	session := event.CheckoutSession
	if session == nil {
		log.Warn("checkout event without session payload")
		return outcomeIgnored, nil
	}

	workspaceID := metadataWorkspaceID(session.Metadata)
	customerID := session.CustomerID

	if workspaceID == 0 && session.SubscriptionID != "" {
		pctx, cancel := s.providerContext(ctx)
		subscription, err := s.provider.GetSubscription(pctx, session.SubscriptionID)
		cancel()
		if err != nil {
			log.Warn("failed to retrieve subscription metadata",
				zap.String("subscription_id", session.SubscriptionID),
				zap.Error(err),
			)
		} else if subscription != nil {
			workspaceID = metadataWorkspaceID(subscription.Metadata)
			if customerID == "" {
				customerID = subscription.CustomerID
			}
		}
	}

	if workspaceID == 0 && customerID != "" {
		id, err := s.repo.FindWorkspaceIDByCustomer(ctx, customerID)
		if err != nil {
			return "", err
		}
		workspaceID = id
	}

	if workspaceID == 0 || session.SubscriptionID == "" {
		log.Warn("checkout event could not be matched to a workspace",
			zap.String("customer_id", customerID),
			zap.String("subscription_id", session.SubscriptionID),
		)
		return outcomeUnresolved, nil
	}

	subscriptionID := session.SubscriptionID
	return s.applyState(ctx, log, domain.BillingState{
		WorkspaceID:    workspaceID,
		Plan:           planPtr(workspacedomain.PlanPro),
		Status:         workspacedomain.BillingStatusActive,
		CustomerID:     strPtr(customerID),
		SubscriptionID: &subscriptionID,
		ChangedAt:      event.Created,
	}, auditdomain.Entry{
		Action:   "billing.subscription.active",
		Metadata: map[string]any{"subscriptionId": subscriptionID},
	})
}

func (s *Service) applySubscriptionChange(ctx context.Context, log *zap.Logger, event *domain.Event) (string, error) {
	subscription := event.Subscription
	if subscription == nil {
		log.Warn("subscription event without subscription payload")
		return outcomeIgnored, nil
	}

	workspaceID := metadataWorkspaceID(subscription.Metadata)
	if workspaceID == 0 {
		id, err := s.repo.FindWorkspaceIDBySubscription(ctx, subscription.ID)
		if err != nil {
			return "", err
		}
		workspaceID = id
	}
	if workspaceID == 0 {
		id, err := s.repo.FindWorkspaceIDByCustomer(ctx, subscription.CustomerID)
		if err != nil {
			return "", err
		}
		workspaceID = id
	}
	if workspaceID == 0 {
		log.Warn("subscription event could not be matched to a workspace",
			zap.String("customer_id", subscription.CustomerID),
			zap.String("subscription_id", subscription.ID),
		)
		return outcomeUnresolved, nil
	}

	status, plan := mapSubscriptionStatus(subscription.Status)
	return s.applyState(ctx, log, domain.BillingState{
		WorkspaceID:    workspaceID,
		Plan:           plan,
		Status:         status,
		CustomerID:     strPtr(subscription.CustomerID),
		SubscriptionID: strPtr(subscription.ID),
		ChangedAt:      event.Created,
	}, auditdomain.Entry{
		Action:   "billing.subscription.updated",
		Metadata: map[string]any{"status": subscription.Status},
	})
}

// applyState writes a reconciled snapshot and audits it when it landed.
// Events older than the stored change, and redeliveries of the snapshot
// already stored, are dropped without an audit entry.
func (s *Service) applyState(ctx context.Context, log *zap.Logger, state domain.BillingState, entry auditdomain.Entry) (string, error) {
	ws, err := s.repo.FindWorkspace(ctx, state.WorkspaceID)
	if err != nil {
		return "", err
	}
	if ws == nil {
		log.Warn("billing event references unknown workspace",
			zap.String("workspace_id", state.WorkspaceID.String()),
		)
		return outcomeUnresolved, nil
	}
	if alreadyApplied(ws, state) {
		log.Debug("billing event already reconciled",
			zap.String("workspace_id", ws.ID.String()),
			zap.Time("event_created", state.ChangedAt),
		)
		return outcomeDuplicate, nil
	}

	state.UpdatedAt = s.now()
	updated, err := s.repo.ApplyBillingState(ctx, state)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			log.Warn("billing identifiers already bound to another workspace",
				zap.String("workspace_id", ws.ID.String()),
				zap.Error(err),
			)
			return outcomeConflict, nil
		}
		return "", err
	}
	if updated == 0 {
		log.Debug("stale billing event ignored",
			zap.String("workspace_id", ws.ID.String()),
			zap.Time("event_created", state.ChangedAt),
		)
		return outcomeStale, nil
	}

	entry.WorkspaceID = idPtr(ws.ID)
	s.recordAudit(ctx, entry)

	log.Info("billing state reconciled",
		zap.String("workspace_id", ws.ID.String()),
		zap.String("billing_status", string(state.Status)),
	)
	return outcomeApplied, nil
}

// alreadyApplied reports whether the workspace already carries state at the
// same change marker. Nil identifiers and plan leave the stored value alone,
// so they match anything.
func alreadyApplied(ws *workspacedomain.Workspace, state domain.BillingState) bool {
	if ws.SubscriptionStatusChangedAt == nil || !ws.SubscriptionStatusChangedAt.Equal(state.ChangedAt) {
		return false
	}
	if ws.BillingStatus != state.Status {
		return false
	}
	if state.Plan != nil && *state.Plan != ws.Plan {
		return false
	}
	return sameIdentifier(state.CustomerID, ws.StripeCustomerID) &&
		sameIdentifier(state.SubscriptionID, ws.StripeSubscriptionID)
}

func sameIdentifier(want, have *string) bool {
	if want == nil {
		return true
	}
	return have != nil && *have == *want
}

// mapSubscriptionStatus folds provider statuses onto the workspace billing
// status. A nil plan leaves the stored plan untouched.
func mapSubscriptionStatus(status string) (workspacedomain.BillingStatus, *workspacedomain.Plan) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return workspacedomain.BillingStatusActive, planPtr(workspacedomain.PlanPro)
	case "past_due":
		return workspacedomain.BillingStatusPastDue, nil
	default:
		return workspacedomain.BillingStatusCanceled, planPtr(workspacedomain.PlanFree)
	}
}

func metadataWorkspaceID(metadata map[string]string) snowflake.ID {
	raw := strings.TrimSpace(metadata[domain.MetadataWorkspaceID])
	if raw == "" {
		return 0
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0
	}
	return id
}
