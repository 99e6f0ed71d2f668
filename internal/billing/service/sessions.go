package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	"github.com/smallbiznis/teamspace/internal/authorization"
	"github.com/smallbiznis/teamspace/internal/billing/domain"
	workspacedomain "github.com/smallbiznis/teamspace/internal/workspace/domain"
	"go.uber.org/zap"
)

func (s *Service) CreateCheckoutSession(ctx context.Context, workspaceID, actorID snowflake.ID) (*domain.SessionResult, error) {
	if err := s.authorize(ctx, workspaceID, actorID, authorization.ActionBillingManage); err != nil {
		return nil, err
	}
	ws, err := s.findWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if s.checkoutMode() == domain.ModeStub {
		now := s.now()
		// never move the change marker backwards, a later live event still
		// has to compare against it
		changedAt := now
		if prev := ws.SubscriptionStatusChangedAt; prev != nil && prev.After(changedAt) {
			changedAt = *prev
		}
		subscriptionID := stubSubscriptionPrefix + ws.ID.String()
		updated, err := s.repo.ApplyBillingState(ctx, domain.BillingState{
			WorkspaceID:    ws.ID,
			Plan:           planPtr(workspacedomain.PlanPro),
			Status:         workspacedomain.BillingStatusActive,
			SubscriptionID: &subscriptionID,
			ChangedAt:      changedAt,
			UpdatedAt:      now,
			Force:          true,
		})
		if err != nil {
			return nil, err
		}
		if updated == 0 {
			s.log.Warn("stub upgrade matched no workspace row", zap.String("workspace_id", ws.ID.String()))
			return nil, domain.ErrWorkspaceNotFound
		}

		s.recordAudit(ctx, auditdomain.Entry{
			WorkspaceID: idPtr(ws.ID),
			ActorID:     idPtr(actorID),
			Action:      "billing.stub.upgraded",
		})
		s.metrics.RecordBillingSession(ctx, "checkout", string(domain.ModeStub))

		return &domain.SessionResult{
			URL:  fmt.Sprintf("%s/billing/success?workspaceId=%s&mode=stub", s.appURL, ws.ID),
			Mode: domain.ModeStub,
		}, nil
	}

	customerID, err := s.ensureCustomer(ctx, ws, domain.ModeLive)
	if err != nil {
		return nil, err
	}

	pctx, cancel := s.providerContext(ctx)
	defer cancel()
	session, err := s.provider.CreateCheckoutSession(pctx, domain.CheckoutInput{
		CustomerID:  customerID,
		PriceID:     s.stripe.PriceIDPro,
		WorkspaceID: ws.ID.String(),
		SuccessURL:  s.appURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   s.appURL + "/settings/billing",
	})
	if err != nil {
		s.log.Error("checkout session creation failed",
			zap.String("workspace_id", ws.ID.String()),
			zap.Error(err),
		)
		return nil, providerError("create checkout session", err)
	}

	s.recordAudit(ctx, auditdomain.Entry{
		WorkspaceID: idPtr(ws.ID),
		ActorID:     idPtr(actorID),
		Action:      "billing.checkout.created",
		Metadata:    map[string]any{"sessionId": session.ID},
	})
	s.metrics.RecordBillingSession(ctx, "checkout", string(domain.ModeLive))

	return &domain.SessionResult{URL: session.URL, Mode: domain.ModeLive}, nil
}

func (s *Service) CreatePortalSession(ctx context.Context, workspaceID, actorID snowflake.ID) (*domain.SessionResult, error) {
	if err := s.authorize(ctx, workspaceID, actorID, authorization.ActionBillingManage); err != nil {
		return nil, err
	}
	ws, err := s.findWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if s.portalMode() == domain.ModeStub {
		s.recordAudit(ctx, auditdomain.Entry{
			WorkspaceID: idPtr(ws.ID),
			ActorID:     idPtr(actorID),
			Action:      "billing.stub.portal",
		})
		s.metrics.RecordBillingSession(ctx, "portal", string(domain.ModeStub))

		return &domain.SessionResult{
			URL:  fmt.Sprintf("%s/billing/portal?workspaceId=%s&mode=stub", s.appURL, ws.ID),
			Mode: domain.ModeStub,
		}, nil
	}

	customerID, err := s.ensureCustomer(ctx, ws, domain.ModeLive)
	if err != nil {
		return nil, err
	}

	pctx, cancel := s.providerContext(ctx)
	defer cancel()
	session, err := s.provider.CreatePortalSession(pctx, domain.PortalInput{
		CustomerID: customerID,
		ReturnURL:  s.appURL + "/settings/billing",
	})
	if err != nil {
		s.log.Error("portal session creation failed",
			zap.String("workspace_id", ws.ID.String()),
			zap.Error(err),
		)
		return nil, providerError("create portal session", err)
	}

	s.recordAudit(ctx, auditdomain.Entry{
		WorkspaceID: idPtr(ws.ID),
		ActorID:     idPtr(actorID),
		Action:      "billing.portal.created",
		Metadata:    map[string]any{"portalSessionId": session.ID},
	})
	s.metrics.RecordBillingSession(ctx, "portal", string(domain.ModeLive))

	return &domain.SessionResult{URL: session.URL, Mode: domain.ModeLive}, nil
}

func (s *Service) EnsureStripeCustomer(ctx context.Context, workspaceID snowflake.ID) (string, error) {
	ws, err := s.findWorkspace(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	return s.ensureCustomer(ctx, ws, s.portalMode())
}

// ensureCustomer returns the cached customer id or creates one. The provider
// call happens before the conditional write; a concurrent winner's id is
// returned instead of ours.
func (s *Service) ensureCustomer(ctx context.Context, ws *workspacedomain.Workspace, mode domain.Mode) (string, error) {
	if ws.StripeCustomerID != nil && *ws.StripeCustomerID != "" {
		return *ws.StripeCustomerID, nil
	}

	customerID := stubCustomerPrefix + ws.ID.String()
	if mode == domain.ModeLive {
		pctx, cancel := s.providerContext(ctx)
		created, err := s.provider.CreateCustomer(pctx, domain.CustomerInput{
			Name:        ws.Name,
			WorkspaceID: ws.ID.String(),
		})
		cancel()
		if err != nil {
			s.log.Error("customer creation failed",
				zap.String("workspace_id", ws.ID.String()),
				zap.Error(err),
			)
			return "", providerError("create customer", err)
		}
		customerID = created
	}

	updated, err := s.repo.SetCustomerIDIfEmpty(ctx, ws.ID, customerID, s.now())
	if err != nil {
		return "", err
	}
	if updated == 0 {
		current, err := s.findWorkspace(ctx, ws.ID)
		if err != nil {
			return "", err
		}
		if current.StripeCustomerID != nil && *current.StripeCustomerID != "" {
			if *current.StripeCustomerID != customerID {
				s.log.Warn("customer already stored by concurrent request",
					zap.String("workspace_id", ws.ID.String()),
					zap.String("discarded_customer_id", customerID),
				)
			}
			return *current.StripeCustomerID, nil
		}
	}

	s.log.Info("stripe customer created",
		zap.String("workspace_id", ws.ID.String()),
		zap.String("customer_id", customerID),
		zap.String("mode", string(mode)),
	)
	return customerID, nil
}

func (s *Service) GetBillingSummary(ctx context.Context, workspaceID, userID snowflake.ID) (*domain.Summary, error) {
	if err := s.authorize(ctx, workspaceID, userID, authorization.ActionWorkspaceView); err != nil {
		return nil, err
	}
	ws, err := s.findWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return &domain.Summary{
		WorkspaceID:                 ws.ID,
		Name:                        ws.Name,
		Plan:                        ws.Plan,
		BillingStatus:               ws.BillingStatus,
		HasCustomer:                 ws.StripeCustomerID != nil && *ws.StripeCustomerID != "",
		HasSubscription:             ws.StripeSubscriptionID != nil && *ws.StripeSubscriptionID != "",
		SubscriptionStatusChangedAt: ws.SubscriptionStatusChangedAt,
		Mode:                        s.checkoutMode(),
		WebhookConfigured:           s.webhookMode() == domain.ModeLive,
	}, nil
}
