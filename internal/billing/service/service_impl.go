package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	"github.com/smallbiznis/teamspace/internal/billing/domain"
	"github.com/smallbiznis/teamspace/internal/clock"
	"github.com/smallbiznis/teamspace/internal/config"
	"github.com/smallbiznis/teamspace/internal/observability/metrics"
	workspacedomain "github.com/smallbiznis/teamspace/internal/workspace/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	stubCustomerPrefix     = "stub_cus_"
	stubSubscriptionPrefix = "stub_sub_"
	defaultProviderTimeout = 10 * time.Second
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Repo       domain.Repository
	Provider   domain.Provider `optional:"true"`
	Workspaces workspacedomain.Service
	AuditSvc   auditdomain.Service
	Clock      clock.Clock
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	appURL     string
	stripe     config.StripeConfig
	repo       domain.Repository
	provider   domain.Provider
	workspaces workspacedomain.Service
	auditSvc   auditdomain.Service
	clock      clock.Clock
	metrics    *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("billing.service"),
		appURL:     p.Cfg.AppURL,
		stripe:     p.Cfg.Stripe,
		repo:       p.Repo,
		provider:   p.Provider,
		workspaces: p.Workspaces,
		auditSvc:   p.AuditSvc,
		clock:      p.Clock,
		metrics:    p.Metrics,
	}
}

// checkoutMode is live only when a provider is wired and both the secret key
// and the PRO price are configured.
func (s *Service) checkoutMode() domain.Mode {
	if s.provider != nil && s.stripe.SecretKey != "" && s.stripe.PriceIDPro != "" {
		return domain.ModeLive
	}
	return domain.ModeStub
}

func (s *Service) portalMode() domain.Mode {
	if s.provider != nil && s.stripe.SecretKey != "" {
		return domain.ModeLive
	}
	return domain.ModeStub
}

func (s *Service) webhookMode() domain.Mode {
	if s.provider != nil && s.stripe.WebhookSecret != "" {
		return domain.ModeLive
	}
	return domain.ModeStub
}

func (s *Service) authorize(ctx context.Context, workspaceID, userID snowflake.ID, action string) error {
	if _, err := s.workspaces.Authorize(ctx, workspaceID, userID, action); err != nil {
		if errors.Is(err, workspacedomain.ErrForbidden) {
			return domain.ErrForbidden
		}
		return err
	}
	return nil
}

func (s *Service) findWorkspace(ctx context.Context, id snowflake.ID) (*workspacedomain.Workspace, error) {
	ws, err := s.repo.FindWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, domain.ErrWorkspaceNotFound
	}
	return ws, nil
}

func (s *Service) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.stripe.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func providerError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrProvider, op, err)
}

func (s *Service) recordAudit(ctx context.Context, entry auditdomain.Entry) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, entry); err != nil {
		s.log.Warn("audit write degraded",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		s.metrics.RecordAuditDegraded(ctx, entry.Action)
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

func idPtr(id snowflake.ID) *snowflake.ID {
	return &id
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func planPtr(plan workspacedomain.Plan) *workspacedomain.Plan {
	return &plan
}
