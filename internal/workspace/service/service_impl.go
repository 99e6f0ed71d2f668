package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	"github.com/smallbiznis/teamspace/internal/authorization"
	"github.com/smallbiznis/teamspace/internal/clock"
	"github.com/smallbiznis/teamspace/internal/config"
	"github.com/smallbiznis/teamspace/internal/observability/metrics"
	"github.com/smallbiznis/teamspace/internal/providers/email"
	userdomain "github.com/smallbiznis/teamspace/internal/user/domain"
	"github.com/smallbiznis/teamspace/internal/workspace/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minNameLength = 2
	maxNameLength = 80
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Cfg      config.Config
	Repo     domain.Repository
	UserRepo userdomain.Repository
	Authz    authorization.Service
	AuditSvc auditdomain.Service
	Email    email.Provider
	Clock    clock.Clock
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	appURL   string
	repo     domain.Repository
	userRepo userdomain.Repository
	authz    authorization.Service
	auditSvc auditdomain.Service
	email    email.Provider
	clock    clock.Clock
	metrics  *metrics.Metrics
	validate *validator.Validate
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("workspace.service"),
		genID:    p.GenID,
		appURL:   p.Cfg.AppURL,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		authz:    p.Authz,
		auditSvc: p.AuditSvc,
		email:    p.Email,
		clock:    p.Clock,
		metrics:  p.Metrics,
		validate: validator.New(),
	}
}

func (s *Service) Authorize(ctx context.Context, workspaceID, userID snowflake.ID, action string) (*domain.Member, error) {
	return s.authorizeWith(ctx, s.repo, workspaceID, userID, action)
}

func (s *Service) authorizeWith(ctx context.Context, repo domain.Repository, workspaceID, userID snowflake.ID, action string) (*domain.Member, error) {
	if workspaceID == 0 || userID == 0 {
		return nil, domain.ErrForbidden
	}
	member, err := repo.FindActiveMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrForbidden
	}
	if err := s.checkRole(ctx, member.Role, action); err != nil {
		return nil, err
	}
	return member, nil
}

func (s *Service) checkRole(ctx context.Context, role domain.Role, action string) error {
	if err := s.authz.Authorize(ctx, string(role), action); err != nil {
		if errors.Is(err, authorization.ErrForbidden) {
			return domain.ErrForbidden
		}
		return err
	}
	return nil
}

func (s *Service) loadUser(ctx context.Context, userID snowflake.ID) (*userdomain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	return user, nil
}

// recordAudit never fails the caller.
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

func idPtr(id snowflake.ID) *snowflake.ID {
	return &id
}
