package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ActionWorkspaceView     = "workspace.view"
	ActionWorkspaceManage   = "workspace.manage"
	ActionMemberManage      = "member.manage"
	ActionMemberManageOwner = "member.manage_owner"
	ActionInviteManage      = "invite.manage"
	ActionBillingManage     = "billing.manage"
)

// Subjects are upper-case workspace roles. OWNER inherits ADMIN which
// inherits MEMBER.
const (
	subjectOwner  = "OWNER"
	subjectAdmin  = "ADMIN"
	subjectMember = "MEMBER"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an in-memory enforcer seeded with the workspace policy.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewPersistedEnforcer stores the policy in casbin_rule so operators can
// inspect it. The built-in rules are re-seeded on every start.
func NewPersistedEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, action string) error {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		return ErrInvalidRole
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(role, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", role),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Member permissions (read-only)
		{subjectMember, ActionWorkspaceView},

		// Admin permissions
		{subjectAdmin, ActionWorkspaceManage},
		{subjectAdmin, ActionMemberManage},
		{subjectAdmin, ActionInviteManage},
		{subjectAdmin, ActionBillingManage},

		// Owner permissions
		{subjectOwner, ActionMemberManageOwner},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1]); err != nil {
			return err
		}
	}

	groupings := [][]string{
		{subjectOwner, subjectAdmin},
		{subjectAdmin, subjectMember},
	}
	for _, grouping := range groupings {
		if _, err := enforcer.AddGroupingPolicy(grouping[0], grouping[1]); err != nil {
			return err
		}
	}
	return nil
}
