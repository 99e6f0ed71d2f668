package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	auditrepository "github.com/smallbiznis/teamspace/internal/audit/repository"
	auditservice "github.com/smallbiznis/teamspace/internal/audit/service"
	"github.com/smallbiznis/teamspace/internal/authorization"
	"github.com/smallbiznis/teamspace/internal/billing/domain"
	"github.com/smallbiznis/teamspace/internal/billing/domain/mock"
	"github.com/smallbiznis/teamspace/internal/billing/repository"
	"github.com/smallbiznis/teamspace/internal/clock"
	"github.com/smallbiznis/teamspace/internal/config"
	"github.com/smallbiznis/teamspace/internal/migration"
	"github.com/smallbiznis/teamspace/internal/observability/metrics"
	emailmock "github.com/smallbiznis/teamspace/internal/providers/email/mock"
	userdomain "github.com/smallbiznis/teamspace/internal/user/domain"
	userrepository "github.com/smallbiznis/teamspace/internal/user/repository"
	userservice "github.com/smallbiznis/teamspace/internal/user/service"
	workspacedomain "github.com/smallbiznis/teamspace/internal/workspace/domain"
	workspacerepository "github.com/smallbiznis/teamspace/internal/workspace/repository"
	workspaceservice "github.com/smallbiznis/teamspace/internal/workspace/service"
	"github.com/smallbiznis/teamspace/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const testAppURL = "http://localhost:3000"

var liveStripe = config.StripeConfig{
	SecretKey:     "sk_test_123",
	PriceIDPro:    "price_pro",
	WebhookSecret: "whsec_123",
	Timeout:       time.Second,
}

type harness struct {
	db         *gorm.DB
	svc        domain.Service
	provider   *mock.MockProvider
	workspaces workspacedomain.Service
	wsRepo     workspacedomain.Repository
	users      userdomain.Service
	clock      *clock.FakeClock
	node       *snowflake.Node
}

// newHarness wires the billing engine over an in-memory database. A zero
// stripe config leaves the engine in stub mode with the mock still injected,
// so any provider call fails the test.
func newHarness(t *testing.T, stripe config.StripeConfig) *harness {
	t.Helper()

	conn := db.NewTest(t)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	fc := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{AppURL: testAppURL, Stripe: stripe}

	userRepo := userrepository.NewRepository(conn)
	users := userservice.NewService(userservice.Params{DB: conn, Log: log, GenID: node, Repo: userRepo, Clock: fc})

	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})

	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.New(),
		Clock: fc,
	})

	ctrl := gomock.NewController(t)
	wsRepo := workspacerepository.NewRepository(conn)
	workspaces := workspaceservice.NewService(workspaceservice.Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Cfg:      cfg,
		Repo:     wsRepo,
		UserRepo: userRepo,
		Authz:    authz,
		AuditSvc: audit,
		Email:    emailmock.NewMockProvider(ctrl),
		Clock:    fc,
	})

	provider := mock.NewMockProvider(ctrl)
	svc := NewService(Params{
		Log:        log,
		Cfg:        cfg,
		Repo:       repository.NewRepository(conn),
		Provider:   provider,
		Workspaces: workspaces,
		AuditSvc:   audit,
		Clock:      fc,
		Metrics:    metrics.NewNoop(),
	})

	return &harness{
		db:         conn,
		svc:        svc,
		provider:   provider,
		workspaces: workspaces,
		wsRepo:     wsRepo,
		users:      users,
		clock:      fc,
		node:       node,
	}
}

func (h *harness) user(t *testing.T, email string) *userdomain.User {
	t.Helper()
	u, _, err := h.users.FindOrCreateByEmail(context.Background(), email, "")
	require.NoError(t, err)
	return u
}

func (h *harness) ownedWorkspace(t *testing.T, email string) (*userdomain.User, *workspacedomain.Workspace) {
	t.Helper()
	owner := h.user(t, email)
	ws, err := h.workspaces.CreateWorkspace(context.Background(), owner.ID, "Acme")
	require.NoError(t, err)
	return owner, ws
}

func (h *harness) addMember(t *testing.T, workspaceID snowflake.ID, u *userdomain.User, role workspacedomain.Role) {
	t.Helper()
	now := h.clock.Now()
	require.NoError(t, h.wsRepo.InsertMember(context.Background(), workspacedomain.Member{
		ID:          h.node.Generate(),
		UserID:      u.ID,
		WorkspaceID: workspaceID,
		Role:        role,
		Status:      workspacedomain.MemberStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
}

func (h *harness) reload(t *testing.T, id snowflake.ID) *workspacedomain.Workspace {
	t.Helper()
	ws, err := h.wsRepo.FindWorkspace(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, ws)
	return ws
}

func (h *harness) countAudit(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Raw(`SELECT COUNT(1) FROM audit_logs WHERE action = ?`, action).Scan(&n).Error)
	return n
}
