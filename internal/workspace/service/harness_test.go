package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	auditrepository "github.com/smallbiznis/teamspace/internal/audit/repository"
	auditservice "github.com/smallbiznis/teamspace/internal/audit/service"
	"github.com/smallbiznis/teamspace/internal/authorization"
	"github.com/smallbiznis/teamspace/internal/clock"
	"github.com/smallbiznis/teamspace/internal/config"
	"github.com/smallbiznis/teamspace/internal/migration"
	"github.com/smallbiznis/teamspace/internal/observability/metrics"
	emailmock "github.com/smallbiznis/teamspace/internal/providers/email/mock"
	userdomain "github.com/smallbiznis/teamspace/internal/user/domain"
	userrepository "github.com/smallbiznis/teamspace/internal/user/repository"
	userservice "github.com/smallbiznis/teamspace/internal/user/service"
	"github.com/smallbiznis/teamspace/internal/workspace/domain"
	"github.com/smallbiznis/teamspace/internal/workspace/repository"
	"github.com/smallbiznis/teamspace/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const testAppURL = "http://localhost:3000"

type harness struct {
	db     *gorm.DB
	svc    domain.Service
	repo   domain.Repository
	users  userdomain.Service
	audit  auditdomain.Service
	mailer *emailmock.MockProvider
	clock  *clock.FakeClock
	node   *snowflake.Node
}

type harnessOption func(*Params)

func withLogger(log *zap.Logger) harnessOption {
	return func(p *Params) { p.Log = log }
}

func withAudit(svc auditdomain.Service) harnessOption {
	return func(p *Params) { p.AuditSvc = svc }
}

// withRepoWrapper lets a test intercept the service's repository. The
// harness keeps the unwrapped repository for its own assertions.
func withRepoWrapper(wrap func(domain.Repository) domain.Repository) harnessOption {
	return func(p *Params) { p.Repo = wrap(p.Repo) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	conn := db.NewTest(t)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	fc := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

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
	mailer := emailmock.NewMockProvider(ctrl)

	repo := repository.NewRepository(conn)
	params := Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Cfg:      config.Config{AppURL: testAppURL},
		Repo:     repo,
		UserRepo: userRepo,
		Authz:    authz,
		AuditSvc: audit,
		Email:    mailer,
		Clock:    fc,
		Metrics:  metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	return &harness{
		db:     conn,
		svc:    NewService(params),
		repo:   repo,
		users:  users,
		audit:  audit,
		mailer: mailer,
		clock:  fc,
		node:   node,
	}
}

func (h *harness) allowMail() {
	h.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
}

func (h *harness) user(t *testing.T, email, name string) *userdomain.User {
	t.Helper()
	u, _, err := h.users.FindOrCreateByEmail(context.Background(), email, name)
	require.NoError(t, err)
	return u
}

func (h *harness) workspace(t *testing.T, owner *userdomain.User, name string) *domain.Workspace {
	t.Helper()
	ws, err := h.svc.CreateWorkspace(context.Background(), owner.ID, name)
	require.NoError(t, err)
	return ws
}

// addMember inserts an ACTIVE membership directly, bypassing the invite flow.
func (h *harness) addMember(t *testing.T, workspaceID snowflake.ID, u *userdomain.User, role domain.Role) {
	t.Helper()
	now := h.clock.Now()
	require.NoError(t, h.repo.InsertMember(context.Background(), domain.Member{
		ID:          h.node.Generate(),
		UserID:      u.ID,
		WorkspaceID: workspaceID,
		Role:        role,
		Status:      domain.MemberStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
}

func (h *harness) member(t *testing.T, workspaceID, userID snowflake.ID) *domain.Member {
	t.Helper()
	m, err := h.repo.FindMember(context.Background(), workspaceID, userID)
	require.NoError(t, err)
	return m
}

func (h *harness) ownerCount(t *testing.T, workspaceID snowflake.ID) int64 {
	t.Helper()
	n, err := h.repo.CountActiveOwners(context.Background(), workspaceID, nil)
	require.NoError(t, err)
	return n
}

func (h *harness) countAudit(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Raw(`SELECT COUNT(1) FROM audit_logs WHERE action = ?`, action).Scan(&n).Error)
	return n
}

func (h *harness) reloadUser(t *testing.T, id snowflake.ID) *userdomain.User {
	t.Helper()
	u, err := h.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}
