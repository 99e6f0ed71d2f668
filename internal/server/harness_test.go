package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditrepository "github.com/smallbiznis/teamspace/internal/audit/repository"
	auditservice "github.com/smallbiznis/teamspace/internal/audit/service"
	"github.com/smallbiznis/teamspace/internal/authorization"
	billingrepository "github.com/smallbiznis/teamspace/internal/billing/repository"
	billingservice "github.com/smallbiznis/teamspace/internal/billing/service"
	"github.com/smallbiznis/teamspace/internal/clock"
	"github.com/smallbiznis/teamspace/internal/config"
	"github.com/smallbiznis/teamspace/internal/migration"
	"github.com/smallbiznis/teamspace/internal/observability"
	"github.com/smallbiznis/teamspace/internal/observability/metrics"
	"github.com/smallbiznis/teamspace/internal/providers/email"
	"github.com/smallbiznis/teamspace/internal/ratelimit"
	userrepository "github.com/smallbiznis/teamspace/internal/user/repository"
	userservice "github.com/smallbiznis/teamspace/internal/user/service"
	workspacerepository "github.com/smallbiznis/teamspace/internal/workspace/repository"
	workspaceservice "github.com/smallbiznis/teamspace/internal/workspace/service"
	"github.com/smallbiznis/teamspace/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const testAppURL = "http://localhost:3000"

type testServer struct {
	db     *gorm.DB
	engine *gin.Engine
	clock  *clock.FakeClock
}

type serverOption func(*config.Config)

func withRateLimit(max int) serverOption {
	return func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitPolicy{Max: max, WindowMinutes: 1}
	}
}

func withoutTrustedHeaders() serverOption {
	return func(cfg *config.Config) { cfg.AuthTrustedHeaders = false }
}

// newTestServer builds the full HTTP surface over an in-memory database with
// billing in stub mode.
func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	cfg := config.Config{
		AppURL:             testAppURL,
		AuthTrustedHeaders: true,
		RateLimit:          config.RateLimitPolicy{Max: 1000, WindowMinutes: 1},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

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

	workspaces := workspaceservice.NewService(workspaceservice.Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Cfg:      cfg,
		Repo:     workspacerepository.NewRepository(conn),
		UserRepo: userRepo,
		Authz:    authz,
		AuditSvc: audit,
		Email:    email.NewNoOp(log),
		Clock:    fc,
		Metrics:  metrics.NewNoop(),
	})

	billing := billingservice.NewService(billingservice.Params{
		Log:        log,
		Cfg:        cfg,
		Repo:       billingrepository.NewRepository(conn),
		Workspaces: workspaces,
		AuditSvc:   audit,
		Clock:      fc,
	})

	limiter := ratelimit.NewLimiter(ratelimit.Params{
		Log:    log,
		Store:  ratelimit.NewMemoryStore(fc),
		Policy: config.NewStaticRateLimitPolicyHolder(cfg.RateLimit),
	})

	engine := NewEngine(observability.Config{ServiceName: "teamspace-test", Environment: "test"}, nil)
	gin.SetMode(gin.TestMode)

	NewServer(Params{
		Engine:     engine,
		Cfg:        cfg,
		Log:        log,
		Users:      users,
		Workspaces: workspaces,
		Billing:    billing,
		AuditSvc:   audit,
		Limiter:    limiter,
	})

	return &testServer{db: conn, engine: engine, clock: fc}
}

// do sends a request as email. An empty email sends no identity headers.
func (ts *testServer) do(t *testing.T, method, path, asEmail string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if asEmail != "" {
		req.Header.Set(HeaderForwardedEmail, asEmail)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// defaultWorkspace provisions email via /api/me and returns its default
// workspace id.
func (ts *testServer) defaultWorkspace(t *testing.T, asEmail string) string {
	t.Helper()
	w := ts.do(t, http.MethodGet, "/api/me", asEmail, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	user := decode(t, w)["user"].(map[string]any)
	id, ok := user["default_workspace_id"].(string)
	require.True(t, ok, "default workspace missing: %v", user)
	return id
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	payload, ok := decode(t, w)["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return payload["type"].(string)
}
