package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	billingdomain "github.com/smallbiznis/teamspace/internal/billing/domain"
	"github.com/smallbiznis/teamspace/internal/config"
	"github.com/smallbiznis/teamspace/internal/observability"
	obslogger "github.com/smallbiznis/teamspace/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/teamspace/internal/observability/metrics"
	"github.com/smallbiznis/teamspace/internal/ratelimit"
	userdomain "github.com/smallbiznis/teamspace/internal/user/domain"
	workspacedomain "github.com/smallbiznis/teamspace/internal/workspace/domain"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:    obsCfg.Debug(),
		Classify: classifyErrorForLog,
		Quiet:    []string{"/health", "/metrics"},
		Webhooks: []string{"/api/billing/webhook"},
	}))
	r.Use(otelgin.Middleware(obsCfg.ServiceName))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Params struct {
	fx.In

	Engine     *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Users      userdomain.Service
	Workspaces workspacedomain.Service
	Billing    billingdomain.Service
	AuditSvc   auditdomain.Service
	Limiter    *ratelimit.Limiter `optional:"true"`
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	users      userdomain.Service
	workspaces workspacedomain.Service
	billing    billingdomain.Service
	auditSvc   auditdomain.Service
	limiter    *ratelimit.Limiter
}

func NewServer(p Params) *Server {
	s := &Server{
		engine:     p.Engine,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		users:      p.Users,
		workspaces: p.Workspaces,
		billing:    p.Billing,
		auditSvc:   p.AuditSvc,
		limiter:    p.Limiter,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")

	api.POST("/billing/webhook", s.StripeWebhook)

	authed := api.Group("")
	authed.Use(s.AuthRequired())

	authed.GET("/me", s.GetMe)
	authed.PATCH("/me", s.UpdateMe)

	authed.GET("/workspaces", s.ListWorkspaces)
	authed.POST("/workspaces", s.CreateWorkspace)
	authed.GET("/workspaces/:id", s.GetWorkspace)
	authed.PATCH("/workspaces/:id", s.RenameWorkspace)
	authed.GET("/workspaces/:id/dashboard", s.GetDashboard)
	authed.GET("/workspaces/:id/audit-logs", s.ListAuditLogs)
	authed.POST("/workspaces/:id/switch", s.SwitchWorkspace)

	authed.POST("/workspaces/:id/invites", s.InviteMember)
	authed.DELETE("/workspaces/:id/invites/:inviteId", s.CancelInvite)
	authed.PATCH("/workspaces/:id/members/:memberId", s.UpdateMemberRole)
	authed.DELETE("/workspaces/:id/members/:memberId", s.RemoveMember)

	authed.GET("/invites/:token", s.GetInvite)
	authed.POST("/invites/:token/accept", s.AcceptInvite)

	authed.GET("/workspaces/:id/billing", s.GetBillingSummary)
	authed.POST("/workspaces/:id/billing/checkout", s.CreateCheckoutSession)
	authed.POST("/workspaces/:id/billing/portal", s.CreatePortalSession)
}
