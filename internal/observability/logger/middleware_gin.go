package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	auditcontext "github.com/smallbiznis/teamspace/internal/auditcontext"
	obscontext "github.com/smallbiznis/teamspace/internal/observability/context"
	"github.com/smallbiznis/teamspace/pkg/telemetry/correlation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	RequestIDHeader     = "X-Request-Id"
	CorrelationIDHeader = correlation.Header
)

// MiddlewareConfig controls request logging.
type MiddlewareConfig struct {
	Debug bool
	// Classify turns a handler error into the (type, code) pair that the
	// error middleware renders.
	Classify func(err error) (string, string)
	// Quiet lists routes logged at debug level, such as health checks.
	Quiet []string
	// Webhooks lists routes whose signature failures are logged as warnings.
	Webhooks []string
}

// GinMiddleware stamps request, correlation and workspace identifiers on the
// request context and writes one access log entry per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	quiet := routeSet(cfg.Quiet)
	webhooks := routeSet(cfg.Webhooks)

	return func(c *gin.Context) {
		start := time.Now()

		requestID := headerOr(c, RequestIDHeader, uuid.NewString)
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		if cid := correlation.FromHeader(c.Request.Header); cid != "" {
			ctx = correlation.WithID(ctx, cid)
			c.Header(CorrelationIDHeader, cid)
		}
		if workspaceID := strings.TrimSpace(c.Param("id")); workspaceID != "" {
			ctx = obscontext.WithWorkspaceID(ctx, workspaceID)
		}
		ctx = auditcontext.WithRequestID(ctx, requestID)
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}

		if last := c.Errors.Last(); last != nil {
			var errType, errCode string
			if cfg.Classify != nil {
				errType, errCode = cfg.Classify(last.Err)
			}
			fields = append(fields, zap.String("error_type", errType), zap.String("error_code", errCode))
			if cfg.Debug {
				fields = append(fields, zap.String("error", last.Err.Error()))
			}
		}

		level := zapcore.InfoLevel
		switch {
		case quiet[route]:
			level = zapcore.DebugLevel
		case status >= http.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case webhooks[route] && status >= http.StatusBadRequest:
			level = zapcore.WarnLevel
		}

		// auth middleware may have replaced the request context with one
		// that carries the actor
		if ce := FromContext(c.Request.Context()).Check(level, "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func headerOr(c *gin.Context, name string, fallback func() string) string {
	if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
		return v
	}
	return fallback()
}

func routeSet(routes []string) map[string]bool {
	set := make(map[string]bool, len(routes))
	for _, r := range routes {
		set[r] = true
	}
	return set
}
