package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/teamspace/internal/observability/context"
	userdomain "github.com/smallbiznis/teamspace/internal/user/domain"
	"go.uber.org/zap"
)

const (
	HeaderForwardedEmail = "X-Forwarded-Email"
	HeaderForwardedUser  = "X-Forwarded-User"

	contextUserKey = "current_user"
)

// AuthRequired trusts the identity headers set by the authenticating proxy
// in front of the service. First sight of an email provisions the user and
// their default workspace.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.AuthTrustedHeaders {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		email := strings.TrimSpace(c.GetHeader(HeaderForwardedEmail))
		if email == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		name := strings.TrimSpace(c.GetHeader(HeaderForwardedUser))
		if strings.Contains(name, "@") {
			name = ""
		}

		ctx := c.Request.Context()
		user, created, err := s.users.FindOrCreateByEmail(ctx, email, name)
		if err != nil {
			if errors.Is(err, userdomain.ErrInvalidEmail) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		if created || user.DefaultWorkspaceID == nil {
			ws, err := s.workspaces.EnsureDefaultWorkspace(ctx, user.ID)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			user.DefaultWorkspaceID = &ws.ID
			if created {
				s.log.Info("user provisioned",
					zap.String("user_id", user.ID.String()),
					zap.String("workspace_id", ws.ID.String()),
				)
			}
		}

		ctx = obscontext.WithActor(ctx, "user", user.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) (*userdomain.User, bool) {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*userdomain.User)
	return user, ok && user != nil
}

func (s *Server) requireUser(c *gin.Context) (*userdomain.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return nil, false
	}
	return user, true
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id <= 0 {
		AbortWithError(c, ErrNotFound)
		return 0, false
	}
	return id, true
}

// workspaceParam parses :id and tags the request context with it for logs.
func workspaceParam(c *gin.Context) (snowflake.ID, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return 0, false
	}
	ctx := obscontext.WithWorkspaceID(c.Request.Context(), id.String())
	c.Request = c.Request.WithContext(ctx)
	return id, true
}

// throttle applies the mutating-action budget keyed by action, user and
// client IP.
func (s *Server) throttle(c *gin.Context, action string, userID snowflake.ID) bool {
	if s.limiter == nil {
		return true
	}
	key := action + ":" + userID.String() + ":" + c.ClientIP()
	if err := s.limiter.CheckOrThrow(c.Request.Context(), key); err != nil {
		AbortWithError(c, err)
		return false
	}
	return true
}
