package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	workspacedomain "github.com/smallbiznis/teamspace/internal/workspace/domain"
)

type inviteMemberRequest struct {
	Email string `json:"email" binding:"required,email,max=320"`
	Role  string `json:"role"`
}

func (s *Server) InviteMember(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}

	var req inviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	if !s.throttle(c, "workspace:invite", user.ID) {
		return
	}

	role := req.Role
	if strings.TrimSpace(role) == "" {
		role = string(workspacedomain.RoleMember)
	}

	result, err := s.workspaces.InviteToWorkspace(c.Request.Context(), workspacedomain.InviteRequest{
		WorkspaceID: workspaceID,
		InviterID:   user.ID,
		Email:       req.Email,
		Role:        role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (s *Server) CancelInvite(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}
	inviteID, ok := parseIDParam(c, "inviteId")
	if !ok {
		return
	}
	if !s.throttle(c, "workspace:invite:cancel", user.ID) {
		return
	}

	if err := s.workspaces.CancelInvite(c.Request.Context(), workspaceID, user.ID, inviteID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) GetInvite(c *gin.Context) {
	if _, ok := s.requireUser(c); !ok {
		return
	}
	preview, err := s.workspaces.GetInviteByToken(c.Request.Context(), strings.TrimSpace(c.Param("token")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invite": preview})
}

func (s *Server) AcceptInvite(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	if !s.throttle(c, "workspace:accept", user.ID) {
		return
	}

	workspaceID, err := s.workspaces.AcceptInvite(c.Request.Context(), strings.TrimSpace(c.Param("token")), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspace_id": workspaceID})
}
