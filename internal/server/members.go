package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type updateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (s *Server) UpdateMemberRole(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}
	memberID, ok := parseIDParam(c, "memberId")
	if !ok {
		return
	}

	var req updateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	if !s.throttle(c, "workspace:member", user.ID) {
		return
	}

	member, err := s.workspaces.UpdateMemberRole(c.Request.Context(), workspaceID, user.ID, memberID, req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": member})
}

func (s *Server) RemoveMember(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}
	memberID, ok := parseIDParam(c, "memberId")
	if !ok {
		return
	}
	if !s.throttle(c, "workspace:member", user.ID) {
		return
	}

	if err := s.workspaces.RemoveMember(c.Request.Context(), workspaceID, user.ID, memberID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
