package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/teamspace/internal/audit/domain"
	"github.com/smallbiznis/teamspace/internal/authorization"
)

type workspaceNameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) ListWorkspaces(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	items, err := s.workspaces.ListWorkspacesForUser(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspaces": items})
}

func (s *Server) CreateWorkspace(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}

	var req workspaceNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	if !s.throttle(c, "workspace:create", user.ID) {
		return
	}

	ws, err := s.workspaces.CreateWorkspace(c.Request.Context(), user.ID, req.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"workspace": ws})
}

func (s *Server) GetWorkspace(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}
	summary, err := s.workspaces.GetWorkspaceSummary(c.Request.Context(), workspaceID, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) RenameWorkspace(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}

	var req workspaceNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	if !s.throttle(c, "workspace:rename", user.ID) {
		return
	}

	ws, err := s.workspaces.RenameWorkspace(c.Request.Context(), workspaceID, user.ID, req.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspace": ws})
}

func (s *Server) GetDashboard(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}
	dashboard, err := s.workspaces.GetDashboard(c.Request.Context(), workspaceID, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (s *Server) SwitchWorkspace(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}
	if !s.throttle(c, "workspace:switch", user.ID) {
		return
	}
	if err := s.workspaces.SwitchDefaultWorkspace(c.Request.Context(), user.ID, workspaceID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"default_workspace_id": workspaceID})
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}

	var req auditdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	if _, err := s.workspaces.Authorize(c.Request.Context(), workspaceID, user.ID, authorization.ActionWorkspaceManage); err != nil {
		AbortWithError(c, err)
		return
	}

	req.WorkspaceID = workspaceID
	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
