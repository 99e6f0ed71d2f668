package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	userdomain "github.com/smallbiznis/teamspace/internal/user/domain"
)

type updateProfileRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=200"`
	Timezone *string `json:"timezone" binding:"omitempty,max=64"`
}

func (s *Server) GetMe(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (s *Server) UpdateMe(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	if !s.throttle(c, "profile:update", user.ID) {
		return
	}

	updated, err := s.users.UpdateProfile(c.Request.Context(), user.ID, userdomain.UpdateProfileRequest{
		Name:     req.Name,
		Timezone: req.Timezone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": updated})
}
