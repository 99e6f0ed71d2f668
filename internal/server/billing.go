package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/teamspace/internal/billing/domain"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 1 << 20

func (s *Server) GetBillingSummary(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}
	summary, err := s.billing.GetBillingSummary(c.Request.Context(), workspaceID, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}
	if !s.throttle(c, "billing:checkout", user.ID) {
		return
	}

	res, err := s.billing.CreateCheckoutSession(c.Request.Context(), workspaceID, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) CreatePortalSession(c *gin.Context) {
	user, ok := s.requireUser(c)
	if !ok {
		return
	}
	workspaceID, ok := workspaceParam(c)
	if !ok {
		return
	}
	if !s.throttle(c, "billing:portal", user.ID) {
		return
	}

	res, err := s.billing.CreatePortalSession(c.Request.Context(), workspaceID, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// StripeWebhook answers with a flat {"error": "..."} body. Signature and
// payload problems are 400; anything else is 500 so the provider redelivers.
func (s *Server) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read body"})
		return
	}

	res, err := s.billing.HandleStripeWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billingdomain.ErrInvalidSignature):
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Stripe signature"})
		case errors.Is(err, billingdomain.ErrInvalidEvent):
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Stripe event"})
		default:
			s.log.Error("stripe webhook failed", zap.Error(err))
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handling failed"})
		}
		return
	}
	c.JSON(http.StatusOK, res)
}
