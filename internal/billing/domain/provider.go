package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mock/mock_provider.go -package=mock github.com/smallbiznis/teamspace/internal/billing/domain Provider

// Provider is the payment processor seen by the billing engine.
type Provider interface {
	CreateCustomer(ctx context.Context, input CustomerInput) (string, error)
	CreateCheckoutSession(ctx context.Context, input CheckoutInput) (*ProviderSession, error)
	CreatePortalSession(ctx context.Context, input PortalInput) (*ProviderSession, error)
	GetSubscription(ctx context.Context, id string) (*ProviderSubscription, error)
	ConstructEvent(payload []byte, signature, secret string) (*Event, error)
}

type CustomerInput struct {
	Name        string
	WorkspaceID string
}

type CheckoutInput struct {
	CustomerID  string
	PriceID     string
	WorkspaceID string
	SuccessURL  string
	CancelURL   string
}

type PortalInput struct {
	CustomerID string
	ReturnURL  string
}

type ProviderSession struct {
	ID  string
	URL string
}

type ProviderSubscription struct {
	ID         string
	CustomerID string
	Status     string
	Metadata   map[string]string
}

type ProviderCheckoutSession struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
}

// Event is a verified provider webhook event. Exactly one of
// CheckoutSession or Subscription is set for the handled types.
type Event struct {
	ID              string
	Type            string
	Created         time.Time
	CheckoutSession *ProviderCheckoutSession
	Subscription    *ProviderSubscription
}
