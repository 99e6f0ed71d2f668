package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/teamspace/internal/billing/domain"
	"github.com/smallbiznis/teamspace/internal/config"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

type Config struct {
	SecretKey string
	// BaseURL overrides the API host, used to point the client at a local
	// stub server.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Adapter talks to Stripe through stripe-go. It never retries on its own;
// the provider redelivers webhooks and the caller owns request retries.
type Adapter struct {
	api *client.API
	log *zap.Logger
}

// NewFromConfig returns nil when no secret key is configured so the billing
// engine stays in stub mode.
func NewFromConfig(cfg config.Config, log *zap.Logger) domain.Provider {
	if strings.TrimSpace(cfg.Stripe.SecretKey) == "" {
		return nil
	}
	return New(Config{
		SecretKey: cfg.Stripe.SecretKey,
		Timeout:   cfg.Stripe.Timeout,
	}, log)
}

func New(cfg Config, log *zap.Logger) *Adapter {
	log = log.Named("billing.stripe")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	backendConfig := func() *stripego.BackendConfig {
		bc := &stripego.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripego.Int64(0),
			LeveledLogger:     log.Sugar(),
		}
		if cfg.BaseURL != "" {
			bc.URL = stripego.String(strings.TrimRight(cfg.BaseURL, "/"))
		}
		return bc
	}

	backends := &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, backendConfig()),
		Connect: stripego.GetBackendWithConfig(stripego.ConnectBackend, backendConfig()),
		Uploads: stripego.GetBackendWithConfig(stripego.UploadsBackend, backendConfig()),
	}

	return &Adapter{
		api: client.New(cfg.SecretKey, backends),
		log: log,
	}
}

func (a *Adapter) CreateCustomer(ctx context.Context, input domain.CustomerInput) (string, error) {
	params := &stripego.CustomerParams{
		Name: stripego.String(input.Name),
	}
	params.Context = ctx
	params.AddMetadata(domain.MetadataWorkspaceID, input.WorkspaceID)

	customer, err := a.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return customer.ID, nil
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, input domain.CheckoutInput) (*domain.ProviderSession, error) {
	params := &stripego.CheckoutSessionParams{
		Mode:     stripego.String(string(stripego.CheckoutSessionModeSubscription)),
		Customer: stripego.String(input.CustomerID),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				Price:    stripego.String(input.PriceID),
				Quantity: stripego.Int64(1),
			},
		},
		SuccessURL: stripego.String(input.SuccessURL),
		CancelURL:  stripego.String(input.CancelURL),
		SubscriptionData: &stripego.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{domain.MetadataWorkspaceID: input.WorkspaceID},
		},
	}
	params.Context = ctx
	params.AddMetadata(domain.MetadataWorkspaceID, input.WorkspaceID)

	session, err := a.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, fmt.Errorf("checkout session %s has no url", session.ID)
	}
	return &domain.ProviderSession{ID: session.ID, URL: session.URL}, nil
}

func (a *Adapter) CreatePortalSession(ctx context.Context, input domain.PortalInput) (*domain.ProviderSession, error) {
	params := &stripego.BillingPortalSessionParams{
		Customer:  stripego.String(input.CustomerID),
		ReturnURL: stripego.String(input.ReturnURL),
	}
	params.Context = ctx

	session, err := a.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &domain.ProviderSession{ID: session.ID, URL: session.URL}, nil
}

func (a *Adapter) GetSubscription(ctx context.Context, id string) (*domain.ProviderSubscription, error) {
	params := &stripego.SubscriptionParams{}
	params.Context = ctx

	subscription, err := a.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, err
	}
	return toSubscription(subscription), nil
}

// ConstructEvent verifies the Stripe-Signature header and decodes the object
// of the event types the billing engine reconciles.
func (a *Adapter) ConstructEvent(payload []byte, signature, secret string) (*domain.Event, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, domain.ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	out := &domain.Event{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Created > 0 {
		out.Created = time.Unix(event.Created, 0).UTC()
	}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case domain.EventCheckoutSessionCompleted:
		var session stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
		}
		out.CheckoutSession = &domain.ProviderCheckoutSession{
			ID:       session.ID,
			Metadata: session.Metadata,
		}
		if session.Customer != nil {
			out.CheckoutSession.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			out.CheckoutSession.SubscriptionID = session.Subscription.ID
		}
	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var subscription stripego.Subscription
		if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
		}
		out.Subscription = toSubscription(&subscription)
	}
	return out, nil
}

func toSubscription(subscription *stripego.Subscription) *domain.ProviderSubscription {
	out := &domain.ProviderSubscription{
		ID:       subscription.ID,
		Status:   string(subscription.Status),
		Metadata: subscription.Metadata,
	}
	if subscription.Customer != nil {
		out.CustomerID = subscription.Customer.ID
	}
	return out
}
