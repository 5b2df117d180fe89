package domain

import (
	"context"
	"net/http"
	"time"
)

//go:generate mockgen -source=gateway.go -destination=./mocks/mock_gateway.go -package=mocks

// AdapterConfig carries the provider settings an adapter or client needs.
type AdapterConfig struct {
	Provider           string
	BaseURL            string
	KeyID              string
	KeySecret          string
	PublishableKey     string
	WebhookSecret      string
	SignatureTolerance time.Duration
	TotalRuns          int
	HTTPClient         *http.Client
	Now                func() time.Time
}

// PaymentAdapter authenticates and normalizes inbound gateway notifications.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte, headers http.Header) (*PaymentEvent, error)
}

// GatewayClient issues outbound commands to a gateway.
type GatewayClient interface {
	// ClientKey is the public key handed to checkout clients.
	ClientKey() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*GatewaySubscription, error)
	PauseSubscription(ctx context.Context, externalSubscriptionID string) error
	ResumeSubscription(ctx context.Context, externalSubscriptionID string) error
	CancelSubscription(ctx context.Context, externalSubscriptionID string) error
}

// AdapterFactory builds adapters and clients for one provider.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
	NewClient(cfg AdapterConfig) (GatewayClient, error)
}

type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
}

// PlanRequest describes a billing period as Interval units of Period, where
// Period is "month" or "year".
type PlanRequest struct {
	Name     string
	Amount   int64
	Currency string
	Period   string
	Interval int
}

type Plan struct {
	ID string
}

type SubscriptionRequest struct {
	PlanID        string
	CustomerRef   string
	CustomerName  string
	CustomerEmail string
	TotalCount    int
	StartAt       *time.Time
	Notes         map[string]string
}

type GatewaySubscription struct {
	ID     string
	Status string
}
