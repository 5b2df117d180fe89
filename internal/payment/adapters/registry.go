package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/givelane/internal/config"
	"github.com/smallbiznis/givelane/internal/observability/metrics"
	"github.com/smallbiznis/givelane/internal/payment/adapters/gatewayhttp"
	"github.com/smallbiznis/givelane/internal/payment/domain"
	"github.com/smallbiznis/givelane/pkg/resilience"
	"go.uber.org/zap"
)

// Registry resolves provider adapters and breaker-guarded gateway clients
// from the current gateway settings.
type Registry struct {
	factories map[string]domain.AdapterFactory
	gateways  *config.GatewayConfigHolder
	timeout   time.Duration
	client    *http.Client
	metrics   *metrics.Metrics
	log       *zap.Logger
	backoff   resilience.ExponentialBackoff

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

type RegistryOption func(*Registry)

func WithTimeout(timeout time.Duration) RegistryOption {
	return func(r *Registry) { r.timeout = timeout }
}

func WithHTTPClient(client *http.Client) RegistryOption {
	return func(r *Registry) { r.client = client }
}

func WithBackoff(b resilience.ExponentialBackoff) RegistryOption {
	return func(r *Registry) { r.backoff = b }
}

func WithMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

func WithLogger(log *zap.Logger) RegistryOption {
	return func(r *Registry) { r.log = log.Named("payment.adapters") }
}

func NewRegistry(gateways *config.GatewayConfigHolder, factories []domain.AdapterFactory, opts ...RegistryOption) *Registry {
	registry := &Registry{
		factories: map[string]domain.AdapterFactory{},
		gateways:  gateways,
		timeout:   10 * time.Second,
		backoff:   resilience.DefaultBackoff(),
		log:       zap.NewNop(),
		breakers:  map[string]*resilience.CircuitBreaker{},
	}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		provider := normalize(factory.Provider())
		if provider == "" {
			continue
		}
		registry.factories[provider] = factory
	}
	for _, opt := range opts {
		opt(registry)
	}
	if registry.client == nil {
		registry.client = &http.Client{Timeout: registry.timeout}
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalize(provider)]
	return ok
}

// Providers lists the registered providers that are enabled in config.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		if _, ok := r.gateways.Get(name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Settings returns the enabled gateway settings for provider.
func (r *Registry) Settings(provider string) (config.GatewayConfig, error) {
	if r == nil {
		return config.GatewayConfig{}, domain.ErrProviderNotFound
	}
	provider = normalize(provider)
	if _, ok := r.factories[provider]; !ok {
		return config.GatewayConfig{}, domain.ErrProviderNotFound
	}
	gw, ok := r.gateways.Get(provider)
	if !ok {
		return config.GatewayConfig{}, domain.ErrProviderDisabled
	}
	return gw, nil
}

// Adapter builds the inbound adapter for provider.
func (r *Registry) Adapter(provider string) (domain.PaymentAdapter, error) {
	factory, cfg, err := r.resolve(provider)
	if err != nil {
		return nil, err
	}
	return factory.NewAdapter(cfg)
}

// Client builds the outbound client for provider. Calls through the client
// share one circuit breaker per provider and run under the gateway timeout.
func (r *Registry) Client(provider string) (domain.GatewayClient, error) {
	factory, cfg, err := r.resolve(provider)
	if err != nil {
		return nil, err
	}
	client, err := factory.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	gw, _ := r.gateways.Get(cfg.Provider)
	return &guardedClient{
		provider: cfg.Provider,
		next:     client,
		breaker:  r.breaker(cfg.Provider, gw),
		backoff:  r.backoff,
		timeout:  r.timeout,
		metrics:  r.metrics,
		log:      r.log,
	}, nil
}

func (r *Registry) resolve(provider string) (domain.AdapterFactory, domain.AdapterConfig, error) {
	gw, err := r.Settings(provider)
	if err != nil {
		return nil, domain.AdapterConfig{}, err
	}
	factory := r.factories[gw.Provider]
	return factory, domain.AdapterConfig{
		Provider:           gw.Provider,
		BaseURL:            gw.BaseURL,
		KeyID:              gw.KeyID,
		KeySecret:          gw.KeySecret,
		PublishableKey:     gw.PublishableKey,
		WebhookSecret:      gw.WebhookSecret,
		SignatureTolerance: gw.SignatureTolerance,
		TotalRuns:          gw.SubscriptionTotalRuns,
		HTTPClient:         r.client,
	}, nil
}

func (r *Registry) breaker(provider string, gw config.GatewayConfig) *resilience.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[provider]; ok {
		return cb
	}
	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		MaxFailures: gw.BreakerMaxFailures,
		OpenTimeout: gw.BreakerOpenTimeout,
	})
	r.breakers[provider] = cb
	return cb
}

const commandAttempts = 3

type guardedClient struct {
	provider string
	next     domain.GatewayClient
	breaker  *resilience.CircuitBreaker
	backoff  resilience.ExponentialBackoff
	timeout  time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func (c *guardedClient) ClientKey() string { return c.next.ClientKey() }

func (c *guardedClient) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	var out *domain.Order
	err := c.call(ctx, "create_order", func(ctx context.Context) error {
		var err error
		out, err = c.next.CreateOrder(ctx, req)
		return err
	})
	return out, err
}

func (c *guardedClient) CreatePlan(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	var out *domain.Plan
	err := c.call(ctx, "create_plan", func(ctx context.Context) error {
		var err error
		out, err = c.next.CreatePlan(ctx, req)
		return err
	})
	return out, err
}

func (c *guardedClient) CreateSubscription(ctx context.Context, req domain.SubscriptionRequest) (*domain.GatewaySubscription, error) {
	var out *domain.GatewaySubscription
	err := c.call(ctx, "create_subscription", func(ctx context.Context) error {
		var err error
		out, err = c.next.CreateSubscription(ctx, req)
		return err
	})
	return out, err
}

func (c *guardedClient) PauseSubscription(ctx context.Context, id string) error {
	return c.retry(ctx, "pause_subscription", func(ctx context.Context) error {
		return c.next.PauseSubscription(ctx, id)
	})
}

func (c *guardedClient) ResumeSubscription(ctx context.Context, id string) error {
	return c.retry(ctx, "resume_subscription", func(ctx context.Context) error {
		return c.next.ResumeSubscription(ctx, id)
	})
}

func (c *guardedClient) CancelSubscription(ctx context.Context, id string) error {
	return c.retry(ctx, "cancel_subscription", func(ctx context.Context) error {
		return c.next.CancelSubscription(ctx, id)
	})
}

// retry repeats an idempotent subscription command on transient failures.
// Order and plan creation are never repeated.
func (c *guardedClient) retry(ctx context.Context, operation string, fn func(context.Context) error) error {
	return resilience.Retry(ctx, commandAttempts, c.backoff, retryableCall, func(ctx context.Context) error {
		return c.call(ctx, operation, fn)
	})
}

func retryableCall(err error) bool {
	return gatewayhttp.Retryable(err)
}

func (c *guardedClient) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	err := c.breaker.Call(func() error { return fn(ctx) })
	if c.metrics != nil {
		c.metrics.RecordGatewayCall(ctx, c.provider, operation, time.Since(started), err)
	}
	if err == nil {
		return nil
	}

	c.log.Warn("gateway call failed",
		zap.String("provider", c.provider),
		zap.String("operation", operation),
		zap.String("breaker_state", c.breaker.State().String()),
		zap.Error(err),
	)
	if errors.Is(err, domain.ErrGateway) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrGateway, operation, err)
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
