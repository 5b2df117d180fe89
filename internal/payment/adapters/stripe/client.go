package stripe

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/smallbiznis/givelane/internal/payment/adapters/gatewayhttp"
	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
)

const defaultBaseURL = "https://api.stripe.com/v1"

func (f *Factory) NewClient(cfg paymentdomain.AdapterConfig) (paymentdomain.GatewayClient, error) {
	secret := strings.TrimSpace(cfg.KeySecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		publishableKey: strings.TrimSpace(cfg.PublishableKey),
		http: gatewayhttp.New(providerName, baseURL, cfg.HTTPClient, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+secret)
		}),
	}, nil
}

// Client calls the Stripe payment intents, prices and subscriptions APIs.
type Client struct {
	publishableKey string
	http           *gatewayhttp.Client
}

func (c *Client) ClientKey() string { return c.publishableKey }

type objectResponse struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}

func (c *Client) CreateOrder(ctx context.Context, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	if req.Receipt != "" {
		form.Set("metadata[receipt]", req.Receipt)
	}
	setMetadata(form, req.Notes)

	var resp objectResponse
	if err := c.http.PostForm(ctx, "/payment_intents", form, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, paymentdomain.ErrGateway
	}
	return &paymentdomain.Order{ID: resp.ID, Amount: resp.Amount, Currency: strings.ToUpper(resp.Currency), Status: resp.Status}, nil
}

func (c *Client) CreatePlan(ctx context.Context, req paymentdomain.PlanRequest) (*paymentdomain.Plan, error) {
	interval := req.Interval
	if interval <= 0 {
		interval = 1
	}
	period := req.Period
	if period != "year" {
		period = "month"
	}
	form := url.Values{}
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("unit_amount", strconv.FormatInt(req.Amount, 10))
	form.Set("recurring[interval]", period)
	form.Set("recurring[interval_count]", strconv.Itoa(interval))
	form.Set("product_data[name]", req.Name)

	var resp objectResponse
	if err := c.http.PostForm(ctx, "/prices", form, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, paymentdomain.ErrGateway
	}
	return &paymentdomain.Plan{ID: resp.ID}, nil
}

func (c *Client) CreateSubscription(ctx context.Context, req paymentdomain.SubscriptionRequest) (*paymentdomain.GatewaySubscription, error) {
	customer := url.Values{}
	if req.CustomerEmail != "" {
		customer.Set("email", req.CustomerEmail)
	}
	if req.CustomerName != "" {
		customer.Set("name", req.CustomerName)
	}
	if req.CustomerRef != "" {
		customer.Set("metadata[donor_id]", req.CustomerRef)
	}
	var cust objectResponse
	if err := c.http.PostForm(ctx, "/customers", customer, &cust); err != nil {
		return nil, err
	}
	if cust.ID == "" {
		return nil, paymentdomain.ErrGateway
	}

	form := url.Values{}
	form.Set("customer", cust.ID)
	form.Set("items[0][price]", req.PlanID)
	form.Set("payment_behavior", "default_incomplete")
	if req.StartAt != nil {
		form.Set("billing_cycle_anchor", strconv.FormatInt(req.StartAt.Unix(), 10))
	}
	setMetadata(form, req.Notes)

	var resp objectResponse
	if err := c.http.PostForm(ctx, "/subscriptions", form, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, paymentdomain.ErrGateway
	}
	return &paymentdomain.GatewaySubscription{ID: resp.ID, Status: resp.Status}, nil
}

func (c *Client) PauseSubscription(ctx context.Context, id string) error {
	form := url.Values{}
	form.Set("pause_collection[behavior]", "void")
	return c.http.PostForm(ctx, "/subscriptions/"+url.PathEscape(id), form, nil)
}

func (c *Client) ResumeSubscription(ctx context.Context, id string) error {
	form := url.Values{}
	form.Set("pause_collection", "")
	return c.http.PostForm(ctx, "/subscriptions/"+url.PathEscape(id), form, nil)
}

func (c *Client) CancelSubscription(ctx context.Context, id string) error {
	return c.http.Delete(ctx, "/subscriptions/"+url.PathEscape(id), nil)
}

func setMetadata(form url.Values, notes map[string]string) {
	for key, value := range notes {
		form.Set("metadata["+key+"]", value)
	}
}
