package razorpay

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/smallbiznis/givelane/internal/payment/adapters/gatewayhttp"
	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

func (f *Factory) NewClient(cfg paymentdomain.AdapterConfig) (paymentdomain.GatewayClient, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	totalRuns := cfg.TotalRuns
	if totalRuns <= 0 {
		totalRuns = 120
	}
	return &Client{
		keyID:     keyID,
		totalRuns: totalRuns,
		http: gatewayhttp.New(providerName, baseURL, cfg.HTTPClient, func(r *http.Request) {
			r.SetBasicAuth(keyID, keySecret)
		}),
	}, nil
}

// Client calls the Razorpay orders, plans and subscriptions APIs.
type Client struct {
	keyID     string
	totalRuns int
	http      *gatewayhttp.Client
}

func (c *Client) ClientKey() string { return c.keyID }

type orderBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

func (c *Client) CreateOrder(ctx context.Context, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	var resp orderResponse
	err := c.http.PostJSON(ctx, "/orders", orderBody{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, paymentdomain.ErrGateway
	}
	return &paymentdomain.Order{ID: resp.ID, Amount: resp.Amount, Currency: strings.ToUpper(resp.Currency), Status: resp.Status}, nil
}

type planItem struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type planBody struct {
	Period   string   `json:"period"`
	Interval int      `json:"interval"`
	Item     planItem `json:"item"`
}

type idResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *Client) CreatePlan(ctx context.Context, req paymentdomain.PlanRequest) (*paymentdomain.Plan, error) {
	period := "monthly"
	if req.Period == "year" {
		period = "yearly"
	}
	interval := req.Interval
	if interval <= 0 {
		interval = 1
	}
	var resp idResponse
	err := c.http.PostJSON(ctx, "/plans", planBody{
		Period:   period,
		Interval: interval,
		Item:     planItem{Name: req.Name, Amount: req.Amount, Currency: req.Currency},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, paymentdomain.ErrGateway
	}
	return &paymentdomain.Plan{ID: resp.ID}, nil
}

type subscriptionBody struct {
	PlanID         string            `json:"plan_id"`
	TotalCount     int               `json:"total_count"`
	CustomerNotify int               `json:"customer_notify"`
	StartAt        int64             `json:"start_at,omitempty"`
	Notes          map[string]string `json:"notes,omitempty"`
}

func (c *Client) CreateSubscription(ctx context.Context, req paymentdomain.SubscriptionRequest) (*paymentdomain.GatewaySubscription, error) {
	total := req.TotalCount
	if total <= 0 {
		total = c.totalRuns
	}
	body := subscriptionBody{
		PlanID:         req.PlanID,
		TotalCount:     total,
		CustomerNotify: 1,
		Notes:          req.Notes,
	}
	if req.StartAt != nil {
		body.StartAt = req.StartAt.Unix()
	}
	var resp idResponse
	if err := c.http.PostJSON(ctx, "/subscriptions", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, paymentdomain.ErrGateway
	}
	return &paymentdomain.GatewaySubscription{ID: resp.ID, Status: resp.Status}, nil
}

func (c *Client) PauseSubscription(ctx context.Context, id string) error {
	return c.http.PostJSON(ctx, "/subscriptions/"+url.PathEscape(id)+"/pause", map[string]string{"pause_at": "now"}, nil)
}

func (c *Client) ResumeSubscription(ctx context.Context, id string) error {
	return c.http.PostJSON(ctx, "/subscriptions/"+url.PathEscape(id)+"/resume", map[string]string{"resume_at": "now"}, nil)
}

func (c *Client) CancelSubscription(ctx context.Context, id string) error {
	return c.http.PostJSON(ctx, "/subscriptions/"+url.PathEscape(id)+"/cancel", map[string]int{"cancel_at_cycle_end": 0}, nil)
}
