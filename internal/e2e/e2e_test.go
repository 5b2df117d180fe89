package e2e

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/givelane/internal/auth/domain"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/config"
	"github.com/smallbiznis/givelane/internal/observability"
	"github.com/smallbiznis/givelane/internal/seed"
	"github.com/smallbiznis/givelane/internal/server"
	"github.com/smallbiznis/givelane/internal/testutil/dbtest"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	webhookSecret = "rzp_whsec_e2e"
	jwtSecret     = "e2e-secret-e2e-secret-e2e-secret-e2e"
)

type testEnv struct {
	app        *fx.App
	db         *gorm.DB
	auth       authdomain.Service
	gateway    *fakeGateway
	baseURL    string
	httpSrv    *httptest.Server
	donorID    snowflake.ID
	campaignID snowflake.ID
}

func TestE2E_HealthCheck(t *testing.T) {
	env := startEnv(t)

	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_OneOffDonationSettledByWebhook(t *testing.T) {
	env := startEnv(t)
	client := newHTTPClient()
	donorToken := env.token(t, env.donorID.String(), authdomain.RoleDonor)

	body := map[string]any{
		"amount":      50000,
		"currency":    "INR",
		"campaign_id": env.campaignID.String(),
	}
	headers := map[string]string{
		"Authorization":   "Bearer " + donorToken,
		"Idempotency-Key": "order-key-1",
	}
	resp, data := doJSON(t, client, http.MethodPost, env.baseURL+"/api/donations/orders", body, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d: %s", resp.StatusCode, string(data))
	}
	var order struct {
		Data struct {
			DonationID      string `json:"donation_id"`
			ExternalOrderID string `json:"external_order_id"`
			Amount          int64  `json:"amount"`
		} `json:"data"`
	}
	decode(t, data, &order)
	if order.Data.DonationID == "" || !strings.HasPrefix(order.Data.ExternalOrderID, "order_") {
		t.Fatalf("unexpected order response: %s", string(data))
	}

	resp, data = doJSON(t, client, http.MethodPost, env.baseURL+"/api/donations/orders", body, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replayed order: expected 200, got %d: %s", resp.StatusCode, string(data))
	}
	if got := env.gateway.calls("/orders"); got != 1 {
		t.Fatalf("expected one gateway order, got %d", got)
	}

	captured := fmt.Sprintf(`{"entity":"event","event":"payment.captured","created_at":%d,`+
		`"payload":{"payment":{"entity":{"id":"pay_e2e_1","amount":50000,"currency":"INR","order_id":%q,"status":"captured","fee":1180,"tax":180}}}}`,
		time.Now().Unix(), order.Data.ExternalOrderID)

	outcome := postWebhook(t, client, env, []byte(captured), "evt_e2e_1", http.StatusOK)
	if outcome != "processed" {
		t.Fatalf("expected processed outcome, got %q", outcome)
	}
	outcome = postWebhook(t, client, env, []byte(captured), "evt_e2e_1", http.StatusOK)
	if outcome != "already_processed" {
		t.Fatalf("expected already_processed on redelivery, got %q", outcome)
	}

	resp, data = doJSON(t, client, http.MethodGet, env.baseURL+"/api/donations/"+order.Data.DonationID, nil, map[string]string{
		"Authorization": "Bearer " + donorToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get donation: expected 200, got %d: %s", resp.StatusCode, string(data))
	}
	var donation struct {
		Data struct {
			Status        string  `json:"status"`
			ReceiptNumber *string `json:"receipt_number"`
		} `json:"data"`
	}
	decode(t, data, &donation)
	if donation.Data.Status != "completed" {
		t.Fatalf("expected completed donation, got %q", donation.Data.Status)
	}
	if donation.Data.ReceiptNumber == nil || *donation.Data.ReceiptNumber == "" {
		t.Fatalf("expected receipt number to be assigned")
	}

	if raised := env.raised(t); raised != 50000 {
		t.Fatalf("expected campaign raised 50000, got %d", raised)
	}
	if n := countRows(t, env.db, "payments", "external_payment_id = ?", "pay_e2e_1"); n != 1 {
		t.Fatalf("expected one payment row, got %d", n)
	}
}

func TestE2E_WebhookRejectsBadSignature(t *testing.T) {
	env := startEnv(t)
	client := newHTTPClient()
	donorToken := env.token(t, env.donorID.String(), authdomain.RoleDonor)

	resp, data := doJSON(t, client, http.MethodPost, env.baseURL+"/api/donations/orders", map[string]any{
		"amount":      50000,
		"currency":    "INR",
		"campaign_id": env.campaignID.String(),
	}, map[string]string{
		"Authorization":   "Bearer " + donorToken,
		"Idempotency-Key": "order-key-forged",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d: %s", resp.StatusCode, string(data))
	}
	var order struct {
		Data struct {
			ExternalOrderID string `json:"external_order_id"`
		} `json:"data"`
	}
	decode(t, data, &order)

	payload := []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_forged","amount":50000,"currency":"INR","order_id":%q,"status":"captured"}}}}`, order.Data.ExternalOrderID))
	resp, data = doRaw(t, client, http.MethodPost, env.baseURL+"/api/payments/webhooks/razorpay", payload, map[string]string{
		"X-Razorpay-Signature": strings.Repeat("0", 64),
		"X-Razorpay-Event-Id":  "evt_forged",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, string(data))
	}
	if !strings.Contains(string(data), "invalid_signature") {
		t.Fatalf("expected invalid_signature error, got %s", string(data))
	}
	if n := countRows(t, env.db, "payment_webhook_events", "provider_event_id = ?", "evt_forged"); n != 0 {
		t.Fatalf("forged delivery must not be stored, found %d", n)
	}
	if n := countRows(t, env.db, "payments", "1 = 1"); n != 0 {
		t.Fatalf("forged delivery must not write payments, found %d", n)
	}
	if n := countRows(t, env.db, "donations", "status <> ?", "pending"); n != 0 {
		t.Fatalf("forged delivery must not settle donations, found %d", n)
	}
	if n := countRows(t, env.db, "donations", "external_order_id = ? AND status = ?", order.Data.ExternalOrderID, "pending"); n != 1 {
		t.Fatalf("expected the order's donation to stay pending, found %d", n)
	}
	if raised := env.raised(t); raised != 0 {
		t.Fatalf("forged delivery must not move campaign raised, got %d", raised)
	}
}

func TestE2E_RecurringDonationLifecycle(t *testing.T) {
	env := startEnv(t)
	client := newHTTPClient()
	donorToken := env.token(t, env.donorID.String(), authdomain.RoleDonor)
	adminToken := env.token(t, "ops-1", authdomain.RoleAdmin)
	donorAuth := map[string]string{"Authorization": "Bearer " + donorToken}

	resp, data := doJSON(t, client, http.MethodPost, env.baseURL+"/api/donations/subscriptions", map[string]any{
		"amount":      50000,
		"frequency":   "monthly",
		"currency":    "INR",
		"campaign_id": env.campaignID.String(),
	}, donorAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create subscription: expected 201, got %d: %s", resp.StatusCode, string(data))
	}
	var created struct {
		Data struct {
			SubscriptionID         string `json:"subscription_id"`
			ExternalSubscriptionID string `json:"external_subscription_id"`
		} `json:"data"`
	}
	decode(t, data, &created)
	if created.Data.SubscriptionID == "" || !strings.HasPrefix(created.Data.ExternalSubscriptionID, "sub_") {
		t.Fatalf("unexpected subscription response: %s", string(data))
	}
	if env.gateway.calls("/plans") != 1 || env.gateway.calls("/subscriptions") != 1 {
		t.Fatalf("expected plan and subscription to be created at the gateway")
	}

	charged := fmt.Sprintf(`{"entity":"event","event":"subscription.charged","created_at":%d,`+
		`"payload":{"subscription":{"entity":{"id":%q,"status":"active"}},`+
		`"payment":{"entity":{"id":"pay_e2e_sub_1","amount":50000,"currency":"INR","invoice_id":"inv_1","status":"captured"}}}}`,
		time.Now().Unix(), created.Data.ExternalSubscriptionID)
	if outcome := postWebhook(t, client, env, []byte(charged), "evt_sub_charge_1", http.StatusOK); outcome != "processed" {
		t.Fatalf("expected processed charge, got %q", outcome)
	}

	sub := getSubscription(t, client, env, created.Data.SubscriptionID, donorAuth)
	if sub.Status != "active" || sub.TotalPayments != 1 || sub.TotalAmount != 50000 {
		t.Fatalf("unexpected subscription after charge: %+v", sub)
	}
	if n := countRows(t, env.db, "donations", "subscription_id = ? AND status = ?", created.Data.SubscriptionID, "completed"); n != 1 {
		t.Fatalf("expected one completed recurring donation, got %d", n)
	}

	resp, data = doJSON(t, client, http.MethodPatch, env.baseURL+"/api/subscriptions/"+created.Data.SubscriptionID,
		map[string]string{"status": "paused"}, donorAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause subscription: expected 200, got %d: %s", resp.StatusCode, string(data))
	}
	if env.gateway.calls("/subscriptions/"+created.Data.ExternalSubscriptionID+"/pause") != 1 {
		t.Fatalf("expected pause to reach the gateway")
	}

	cancelled := fmt.Sprintf(`{"entity":"event","event":"subscription.cancelled","created_at":%d,`+
		`"payload":{"subscription":{"entity":{"id":%q,"status":"cancelled"}}}}`,
		time.Now().Unix(), created.Data.ExternalSubscriptionID)
	if outcome := postWebhook(t, client, env, []byte(cancelled), "evt_sub_cancel_1", http.StatusOK); outcome != "processed" {
		t.Fatalf("expected processed cancellation, got %q", outcome)
	}
	if sub := getSubscription(t, client, env, created.Data.SubscriptionID, donorAuth); sub.Status != "cancelled" {
		t.Fatalf("expected cancelled subscription, got %q", sub.Status)
	}

	resp, data = doJSON(t, client, http.MethodPatch, env.baseURL+"/api/subscriptions/"+created.Data.SubscriptionID,
		map[string]string{"status": "active"}, donorAuth)
	if resp.StatusCode != http.StatusConflict || !strings.Contains(string(data), "invalid_transition") {
		t.Fatalf("resume after cancel: expected 409 invalid_transition, got %d: %s", resp.StatusCode, string(data))
	}

	resp, data = doJSON(t, client, http.MethodGet,
		env.baseURL+"/admin/audit-logs?target_type=subscription&target_id="+created.Data.SubscriptionID, nil,
		map[string]string{"Authorization": "Bearer " + adminToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit logs: expected 200, got %d: %s", resp.StatusCode, string(data))
	}
	var logs struct {
		Data []struct {
			Action string `json:"action"`
		} `json:"data"`
	}
	decode(t, data, &logs)
	if len(logs.Data) == 0 {
		t.Fatalf("expected audit entries for subscription %s", created.Data.SubscriptionID)
	}

	resp, _ = doJSON(t, client, http.MethodGet,
		env.baseURL+"/admin/audit-logs?target_type=subscription&target_id="+created.Data.SubscriptionID, nil, donorAuth)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("donor audit access: expected 403, got %d", resp.StatusCode)
	}
}

func TestE2E_DonationRequiresAuthentication(t *testing.T) {
	env := startEnv(t)
	client := newHTTPClient()

	resp, _ := doJSON(t, client, http.MethodPost, env.baseURL+"/api/donations/orders", map[string]any{"amount": 50000}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if env.gateway.calls("/orders") != 0 {
		t.Fatalf("unauthenticated request must not reach the gateway")
	}
}

type subscriptionView struct {
	Status        string `json:"status"`
	TotalPayments int    `json:"total_payments"`
	TotalAmount   int64  `json:"total_amount"`
}

func getSubscription(t *testing.T, client *http.Client, env *testEnv, id string, headers map[string]string) subscriptionView {
	t.Helper()
	resp, data := doJSON(t, client, http.MethodGet, env.baseURL+"/api/subscriptions/"+id, nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get subscription: expected 200, got %d: %s", resp.StatusCode, string(data))
	}
	var out struct {
		Data subscriptionView `json:"data"`
	}
	decode(t, data, &out)
	return out.Data
}

func postWebhook(t *testing.T, client *http.Client, env *testEnv, payload []byte, eventID string, wantStatus int) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write(payload)
	resp, data := doRaw(t, client, http.MethodPost, env.baseURL+"/api/payments/webhooks/razorpay", payload, map[string]string{
		"X-Razorpay-Signature": hex.EncodeToString(mac.Sum(nil)),
		"X-Razorpay-Event-Id":  eventID,
	})
	if resp.StatusCode != wantStatus {
		t.Fatalf("webhook %s: expected %d, got %d: %s", eventID, wantStatus, resp.StatusCode, string(data))
	}
	var out struct {
		Outcome string `json:"outcome"`
	}
	decode(t, data, &out)
	return out.Outcome
}

// fakeGateway answers the Razorpay order, plan and subscription endpoints.
type fakeGateway struct {
	mu    sync.Mutex
	seq   int
	paths map[string]int
	srv   *httptest.Server
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{paths: map[string]int{}}
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.seq++
	n := g.seq
	g.paths[r.URL.Path]++
	g.mu.Unlock()

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method != http.MethodPost:
		w.WriteHeader(http.StatusMethodNotAllowed)
	case r.URL.Path == "/orders":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       fmt.Sprintf("order_%d", n),
			"amount":   body["amount"],
			"currency": body["currency"],
			"status":   "created",
		})
	case r.URL.Path == "/plans":
		_ = json.NewEncoder(w).Encode(map[string]any{"id": fmt.Sprintf("plan_%d", n)})
	case r.URL.Path == "/subscriptions":
		_ = json.NewEncoder(w).Encode(map[string]any{"id": fmt.Sprintf("sub_%d", n), "status": "created"})
	case strings.HasPrefix(r.URL.Path, "/subscriptions/"):
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (g *fakeGateway) calls(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paths[path]
}

func startEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	setDefaultEnv(t)

	dbConn := dbtest.Open(t)
	node := dbtest.Node(t)
	demo, err := seed.EnsureDemoData(dbConn, node)
	if err != nil {
		t.Fatalf("seed demo data: %v", err)
	}

	gateway := newFakeGateway(t)
	cfg := config.Config{
		AppName:             "givelane",
		Environment:         "test",
		HTTPAddr:            "127.0.0.1:0",
		DBType:              "sqlite",
		AuthJWTSecret:       jwtSecret,
		AuthJWTIssuer:       "givelane",
		DefaultProvider:     "razorpay",
		GatewayTimeout:      5 * time.Second,
		SignatureTolerance:  5 * time.Minute,
		WebhookRateLimit:    1000,
		InitiatorRateLimit:  1000,
		PendingDonationTTL:  24 * time.Hour,
		SchedulerInterval:   time.Hour,
		SchedulerLockTTL:    time.Minute,
		ReceiptNumberPrefix: "RCT",
	}
	gateways := config.NewStaticGatewayConfigHolder(config.GatewayConfig{
		Provider:      "razorpay",
		Enabled:       true,
		BaseURL:       gateway.srv.URL,
		KeyID:         "rzp_test_key",
		KeySecret:     "rzp_test_secret",
		WebhookSecret: webhookSecret,
	})

	var authSvc authdomain.Service
	var engine *gin.Engine
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg, gateways, dbConn, node),
		observability.Module,
		clock.Module,
		server.Module,
		fx.Populate(&authSvc, &engine),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("start app: %v", err)
	}

	env := &testEnv{
		app:        app,
		db:         dbConn,
		auth:       authSvc,
		gateway:    gateway,
		httpSrv:    httptest.NewServer(engine),
		donorID:    demo.DonorID,
		campaignID: demo.CampaignID,
	}
	env.baseURL = env.httpSrv.URL
	t.Cleanup(env.shutdown)
	return env
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
}

func (e *testEnv) token(t *testing.T, subject string, role authdomain.Role) string {
	t.Helper()
	token, _, err := e.auth.Issue(context.Background(), authdomain.IssueRequest{Subject: subject, Role: role, TTL: time.Hour})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) raised(t *testing.T) int64 {
	t.Helper()
	var raised int64
	if err := e.db.Raw(`SELECT raised FROM campaigns WHERE id = ?`, e.campaignID).Scan(&raised).Error; err != nil {
		t.Fatalf("query raised: %v", err)
	}
	return raised
}

func setDefaultEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("DEPLOYMENT_ENV", "test")
}

func countRows(t *testing.T, dbConn *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := dbConn.Table(table).Where(where, args...).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func decode(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode response: %v: %s", err, string(data))
	}
}

func doJSON(t *testing.T, client *http.Client, method, reqURL string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode json: %v", err)
		}
		if headers == nil {
			headers = map[string]string{}
		}
		merged := map[string]string{"Content-Type": "application/json"}
		for key, value := range headers {
			merged[key] = value
		}
		headers = merged
	}
	return doRaw(t, client, method, reqURL, raw, headers)
}

func doRaw(t *testing.T, client *http.Client, method, reqURL string, payload []byte, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
