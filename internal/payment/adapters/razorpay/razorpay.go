package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	"github.com/smallbiznis/givelane/pkg/money"
)

const (
	providerName    = "razorpay"
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{webhookSecret: secret, now: now}, nil
}

type Adapter struct {
	webhookSecret string
	now           func() time.Time
}

// Verify checks the hex HMAC-SHA256 of the raw body.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get(signatureHeader))
	if signature == "" {
		return paymentdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.PaymentEvent, error) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	eventType := strings.TrimSpace(event.Event)
	if eventType == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	out := &paymentdomain.PaymentEvent{
		Provider:        providerName,
		ProviderEventID: eventID(headers, payload),
		EventType:       eventType,
		OccurredAt:      a.timestamp(event.CreatedAt),
		RawPayload:      payload,
	}

	var err error
	switch eventType {
	case "payment.captured":
		err = a.fillPayment(out, event, paymentdomain.EventCharged)
		if err == nil && out.ExternalSubscriptionID == "" && event.Payload.Payment != nil && event.Payload.Payment.Entity.InvoiceID != "" {
			// Subscription charges are booked from subscription.charged.
			out.Kind = paymentdomain.EventIgnored
		}
	case "subscription.charged":
		err = a.fillPayment(out, event, paymentdomain.EventCharged)
		if err == nil && out.ExternalSubscriptionID == "" {
			err = paymentdomain.ErrInvalidEvent
		}
	case "payment.failed":
		err = a.fillPayment(out, event, paymentdomain.EventFailed)
	case "subscription.halted", "subscription.cancelled":
		err = a.fillSubscription(out, event, paymentdomain.EventCancelled)
	case "subscription.completed":
		err = a.fillSubscription(out, event, paymentdomain.EventCancelled)
		out.Expired = true
	case "subscription.paused":
		err = a.fillSubscription(out, event, paymentdomain.EventPaused)
	case "subscription.resumed":
		err = a.fillSubscription(out, event, paymentdomain.EventResumed)
	case "refund.processed":
		err = a.fillRefund(out, event)
	default:
		out.Kind = paymentdomain.EventIgnored
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

type webhookEvent struct {
	Event     string         `json:"event"`
	CreatedAt int64          `json:"created_at"`
	Payload   webhookPayload `json:"payload"`
}

type webhookPayload struct {
	Payment      *paymentWrapper      `json:"payment"`
	Subscription *subscriptionWrapper `json:"subscription"`
	Refund       *refundWrapper       `json:"refund"`
}

type paymentWrapper struct {
	Entity paymentEntity `json:"entity"`
}

type subscriptionWrapper struct {
	Entity subscriptionEntity `json:"entity"`
}

type refundWrapper struct {
	Entity refundEntity `json:"entity"`
}

type paymentEntity struct {
	ID               string          `json:"id"`
	Amount           json.RawMessage `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	OrderID          string          `json:"order_id"`
	InvoiceID        string          `json:"invoice_id"`
	Fee              int64           `json:"fee"`
	Tax              int64           `json:"tax"`
	ErrorCode        string          `json:"error_code"`
	ErrorDescription string          `json:"error_description"`
	RawNotes         json.RawMessage `json:"notes"`
	CreatedAt        int64           `json:"created_at"`
}

type subscriptionEntity struct {
	ID     string `json:"id"`
	PlanID string `json:"plan_id"`
	Status string `json:"status"`
}

type refundEntity struct {
	ID        string          `json:"id"`
	PaymentID string          `json:"payment_id"`
	Amount    json.RawMessage `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt int64           `json:"created_at"`
}

func (a *Adapter) fillPayment(out *paymentdomain.PaymentEvent, event webhookEvent, kind paymentdomain.EventKind) error {
	if event.Payload.Payment == nil {
		return paymentdomain.ErrInvalidPayload
	}
	entity := event.Payload.Payment.Entity
	if strings.TrimSpace(entity.ID) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	currency, err := money.NormalizeCurrency(entity.Currency)
	if err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	amount, err := parseAmount(entity.Amount, currency)
	if err != nil {
		return err
	}

	out.Kind = kind
	out.ExternalPaymentID = entity.ID
	out.ExternalOrderID = strings.TrimSpace(entity.OrderID)
	out.Amount = amount
	out.Currency = currency
	out.Fee = entity.Fee
	out.Tax = entity.Tax
	if entity.CreatedAt > 0 && event.CreatedAt == 0 {
		out.OccurredAt = a.timestamp(entity.CreatedAt)
	}
	if kind == paymentdomain.EventFailed {
		out.FailureReason = failureReason(entity)
	}

	if event.Payload.Subscription != nil {
		out.ExternalSubscriptionID = strings.TrimSpace(event.Payload.Subscription.Entity.ID)
	}
	if out.ExternalSubscriptionID == "" {
		out.ExternalSubscriptionID = noteValue(entity.RawNotes, "subscription_id")
	}
	return nil
}

func (a *Adapter) fillSubscription(out *paymentdomain.PaymentEvent, event webhookEvent, kind paymentdomain.EventKind) error {
	if event.Payload.Subscription == nil {
		return paymentdomain.ErrInvalidPayload
	}
	entity := event.Payload.Subscription.Entity
	if strings.TrimSpace(entity.ID) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	out.Kind = kind
	out.ExternalSubscriptionID = strings.TrimSpace(entity.ID)
	return nil
}

func (a *Adapter) fillRefund(out *paymentdomain.PaymentEvent, event webhookEvent) error {
	if event.Payload.Refund == nil {
		return paymentdomain.ErrInvalidPayload
	}
	entity := event.Payload.Refund.Entity
	if strings.TrimSpace(entity.ID) == "" || strings.TrimSpace(entity.PaymentID) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	currency, err := money.NormalizeCurrency(entity.Currency)
	if err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	amount, err := parseAmount(entity.Amount, currency)
	if err != nil {
		return err
	}
	out.Kind = paymentdomain.EventRefunded
	out.ExternalRefundID = entity.ID
	out.ExternalPaymentID = entity.PaymentID
	out.Amount = amount
	out.Currency = currency
	return nil
}

// parseAmount accepts integer minor units or a decimal major-unit string.
func parseAmount(raw json.RawMessage, currency string) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, paymentdomain.ErrInvalidAmount
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, paymentdomain.ErrInvalidAmount
		}
		amount, err := money.ToMinorUnits(s, currency)
		if err != nil {
			return 0, paymentdomain.ErrInvalidAmount
		}
		return amount, nil
	}
	amount, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || amount < 0 {
		return 0, paymentdomain.ErrInvalidAmount
	}
	return amount, nil
}

func failureReason(entity paymentEntity) string {
	reason := strings.TrimSpace(entity.ErrorDescription)
	if reason == "" {
		reason = strings.TrimSpace(entity.ErrorCode)
	}
	if reason == "" {
		reason = "payment_failed"
	}
	return reason
}

// noteValue reads a key from Razorpay notes, which arrive as an object or
// as an empty array.
func noteValue(raw json.RawMessage, key string) string {
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	var notes map[string]any
	if err := json.Unmarshal(raw, &notes); err != nil {
		return ""
	}
	if v, ok := notes[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func eventID(headers http.Header, payload []byte) string {
	if headers != nil {
		if id := strings.TrimSpace(headers.Get(eventIDHeader)); id != "" {
			return id
		}
	}
	sum := sha256.Sum256(payload)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func (a *Adapter) timestamp(unix int64) time.Time {
	if unix <= 0 {
		return a.now().UTC()
	}
	return time.Unix(unix, 0).UTC()
}
