package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	"github.com/smallbiznis/givelane/pkg/money"
)

const providerName = "stripe"

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
	tolerance := cfg.SignatureTolerance
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}

	return &Adapter{
		webhookSecret: secret,
		tolerance:     tolerance,
		now:           now,
	}, nil
}

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	skew := a.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.tolerance {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	out := &paymentdomain.PaymentEvent{
		Provider:        providerName,
		ProviderEventID: event.ID,
		EventType:       strings.TrimSpace(event.Type),
		OccurredAt:      a.timestamp(event.Created),
		RawPayload:      payload,
	}

	var err error
	switch out.EventType {
	case "payment_intent.succeeded":
		err = a.parsePaymentIntent(out, event, paymentdomain.EventCharged)
	case "payment_intent.payment_failed":
		err = a.parsePaymentIntent(out, event, paymentdomain.EventFailed)
	case "invoice.paid":
		err = a.parseInvoice(out, event, paymentdomain.EventCharged)
	case "invoice.payment_failed":
		err = a.parseInvoice(out, event, paymentdomain.EventFailed)
	case "customer.subscription.deleted":
		err = a.parseSubscription(out, event, paymentdomain.EventCancelled)
	case "customer.subscription.paused":
		err = a.parseSubscription(out, event, paymentdomain.EventPaused)
	case "customer.subscription.resumed":
		err = a.parseSubscription(out, event, paymentdomain.EventResumed)
	case "charge.refunded":
		err = a.parseRefund(out, event)
	default:
		out.Kind = paymentdomain.EventIgnored
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripePaymentIntent struct {
	ID               string       `json:"id"`
	Amount           int64        `json:"amount"`
	AmountReceived   int64        `json:"amount_received"`
	Currency         string       `json:"currency"`
	Invoice          string       `json:"invoice"`
	Created          int64        `json:"created"`
	LastPaymentError *stripeError `json:"last_payment_error"`
}

type stripeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type stripeInvoice struct {
	ID            string `json:"id"`
	Subscription  string `json:"subscription"`
	PaymentIntent string `json:"payment_intent"`
	AmountPaid    int64  `json:"amount_paid"`
	AmountDue     int64  `json:"amount_due"`
	Currency      string `json:"currency"`
	Tax           int64  `json:"tax"`
	Created       int64  `json:"created"`
}

type stripeSubscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type stripeCharge struct {
	ID             string            `json:"id"`
	PaymentIntent  string            `json:"payment_intent"`
	Amount         int64             `json:"amount"`
	AmountRefunded int64             `json:"amount_refunded"`
	Currency       string            `json:"currency"`
	Created        int64             `json:"created"`
	Refunds        *stripeRefundList `json:"refunds"`
}

// stripeRefundList is ordered newest first.
type stripeRefundList struct {
	Data []struct {
		ID     string `json:"id"`
		Amount int64  `json:"amount"`
	} `json:"data"`
}

func (a *Adapter) parsePaymentIntent(out *paymentdomain.PaymentEvent, event stripeEvent, kind paymentdomain.EventKind) error {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	currency, err := money.NormalizeCurrency(intent.Currency)
	if err != nil {
		return paymentdomain.ErrInvalidPayload
	}

	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}

	out.Kind = kind
	out.ExternalOrderID = intent.ID
	out.ExternalPaymentID = intent.ID
	out.Amount = amount
	out.Currency = currency
	if kind == paymentdomain.EventFailed {
		out.FailureReason = "payment_failed"
		if intent.LastPaymentError != nil && strings.TrimSpace(intent.LastPaymentError.Message) != "" {
			out.FailureReason = strings.TrimSpace(intent.LastPaymentError.Message)
		}
	}
	if strings.TrimSpace(intent.Invoice) != "" {
		// Invoice-backed intents are booked from the invoice events.
		out.Kind = paymentdomain.EventIgnored
	}
	return nil
}

func (a *Adapter) parseInvoice(out *paymentdomain.PaymentEvent, event stripeEvent, kind paymentdomain.EventKind) error {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(invoice.ID) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	currency, err := money.NormalizeCurrency(invoice.Currency)
	if err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(invoice.Subscription) == "" {
		out.Kind = paymentdomain.EventIgnored
		return nil
	}

	paymentID := strings.TrimSpace(invoice.PaymentIntent)
	if paymentID == "" {
		paymentID = invoice.ID
	}
	amount := invoice.AmountPaid
	if kind == paymentdomain.EventFailed || amount <= 0 {
		amount = invoice.AmountDue
	}

	out.Kind = kind
	out.ExternalSubscriptionID = strings.TrimSpace(invoice.Subscription)
	out.ExternalPaymentID = paymentID
	out.Amount = amount
	out.Currency = currency
	out.Tax = invoice.Tax
	if kind == paymentdomain.EventFailed {
		out.FailureReason = "invoice_payment_failed"
	}
	return nil
}

func (a *Adapter) parseSubscription(out *paymentdomain.PaymentEvent, event stripeEvent, kind paymentdomain.EventKind) error {
	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	out.Kind = kind
	out.ExternalSubscriptionID = strings.TrimSpace(sub.ID)
	return nil
}

func (a *Adapter) parseRefund(out *paymentdomain.PaymentEvent, event stripeEvent) error {
	var charge stripeCharge
	if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(charge.ID) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	currency, err := money.NormalizeCurrency(charge.Currency)
	if err != nil {
		return paymentdomain.ErrInvalidPayload
	}

	paymentID := strings.TrimSpace(charge.PaymentIntent)
	if paymentID == "" {
		paymentID = charge.ID
	}
	// amount_refunded is the running total; the event books only the latest refund.
	refundID := charge.ID + ":" + strconv.FormatInt(charge.AmountRefunded, 10)
	amount := charge.AmountRefunded
	if charge.Refunds != nil && len(charge.Refunds.Data) > 0 {
		latest := charge.Refunds.Data[0]
		if latest.ID != "" {
			refundID = latest.ID
		}
		if latest.Amount > 0 {
			amount = latest.Amount
		}
	}
	if amount <= 0 {
		amount = charge.Amount
	}

	out.Kind = paymentdomain.EventRefunded
	out.ExternalPaymentID = paymentID
	out.ExternalRefundID = refundID
	out.Amount = amount
	out.Currency = currency
	return nil
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func (a *Adapter) timestamp(unix int64) time.Time {
	if unix == 0 {
		return a.now().UTC()
	}
	return time.Unix(unix, 0).UTC()
}
