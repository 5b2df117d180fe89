package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "rzp_whsec_test"

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{
		WebhookSecret: testSecret,
		Now:           func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return adapter.(*Adapter)
}

func TestVerifySignature(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{"event":"payment.captured"}`)

	headers := http.Header{}
	headers.Set(signatureHeader, sign(testSecret, payload))
	require.NoError(t, adapter.Verify(context.Background(), payload, headers))

	headers.Set(signatureHeader, sign("wrong", payload))
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)

	tampered := []byte(`{"event":"payment.captured" }`)
	headers.Set(signatureHeader, sign(testSecret, payload))
	assert.ErrorIs(t, adapter.Verify(context.Background(), tampered, headers), paymentdomain.ErrInvalidSignature)

	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, http.Header{}), paymentdomain.ErrInvalidSignature)
}

func TestNewAdapterRequiresSecret(t *testing.T) {
	_, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func paymentPayload(event string, payment map[string]any, subscription map[string]any) []byte {
	payload := map[string]any{}
	if payment != nil {
		payload["payment"] = map[string]any{"entity": payment}
	}
	if subscription != nil {
		payload["subscription"] = map[string]any{"entity": subscription}
	}
	raw, _ := json.Marshal(map[string]any{
		"entity":     "event",
		"event":      event,
		"created_at": 1740787200,
		"payload":    payload,
	})
	return raw
}

func TestParseEvents(t *testing.T) {
	adapter := newTestAdapter(t)
	headers := http.Header{}
	headers.Set(eventIDHeader, "evt_1")

	tests := []struct {
		name        string
		payload     []byte
		wantKind    paymentdomain.EventKind
		wantAmount  int64
		wantSub     string
		wantOrder   string
		wantPayment string
		wantExpired bool
		wantFailure string
	}{{
		name: "payment.captured",
		payload: paymentPayload("payment.captured", map[string]any{
			"id": "pay_1", "amount": 50000, "currency": "inr", "order_id": "order_1", "fee": 1180, "tax": 180, "notes": []any{},
		}, nil),
		wantKind:    paymentdomain.EventCharged,
		wantAmount:  50000,
		wantOrder:   "order_1",
		wantPayment: "pay_1",
	}, {
		name: "decimal string amount",
		payload: paymentPayload("payment.captured", map[string]any{
			"id": "pay_2", "amount": "500.00", "currency": "INR", "order_id": "order_2",
		}, nil),
		wantKind:    paymentdomain.EventCharged,
		wantAmount:  50000,
		wantOrder:   "order_2",
		wantPayment: "pay_2",
	}, {
		name: "subscription.charged",
		payload: paymentPayload("subscription.charged", map[string]any{
			"id": "pay_3", "amount": 50000, "currency": "INR", "invoice_id": "inv_1",
		}, map[string]any{"id": "sub_1", "plan_id": "plan_1", "status": "active"}),
		wantKind:    paymentdomain.EventCharged,
		wantAmount:  50000,
		wantSub:     "sub_1",
		wantPayment: "pay_3",
	}, {
		name: "payment.failed with subscription note",
		payload: paymentPayload("payment.failed", map[string]any{
			"id": "pay_4", "amount": 50000, "currency": "INR", "error_description": "card declined",
			"notes": map[string]any{"subscription_id": "sub_1"},
		}, nil),
		wantKind:    paymentdomain.EventFailed,
		wantAmount:  50000,
		wantSub:     "sub_1",
		wantPayment: "pay_4",
		wantFailure: "card declined",
	}, {
		name:     "subscription.halted",
		payload:  paymentPayload("subscription.halted", nil, map[string]any{"id": "sub_1"}),
		wantKind: paymentdomain.EventCancelled,
		wantSub:  "sub_1",
	}, {
		name:        "subscription.completed",
		payload:     paymentPayload("subscription.completed", nil, map[string]any{"id": "sub_1"}),
		wantKind:    paymentdomain.EventCancelled,
		wantSub:     "sub_1",
		wantExpired: true,
	}, {
		name:     "subscription.paused",
		payload:  paymentPayload("subscription.paused", nil, map[string]any{"id": "sub_1"}),
		wantKind: paymentdomain.EventPaused,
		wantSub:  "sub_1",
	}, {
		name:     "subscription.resumed",
		payload:  paymentPayload("subscription.resumed", nil, map[string]any{"id": "sub_1"}),
		wantKind: paymentdomain.EventResumed,
		wantSub:  "sub_1",
	}, {
		name:     "unknown",
		payload:  paymentPayload("order.paid", nil, nil),
		wantKind: paymentdomain.EventIgnored,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := adapter.Parse(context.Background(), tt.payload, headers)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, event.Kind)
			assert.Equal(t, "razorpay", event.Provider)
			assert.Equal(t, "evt_1", event.ProviderEventID)
			assert.Equal(t, tt.wantAmount, event.Amount)
			assert.Equal(t, tt.wantSub, event.ExternalSubscriptionID)
			assert.Equal(t, tt.wantOrder, event.ExternalOrderID)
			assert.Equal(t, tt.wantPayment, event.ExternalPaymentID)
			assert.Equal(t, tt.wantExpired, event.Expired)
			assert.Equal(t, tt.wantFailure, event.FailureReason)
			assert.Equal(t, time.Unix(1740787200, 0).UTC(), event.OccurredAt)
		})
	}
}

func TestParseSubscriptionPaymentCapturedIsIgnored(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := paymentPayload("payment.captured", map[string]any{
		"id": "pay_5", "amount": 50000, "currency": "INR", "invoice_id": "inv_2",
	}, nil)

	event, err := adapter.Parse(context.Background(), payload, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.EventIgnored, event.Kind)
}

func TestParseRefund(t *testing.T) {
	adapter := newTestAdapter(t)
	raw, _ := json.Marshal(map[string]any{
		"event":      "refund.processed",
		"created_at": 1740787200,
		"payload": map[string]any{
			"refund": map[string]any{"entity": map[string]any{
				"id": "rfnd_1", "payment_id": "pay_1", "amount": 50000, "currency": "INR",
			}},
		},
	})

	event, err := adapter.Parse(context.Background(), raw, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.EventRefunded, event.Kind)
	assert.Equal(t, "rfnd_1", event.ExternalRefundID)
	assert.Equal(t, "pay_1", event.ExternalPaymentID)
	assert.Equal(t, int64(50000), event.Amount)
}

func TestParseEventIDFallsBackToPayloadHash(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := paymentPayload("subscription.paused", nil, map[string]any{"id": "sub_1"})

	first, err := adapter.Parse(context.Background(), payload, http.Header{})
	require.NoError(t, err)
	second, err := adapter.Parse(context.Background(), payload, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, first.ProviderEventID, second.ProviderEventID)
	assert.Contains(t, first.ProviderEventID, "sha256:")
}

func TestParseRejectsMalformed(t *testing.T) {
	adapter := newTestAdapter(t)

	_, err := adapter.Parse(context.Background(), []byte(`not json`), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	_, err = adapter.Parse(context.Background(), []byte(`{"event":""}`), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)

	_, err = adapter.Parse(context.Background(), paymentPayload("payment.captured", map[string]any{"id": "pay_1", "amount": 100, "currency": "RUPEE"}, nil), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	_, err = adapter.Parse(context.Background(), paymentPayload("subscription.charged", map[string]any{"id": "pay_1", "amount": 100, "currency": "INR"}, nil), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
}
