package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventKind is the normalized meaning of a gateway notification.
type EventKind string

const (
	EventCharged   EventKind = "charged"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
	EventPaused    EventKind = "paused"
	EventResumed   EventKind = "resumed"
	EventRefunded  EventKind = "refunded"
	EventIgnored   EventKind = "ignored"
)

// PaymentEvent is the canonical payment event parsed by adapters.
type PaymentEvent struct {
	Kind                   EventKind
	Provider               string
	ProviderEventID        string
	EventType              string
	ExternalOrderID        string
	ExternalPaymentID      string
	ExternalSubscriptionID string
	ExternalRefundID       string
	Amount                 int64
	Currency               string
	Fee                    int64
	Tax                    int64
	FailureReason          string
	// Expired marks a cancellation caused by the schedule running out.
	Expired    bool
	OccurredAt time.Time
	RawPayload []byte
}

// AffectsSubscription reports whether the event belongs to a recurring plan.
func (e *PaymentEvent) AffectsSubscription() bool {
	return e != nil && e.ExternalSubscriptionID != ""
}

const (
	PaymentStatusCaptured = "captured"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Payment is one money movement reported by a gateway. Rows are never deleted.
type Payment struct {
	ID                snowflake.ID   `json:"id" gorm:"primaryKey"`
	DonationID        snowflake.ID   `json:"donation_id" gorm:"not null;index"`
	Provider          string         `json:"provider" gorm:"type:text;not null"`
	ExternalOrderID   *string        `json:"external_order_id,omitempty"`
	ExternalPaymentID string         `json:"external_payment_id" gorm:"type:text;not null"`
	Amount            int64          `json:"amount" gorm:"not null"`
	Currency          string         `json:"currency" gorm:"type:text;not null"`
	Status            string         `json:"status" gorm:"type:text;not null"`
	GatewayName       string         `json:"gateway_name" gorm:"type:text;not null"`
	Fee               int64          `json:"fee"`
	Tax               int64          `json:"tax"`
	NetAmount         int64          `json:"net_amount"`
	RefundedAmount    int64          `json:"refunded_amount"`
	FailureReason     *string        `json:"failure_reason,omitempty"`
	RawPayload        datatypes.JSON `json:"-" gorm:"type:jsonb"`
	CapturedAt        *time.Time     `json:"captured_at,omitempty"`
	RefundedAt        *time.Time     `json:"refunded_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// WebhookEventRecord is the audit trail of every verified delivery.
type WebhookEventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	EventKind       string         `json:"event_kind" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	Outcome         *string        `json:"outcome,omitempty"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (WebhookEventRecord) TableName() string { return "payment_webhook_events" }

// Delivery outcomes recorded on webhook events and metrics.
const (
	OutcomeProcessed        = "processed"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeIgnored          = "ignored"
	OutcomeRejected         = "rejected"
	OutcomeFault            = "fault"
)
