package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// FailureReasonExpired marks pending donations never paid within the TTL.
const FailureReasonExpired = "expired"

// Donation is one contribution. A completed donation always carries the
// external payment id and a receipt number.
type Donation struct {
	ID                snowflake.ID  `json:"id" gorm:"primaryKey"`
	DonorID           snowflake.ID  `json:"donor_id" gorm:"not null;index"`
	DonorName         *string       `json:"donor_name,omitempty"`
	DonorEmail        *string       `json:"donor_email,omitempty"`
	Amount            int64         `json:"amount" gorm:"not null"`
	Currency          string        `json:"currency" gorm:"type:text;not null"`
	CampaignID        *snowflake.ID `json:"campaign_id,omitempty"`
	SubscriptionID    *snowflake.ID `json:"subscription_id,omitempty"`
	Provider          string        `json:"provider" gorm:"type:text;not null"`
	ExternalOrderID   *string       `json:"external_order_id,omitempty"`
	ExternalPaymentID *string       `json:"external_payment_id,omitempty"`
	Status            Status        `json:"status" gorm:"type:text;not null"`
	ReceiptNumber     *string       `json:"receipt_number,omitempty"`
	IsRecurring       bool          `json:"is_recurring"`
	IdempotencyToken  *string       `json:"-"`
	FailureReason     *string       `json:"failure_reason,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (Donation) TableName() string { return "donations" }
