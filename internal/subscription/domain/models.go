// Package domain holds the recurring donation model and its lifecycle rules.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status represents lifecycle states for a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further transitions are accepted.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

func ParseStatus(raw string) (Status, error) {
	switch status := Status(strings.ToLower(strings.TrimSpace(raw))); status {
	case StatusActive, StatusPaused, StatusCancelled, StatusExpired:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Frequency is the billing period of a recurring donation.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

func ParseFrequency(raw string) (Frequency, error) {
	switch freq := Frequency(strings.ToLower(strings.TrimSpace(raw))); freq {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return freq, nil
	default:
		return "", ErrInvalidFrequency
	}
}

// Next returns the charge date one period after from, using calendar
// arithmetic.
func (f Frequency) Next(from time.Time) time.Time {
	switch f {
	case FrequencyQuarterly:
		return from.AddDate(0, 3, 0)
	case FrequencyYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// PlanPeriod expresses the frequency as interval units of "month" or "year".
func (f Frequency) PlanPeriod() (string, int) {
	switch f {
	case FrequencyQuarterly:
		return "month", 3
	case FrequencyYearly:
		return "year", 1
	default:
		return "month", 1
	}
}

// Subscription is a donor's recurring donation agreement with a gateway.
type Subscription struct {
	ID                     snowflake.ID  `json:"id" gorm:"primaryKey"`
	DonorID                snowflake.ID  `json:"donor_id" gorm:"not null;index"`
	CampaignID             *snowflake.ID `json:"campaign_id,omitempty"`
	Provider               string        `json:"provider" gorm:"type:text;not null"`
	ExternalSubscriptionID string        `json:"external_subscription_id" gorm:"type:text;not null"`
	ExternalPlanID         string        `json:"external_plan_id" gorm:"type:text;not null"`
	Amount                 int64         `json:"amount" gorm:"not null"`
	Currency               string        `json:"currency" gorm:"type:text;not null"`
	Frequency              Frequency     `json:"frequency" gorm:"type:text;not null"`
	Status                 Status        `json:"status" gorm:"type:text;not null"`
	NextChargeDate         time.Time     `json:"next_charge_date" gorm:"not null"`
	LastChargeDate         *time.Time    `json:"last_charge_date,omitempty"`
	TotalPayments          int           `json:"total_payments"`
	TotalAmount            int64         `json:"total_amount"`
	FailedPayments         int           `json:"failed_payments"`
	CancelReason           *string       `json:"cancel_reason,omitempty"`
	IdempotencyToken       *string       `json:"-"`
	PausedAt               *time.Time    `json:"paused_at,omitempty"`
	ResumedAt              *time.Time    `json:"resumed_at,omitempty"`
	CancelledAt            *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
