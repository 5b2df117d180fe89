// Package domain describes the campaign aggregate whose raised total the
// ledger keeps in step with completed donations.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
	StatusDraft  Status = "draft"
)

type Campaign struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Name       string       `json:"name"`
	Status     Status       `json:"status"`
	Currency   string       `json:"currency"`
	GoalAmount int64        `json:"goal_amount"`
	Raised     int64        `json:"raised"`
	EndDate    *time.Time   `json:"end_date,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (Campaign) TableName() string { return "campaigns" }

// AcceptsDonations reports whether the campaign can take new donations at now.
func (c Campaign) AcceptsDonations(now time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	return c.EndDate == nil || now.Before(*c.EndDate)
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Campaign, error)
	// AdjustRaised applies a signed delta to raised in a single statement.
	AdjustRaised(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, at time.Time) error
}

var (
	ErrCampaignNotFound    = errors.New("campaign_not_found")
	ErrCampaignUnavailable = errors.New("campaign_unavailable")
)
