package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, donation *Donation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Donation, error)
	FindByExternalOrderIDForUpdate(ctx context.Context, db *gorm.DB, provider, externalOrderID string) (*Donation, error)
	FindByExternalPaymentIDForUpdate(ctx context.Context, db *gorm.DB, provider, externalPaymentID string) (*Donation, error)
	FindByIdempotencyToken(ctx context.Context, db *gorm.DB, donorID snowflake.ID, token string) (*Donation, error)
	// UpdateStatus persists status, payment reference, receipt and failure columns.
	UpdateStatus(ctx context.Context, db *gorm.DB, donation *Donation) error
	// ExpirePending fails one-off pending donations created before cutoff.
	ExpirePending(ctx context.Context, db *gorm.DB, cutoff, at time.Time) (int64, error)
	SumCompletedByCampaign(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) (int64, error)
}
