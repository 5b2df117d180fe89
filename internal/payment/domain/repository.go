package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByExternalPaymentIDForUpdate(ctx context.Context, db *gorm.DB, provider, externalPaymentID string) (*Payment, error)
	UpdatePayment(ctx context.Context, db *gorm.DB, payment *Payment) error

	// InsertWebhookEvent records a verified delivery. It reports false when
	// the provider event was already recorded.
	InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *WebhookEventRecord) (bool, error)
	FindWebhookEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*WebhookEventRecord, error)
	MarkWebhookEvent(ctx context.Context, db *gorm.DB, provider, providerEventID, outcome string, processedAt time.Time) error
}
