package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/givelane/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, donation_id, provider, external_order_id, external_payment_id, amount, currency,
			status, gateway_name, fee, tax, net_amount, refunded_amount, failure_reason,
			raw_payload, captured_at, refunded_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.DonationID,
		payment.Provider,
		payment.ExternalOrderID,
		payment.ExternalPaymentID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.GatewayName,
		payment.Fee,
		payment.Tax,
		payment.NetAmount,
		payment.RefundedAmount,
		payment.FailureReason,
		payment.RawPayload,
		payment.CapturedAt,
		payment.RefundedAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) FindByExternalPaymentIDForUpdate(ctx context.Context, db *gorm.DB, provider, externalPaymentID string) (*domain.Payment, error) {
	externalPaymentID = strings.TrimSpace(externalPaymentID)
	if externalPaymentID == "" {
		return nil, nil
	}
	var payment domain.Payment
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND external_payment_id = ?", provider, externalPaymentID).
		Limit(1).
		Find(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET
			donation_id = ?,
			amount = ?,
			status = ?,
			fee = ?,
			tax = ?,
			net_amount = ?,
			refunded_amount = ?,
			failure_reason = ?,
			raw_payload = ?,
			captured_at = ?,
			refunded_at = ?,
			updated_at = ?
		WHERE id = ?`,
		payment.DonationID,
		payment.Amount,
		payment.Status,
		payment.Fee,
		payment.Tax,
		payment.NetAmount,
		payment.RefundedAmount,
		payment.FailureReason,
		payment.RawPayload,
		payment.CapturedAt,
		payment.RefundedAt,
		payment.UpdatedAt,
		payment.ID,
	).Error
}

func (r *repo) InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *domain.WebhookEventRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_webhook_events (
			id, provider, provider_event_id, event_type, event_kind,
			payload, outcome, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.EventKind,
		event.Payload,
		event.Outcome,
		event.ReceivedAt,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindWebhookEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*domain.WebhookEventRecord, error) {
	var item domain.WebhookEventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_event_id, event_type, event_kind,
			payload, outcome, received_at, processed_at
		 FROM payment_webhook_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkWebhookEvent(ctx context.Context, db *gorm.DB, provider, providerEventID, outcome string, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_webhook_events
		 SET outcome = ?, processed_at = ?
		 WHERE provider = ? AND provider_event_id = ?`,
		outcome,
		processedAt,
		provider,
		providerEventID,
	).Error
}
