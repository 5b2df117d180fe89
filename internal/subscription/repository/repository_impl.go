package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/givelane/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, donor_id, campaign_id, provider, external_subscription_id, external_plan_id,
			amount, currency, frequency, status, next_charge_date, last_charge_date,
			total_payments, total_amount, failed_payments, cancel_reason, idempotency_token,
			paused_at, resumed_at, cancelled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.DonorID,
		subscription.CampaignID,
		subscription.Provider,
		subscription.ExternalSubscriptionID,
		subscription.ExternalPlanID,
		subscription.Amount,
		subscription.Currency,
		subscription.Frequency,
		subscription.Status,
		subscription.NextChargeDate,
		subscription.LastChargeDate,
		subscription.TotalPayments,
		subscription.TotalAmount,
		subscription.FailedPayments,
		subscription.CancelReason,
		subscription.IdempotencyToken,
		subscription.PausedAt,
		subscription.ResumedAt,
		subscription.CancelledAt,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if id == 0 {
		return nil, nil
	}
	return first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if id == 0 {
		return nil, nil
	}
	return first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) FindByExternalIDForUpdate(ctx context.Context, db *gorm.DB, provider, externalID string) (*subscriptiondomain.Subscription, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, nil
	}
	return first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND external_subscription_id = ?", provider, externalID))
}

func (r *repo) FindByIdempotencyToken(ctx context.Context, db *gorm.DB, donorID snowflake.ID, token string) (*subscriptiondomain.Subscription, error) {
	token = strings.TrimSpace(token)
	if donorID == 0 || token == "" {
		return nil, nil
	}
	return first(db.WithContext(ctx).Where("donor_id = ? AND idempotency_token = ?", donorID, token))
}

func (r *repo) UpdateState(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET
			status = ?,
			next_charge_date = ?,
			last_charge_date = ?,
			total_payments = ?,
			total_amount = ?,
			failed_payments = ?,
			cancel_reason = ?,
			paused_at = ?,
			resumed_at = ?,
			cancelled_at = ?,
			updated_at = ?
		WHERE id = ?`,
		subscription.Status,
		subscription.NextChargeDate,
		subscription.LastChargeDate,
		subscription.TotalPayments,
		subscription.TotalAmount,
		subscription.FailedPayments,
		subscription.CancelReason,
		subscription.PausedAt,
		subscription.ResumedAt,
		subscription.CancelledAt,
		subscription.UpdatedAt,
		subscription.ID,
	).Error
}

func first(stmt *gorm.DB) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := stmt.Limit(1).Find(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}
