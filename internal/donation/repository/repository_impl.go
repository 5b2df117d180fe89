package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/givelane/internal/donation/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, donation *domain.Donation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO donations (
			id, donor_id, donor_name, donor_email, amount, currency, campaign_id, subscription_id,
			provider, external_order_id, external_payment_id, status, receipt_number, is_recurring,
			idempotency_token, failure_reason, created_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		donation.ID,
		donation.DonorID,
		donation.DonorName,
		donation.DonorEmail,
		donation.Amount,
		donation.Currency,
		donation.CampaignID,
		donation.SubscriptionID,
		donation.Provider,
		donation.ExternalOrderID,
		donation.ExternalPaymentID,
		donation.Status,
		donation.ReceiptNumber,
		donation.IsRecurring,
		donation.IdempotencyToken,
		donation.FailureReason,
		donation.CreatedAt,
		donation.CompletedAt,
		donation.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Donation, error) {
	if id == 0 {
		return nil, nil
	}
	return first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByExternalOrderIDForUpdate(ctx context.Context, db *gorm.DB, provider, externalOrderID string) (*domain.Donation, error) {
	externalOrderID = strings.TrimSpace(externalOrderID)
	if externalOrderID == "" {
		return nil, nil
	}
	return first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND external_order_id = ?", provider, externalOrderID))
}

func (r *repo) FindByExternalPaymentIDForUpdate(ctx context.Context, db *gorm.DB, provider, externalPaymentID string) (*domain.Donation, error) {
	externalPaymentID = strings.TrimSpace(externalPaymentID)
	if externalPaymentID == "" {
		return nil, nil
	}
	return first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND external_payment_id = ?", provider, externalPaymentID))
}

func (r *repo) FindByIdempotencyToken(ctx context.Context, db *gorm.DB, donorID snowflake.ID, token string) (*domain.Donation, error) {
	token = strings.TrimSpace(token)
	if donorID == 0 || token == "" {
		return nil, nil
	}
	return first(db.WithContext(ctx).Where("donor_id = ? AND idempotency_token = ?", donorID, token))
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, donation *domain.Donation) error {
	return db.WithContext(ctx).Exec(
		`UPDATE donations SET
			status = ?,
			external_payment_id = ?,
			receipt_number = COALESCE(receipt_number, ?),
			failure_reason = ?,
			completed_at = ?,
			updated_at = ?
		WHERE id = ?`,
		donation.Status,
		donation.ExternalPaymentID,
		donation.ReceiptNumber,
		donation.FailureReason,
		donation.CompletedAt,
		donation.UpdatedAt,
		donation.ID,
	).Error
}

func (r *repo) ExpirePending(ctx context.Context, db *gorm.DB, cutoff, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE donations SET status = ?, failure_reason = ?, updated_at = ?
		WHERE status = ? AND is_recurring = ? AND created_at < ?`,
		domain.StatusFailed,
		domain.FailureReasonExpired,
		at,
		domain.StatusPending,
		false,
		cutoff,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) SumCompletedByCampaign(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM donations WHERE campaign_id = ? AND status = ?`,
		campaignID,
		domain.StatusCompleted,
	).Scan(&total).Error
	return total, err
}

func first(stmt *gorm.DB) (*domain.Donation, error) {
	var donation domain.Donation
	if err := stmt.Limit(1).Find(&donation).Error; err != nil {
		return nil, err
	}
	if donation.ID == 0 {
		return nil, nil
	}
	return &donation, nil
}
