package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/givelane/internal/campaign/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Campaign, error) {
	if id == 0 {
		return nil, nil
	}
	var campaign domain.Campaign
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, status, currency, goal_amount, raised, end_date, created_at, updated_at
		 FROM campaigns WHERE id = ?`,
		id,
	).Scan(&campaign).Error
	if err != nil {
		return nil, err
	}
	if campaign.ID == 0 {
		return nil, nil
	}
	return &campaign, nil
}

func (r *repo) AdjustRaised(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, at time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE campaigns SET raised = raised + ?, updated_at = ? WHERE id = ?`,
		delta,
		at,
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}
