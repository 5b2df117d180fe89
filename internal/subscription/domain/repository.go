package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByExternalIDForUpdate(ctx context.Context, db *gorm.DB, provider, externalID string) (*Subscription, error)
	FindByIdempotencyToken(ctx context.Context, db *gorm.DB, donorID snowflake.ID, token string) (*Subscription, error)
	// UpdateState persists lifecycle columns computed by the state machine.
	UpdateState(ctx context.Context, db *gorm.DB, subscription *Subscription) error
}
