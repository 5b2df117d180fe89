package repository

import (
	"context"

	"github.com/smallbiznis/givelane/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (
			id, actor_type, actor_id, action, target_type, target_id,
			metadata, ip_address, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ActorType,
		entry.ActorID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Metadata,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListByTarget(ctx context.Context, db *gorm.DB, targetType, targetID string) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	err := db.WithContext(ctx).Raw(
		`SELECT id, actor_type, actor_id, action, target_type, target_id,
			metadata, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE target_type = ? AND target_id = ?
		ORDER BY created_at DESC, id DESC`,
		targetType,
		targetID,
	).Scan(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
