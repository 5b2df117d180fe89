package domain

import (
	"context"
	"time"
)

type IssueRequest struct {
	Subject string
	Role    Role
	TTL     time.Duration
}

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks
type Service interface {
	Issue(ctx context.Context, req IssueRequest) (string, time.Time, error)
	Authenticate(ctx context.Context, rawToken string) (*Principal, error)
}
