package domain

import (
	"context"
	"net/http"
)

// Service ingests raw gateway deliveries. The returned outcome is one of the
// Outcome* constants and is set even when err is non-nil.
//
//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (string, error)
}
