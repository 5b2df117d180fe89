package domain

import "context"

type ChangeStatusRequest struct {
	SubscriptionID string
	Status         string
	ActorID        string
	IsAdmin        bool
}

type GetRequest struct {
	SubscriptionID string
	ActorID        string
	IsAdmin        bool
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	Get(ctx context.Context, req GetRequest) (Subscription, error)
	// ChangeStatus issues the provider command first and only then moves the
	// local state.
	ChangeStatus(ctx context.Context, req ChangeStatusRequest) (Subscription, error)
}
