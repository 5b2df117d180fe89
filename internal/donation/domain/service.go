package domain

import (
	"context"
	"errors"
	"time"
)

type CreateOrderRequest struct {
	DonorID          string `validate:"required,numeric"`
	Amount           int64  `json:"amount" validate:"required,gt=0"`
	Currency         string `json:"currency" validate:"omitempty,len=3,alpha"`
	CampaignID       string `json:"campaign_id" validate:"omitempty,numeric"`
	Provider         string `json:"provider" validate:"omitempty,alpha"`
	IdempotencyToken string `validate:"omitempty,max=128"`
}

type OrderResponse struct {
	DonationID       string `json:"donation_id"`
	ExternalOrderID  string `json:"external_order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Provider         string `json:"provider"`
	GatewayClientKey string `json:"gateway_client_key"`
	Replayed         bool   `json:"-"`
}

type CreateSubscriptionRequest struct {
	DonorID          string `validate:"required,numeric"`
	Amount           int64  `json:"amount" validate:"required,gt=0"`
	Frequency        string `json:"frequency" validate:"required,oneof=monthly quarterly yearly"`
	Currency         string `json:"currency" validate:"omitempty,len=3,alpha"`
	CampaignID       string `json:"campaign_id" validate:"omitempty,numeric"`
	Provider         string `json:"provider" validate:"omitempty,alpha"`
	IdempotencyToken string `validate:"omitempty,max=128"`
}

type SubscriptionResponse struct {
	SubscriptionID         string    `json:"subscription_id"`
	ExternalSubscriptionID string    `json:"external_subscription_id"`
	ExternalPlanID         string    `json:"external_plan_id"`
	NextChargeDate         time.Time `json:"next_charge_date"`
	Amount                 int64     `json:"amount"`
	Currency               string    `json:"currency"`
	Frequency              string    `json:"frequency"`
	Provider               string    `json:"provider"`
	GatewayClientKey       string    `json:"gateway_client_key"`
	Replayed               bool      `json:"-"`
}

type GetRequest struct {
	DonationID string
	ActorID    string
	IsAdmin    bool
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderResponse, error)
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (SubscriptionResponse, error)
	Get(ctx context.Context, req GetRequest) (Donation, error)
}

var (
	ErrInvalidDonation      = errors.New("invalid_donation")
	ErrDonationNotFound     = errors.New("donation_not_found")
	ErrForbidden            = errors.New("forbidden")
	ErrIdempotencyMismatch  = errors.New("idempotency_key_reused")
	ErrInitiationInProgress = errors.New("initiation_in_progress")
)
