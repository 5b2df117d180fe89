package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	campaigndomain "github.com/smallbiznis/givelane/internal/campaign/domain"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/config"
	donationdomain "github.com/smallbiznis/givelane/internal/donation/domain"
	donordomain "github.com/smallbiznis/givelane/internal/donor/domain"
	obsmetrics "github.com/smallbiznis/givelane/internal/observability/metrics"
	"github.com/smallbiznis/givelane/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	"github.com/smallbiznis/givelane/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/givelane/internal/subscription/domain"
	"github.com/smallbiznis/givelane/pkg/db"
	"github.com/smallbiznis/givelane/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	kindOrder        = "order"
	kindSubscription = "subscription"

	initiationLockTTL = 30 * time.Second
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       donationdomain.Repository
	SubRepo    subscriptiondomain.Repository
	Campaigns  campaigndomain.Repository
	Donors     donordomain.Repository
	Gateways   *adapters.Registry
	Locker     *ratelimit.Locker   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	validate *validator.Validate

	defaultProvider string
	repo            donationdomain.Repository
	subRepo         subscriptiondomain.Repository
	campaigns       campaigndomain.Repository
	donors          donordomain.Repository
	gateways        *adapters.Registry
	locker          *ratelimit.Locker
	obsMetrics      *obsmetrics.Metrics
}

func NewService(p Params) donationdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("donation.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		validate: validator.New(),

		defaultProvider: strings.ToLower(strings.TrimSpace(p.Cfg.DefaultProvider)),
		repo:            p.Repo,
		subRepo:         p.SubRepo,
		campaigns:       p.Campaigns,
		donors:          p.Donors,
		gateways:        p.Gateways,
		locker:          p.Locker,
		obsMetrics:      p.ObsMetrics,
	}
}

// checkout is the validated context shared by both initiation paths.
type checkout struct {
	provider string
	gateway  config.GatewayConfig
	currency string
	donor    *donordomain.Donor
	campaign *campaigndomain.Campaign
}

func (s *Service) CreateOrder(ctx context.Context, req donationdomain.CreateOrderRequest) (resp donationdomain.OrderResponse, err error) {
	if err := s.validateStruct(req); err != nil {
		return donationdomain.OrderResponse{}, err
	}
	donorID, err := parseID(req.DonorID)
	if err != nil {
		return donationdomain.OrderResponse{}, err
	}

	co, err := s.prepare(ctx, donorID, req.Provider, req.Currency, req.CampaignID)
	if err != nil {
		return donationdomain.OrderResponse{}, err
	}
	defer func() { s.recordInitiation(ctx, co.provider, kindOrder, err) }()

	if req.Amount < co.gateway.MinOneOffAmount {
		return donationdomain.OrderResponse{}, fmt.Errorf("%w: minimum one-off donation is %s",
			paymentdomain.ErrAmountBelowMinimum, money.Format(co.gateway.MinOneOffAmount, co.currency))
	}

	token := strings.TrimSpace(req.IdempotencyToken)
	err = s.withTokenLock(ctx, kindOrder, donorID, token, func(ctx context.Context) error {
		existing, err := s.repo.FindByIdempotencyToken(ctx, s.db, donorID, token)
		if err != nil {
			return err
		}
		if existing != nil {
			resp, err = s.replayOrder(existing, req.Amount, co)
			return err
		}

		client, err := s.gateways.Client(co.provider)
		if err != nil {
			return err
		}
		donationID := s.genID.Generate()
		order, err := client.CreateOrder(ctx, paymentdomain.OrderRequest{
			Amount:   req.Amount,
			Currency: co.currency,
			Receipt:  donationID.String(),
			Notes:    notes(donorID, co.campaign),
		})
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		orderID := order.ID
		donation := &donationdomain.Donation{
			ID:               donationID,
			DonorID:          donorID,
			DonorName:        &co.donor.Name,
			DonorEmail:       &co.donor.Email,
			Amount:           req.Amount,
			Currency:         co.currency,
			CampaignID:       campaignID(co.campaign),
			Provider:         co.provider,
			ExternalOrderID:  &orderID,
			Status:           donationdomain.StatusPending,
			IdempotencyToken: optional(token),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.Insert(ctx, s.db, donation); err != nil {
			if db.IsDuplicateKeyErr(err) && token != "" {
				// Lost a race with a concurrent request carrying the same token.
				if existing, findErr := s.repo.FindByIdempotencyToken(ctx, s.db, donorID, token); findErr == nil && existing != nil {
					resp, err = s.replayOrder(existing, req.Amount, co)
					return err
				}
			}
			return err
		}

		s.log.Info("donation order created",
			zap.String("donation_id", donation.ID.String()),
			zap.String("provider", co.provider),
			zap.String("external_order_id", orderID),
			zap.Int64("amount", req.Amount),
		)
		resp = donationdomain.OrderResponse{
			DonationID:       donation.ID.String(),
			ExternalOrderID:  orderID,
			Amount:           donation.Amount,
			Currency:         donation.Currency,
			Provider:         co.provider,
			GatewayClientKey: client.ClientKey(),
		}
		return nil
	})
	return resp, err
}

func (s *Service) CreateSubscription(ctx context.Context, req donationdomain.CreateSubscriptionRequest) (resp donationdomain.SubscriptionResponse, err error) {
	if err := s.validateStruct(req); err != nil {
		return donationdomain.SubscriptionResponse{}, err
	}
	donorID, err := parseID(req.DonorID)
	if err != nil {
		return donationdomain.SubscriptionResponse{}, err
	}
	frequency, err := subscriptiondomain.ParseFrequency(req.Frequency)
	if err != nil {
		return donationdomain.SubscriptionResponse{}, fmt.Errorf("%w: %s", paymentdomain.ErrInvalidFrequency, req.Frequency)
	}

	co, err := s.prepare(ctx, donorID, req.Provider, req.Currency, req.CampaignID)
	if err != nil {
		return donationdomain.SubscriptionResponse{}, err
	}
	defer func() { s.recordInitiation(ctx, co.provider, kindSubscription, err) }()

	if req.Amount < co.gateway.MinRecurringAmount {
		return donationdomain.SubscriptionResponse{}, fmt.Errorf("%w: minimum recurring donation is %s",
			paymentdomain.ErrAmountBelowMinimum, money.Format(co.gateway.MinRecurringAmount, co.currency))
	}

	token := strings.TrimSpace(req.IdempotencyToken)
	err = s.withTokenLock(ctx, kindSubscription, donorID, token, func(ctx context.Context) error {
		existing, err := s.subRepo.FindByIdempotencyToken(ctx, s.db, donorID, token)
		if err != nil {
			return err
		}
		if existing != nil {
			resp, err = s.replaySubscription(existing, req.Amount, frequency, co)
			return err
		}

		client, err := s.gateways.Client(co.provider)
		if err != nil {
			return err
		}
		period, interval := frequency.PlanPeriod()
		plan, err := client.CreatePlan(ctx, paymentdomain.PlanRequest{
			Name:     fmt.Sprintf("%s donation %s", frequency, money.Format(req.Amount, co.currency)),
			Amount:   req.Amount,
			Currency: co.currency,
			Period:   period,
			Interval: interval,
		})
		if err != nil {
			return err
		}
		gatewaySub, err := client.CreateSubscription(ctx, paymentdomain.SubscriptionRequest{
			PlanID:        plan.ID,
			CustomerRef:   donorID.String(),
			CustomerName:  co.donor.Name,
			CustomerEmail: co.donor.Email,
			TotalCount:    co.gateway.SubscriptionTotalRuns,
			Notes:         notes(donorID, co.campaign),
		})
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		sub := &subscriptiondomain.Subscription{
			ID:                     s.genID.Generate(),
			DonorID:                donorID,
			CampaignID:             campaignID(co.campaign),
			Provider:               co.provider,
			ExternalSubscriptionID: gatewaySub.ID,
			ExternalPlanID:         plan.ID,
			Amount:                 req.Amount,
			Currency:               co.currency,
			Frequency:              frequency,
			Status:                 subscriptiondomain.StatusActive,
			NextChargeDate:         frequency.Next(now),
			IdempotencyToken:       optional(token),
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if err := s.subRepo.Insert(ctx, s.db, sub); err != nil {
			if db.IsDuplicateKeyErr(err) && token != "" {
				if existing, findErr := s.subRepo.FindByIdempotencyToken(ctx, s.db, donorID, token); findErr == nil && existing != nil {
					resp, err = s.replaySubscription(existing, req.Amount, frequency, co)
					return err
				}
			}
			return err
		}

		s.log.Info("donation subscription created",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("provider", co.provider),
			zap.String("external_subscription_id", sub.ExternalSubscriptionID),
			zap.String("frequency", string(frequency)),
		)
		resp = subscriptionResponse(sub, client.ClientKey())
		return nil
	})
	return resp, err
}

func (s *Service) Get(ctx context.Context, req donationdomain.GetRequest) (donationdomain.Donation, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.DonationID))
	if err != nil || id == 0 {
		return donationdomain.Donation{}, donationdomain.ErrInvalidDonation
	}
	donation, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return donationdomain.Donation{}, err
	}
	if donation == nil {
		return donationdomain.Donation{}, donationdomain.ErrDonationNotFound
	}
	if !req.IsAdmin && donation.DonorID.String() != strings.TrimSpace(req.ActorID) {
		return donationdomain.Donation{}, donationdomain.ErrForbidden
	}
	return *donation, nil
}

// prepare resolves the provider, currency, donor and campaign for an
// initiation. It never calls the gateway.
func (s *Service) prepare(ctx context.Context, donorID snowflake.ID, provider, currency, rawCampaignID string) (checkout, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = s.defaultProvider
	}
	gw, err := s.gateways.Settings(provider)
	if err != nil {
		return checkout{}, err
	}
	co := checkout{provider: provider, gateway: gw}

	if strings.TrimSpace(currency) == "" {
		currency = gw.DefaultCurrency
	}
	co.currency, err = money.NormalizeCurrency(currency)
	if err != nil {
		return checkout{}, fmt.Errorf("%w: %q", paymentdomain.ErrInvalidCurrency, currency)
	}

	co.donor, err = s.donors.FindByID(ctx, s.db, donorID)
	if err != nil {
		return checkout{}, err
	}
	if co.donor == nil {
		return checkout{}, donordomain.ErrDonorNotFound
	}

	if strings.TrimSpace(rawCampaignID) == "" {
		return co, nil
	}
	id, err := snowflake.ParseString(strings.TrimSpace(rawCampaignID))
	if err != nil || id == 0 {
		return checkout{}, fmt.Errorf("%w: campaign_id", paymentdomain.ErrValidation)
	}
	co.campaign, err = s.campaigns.FindByID(ctx, s.db, id)
	if err != nil {
		return checkout{}, err
	}
	if co.campaign == nil {
		return checkout{}, campaigndomain.ErrCampaignNotFound
	}
	if !co.campaign.AcceptsDonations(s.clock.Now()) {
		return checkout{}, campaigndomain.ErrCampaignUnavailable
	}
	if !strings.EqualFold(co.campaign.Currency, co.currency) {
		return checkout{}, fmt.Errorf("%w: campaign accepts %s", paymentdomain.ErrInvalidCurrency, co.campaign.Currency)
	}
	return co, nil
}

func (s *Service) withTokenLock(ctx context.Context, kind string, donorID snowflake.ID, token string, fn func(context.Context) error) error {
	if token == "" || !s.locker.Enabled() {
		return fn(ctx)
	}
	key := fmt.Sprintf("donation:init:%s:%s:%s", kind, donorID, token)
	err := s.locker.WithLock(ctx, key, initiationLockTTL, fn)
	if errors.Is(err, ratelimit.ErrLockHeld) {
		return donationdomain.ErrInitiationInProgress
	}
	return err
}

func (s *Service) replayOrder(existing *donationdomain.Donation, amount int64, co checkout) (donationdomain.OrderResponse, error) {
	if existing.Amount != amount || existing.Provider != co.provider || existing.ExternalOrderID == nil {
		return donationdomain.OrderResponse{}, donationdomain.ErrIdempotencyMismatch
	}
	clientKey := ""
	if client, err := s.gateways.Client(co.provider); err == nil {
		clientKey = client.ClientKey()
	}
	return donationdomain.OrderResponse{
		DonationID:       existing.ID.String(),
		ExternalOrderID:  *existing.ExternalOrderID,
		Amount:           existing.Amount,
		Currency:         existing.Currency,
		Provider:         existing.Provider,
		GatewayClientKey: clientKey,
		Replayed:         true,
	}, nil
}

func (s *Service) replaySubscription(existing *subscriptiondomain.Subscription, amount int64, frequency subscriptiondomain.Frequency, co checkout) (donationdomain.SubscriptionResponse, error) {
	if existing.Amount != amount || existing.Frequency != frequency || existing.Provider != co.provider {
		return donationdomain.SubscriptionResponse{}, donationdomain.ErrIdempotencyMismatch
	}
	clientKey := ""
	if client, err := s.gateways.Client(co.provider); err == nil {
		clientKey = client.ClientKey()
	}
	resp := subscriptionResponse(existing, clientKey)
	resp.Replayed = true
	return resp, nil
}

func (s *Service) recordInitiation(ctx context.Context, provider, kind string, err error) {
	outcome := "created"
	switch {
	case err == nil:
	case errors.Is(err, paymentdomain.ErrGateway):
		outcome = "gateway_error"
	case paymentdomain.IsValidation(err):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	s.obsMetrics.RecordInitiation(ctx, provider, kind, outcome)
}

func (s *Service) validateStruct(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s failed %s", paymentdomain.ErrValidation, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", paymentdomain.ErrValidation, err)
	}
	return nil
}

func subscriptionResponse(sub *subscriptiondomain.Subscription, clientKey string) donationdomain.SubscriptionResponse {
	return donationdomain.SubscriptionResponse{
		SubscriptionID:         sub.ID.String(),
		ExternalSubscriptionID: sub.ExternalSubscriptionID,
		ExternalPlanID:         sub.ExternalPlanID,
		NextChargeDate:         sub.NextChargeDate,
		Amount:                 sub.Amount,
		Currency:               sub.Currency,
		Frequency:              string(sub.Frequency),
		Provider:               sub.Provider,
		GatewayClientKey:       clientKey,
	}
}

func notes(donorID snowflake.ID, campaign *campaigndomain.Campaign) map[string]string {
	out := map[string]string{"donor_id": donorID.String()}
	if campaign != nil {
		out["campaign_id"] = campaign.ID.String()
	}
	return out
}

func campaignID(campaign *campaigndomain.Campaign) *snowflake.ID {
	if campaign == nil {
		return nil
	}
	id := campaign.ID
	return &id
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: donor_id", paymentdomain.ErrValidation)
	}
	return id, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
