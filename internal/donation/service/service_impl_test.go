package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	campaigndomain "github.com/smallbiznis/givelane/internal/campaign/domain"
	campaignrepository "github.com/smallbiznis/givelane/internal/campaign/repository"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/config"
	donationdomain "github.com/smallbiznis/givelane/internal/donation/domain"
	"github.com/smallbiznis/givelane/internal/donation/repository"
	donorrepository "github.com/smallbiznis/givelane/internal/donor/repository"
	"github.com/smallbiznis/givelane/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	"github.com/smallbiznis/givelane/internal/payment/domain/mocks"
	subscriptiondomain "github.com/smallbiznis/givelane/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/givelane/internal/subscription/repository"
	"github.com/smallbiznis/givelane/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	db         *gorm.DB
	svc        donationdomain.Service
	client     *mocks.MockGatewayClient
	donorID    snowflake.ID
	campaignID snowflake.ID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	donorID, campaignID := dbtest.Seed(t, db, node, "INR")

	client := mocks.NewMockGatewayClient(ctrl)
	client.EXPECT().ClientKey().Return("rzp_test_key").AnyTimes()
	factory := mocks.NewMockAdapterFactory(ctrl)
	factory.EXPECT().Provider().Return("razorpay").AnyTimes()
	factory.EXPECT().NewClient(gomock.Any()).Return(client, nil).AnyTimes()
	registry := adapters.NewRegistry(
		config.NewStaticGatewayConfigHolder(config.GatewayConfig{
			Provider:              "razorpay",
			Enabled:               true,
			KeyID:                 "rzp_test_key",
			DefaultCurrency:       "INR",
			MinOneOffAmount:       100,
			MinRecurringAmount:    10000,
			SubscriptionTotalRuns: 120,
		}),
		[]paymentdomain.AdapterFactory{factory},
	)

	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.NewFakeClock(testNow),
		Cfg:       config.Config{DefaultProvider: "razorpay"},
		Repo:      repository.Provide(),
		SubRepo:   subscriptionrepository.Provide(),
		Campaigns: campaignrepository.Provide(),
		Donors:    donorrepository.Provide(),
		Gateways:  registry,
	})
	return fixture{db: db, svc: svc, client: client, donorID: donorID, campaignID: campaignID}
}

func TestCreateOrderPersistsPendingDonation(t *testing.T) {
	f := newFixture(t)
	f.client.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
			assert.Equal(t, int64(50000), req.Amount)
			assert.Equal(t, "INR", req.Currency)
			assert.Equal(t, f.campaignID.String(), req.Notes["campaign_id"])
			return &paymentdomain.Order{ID: "order_1", Amount: req.Amount, Currency: req.Currency, Status: "created"}, nil
		})

	resp, err := f.svc.CreateOrder(context.Background(), donationdomain.CreateOrderRequest{
		DonorID:    f.donorID.String(),
		Amount:     50000,
		CampaignID: f.campaignID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "order_1", resp.ExternalOrderID)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "rzp_test_key", resp.GatewayClientKey)

	var donation donationdomain.Donation
	require.NoError(t, f.db.Where("external_order_id = ?", "order_1").First(&donation).Error)
	assert.Equal(t, donationdomain.StatusPending, donation.Status)
	assert.Equal(t, int64(50000), donation.Amount)
	require.NotNil(t, donation.DonorName)
	assert.Equal(t, "Asha Rao", *donation.DonorName)
	assert.False(t, donation.IsRecurring)
}

func TestCreateOrderRejectsBelowMinimum(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), donationdomain.CreateOrderRequest{
		DonorID: f.donorID.String(),
		Amount:  50,
	})
	require.ErrorIs(t, err, paymentdomain.ErrAmountBelowMinimum)
	assert.True(t, paymentdomain.IsValidation(err))
}

func TestCreateOrderRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  donationdomain.CreateOrderRequest
		want error
	}{
		{"zero amount", donationdomain.CreateOrderRequest{DonorID: f.donorID.String()}, paymentdomain.ErrValidation},
		{"malformed currency", donationdomain.CreateOrderRequest{DonorID: f.donorID.String(), Amount: 500, Currency: "IN1"}, paymentdomain.ErrValidation},
		{"campaign currency mismatch", donationdomain.CreateOrderRequest{DonorID: f.donorID.String(), Amount: 500, Currency: "usd", CampaignID: f.campaignID.String()}, paymentdomain.ErrInvalidCurrency},
		{"unknown provider", donationdomain.CreateOrderRequest{DonorID: f.donorID.String(), Amount: 500, Provider: "paypal"}, paymentdomain.ErrProviderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateOrderRejectsClosedCampaign(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Exec(`UPDATE campaigns SET status = 'closed' WHERE id = ?`, f.campaignID).Error)

	_, err := f.svc.CreateOrder(context.Background(), donationdomain.CreateOrderRequest{
		DonorID:    f.donorID.String(),
		Amount:     50000,
		CampaignID: f.campaignID.String(),
	})
	require.ErrorIs(t, err, campaigndomain.ErrCampaignUnavailable)
}

func TestCreateOrderGatewayFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.client.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := f.svc.CreateOrder(context.Background(), donationdomain.CreateOrderRequest{
		DonorID: f.donorID.String(),
		Amount:  50000,
	})
	require.ErrorIs(t, err, paymentdomain.ErrGateway)

	var count int64
	require.NoError(t, f.db.Model(&donationdomain.Donation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOrderReplaysIdempotencyToken(t *testing.T) {
	f := newFixture(t)
	f.client.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).
		Return(&paymentdomain.Order{ID: "order_7", Amount: 50000, Currency: "INR"}, nil).Times(1)

	req := donationdomain.CreateOrderRequest{
		DonorID:          f.donorID.String(),
		Amount:           50000,
		IdempotencyToken: "checkout-42",
	}
	first, err := f.svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.DonationID, second.DonationID)
	assert.Equal(t, "order_7", second.ExternalOrderID)

	req.Amount = 70000
	_, err = f.svc.CreateOrder(context.Background(), req)
	require.ErrorIs(t, err, donationdomain.ErrIdempotencyMismatch)
}

func TestCreateSubscriptionPersistsActiveSubscription(t *testing.T) {
	f := newFixture(t)
	f.client.EXPECT().CreatePlan(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req paymentdomain.PlanRequest) (*paymentdomain.Plan, error) {
			assert.Equal(t, "month", req.Period)
			assert.Equal(t, 3, req.Interval)
			return &paymentdomain.Plan{ID: "plan_q"}, nil
		})
	f.client.EXPECT().CreateSubscription(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req paymentdomain.SubscriptionRequest) (*paymentdomain.GatewaySubscription, error) {
			assert.Equal(t, "plan_q", req.PlanID)
			assert.Equal(t, 120, req.TotalCount)
			assert.Equal(t, f.donorID.String(), req.CustomerRef)
			return &paymentdomain.GatewaySubscription{ID: "sub_q", Status: "created"}, nil
		})

	resp, err := f.svc.CreateSubscription(context.Background(), donationdomain.CreateSubscriptionRequest{
		DonorID:    f.donorID.String(),
		Amount:     50000,
		Frequency:  "quarterly",
		CampaignID: f.campaignID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "sub_q", resp.ExternalSubscriptionID)
	assert.Equal(t, "plan_q", resp.ExternalPlanID)
	assert.True(t, resp.NextChargeDate.Equal(testNow.AddDate(0, 3, 0)))

	var sub subscriptiondomain.Subscription
	require.NoError(t, f.db.Where("external_subscription_id = ?", "sub_q").First(&sub).Error)
	assert.Equal(t, subscriptiondomain.StatusActive, sub.Status)
	assert.Equal(t, subscriptiondomain.FrequencyQuarterly, sub.Frequency)
	assert.Zero(t, sub.TotalPayments)
}

func TestCreateSubscriptionRequiresRecurringMinimum(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSubscription(context.Background(), donationdomain.CreateSubscriptionRequest{
		DonorID:   f.donorID.String(),
		Amount:    5000,
		Frequency: "monthly",
	})
	require.ErrorIs(t, err, paymentdomain.ErrAmountBelowMinimum)
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newFixture(t)
	f.client.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).
		Return(&paymentdomain.Order{ID: "order_9", Amount: 1000, Currency: "INR"}, nil)
	resp, err := f.svc.CreateOrder(context.Background(), donationdomain.CreateOrderRequest{
		DonorID: f.donorID.String(),
		Amount:  1000,
	})
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), donationdomain.GetRequest{DonationID: resp.DonationID, ActorID: f.donorID.String()})
	require.NoError(t, err)
	assert.Equal(t, resp.DonationID, got.ID.String())

	_, err = f.svc.Get(context.Background(), donationdomain.GetRequest{DonationID: resp.DonationID, ActorID: "1"})
	require.ErrorIs(t, err, donationdomain.ErrForbidden)

	_, err = f.svc.Get(context.Background(), donationdomain.GetRequest{DonationID: resp.DonationID, IsAdmin: true})
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), donationdomain.GetRequest{DonationID: "42", IsAdmin: true})
	require.ErrorIs(t, err, donationdomain.ErrDonationNotFound)
}
