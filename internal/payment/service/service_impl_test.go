package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/givelane/internal/audit/domain"
	auditrepository "github.com/smallbiznis/givelane/internal/audit/repository"
	auditservice "github.com/smallbiznis/givelane/internal/audit/service"
	campaignrepository "github.com/smallbiznis/givelane/internal/campaign/repository"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/config"
	donationdomain "github.com/smallbiznis/givelane/internal/donation/domain"
	donationrepository "github.com/smallbiznis/givelane/internal/donation/repository"
	donorrepository "github.com/smallbiznis/givelane/internal/donor/repository"
	ledgerservice "github.com/smallbiznis/givelane/internal/ledger/service"
	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/givelane/internal/payment/repository"
	subscriptiondomain "github.com/smallbiznis/givelane/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/givelane/internal/subscription/repository"
	"github.com/smallbiznis/givelane/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	testNow   = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	firstDate = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	svc        *Service
	audit      auditdomain.Service
	donorID    snowflake.ID
	campaignID snowflake.ID
	subID      snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	clk := clock.NewFakeClock(testNow)
	donorID, campaignID := dbtest.Seed(t, db, node, "INR")
	subID := dbtest.SeedSubscription(t, db, node, dbtest.SubscriptionSeed{
		DonorID:        donorID,
		CampaignID:     campaignID,
		Provider:       "razorpay",
		ExternalID:     "sub_500",
		Amount:         50000,
		Currency:       "INR",
		NextChargeDate: firstDate,
	})

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Cfg:       config.Config{ReceiptNumberPrefix: "RCT"},
		Donations: donationrepository.Provide(),
		Payments:  paymentrepository.Provide(),
		Campaigns: campaignrepository.Provide(),
		Donors:    donorrepository.Provide(),
	})
	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})
	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		LedgerSvc: ledger,
		AuditSvc:  audit,
		SubRepo:   subscriptionrepository.Provide(),
	})
	return &fixture{
		db:         db,
		node:       node,
		svc:        svc,
		audit:      audit,
		donorID:    donorID,
		campaignID: campaignID,
		subID:      subID,
	}
}

func (f *fixture) subscription(t *testing.T) subscriptiondomain.Subscription {
	t.Helper()
	var sub subscriptiondomain.Subscription
	require.NoError(t, f.db.Where("id = ?", f.subID).First(&sub).Error)
	return sub
}

func (f *fixture) raised(t *testing.T) int64 {
	t.Helper()
	var raised int64
	require.NoError(t, f.db.Raw(`SELECT raised FROM campaigns WHERE id = ?`, f.campaignID).Scan(&raised).Error)
	return raised
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(1) FROM `+table).Scan(&n).Error)
	return n
}

func charged(paymentID string) *paymentdomain.PaymentEvent {
	return &paymentdomain.PaymentEvent{
		Kind:                   paymentdomain.EventCharged,
		Provider:               "razorpay",
		ProviderEventID:        "evt_" + paymentID,
		EventType:              "subscription.charged",
		ExternalPaymentID:      paymentID,
		ExternalSubscriptionID: "sub_500",
		Amount:                 50000,
		Currency:               "INR",
		OccurredAt:             testNow,
		RawPayload:             []byte(`{"event":"subscription.charged"}`),
	}
}

func failed(paymentID string) *paymentdomain.PaymentEvent {
	evt := charged(paymentID)
	evt.Kind = paymentdomain.EventFailed
	evt.EventType = "payment.failed"
	evt.FailureReason = "card declined"
	return evt
}

func TestMonthlyChargeAppliedOnceAcrossRedelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.svc.ProcessEvent(ctx, charged("pay_1"))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeProcessed, outcome)

	for i := 0; i < 3; i++ {
		outcome, err = f.svc.ProcessEvent(ctx, charged("pay_1"))
		require.NoError(t, err)
		assert.Equal(t, paymentdomain.OutcomeAlreadyProcessed, outcome)
	}

	sub := f.subscription(t)
	assert.Equal(t, 1, sub.TotalPayments)
	assert.Equal(t, int64(50000), sub.TotalAmount)
	assert.Zero(t, sub.FailedPayments)
	assert.True(t, sub.NextChargeDate.Equal(firstDate.AddDate(0, 1, 0)))
	assert.Equal(t, int64(50000), f.raised(t))
	assert.Equal(t, int64(1), f.count(t, "payments"))
	assert.Equal(t, int64(1), f.count(t, "donations"))

	var donation donationdomain.Donation
	require.NoError(t, f.db.First(&donation).Error)
	assert.Equal(t, donationdomain.StatusCompleted, donation.Status)
	assert.True(t, donation.IsRecurring)
	require.NotNil(t, donation.SubscriptionID)
	assert.Equal(t, f.subID, *donation.SubscriptionID)
}

func TestConcurrentDeliveriesCommitOnce(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	outcomes := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := f.svc.ProcessEvent(context.Background(), charged("pay_c"))
			assert.NoError(t, err)
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	processed := 0
	for outcome := range outcomes {
		if outcome == paymentdomain.OutcomeProcessed {
			processed++
		}
	}
	assert.Equal(t, 1, processed)
	assert.Equal(t, int64(50000), f.raised(t))
	assert.Equal(t, int64(1), f.count(t, "payments"))
}

func TestThreeFailuresCancelSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := f.svc.ProcessEvent(ctx, failed(fmt.Sprintf("pay_f%d", i)))
		require.NoError(t, err)
	}
	sub := f.subscription(t)
	assert.Equal(t, subscriptiondomain.StatusActive, sub.Status)
	assert.Equal(t, 2, sub.FailedPayments)
	assert.True(t, sub.NextChargeDate.Equal(firstDate))

	_, err := f.svc.ProcessEvent(ctx, failed("pay_f3"))
	require.NoError(t, err)

	sub = f.subscription(t)
	assert.Equal(t, subscriptiondomain.StatusCancelled, sub.Status)
	require.NotNil(t, sub.CancelReason)
	assert.Equal(t, subscriptiondomain.CancelReasonPaymentFailures, *sub.CancelReason)
	assert.Zero(t, f.raised(t))
}

func TestChargeBetweenFailuresResetsCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, evt := range []*paymentdomain.PaymentEvent{
		failed("pay_a"), failed("pay_b"), charged("pay_c"), failed("pay_d"), failed("pay_e"),
	} {
		_, err := f.svc.ProcessEvent(ctx, evt)
		require.NoError(t, err)
	}

	sub := f.subscription(t)
	assert.Equal(t, subscriptiondomain.StatusActive, sub.Status)
	assert.Equal(t, 2, sub.FailedPayments)
	assert.Equal(t, 1, sub.TotalPayments)
}

func TestFailedRedeliveryCountsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.ProcessEvent(ctx, failed("pay_same"))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.subscription(t).FailedPayments)
}

func TestProviderLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lifecycle := func(kind paymentdomain.EventKind, id string) *paymentdomain.PaymentEvent {
		return &paymentdomain.PaymentEvent{
			Kind:                   kind,
			Provider:               "razorpay",
			ProviderEventID:        id,
			ExternalSubscriptionID: "sub_500",
			OccurredAt:             testNow,
		}
	}

	_, err := f.svc.ProcessEvent(ctx, lifecycle(paymentdomain.EventPaused, "evt_p"))
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusPaused, f.subscription(t).Status)

	// Charges on a paused subscription are ledger facts only.
	_, err = f.svc.ProcessEvent(ctx, charged("pay_paused"))
	require.NoError(t, err)
	sub := f.subscription(t)
	assert.Zero(t, sub.TotalPayments)
	assert.Equal(t, int64(50000), f.raised(t))

	_, err = f.svc.ProcessEvent(ctx, lifecycle(paymentdomain.EventResumed, "evt_r"))
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusActive, f.subscription(t).Status)

	done := lifecycle(paymentdomain.EventCancelled, "evt_done")
	done.Expired = true
	_, err = f.svc.ProcessEvent(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusExpired, f.subscription(t).Status)

	outcome, err := f.svc.ProcessEvent(ctx, lifecycle(paymentdomain.EventResumed, "evt_r2"))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeProcessed, outcome)
	assert.Equal(t, subscriptiondomain.StatusExpired, f.subscription(t).Status)
}

func TestUnknownSubscriptionIsConsistencyFault(t *testing.T) {
	f := newFixture(t)
	evt := charged("pay_x")
	evt.ExternalSubscriptionID = "sub_missing"

	outcome, err := f.svc.ProcessEvent(context.Background(), evt)
	require.ErrorIs(t, err, paymentdomain.ErrConsistencyFault)
	assert.Equal(t, paymentdomain.OutcomeFault, outcome)
	assert.Zero(t, f.count(t, "payments"))
	assert.Zero(t, f.count(t, "payment_idempotency_keys"))

	logs, err := f.audit.ListByTarget(context.Background(), "payment_event", "razorpay:evt_pay_x")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, auditdomain.ActionConsistencyFault, logs[0].Action)

	// Once the subscription is known the redelivery succeeds.
	evt.ExternalSubscriptionID = "sub_500"
	outcome, err = f.svc.ProcessEvent(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeProcessed, outcome)
}

func (f *fixture) pendingOrder(t *testing.T, orderID string, amount int64) snowflake.ID {
	t.Helper()
	campaignID := f.campaignID
	donation := donationdomain.Donation{
		ID:              f.node.Generate(),
		DonorID:         f.donorID,
		Amount:          amount,
		Currency:        "INR",
		CampaignID:      &campaignID,
		Provider:        "razorpay",
		ExternalOrderID: &orderID,
		Status:          donationdomain.StatusPending,
		CreatedAt:       testNow.Add(-time.Hour),
		UpdatedAt:       testNow.Add(-time.Hour),
	}
	require.NoError(t, donationrepository.Provide().Insert(context.Background(), f.db, &donation))
	return donation.ID
}

func captured(orderID, paymentID string, amount int64) *paymentdomain.PaymentEvent {
	return &paymentdomain.PaymentEvent{
		Kind:              paymentdomain.EventCharged,
		Provider:          "razorpay",
		ProviderEventID:   "evt_" + paymentID,
		EventType:         "payment.captured",
		ExternalOrderID:   orderID,
		ExternalPaymentID: paymentID,
		Amount:            amount,
		Currency:          "INR",
		OccurredAt:        testNow,
		RawPayload:        []byte(`{"event":"payment.captured"}`),
	}
}

func TestSecondCaptureOnSettledOrderIsBookedSeparately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderDonationID := f.pendingOrder(t, "order_1", 50000)

	outcome, err := f.svc.ProcessEvent(ctx, captured("order_1", "pay_1", 50000))
	require.NoError(t, err)
	require.Equal(t, paymentdomain.OutcomeProcessed, outcome)

	outcome, err = f.svc.ProcessEvent(ctx, captured("order_1", "pay_2", 50000))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeProcessed, outcome)

	for i := 0; i < 2; i++ {
		outcome, err = f.svc.ProcessEvent(ctx, captured("order_1", "pay_2", 50000))
		require.NoError(t, err)
		assert.Equal(t, paymentdomain.OutcomeAlreadyProcessed, outcome)
	}

	var payment paymentdomain.Payment
	require.NoError(t, f.db.Where("external_payment_id = ?", "pay_2").Take(&payment).Error)
	assert.Equal(t, paymentdomain.PaymentStatusCaptured, payment.Status)
	assert.NotEqual(t, orderDonationID, payment.DonationID)

	var donation donationdomain.Donation
	require.NoError(t, f.db.Where("id = ?", payment.DonationID).Take(&donation).Error)
	assert.Equal(t, donationdomain.StatusCompleted, donation.Status)
	assert.Equal(t, f.donorID, donation.DonorID)
	require.NotNil(t, donation.CampaignID)
	assert.Equal(t, f.campaignID, *donation.CampaignID)
	require.NotNil(t, donation.ReceiptNumber)
	assert.Nil(t, donation.ExternalOrderID)

	assert.Equal(t, int64(100000), f.raised(t))
	assert.Equal(t, int64(2), f.count(t, "payments"))
	assert.Equal(t, int64(2), f.count(t, "donations"))

	logs, err := f.audit.ListByTarget(ctx, "donation", donation.ID.String())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, auditdomain.ActionUnmatchedCapture, logs[0].Action)
	assert.Equal(t, orderDonationID.String(), logs[0].Metadata["order_donation_id"])
}

func TestCaptureWithDifferentAmountKeepsOrderPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderDonationID := f.pendingOrder(t, "order_2", 50000)

	outcome, err := f.svc.ProcessEvent(ctx, captured("order_2", "pay_3", 20000))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeProcessed, outcome)

	var order donationdomain.Donation
	require.NoError(t, f.db.Where("id = ?", orderDonationID).Take(&order).Error)
	assert.Equal(t, donationdomain.StatusPending, order.Status)
	assert.Equal(t, int64(20000), f.raised(t))
	assert.Zero(t, f.count(t, "audit_logs WHERE action = 'payment.consistency_fault'"))
}

func TestIgnoredAndInvalidEvents(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.svc.ProcessEvent(context.Background(), &paymentdomain.PaymentEvent{Kind: paymentdomain.EventIgnored, Provider: "razorpay"})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeIgnored, outcome)

	outcome, err = f.svc.ProcessEvent(context.Background(), &paymentdomain.PaymentEvent{Kind: paymentdomain.EventCharged, Provider: "razorpay"})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
	assert.Equal(t, paymentdomain.OutcomeRejected, outcome)

	_, err = f.svc.ProcessEvent(context.Background(), &paymentdomain.PaymentEvent{Kind: paymentdomain.EventPaused, Provider: "razorpay", ProviderEventID: "evt_1"})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
}
