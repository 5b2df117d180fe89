package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/smallbiznis/givelane/internal/campaign/domain"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/config"
	donationdomain "github.com/smallbiznis/givelane/internal/donation/domain"
	donordomain "github.com/smallbiznis/givelane/internal/donor/domain"
	ledgerdomain "github.com/smallbiznis/givelane/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/givelane/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	subscriptiondomain "github.com/smallbiznis/givelane/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Donations  donationdomain.Repository
	Payments   paymentdomain.Repository
	Campaigns  campaigndomain.Repository
	Donors     donordomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	prefix     string
	pendingTTL time.Duration

	donations  donationdomain.Repository
	payments   paymentdomain.Repository
	campaigns  campaigndomain.Repository
	donors     donordomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	ttl := p.Cfg.PendingDonationTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		prefix:     p.Cfg.ReceiptNumberPrefix,
		pendingTTL: ttl,

		donations:  p.Donations,
		payments:   p.Payments,
		campaigns:  p.Campaigns,
		donors:     p.Donors,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) RecordCharge(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, sub *subscriptiondomain.Subscription) (ledgerdomain.Result, error) {
	if err := validate(event); err != nil {
		return ledgerdomain.Result{}, err
	}
	if event.Amount <= 0 {
		return ledgerdomain.Result{}, paymentdomain.ErrInvalidAmount
	}
	now := s.clock.Now().UTC()
	occurredAt := occurred(event, now)

	payment, err := s.payments.FindByExternalPaymentIDForUpdate(ctx, tx, event.Provider, event.ExternalPaymentID)
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	if payment != nil && payment.Status != paymentdomain.PaymentStatusFailed {
		return ledgerdomain.Result{}, fmt.Errorf("%w: payment %s is %s", paymentdomain.ErrEventAlreadyProcessed, event.ExternalPaymentID, payment.Status)
	}

	donation, isNew, err := s.resolveDonation(ctx, tx, event, sub, now)
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	if donation == nil {
		return ledgerdomain.Result{}, fmt.Errorf("%w: no donation for order %q", paymentdomain.ErrConsistencyFault, event.ExternalOrderID)
	}

	var orderDonation *donationdomain.Donation
	if !isNew && !settles(donation, event) {
		// The money moved anyway, so it is booked on its own donation.
		orderDonation = donation
		donation = s.unmatchedDonation(orderDonation, event, now)
		isNew = true
		s.log.Warn("capture booked apart from its order donation",
			zap.String("provider", event.Provider),
			zap.String("external_order_id", event.ExternalOrderID),
			zap.String("external_payment_id", event.ExternalPaymentID),
			zap.String("order_donation_id", orderDonation.ID.String()),
			zap.String("order_donation_status", string(orderDonation.Status)),
			zap.Int64("order_amount", orderDonation.Amount),
			zap.Int64("charged_amount", event.Amount),
		)
	} else if !isNew {
		donation.Amount = event.Amount
	}

	receipt := ledgerdomain.ReceiptNumber(s.prefix, occurredAt, s.genID.Generate())
	paymentID := event.ExternalPaymentID
	donation.Status = donationdomain.StatusCompleted
	donation.ExternalPaymentID = &paymentID
	if donation.ReceiptNumber == nil {
		donation.ReceiptNumber = &receipt
	}
	donation.FailureReason = nil
	donation.CompletedAt = &occurredAt
	donation.UpdatedAt = now

	if isNew {
		err = s.donations.Insert(ctx, tx, donation)
	} else {
		err = s.donations.UpdateStatus(ctx, tx, donation)
	}
	if err != nil {
		return ledgerdomain.Result{}, err
	}

	if payment == nil {
		payment = s.newPayment(event, donation.ID, now)
		payment.Status = paymentdomain.PaymentStatusCaptured
		payment.CapturedAt = &occurredAt
		err = s.payments.InsertPayment(ctx, tx, payment)
	} else {
		// A retry of a previously declined payment went through.
		payment.DonationID = donation.ID
		payment.Amount = event.Amount
		payment.Fee = event.Fee
		payment.Tax = event.Tax
		payment.NetAmount = event.Amount - event.Fee - event.Tax
		payment.Status = paymentdomain.PaymentStatusCaptured
		payment.FailureReason = nil
		payment.RawPayload = rawJSON(event.RawPayload)
		payment.CapturedAt = &occurredAt
		payment.UpdatedAt = now
		err = s.payments.UpdatePayment(ctx, tx, payment)
	}
	if err != nil {
		return ledgerdomain.Result{}, err
	}

	result := ledgerdomain.Result{
		DonationID:    donation.ID,
		PaymentID:     payment.ID,
		ReceiptNumber: *donation.ReceiptNumber,
	}
	if orderDonation != nil {
		result.Unmatched = true
		result.OrderDonationID = orderDonation.ID
	}
	if donation.CampaignID != nil {
		if err := s.adjustRaised(ctx, tx, *donation.CampaignID, event.Amount, now); err != nil {
			return ledgerdomain.Result{}, err
		}
		result.RaisedDelta = event.Amount
	}

	s.obsMetrics.RecordLedgerWrite(ctx, ledgerdomain.WriteCharge)
	return result, nil
}

func (s *Service) RecordFailure(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, sub *subscriptiondomain.Subscription) (ledgerdomain.Result, error) {
	if err := validate(event); err != nil {
		return ledgerdomain.Result{}, err
	}
	now := s.clock.Now().UTC()

	payment, err := s.payments.FindByExternalPaymentIDForUpdate(ctx, tx, event.Provider, event.ExternalPaymentID)
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	if payment != nil {
		s.log.Info("payment failure after settlement ignored",
			zap.String("provider", event.Provider),
			zap.String("external_payment_id", event.ExternalPaymentID),
			zap.String("payment_status", payment.Status),
		)
		return ledgerdomain.Result{DonationID: payment.DonationID, PaymentID: payment.ID, Skipped: true}, nil
	}

	if event.Amount <= 0 && sub != nil {
		event.Amount = sub.Amount
	}
	donation, isNew, err := s.resolveDonation(ctx, tx, event, sub, now)
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	if donation == nil {
		s.log.Warn("payment failure for unknown order",
			zap.String("provider", event.Provider),
			zap.String("external_order_id", event.ExternalOrderID),
			zap.String("external_payment_id", event.ExternalPaymentID),
		)
		return ledgerdomain.Result{Skipped: true}, nil
	}
	if donation.Status == donationdomain.StatusCompleted || donation.Status == donationdomain.StatusRefunded {
		return ledgerdomain.Result{DonationID: donation.ID, Skipped: true}, nil
	}

	reason := strings.TrimSpace(event.FailureReason)
	if reason == "" {
		reason = "payment failed"
	}
	paymentID := event.ExternalPaymentID
	donation.Status = donationdomain.StatusFailed
	donation.ExternalPaymentID = &paymentID
	donation.FailureReason = &reason
	donation.UpdatedAt = now
	if isNew {
		err = s.donations.Insert(ctx, tx, donation)
	} else {
		err = s.donations.UpdateStatus(ctx, tx, donation)
	}
	if err != nil {
		return ledgerdomain.Result{}, err
	}

	payment = s.newPayment(event, donation.ID, now)
	if payment.Amount <= 0 {
		payment.Amount = donation.Amount
		payment.NetAmount = 0
	}
	payment.Status = paymentdomain.PaymentStatusFailed
	payment.FailureReason = &reason
	if err := s.payments.InsertPayment(ctx, tx, payment); err != nil {
		return ledgerdomain.Result{}, err
	}

	s.obsMetrics.RecordLedgerWrite(ctx, ledgerdomain.WriteFailure)
	return ledgerdomain.Result{DonationID: donation.ID, PaymentID: payment.ID}, nil
}

func (s *Service) RecordRefund(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent) (ledgerdomain.Result, error) {
	if err := validate(event); err != nil {
		return ledgerdomain.Result{}, err
	}
	now := s.clock.Now().UTC()
	occurredAt := occurred(event, now)

	payment, err := s.payments.FindByExternalPaymentIDForUpdate(ctx, tx, event.Provider, event.ExternalPaymentID)
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	if payment == nil {
		return ledgerdomain.Result{}, fmt.Errorf("%w: refund for unknown payment %s", paymentdomain.ErrConsistencyFault, event.ExternalPaymentID)
	}
	if payment.Status == paymentdomain.PaymentStatusFailed {
		return ledgerdomain.Result{}, fmt.Errorf("%w: refund for failed payment %s", paymentdomain.ErrConsistencyFault, event.ExternalPaymentID)
	}

	refunded := event.Amount
	if refunded <= 0 {
		refunded = payment.Amount
	}
	payment.RefundedAmount += refunded
	if payment.RefundedAmount > payment.Amount {
		payment.RefundedAmount = payment.Amount
	}
	payment.UpdatedAt = now

	result := ledgerdomain.Result{DonationID: payment.DonationID, PaymentID: payment.ID}
	if payment.Status == paymentdomain.PaymentStatusRefunded {
		// Later partial refunds only grow refunded_amount.
		result.Skipped = true
		return result, s.payments.UpdatePayment(ctx, tx, payment)
	}

	payment.Status = paymentdomain.PaymentStatusRefunded
	payment.RefundedAt = &occurredAt
	if err := s.payments.UpdatePayment(ctx, tx, payment); err != nil {
		return ledgerdomain.Result{}, err
	}

	donation, err := s.donations.FindByExternalPaymentIDForUpdate(ctx, tx, event.Provider, event.ExternalPaymentID)
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	if donation == nil || donation.ID != payment.DonationID {
		return ledgerdomain.Result{}, fmt.Errorf("%w: payment %s has no matching donation", paymentdomain.ErrConsistencyFault, event.ExternalPaymentID)
	}
	if donation.Status != donationdomain.StatusCompleted {
		return ledgerdomain.Result{}, fmt.Errorf("%w: refund for %s donation %s", paymentdomain.ErrConsistencyFault, donation.Status, donation.ID)
	}
	donation.Status = donationdomain.StatusRefunded
	donation.UpdatedAt = now
	if err := s.donations.UpdateStatus(ctx, tx, donation); err != nil {
		return ledgerdomain.Result{}, err
	}

	if donation.CampaignID != nil {
		if err := s.adjustRaised(ctx, tx, *donation.CampaignID, -donation.Amount, now); err != nil {
			return ledgerdomain.Result{}, err
		}
		result.RaisedDelta = -donation.Amount
	}
	if donation.ReceiptNumber != nil {
		result.ReceiptNumber = *donation.ReceiptNumber
	}

	s.obsMetrics.RecordLedgerWrite(ctx, ledgerdomain.WriteRefund)
	return result, nil
}

func (s *Service) ExpirePending(ctx context.Context) (int64, error) {
	now := s.clock.Now().UTC()
	expired, err := s.donations.ExpirePending(ctx, s.db, now.Add(-s.pendingTTL), now)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.log.Info("expired pending donations", zap.Int64("count", expired), zap.Duration("ttl", s.pendingTTL))
		s.obsMetrics.RecordLedgerWrite(ctx, ledgerdomain.WriteExpiry)
	}
	return expired, nil
}

// resolveDonation finds the donation a gateway payment belongs to. Recurring
// charges with no prior attempt get a new, unsaved donation; isNew reports
// that case.
func (s *Service) resolveDonation(
	ctx context.Context,
	tx *gorm.DB,
	event *paymentdomain.PaymentEvent,
	sub *subscriptiondomain.Subscription,
	now time.Time,
) (*donationdomain.Donation, bool, error) {
	donation, err := s.donations.FindByExternalPaymentIDForUpdate(ctx, tx, event.Provider, event.ExternalPaymentID)
	if err != nil || donation != nil {
		return donation, false, err
	}
	if sub == nil {
		donation, err = s.donations.FindByExternalOrderIDForUpdate(ctx, tx, event.Provider, event.ExternalOrderID)
		return donation, false, err
	}

	subscriptionID := sub.ID
	donation = &donationdomain.Donation{
		ID:             s.genID.Generate(),
		DonorID:        sub.DonorID,
		Amount:         event.Amount,
		Currency:       strings.ToUpper(event.Currency),
		CampaignID:     sub.CampaignID,
		SubscriptionID: &subscriptionID,
		Provider:       event.Provider,
		Status:         donationdomain.StatusPending,
		IsRecurring:    true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if donation.Currency == "" {
		donation.Currency = sub.Currency
	}
	if orderID := strings.TrimSpace(event.ExternalOrderID); orderID != "" {
		donation.ExternalOrderID = &orderID
	}

	donor, err := s.donors.FindByID(ctx, tx, sub.DonorID)
	if err != nil {
		return nil, false, err
	}
	if donor != nil {
		donation.DonorName = &donor.Name
		donation.DonorEmail = &donor.Email
	}
	return donation, true, nil
}

// settles reports whether a capture can complete the donation it resolved
// to. Only pending or failed donations qualify, and they must either hold
// this payment id already or match the charged amount and currency.
func settles(donation *donationdomain.Donation, event *paymentdomain.PaymentEvent) bool {
	if donation.Status != donationdomain.StatusPending && donation.Status != donationdomain.StatusFailed {
		return false
	}
	if donation.ExternalPaymentID != nil && *donation.ExternalPaymentID == event.ExternalPaymentID {
		return true
	}
	return donation.Amount == event.Amount && strings.EqualFold(donation.Currency, event.Currency)
}

// unmatchedDonation copies donor and campaign from the order's donation.
// The order id stays on the original row and on the payment.
func (s *Service) unmatchedDonation(order *donationdomain.Donation, event *paymentdomain.PaymentEvent, now time.Time) *donationdomain.Donation {
	currency := strings.ToUpper(strings.TrimSpace(event.Currency))
	if currency == "" {
		currency = order.Currency
	}
	return &donationdomain.Donation{
		ID:             s.genID.Generate(),
		DonorID:        order.DonorID,
		DonorName:      order.DonorName,
		DonorEmail:     order.DonorEmail,
		Amount:         event.Amount,
		Currency:       currency,
		CampaignID:     order.CampaignID,
		SubscriptionID: order.SubscriptionID,
		Provider:       event.Provider,
		Status:         donationdomain.StatusPending,
		IsRecurring:    order.IsRecurring,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *Service) newPayment(event *paymentdomain.PaymentEvent, donationID snowflake.ID, now time.Time) *paymentdomain.Payment {
	payment := &paymentdomain.Payment{
		ID:                s.genID.Generate(),
		DonationID:        donationID,
		Provider:          event.Provider,
		ExternalPaymentID: event.ExternalPaymentID,
		Amount:            event.Amount,
		Currency:          strings.ToUpper(event.Currency),
		GatewayName:       event.Provider,
		Fee:               event.Fee,
		Tax:               event.Tax,
		NetAmount:         event.Amount - event.Fee - event.Tax,
		RawPayload:        rawJSON(event.RawPayload),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if orderID := strings.TrimSpace(event.ExternalOrderID); orderID != "" {
		payment.ExternalOrderID = &orderID
	}
	return payment
}

func (s *Service) adjustRaised(ctx context.Context, tx *gorm.DB, campaignID snowflake.ID, delta int64, now time.Time) error {
	if err := s.campaigns.AdjustRaised(ctx, tx, campaignID, delta, now); err != nil {
		if errors.Is(err, campaigndomain.ErrCampaignNotFound) {
			return fmt.Errorf("%w: campaign %s missing", paymentdomain.ErrConsistencyFault, campaignID)
		}
		return err
	}
	return nil
}

func validate(event *paymentdomain.PaymentEvent) error {
	if event == nil || strings.TrimSpace(event.Provider) == "" || strings.TrimSpace(event.ExternalPaymentID) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	return nil
}

func occurred(event *paymentdomain.PaymentEvent, now time.Time) time.Time {
	if event.OccurredAt.IsZero() {
		return now
	}
	return event.OccurredAt.UTC()
}

func rawJSON(payload []byte) datatypes.JSON {
	if len(payload) == 0 {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(payload)
}
