package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/givelane/internal/audit/domain"
	"github.com/smallbiznis/givelane/internal/clock"
	ledgerdomain "github.com/smallbiznis/givelane/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/givelane/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	"github.com/smallbiznis/givelane/internal/payment/idempotency"
	subscriptiondomain "github.com/smallbiznis/givelane/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	LedgerSvc  ledgerdomain.Service
	AuditSvc   auditdomain.Service
	SubRepo    subscriptiondomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service applies normalized gateway events: idempotency reservation,
// subscription lifecycle and ledger effects commit in one transaction.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	guard      *idempotency.Guard
	ledgerSvc  ledgerdomain.Service
	auditSvc   auditdomain.Service
	subRepo    subscriptiondomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		clock:      clk,
		guard:      idempotency.NewGuard(p.GenID, clk),
		ledgerSvc:  p.LedgerSvc,
		auditSvc:   p.AuditSvc,
		subRepo:    p.SubRepo,
		obsMetrics: p.ObsMetrics,
	}
}

// ProcessEvent applies event exactly once. Redelivered events report
// OutcomeAlreadyProcessed with a nil error. A consistency fault rolls back
// every write and is returned so the gateway redelivers.
func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent) (string, error) {
	if event == nil {
		return paymentdomain.OutcomeRejected, paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Kind == paymentdomain.EventIgnored {
		return paymentdomain.OutcomeIgnored, nil
	}
	reservation, err := idempotency.KeyFor(event)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return paymentdomain.OutcomeIgnored, nil
		}
		return paymentdomain.OutcomeRejected, err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now().UTC()
	}

	var result ledgerdomain.Result
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.guard.Reserve(ctx, tx, reservation); err != nil {
			return err
		}
		var err error
		result, err = s.apply(ctx, tx, event)
		return err
	})

	switch {
	case err == nil:
		s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, string(event.Kind))
		s.log.Info("payment event applied",
			zap.String("provider", event.Provider),
			zap.String("event_kind", string(event.Kind)),
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("external_payment_id", event.ExternalPaymentID),
			zap.Int64("raised_delta", result.RaisedDelta),
			zap.Bool("skipped", result.Skipped),
		)
		return paymentdomain.OutcomeProcessed, nil
	case errors.Is(err, paymentdomain.ErrEventAlreadyProcessed):
		s.log.Debug("payment event already processed",
			zap.String("provider", event.Provider),
			zap.String("event_kind", string(event.Kind)),
			zap.String("idempotency_key", reservation.Key),
		)
		return paymentdomain.OutcomeAlreadyProcessed, nil
	case errors.Is(err, paymentdomain.ErrConsistencyFault):
		s.reportFault(ctx, event, err)
		return paymentdomain.OutcomeFault, err
	case paymentdomain.IsValidation(err), errors.Is(err, paymentdomain.ErrInvalidEvent):
		return paymentdomain.OutcomeRejected, err
	default:
		return paymentdomain.OutcomeFault, err
	}
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent) (ledgerdomain.Result, error) {
	switch event.Kind {
	case paymentdomain.EventCharged:
		sub, err := s.lockSubscription(ctx, tx, event, false)
		if err != nil {
			return ledgerdomain.Result{}, err
		}
		result, err := s.ledgerSvc.RecordCharge(ctx, tx, event, sub)
		if err != nil {
			return ledgerdomain.Result{}, err
		}
		if result.Unmatched {
			if err := s.auditUnmatched(ctx, tx, event, result); err != nil {
				return ledgerdomain.Result{}, err
			}
		}
		if sub != nil {
			decision := subscriptiondomain.ApplyCharge(sub, event.Amount, event.OccurredAt)
			if err := s.persistDecision(ctx, tx, event, sub, decision); err != nil {
				return ledgerdomain.Result{}, err
			}
		}
		return result, nil

	case paymentdomain.EventFailed:
		sub, err := s.lockSubscription(ctx, tx, event, false)
		if err != nil {
			return ledgerdomain.Result{}, err
		}
		result, err := s.ledgerSvc.RecordFailure(ctx, tx, event, sub)
		if err != nil {
			return ledgerdomain.Result{}, err
		}
		if sub != nil && !result.Skipped {
			decision := subscriptiondomain.ApplyFailure(sub, event.OccurredAt)
			if err := s.persistDecision(ctx, tx, event, sub, decision); err != nil {
				return ledgerdomain.Result{}, err
			}
		}
		return result, nil

	case paymentdomain.EventRefunded:
		return s.ledgerSvc.RecordRefund(ctx, tx, event)

	case paymentdomain.EventCancelled, paymentdomain.EventPaused, paymentdomain.EventResumed:
		sub, err := s.lockSubscription(ctx, tx, event, true)
		if err != nil {
			return ledgerdomain.Result{}, err
		}
		var decision subscriptiondomain.Decision
		switch event.Kind {
		case paymentdomain.EventCancelled:
			decision = subscriptiondomain.ApplyCancelled(sub, event.Expired, event.OccurredAt)
		case paymentdomain.EventPaused:
			decision = subscriptiondomain.ApplyPaused(sub, event.OccurredAt)
		default:
			decision = subscriptiondomain.ApplyResumed(sub, event.OccurredAt)
		}
		return ledgerdomain.Result{Skipped: !decision.Applied}, s.persistDecision(ctx, tx, event, sub, decision)
	}
	return ledgerdomain.Result{}, fmt.Errorf("%w: unsupported kind %q", paymentdomain.ErrInvalidEvent, event.Kind)
}

// lockSubscription loads the subscription an event refers to. Events
// without a subscription id return nil unless required is set.
func (s *Service) lockSubscription(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, required bool) (*subscriptiondomain.Subscription, error) {
	if !event.AffectsSubscription() {
		if required {
			return nil, fmt.Errorf("%w: %s event without subscription id", paymentdomain.ErrInvalidEvent, event.Kind)
		}
		return nil, nil
	}
	sub, err := s.subRepo.FindByExternalIDForUpdate(ctx, tx, event.Provider, event.ExternalSubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: unknown subscription %q", paymentdomain.ErrConsistencyFault, event.ExternalSubscriptionID)
	}
	return sub, nil
}

func (s *Service) persistDecision(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, sub *subscriptiondomain.Subscription, decision subscriptiondomain.Decision) error {
	if !decision.Applied {
		s.log.Info("subscription event not applied",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("event_kind", string(event.Kind)),
			zap.String("status", string(sub.Status)),
			zap.String("reason", decision.Reason),
		)
		return nil
	}
	if err := s.subRepo.UpdateState(ctx, tx, sub); err != nil {
		return err
	}
	if decision.From != decision.To {
		s.log.Info("subscription status changed",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("from", string(decision.From)),
			zap.String("to", string(decision.To)),
			zap.String("reason", decision.Reason),
		)
	}
	return nil
}

// auditUnmatched records a capture that was booked on its own donation
// instead of the one its order had.
func (s *Service) auditUnmatched(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, result ledgerdomain.Result) error {
	if s.auditSvc == nil {
		return nil
	}
	return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeSystem,
		Action:     auditdomain.ActionUnmatchedCapture,
		TargetType: "donation",
		TargetID:   result.DonationID.String(),
		Metadata: map[string]any{
			"order_donation_id":   result.OrderDonationID.String(),
			"external_order_id":   event.ExternalOrderID,
			"external_payment_id": event.ExternalPaymentID,
			"provider_event_id":   event.ProviderEventID,
			"amount":              event.Amount,
			"currency":            event.Currency,
		},
	})
}

func (s *Service) reportFault(ctx context.Context, event *paymentdomain.PaymentEvent, cause error) {
	s.log.Error("payment consistency fault",
		zap.String("provider", event.Provider),
		zap.String("event_kind", string(event.Kind)),
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("external_order_id", event.ExternalOrderID),
		zap.String("external_payment_id", event.ExternalPaymentID),
		zap.String("external_subscription_id", event.ExternalSubscriptionID),
		zap.Error(cause),
		zap.Stack("stack"),
	)
	s.obsMetrics.RecordConsistencyFault(ctx, event.Provider, string(event.Kind))

	if s.auditSvc == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := s.auditSvc.Record(auditCtx, nil, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeSystem,
		Action:     auditdomain.ActionConsistencyFault,
		TargetType: "payment_event",
		TargetID:   event.Provider + ":" + event.ProviderEventID,
		Metadata: map[string]any{
			"event_kind":               string(event.Kind),
			"external_order_id":        event.ExternalOrderID,
			"external_payment_id":      event.ExternalPaymentID,
			"external_subscription_id": event.ExternalSubscriptionID,
			"amount":                   event.Amount,
			"currency":                 event.Currency,
			"error":                    cause.Error(),
		},
	})
	if err != nil {
		s.log.Warn("failed to audit consistency fault", zap.Error(err))
	}
}
