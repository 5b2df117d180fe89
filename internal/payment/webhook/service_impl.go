package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/givelane/internal/clock"
	obscontext "github.com/smallbiznis/givelane/internal/observability/context"
	obsmetrics "github.com/smallbiznis/givelane/internal/observability/metrics"
	"github.com/smallbiznis/givelane/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	paymentservice "github.com/smallbiznis/givelane/internal/payment/service"
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
	PaymentSvc *paymentservice.Service
	Repo       paymentdomain.Repository
	Adapters   *adapters.Registry
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	paymentSvc *paymentservice.Service
	repo       paymentdomain.Repository
	adapters   *adapters.Registry
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		genID:      p.GenID,
		clock:      clk,
		paymentSvc: p.PaymentSvc,
		repo:       p.Repo,
		adapters:   p.Adapters,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (outcome string, err error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	ctx = obscontext.WithProvider(ctx, provider)
	defer func() { s.obsMetrics.RecordWebhookDelivery(ctx, provider, outcome) }()

	if provider == "" || s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return paymentdomain.OutcomeRejected, paymentdomain.ErrProviderNotFound
	}
	adapter, err := s.adapters.Adapter(provider)
	if err != nil {
		return paymentdomain.OutcomeRejected, err
	}

	// Nothing below runs for a delivery that fails verification.
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Info("webhook verification failed", zap.String("provider", provider), zap.Error(err))
		return paymentdomain.OutcomeRejected, err
	}
	if !json.Valid(payload) {
		return paymentdomain.OutcomeRejected, paymentdomain.ErrInvalidPayload
	}

	event, err := adapter.Parse(ctx, payload, headers)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return paymentdomain.OutcomeIgnored, nil
		}
		s.log.Info("webhook payload rejected", zap.String("provider", provider), zap.Error(err))
		return paymentdomain.OutcomeRejected, err
	}
	event.Provider = provider
	if len(event.RawPayload) == 0 {
		event.RawPayload = payload
	}
	if strings.TrimSpace(event.ProviderEventID) == "" {
		sum := sha256.Sum256(payload)
		event.ProviderEventID = "sha256:" + hex.EncodeToString(sum[:])
	}

	replay, err := s.recordDelivery(ctx, event, payload)
	if err != nil {
		return paymentdomain.OutcomeFault, err
	}
	if replay {
		return paymentdomain.OutcomeAlreadyProcessed, nil
	}

	if event.Kind == paymentdomain.EventIgnored {
		s.log.Info("webhook event ignored",
			zap.String("provider", provider),
			zap.String("event_type", event.EventType),
		)
		outcome = paymentdomain.OutcomeIgnored
	} else {
		outcome, err = s.paymentSvc.ProcessEvent(ctx, event)
	}

	if markErr := s.repo.MarkWebhookEvent(ctx, s.db, provider, event.ProviderEventID, outcome, s.clock.Now().UTC()); markErr != nil {
		s.log.Warn("failed to mark webhook event",
			zap.String("provider", provider),
			zap.String("provider_event_id", event.ProviderEventID),
			zap.Error(markErr),
		)
	}
	return outcome, err
}

// recordDelivery stores the verified delivery. It reports true when the same
// provider event was already handled to a final outcome.
func (s *Service) recordDelivery(ctx context.Context, event *paymentdomain.PaymentEvent, payload []byte) (bool, error) {
	record := &paymentdomain.WebhookEventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.EventType,
		EventKind:       string(event.Kind),
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      s.clock.Now().UTC(),
	}
	inserted, err := s.repo.InsertWebhookEvent(ctx, s.db, record)
	if err != nil || inserted {
		return false, err
	}

	existing, err := s.repo.FindWebhookEvent(ctx, s.db, event.Provider, event.ProviderEventID)
	if err != nil || existing == nil || existing.ProcessedAt == nil || existing.Outcome == nil {
		return false, err
	}
	switch *existing.Outcome {
	case paymentdomain.OutcomeProcessed, paymentdomain.OutcomeAlreadyProcessed, paymentdomain.OutcomeIgnored:
		s.log.Debug("webhook redelivery",
			zap.String("provider", event.Provider),
			zap.String("provider_event_id", event.ProviderEventID),
		)
		return true, nil
	}
	// Faulted and rejected deliveries are retried in full.
	return false, nil
}
