package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/givelane/internal/audit/domain"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/payment/adapters"
	subscriptiondomain "github.com/smallbiznis/givelane/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock    clock.Clock
	repo     subscriptiondomain.Repository
	gateways *adapters.Registry
	auditsvc auditdomain.Service
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     subscriptiondomain.Repository
	Gateways *adapters.Registry
	AuditSvc auditdomain.Service
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		clock:    p.Clock,
		repo:     p.Repo,
		gateways: p.Gateways,
		auditsvc: p.AuditSvc,
	}
}

func (s *Service) Get(ctx context.Context, req subscriptiondomain.GetRequest) (subscriptiondomain.Subscription, error) {
	id, err := parseID(req.SubscriptionID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if item == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	if err := authorize(item, req.ActorID, req.IsAdmin); err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	return *item, nil
}

func (s *Service) ChangeStatus(ctx context.Context, req subscriptiondomain.ChangeStatusRequest) (subscriptiondomain.Subscription, error) {
	id, err := parseID(req.SubscriptionID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	target, err := subscriptiondomain.ParseStatus(req.Status)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	current, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if current == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	if err := authorize(current, req.ActorID, req.IsAdmin); err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if err := subscriptiondomain.ValidateTransition(current.Status, target); err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	if err := s.sendProviderCommand(ctx, current, target); err != nil {
		s.log.Warn("provider rejected subscription command",
			zap.String("subscription_id", current.ID.String()),
			zap.String("provider", current.Provider),
			zap.String("target_status", string(target)),
			zap.Error(err),
		)
		return subscriptiondomain.Subscription{}, err
	}

	var updated subscriptiondomain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if locked == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if locked.Status == target {
			// A provider webhook already applied the change.
			updated = *locked
			return nil
		}

		from := locked.Status
		decision, err := subscriptiondomain.ApplyTransition(locked, target, s.clock.Now())
		if err != nil {
			return err
		}
		if err := s.repo.UpdateState(ctx, tx, locked); err != nil {
			return err
		}

		actorType := auditdomain.ActorTypeDonor
		if req.IsAdmin {
			actorType = auditdomain.ActorTypeAdmin
		}
		if err := s.auditsvc.Record(ctx, tx, auditdomain.Entry{
			ActorType:  actorType,
			ActorID:    req.ActorID,
			Action:     auditdomain.ActionSubscriptionStatusChanged,
			TargetType: "subscription",
			TargetID:   locked.ID.String(),
			Metadata: map[string]any{
				"from":     string(from),
				"to":       string(decision.To),
				"provider": locked.Provider,
				"reason":   decision.Reason,
			},
		}); err != nil {
			return err
		}

		updated = *locked
		return nil
	})
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	s.log.Info("subscription status changed",
		zap.String("subscription_id", updated.ID.String()),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) sendProviderCommand(ctx context.Context, sub *subscriptiondomain.Subscription, target subscriptiondomain.Status) error {
	client, err := s.gateways.Client(sub.Provider)
	if err != nil {
		return err
	}
	switch target {
	case subscriptiondomain.StatusPaused:
		return client.PauseSubscription(ctx, sub.ExternalSubscriptionID)
	case subscriptiondomain.StatusActive:
		return client.ResumeSubscription(ctx, sub.ExternalSubscriptionID)
	case subscriptiondomain.StatusCancelled:
		return client.CancelSubscription(ctx, sub.ExternalSubscriptionID)
	default:
		return subscriptiondomain.ErrInvalidTransition
	}
}

func authorize(sub *subscriptiondomain.Subscription, actorID string, isAdmin bool) error {
	if isAdmin {
		return nil
	}
	if strings.TrimSpace(actorID) == "" || sub.DonorID.String() != strings.TrimSpace(actorID) {
		return subscriptiondomain.ErrForbidden
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, subscriptiondomain.ErrInvalidSubscription
	}
	return id, nil
}
