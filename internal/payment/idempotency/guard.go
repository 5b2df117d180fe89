// Package idempotency records which gateway events have already produced
// ledger effects.
package idempotency

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/payment/domain"
	"gorm.io/gorm"
)

// Scope separates keys that share an identifier but not a meaning, so a
// failed attempt never blocks the later capture of the same payment.
type Scope string

const (
	ScopeCharge            Scope = "charge"
	ScopeFailure           Scope = "failure"
	ScopeRefund            Scope = "refund"
	ScopeSubscriptionEvent Scope = "subscription_event"
)

// Reservation is one row in payment_idempotency_keys.
type Reservation struct {
	Provider        string
	Scope           Scope
	Key             string
	SubjectID       string
	ProviderEventID string
}

// KeyFor derives the reservation for a normalized event.
func KeyFor(evt *domain.PaymentEvent) (Reservation, error) {
	if evt == nil {
		return Reservation{}, domain.ErrInvalidEvent
	}
	res := Reservation{
		Provider:        strings.ToLower(strings.TrimSpace(evt.Provider)),
		ProviderEventID: evt.ProviderEventID,
	}
	switch evt.Kind {
	case domain.EventCharged:
		res.Scope = ScopeCharge
		res.Key = evt.ExternalPaymentID
		res.SubjectID = evt.ExternalSubscriptionID
	case domain.EventFailed:
		res.Scope = ScopeFailure
		res.Key = evt.ExternalPaymentID
		res.SubjectID = evt.ExternalSubscriptionID
	case domain.EventRefunded:
		res.Scope = ScopeRefund
		res.Key = evt.ExternalRefundID
		if res.Key == "" {
			res.Key = evt.ExternalPaymentID
		}
		res.SubjectID = evt.ExternalPaymentID
	case domain.EventCancelled, domain.EventPaused, domain.EventResumed:
		res.Scope = ScopeSubscriptionEvent
		res.Key = evt.ProviderEventID
		res.SubjectID = evt.ExternalSubscriptionID
	default:
		return Reservation{}, domain.ErrEventIgnored
	}
	if res.Provider == "" || strings.TrimSpace(res.Key) == "" {
		return Reservation{}, fmt.Errorf("%w: missing idempotency key for %s", domain.ErrInvalidEvent, evt.Kind)
	}
	return res, nil
}

// Guard inserts reservations inside the caller's ledger transaction.
type Guard struct {
	gen   *snowflake.Node
	clock clock.Clock
}

func NewGuard(gen *snowflake.Node, clk clock.Clock) *Guard {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Guard{gen: gen, clock: clk}
}

// Reserve claims res using tx. It returns ErrEventAlreadyProcessed when
// another delivery already holds the key; concurrent callers race on the
// unique index and exactly one insert succeeds.
func (g *Guard) Reserve(ctx context.Context, tx *gorm.DB, res Reservation) error {
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO payment_idempotency_keys (id, provider, scope, idempotency_key, subject_id, provider_event_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, scope, idempotency_key) DO NOTHING`,
		g.gen.Generate(),
		res.Provider,
		string(res.Scope),
		res.Key,
		nullable(res.SubjectID),
		nullable(res.ProviderEventID),
		g.clock.Now().UTC(),
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrEventAlreadyProcessed
	}
	return nil
}

// Exists reports whether res has already been claimed.
func (g *Guard) Exists(ctx context.Context, db *gorm.DB, res Reservation) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM payment_idempotency_keys WHERE provider = ? AND scope = ? AND idempotency_key = ?`,
		res.Provider, string(res.Scope), res.Key,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func nullable(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

