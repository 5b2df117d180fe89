package domain

import "time"

const (
	// MaxFailedPayments is the consecutive failure count that cancels a
	// subscription.
	MaxFailedPayments = 3

	CancelReasonPaymentFailures = "multiple payment failures"
	CancelReasonProvider        = "cancelled by provider"
	CancelReasonCompleted       = "schedule completed"
	CancelReasonDonor           = "cancelled by donor"
)

// Decision describes what a transition did to a subscription.
type Decision struct {
	Applied bool
	From    Status
	To      Status
	Reason  string
}

func skipped(sub *Subscription, reason string) Decision {
	return Decision{From: sub.Status, To: sub.Status, Reason: reason}
}

// ApplyCharge records a successful charge. Only active subscriptions move:
// the failure counter resets and the next charge date advances one period
// from the previously scheduled date.
func ApplyCharge(sub *Subscription, amount int64, occurredAt time.Time) Decision {
	if sub.Status != StatusActive {
		return skipped(sub, "charge on "+string(sub.Status)+" subscription")
	}
	sub.FailedPayments = 0
	sub.NextChargeDate = sub.Frequency.Next(sub.NextChargeDate)
	sub.TotalPayments++
	sub.TotalAmount += amount
	at := occurredAt.UTC()
	sub.LastChargeDate = &at
	sub.UpdatedAt = at
	return Decision{Applied: true, From: StatusActive, To: StatusActive}
}

// ApplyFailure records a failed charge and cancels the subscription once
// MaxFailedPayments is reached. The next charge date is kept.
func ApplyFailure(sub *Subscription, occurredAt time.Time) Decision {
	if sub.Status != StatusActive {
		return skipped(sub, "failure on "+string(sub.Status)+" subscription")
	}
	sub.FailedPayments++
	at := occurredAt.UTC()
	sub.UpdatedAt = at
	if sub.FailedPayments < MaxFailedPayments {
		return Decision{Applied: true, From: StatusActive, To: StatusActive}
	}
	cancel(sub, StatusCancelled, CancelReasonPaymentFailures, at)
	return Decision{Applied: true, From: StatusActive, To: StatusCancelled, Reason: CancelReasonPaymentFailures}
}

// ApplyCancelled mirrors a provider-side cancellation. Completed schedules
// end as expired.
func ApplyCancelled(sub *Subscription, expired bool, occurredAt time.Time) Decision {
	if sub.Status.Terminal() {
		return skipped(sub, "subscription already "+string(sub.Status))
	}
	from := sub.Status
	target, reason := StatusCancelled, CancelReasonProvider
	if expired {
		target, reason = StatusExpired, CancelReasonCompleted
	}
	cancel(sub, target, reason, occurredAt.UTC())
	return Decision{Applied: true, From: from, To: target, Reason: reason}
}

// ApplyPaused mirrors a provider-side pause.
func ApplyPaused(sub *Subscription, occurredAt time.Time) Decision {
	if sub.Status != StatusActive {
		return skipped(sub, "pause on "+string(sub.Status)+" subscription")
	}
	at := occurredAt.UTC()
	sub.Status = StatusPaused
	sub.PausedAt = &at
	sub.UpdatedAt = at
	return Decision{Applied: true, From: StatusActive, To: StatusPaused}
}

// ApplyResumed mirrors a provider-side resume.
func ApplyResumed(sub *Subscription, occurredAt time.Time) Decision {
	if sub.Status != StatusPaused {
		return skipped(sub, "resume on "+string(sub.Status)+" subscription")
	}
	at := occurredAt.UTC()
	sub.Status = StatusActive
	sub.ResumedAt = &at
	sub.UpdatedAt = at
	return Decision{Applied: true, From: StatusPaused, To: StatusActive}
}

// ValidateTransition checks an administrative status change.
func ValidateTransition(current, target Status) error {
	switch {
	case current == StatusActive && target == StatusPaused:
	case current == StatusPaused && target == StatusActive:
	case current == StatusActive && target == StatusCancelled:
	case current == StatusPaused && target == StatusCancelled:
	default:
		return ErrInvalidTransition
	}
	return nil
}

// ApplyTransition performs a validated administrative status change.
func ApplyTransition(sub *Subscription, target Status, at time.Time) (Decision, error) {
	if err := ValidateTransition(sub.Status, target); err != nil {
		return skipped(sub, err.Error()), err
	}
	switch target {
	case StatusPaused:
		return ApplyPaused(sub, at), nil
	case StatusActive:
		return ApplyResumed(sub, at), nil
	default:
		from := sub.Status
		cancel(sub, StatusCancelled, CancelReasonDonor, at.UTC())
		return Decision{Applied: true, From: from, To: StatusCancelled, Reason: CancelReasonDonor}, nil
	}
}

func cancel(sub *Subscription, target Status, reason string, at time.Time) {
	sub.Status = target
	sub.CancelReason = &reason
	sub.CancelledAt = &at
	sub.UpdatedAt = at
}
