package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/givelane/internal/payment/domain"
	subscriptiondomain "github.com/smallbiznis/givelane/internal/subscription/domain"
	"gorm.io/gorm"
)

// Write kinds reported to metrics.
const (
	WriteCharge  = "charge"
	WriteFailure = "failure"
	WriteRefund  = "refund"
	WriteExpiry  = "expiry"
)

// Result describes the ledger rows touched by one event.
type Result struct {
	DonationID    snowflake.ID
	PaymentID     snowflake.ID
	ReceiptNumber string
	RaisedDelta   int64
	// Skipped is set when the event moved no money, e.g. a failure that
	// arrives after the capture.
	Skipped bool
	// Unmatched is set when a capture could not settle the donation of its
	// order and was booked as a separate donation. OrderDonationID names
	// the donation the order already had.
	Unmatched       bool
	OrderDonationID snowflake.ID
}

// Service writes Payment, Donation and campaign effects. Every method that
// takes a *gorm.DB runs inside the caller's transaction.
type Service interface {
	RecordCharge(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, sub *subscriptiondomain.Subscription) (Result, error)
	RecordFailure(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, sub *subscriptiondomain.Subscription) (Result, error)
	RecordRefund(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent) (Result, error)
	// ExpirePending fails one-off donations left pending longer than the TTL.
	ExpirePending(ctx context.Context) (int64, error)
}

// ReceiptNumber formats PREFIX-YYYYMM-<base36 id>.
func ReceiptNumber(prefix string, at time.Time, id snowflake.ID) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "RCT"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("200601"), strings.ToUpper(id.Base36()))
}
