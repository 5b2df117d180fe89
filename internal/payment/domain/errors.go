package domain

import "errors"

var (
	ErrProviderNotFound      = errors.New("payment_provider_not_found")
	ErrProviderDisabled      = errors.New("payment_provider_disabled")
	ErrInvalidConfig         = errors.New("invalid_payment_provider_config")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrValidation            = errors.New("validation_error")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrAmountBelowMinimum    = errors.New("amount_below_minimum")
	ErrInvalidCurrency       = errors.New("invalid_currency")
	ErrInvalidFrequency      = errors.New("invalid_frequency")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrGateway               = errors.New("gateway_error")
	ErrConsistencyFault      = errors.New("consistency_fault")
	ErrPaymentNotFound       = errors.New("payment_not_found")
)

// IsValidation reports whether err belongs to the validation family.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAmountBelowMinimum) ||
		errors.Is(err, ErrInvalidCurrency) ||
		errors.Is(err, ErrInvalidFrequency)
}
