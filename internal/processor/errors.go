package processor

import (
	"errors"
	"fmt"
)

// ErrorCode is the processor-agnostic failure classification. Callers branch
// only on these; the raw vendor code/message rides along for diagnostics.
type ErrorCode string

const (
	// Transient — retryable with the same idempotency key.
	ErrCodeNetwork  ErrorCode = "network_error"
	ErrCodeTimeout  ErrorCode = "timeout"
	ErrCodeAPIError ErrorCode = "api_error"

	// Configuration — fatal, operator attention required.
	ErrCodeAuthenticationFailed ErrorCode = "authentication_failed"
	ErrCodeInvalidAPIKey        ErrorCode = "invalid_api_key"
	ErrCodeNotConfigured        ErrorCode = "processor_not_configured"

	// Donor-facing — surfaced as a correctable message, never retried.
	ErrCodeCardDeclined      ErrorCode = "card_declined"
	ErrCodeInsufficientFunds ErrorCode = "insufficient_funds"
	ErrCodeExpiredCard       ErrorCode = "expired_card"
	ErrCodeInvalidCard       ErrorCode = "invalid_card"
	ErrCodePaymentFailed     ErrorCode = "payment_failed"

	// Security/integrity — reject the notification, apply nothing.
	ErrCodeInvalidSignature  ErrorCode = "invalid_signature"
	ErrCodeWebhookProcessing ErrorCode = "webhook_processing_failed"

	// Idempotency — must resolve to the original result, never a second charge.
	ErrCodeIdempotencyKeyReused ErrorCode = "idempotency_key_reused"

	// Operation-specific — surfaced to staff tooling.
	ErrCodeMandateCreationFailed    ErrorCode = "mandate_creation_failed"
	ErrCodeMandateUpdateUnsupported ErrorCode = "mandate_update_unsupported"
	ErrCodeRefundFailed             ErrorCode = "refund_failed"
	ErrCodeValidation               ErrorCode = "validation_error"
	ErrCodeUnsupportedCurrency      ErrorCode = "unsupported_currency"
)

// Error is the typed failure every adapter method returns on a non-success
// vendor response. Exactly one Error per vendor failure; nothing is swallowed.
type Error struct {
	Code          ErrorCode
	Processor     string
	Message       string
	VendorCode    string
	VendorMessage string
	HTTPStatus    int
	Err           error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.VendorCode != "" {
		return fmt.Sprintf("%s: %s (%s: %s)", e.Processor, msg, e.VendorCode, e.VendorMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Processor, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Processor, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure is expected to resolve on retry.
func (e *Error) Transient() bool {
	switch e.Code {
	case ErrCodeNetwork, ErrCodeTimeout, ErrCodeAPIError:
		return true
	}
	return false
}

// DonorMessage returns a donor-presentable message so UI layers never match
// vendor-specific strings.
func (e *Error) DonorMessage() string {
	switch e.Code {
	case ErrCodeCardDeclined:
		return "Your card was declined. Please try a different payment method."
	case ErrCodeInsufficientFunds:
		return "Your card has insufficient funds."
	case ErrCodeExpiredCard:
		return "Your card has expired. Please use a different card."
	case ErrCodeInvalidCard:
		return "Your card details appear to be invalid. Please check and try again."
	case ErrCodePaymentFailed:
		return "Your payment could not be completed. Please try again."
	case ErrCodeNetwork, ErrCodeTimeout, ErrCodeAPIError:
		return "We could not reach the payment provider. Please try again in a moment."
	default:
		return "Something went wrong processing your donation. Please contact support."
	}
}

// NewError builds an adapter error without vendor diagnostics.
func NewError(proc string, code ErrorCode, message string) *Error {
	return &Error{Code: code, Processor: proc, Message: message}
}

// WrapError builds an adapter error wrapping a lower-level cause.
func WrapError(proc string, code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Processor: proc, Message: message, Err: err}
}

// AsError unwraps err into a *Error, or wraps it as an ApiError so callers
// always see the agnostic taxonomy.
func AsError(proc string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return WrapError(proc, ErrCodeAPIError, "unexpected error", err)
}

// IsTransient reports whether err carries a retryable agnostic code.
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	return false
}

// IsCode reports whether err carries the given agnostic code.
func IsCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
