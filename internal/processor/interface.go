package processor

import "context"

// Processor defines the shared contract every payment vendor adapter
// implements. Callers never branch on the vendor; they branch on the
// agnostic error codes and normalized types this contract returns.
//
// Money-moving operations (CreatePaymentIntent, RefundPayment,
// CreateRecurringMandate) carry a caller-supplied idempotency key: the same
// key submitted twice must yield the same observable result from the vendor,
// never a second money movement.
type Processor interface {
	// Name returns the processor identifier ("stripe", "paypal", ...).
	Name() string

	// CalculateFees computes the processor fee and donor-covers-fee total
	// for a pre-fee amount in the currency's minor unit.
	CalculateFees(amount int64, currency string, donorCoversFee bool) (*FeeCalculation, error)

	// CreatePaymentIntent opens a vendor intent/order for a one-time gift.
	CreatePaymentIntent(ctx context.Context, params CreateIntentParams, idempotencyKey string) (*PaymentIntent, error)

	// ConfirmPayment retrieves or advances the status of an intent. Vendors
	// that auto-capture report the read-back status; vendors with an explicit
	// capture step perform it here.
	ConfirmPayment(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)

	// RefundPayment refunds a captured charge, resolving the charge reference
	// from params.TransactionID or the parent intent.
	RefundPayment(ctx context.Context, params RefundParams, idempotencyKey string) (*RefundResult, error)

	// CreateRecurringMandate opens the vendor's recurring primitive
	// (subscription / billing agreement) for a repeating donation.
	CreateRecurringMandate(ctx context.Context, params MandateParams, idempotencyKey string) (*RecurringMandate, error)

	// UpdateRecurringMandate changes amount or payment method in place.
	// Vendors without in-place update return ErrCodeMandateUpdateUnsupported
	// rather than silently cancelling.
	UpdateRecurringMandate(ctx context.Context, mandateID string, params MandateUpdateParams) (*RecurringMandate, error)

	// CancelRecurringMandate cancels the mandate. Cancelled mandates are
	// terminal; a new mandate must be created to resume giving.
	CancelRecurringMandate(ctx context.Context, mandateID string) (*RecurringMandate, error)

	// VerifyWebhookSignature checks the vendor signature over the raw payload
	// using constant-time comparison.
	VerifyWebhookSignature(ctx context.Context, payload []byte, signature string) (bool, error)

	// ParseWebhookEvent normalizes a verified vendor payload. Unrecognized
	// vendor event types map to EventUnknown rather than failing.
	ParseWebhookEvent(payload []byte) (*WebhookEvent, error)
}
