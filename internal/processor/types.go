package processor

import "time"

// PaymentIntentStatus is the processor-agnostic intent status.
type PaymentIntentStatus string

const (
	IntentPending   PaymentIntentStatus = "pending"
	IntentSuccess   PaymentIntentStatus = "success"
	IntentFailed    PaymentIntentStatus = "failed"
	IntentCancelled PaymentIntentStatus = "cancelled"
)

// MandateStatus is the processor-agnostic recurring mandate status.
type MandateStatus string

const (
	MandatePending   MandateStatus = "pending"
	MandateActive    MandateStatus = "active"
	MandateCancelled MandateStatus = "cancelled"
)

// RefundStatus is the processor-agnostic refund status.
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
)

// Frequency is a recurring charge cadence.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

// NextChargeDate advances from a billing anchor by one cadence period.
// Vendors that report an authoritative period end are preferred; this is the
// fallback used right after creation, before the first cycle completes.
func (f Frequency) NextChargeDate(from time.Time) time.Time {
	switch f {
	case FrequencyQuarterly:
		return from.AddDate(0, 3, 0)
	case FrequencyAnnually:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// Valid reports whether f is a supported cadence.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually:
		return true
	}
	return false
}

// FeeCalculation is the derived fee breakdown for one donation amount.
// Amounts are in the currency's minor unit (cents for usd).
type FeeCalculation struct {
	Percentage    float64 `json:"percentage"`
	FixedAmount   int64   `json:"fixed_amount"`
	CalculatedFee int64   `json:"calculated_fee"`
	TotalAmount   int64   `json:"total_amount"`
}

// PaymentIntent is the normalized projection of a vendor intent/order.
type PaymentIntent struct {
	ID           string              `json:"id"`
	ClientSecret string              `json:"client_secret,omitempty"`
	Status       PaymentIntentStatus `json:"status"`
	Amount       int64               `json:"amount"`
	Currency     string              `json:"currency"`
	ProcessorFee int64               `json:"processor_fee"`
	NetAmount    int64               `json:"net_amount"`
	Metadata     map[string]string   `json:"metadata,omitempty"`
}

// RecurringMandate is the normalized recurring authorization
// (subscription / billing agreement equivalent).
type RecurringMandate struct {
	ID             string        `json:"id"`
	Status         MandateStatus `json:"status"`
	Amount         int64         `json:"amount"`
	Currency       string        `json:"currency"`
	Frequency      Frequency     `json:"frequency"`
	NextChargeDate time.Time     `json:"next_charge_date"`
}

// RefundResult is the normalized outcome of a refund request.
type RefundResult struct {
	RefundID      string       `json:"refund_id"`
	Status        RefundStatus `json:"status"`
	Amount        int64        `json:"amount"`
	Currency      string       `json:"currency"`
	TransactionID string       `json:"transaction_id"`
}

// WebhookEventType is the shared event-type enumeration all vendor
// notifications normalize into.
type WebhookEventType string

const (
	EventPaymentSucceeded WebhookEventType = "payment.succeeded"
	EventPaymentFailed    WebhookEventType = "payment.failed"
	EventPaymentRefunded  WebhookEventType = "payment.refunded"
	EventMandateCreated   WebhookEventType = "mandate.created"
	EventMandateUpdated   WebhookEventType = "mandate.updated"
	EventMandateCancelled WebhookEventType = "mandate.cancelled"
	EventMandateCharged   WebhookEventType = "mandate.charged"
	EventUnknown          WebhookEventType = "unknown"
)

// WebhookEvent is the vendor-independent projection of an inbound
// notification. ID is the vendor's event identifier; downstream consumers
// must deduplicate on (Processor, ID).
type WebhookEvent struct {
	ID        string                 `json:"id"`
	Type      WebhookEventType       `json:"type"`
	Processor string                 `json:"processor"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Raw       []byte                 `json:"-"`
}

// CreateIntentParams carries everything a vendor needs to open an intent.
type CreateIntentParams struct {
	Amount         int64             `json:"amount"` // pre-fee donation amount, minor units
	Currency       string            `json:"currency"`
	Description    string            `json:"description,omitempty"`
	DonorEmail     string            `json:"donor_email,omitempty"`
	DonorCoversFee bool              `json:"donor_covers_fee"`
	PaymentMethod  string            `json:"payment_method,omitempty"` // vendor token from hosted capture
	ReturnURL      string            `json:"return_url,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// RefundParams identifies what to refund. TransactionID takes precedence;
// when empty the adapter resolves the charge from PaymentIntentID.
type RefundParams struct {
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	TransactionID   string `json:"transaction_id,omitempty"`
	Amount          int64  `json:"amount"` // 0 means full refund
	Currency        string `json:"currency"`
	Reason          string `json:"reason,omitempty"`
}

// MandateParams carries everything a vendor needs to open a recurring
// authorization.
type MandateParams struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Frequency     Frequency         `json:"frequency"`
	DonorEmail    string            `json:"donor_email,omitempty"`
	PaymentMethod string            `json:"payment_method,omitempty"` // vendor token from hosted capture
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// MandateUpdateParams describes an in-place mandate change. Zero values
// leave the corresponding field untouched.
type MandateUpdateParams struct {
	Amount        int64  `json:"amount,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

// minorUnitDigits maps supported currencies to their minor-unit exponent.
// Fee rounding converts through major units, so zero-decimal currencies
// round on whole units.
var minorUnitDigits = map[string]int{
	"usd": 2,
	"eur": 2,
	"gbp": 2,
	"cad": 2,
	"aud": 2,
	"jpy": 0,
}

// SupportedCurrency reports whether the adapter layer handles the currency.
func SupportedCurrency(code string) bool {
	_, ok := minorUnitDigits[code]
	return ok
}
