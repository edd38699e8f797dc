package processor

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/half-paul/donations2.0-sub001/internal/pkg/httpclient"
)

const (
	squareLiveBase    = "https://connect.squareup.com"
	squareSandboxBase = "https://connect.squareupsandbox.com"
	squareAPIVersion  = "2024-06-04"
)

// SquareProcessor implements Processor against the Square HTTP API.
// One-time gifts are Payments created with autocomplete=false and completed
// on confirmation; recurring mandates are Square Subscriptions with a
// price-override over a catalog plan. Quarterly is a native QUARTERLY
// cadence. Square does not support repricing a live subscription, so mandate
// updates report a capability limitation instead of cancel-and-recreate.
type SquareProcessor struct {
	baseURL         string
	accessToken     string
	signatureKey    string
	locationID      string
	notificationURL string
	client          *httpclient.Client
	now             func() time.Time
}

// NewSquareProcessor creates a Square adapter. signatureKey and
// notificationURL are the webhook subscription's key and registered URL,
// both required by Square's signature scheme.
func NewSquareProcessor(accessToken, signatureKey, locationID, notificationURL string, testMode bool) *SquareProcessor {
	base := squareLiveBase
	if testMode {
		base = squareSandboxBase
	}
	return &SquareProcessor{
		baseURL:         base,
		accessToken:     accessToken,
		signatureKey:    signatureKey,
		locationID:      locationID,
		notificationURL: notificationURL,
		client: httpclient.New().
			WithTimeout(20 * time.Second).
			WithBearerToken(accessToken).
			WithHeader("Square-Version", squareAPIVersion),
		now: time.Now,
	}
}

func (q *SquareProcessor) Name() string { return "square" }

var squareFeeSchedule = FeeSchedule{Percentage: 2.6, FixedAmount: 10}

func (q *SquareProcessor) CalculateFees(amount int64, currency string, donorCoversFee bool) (*FeeCalculation, error) {
	return calculateFees(q.Name(), squareFeeSchedule, amount, currency, donorCoversFee)
}

func (q *SquareProcessor) CreatePaymentIntent(ctx context.Context, params CreateIntentParams, idempotencyKey string) (*PaymentIntent, error) {
	fees, err := q.CalculateFees(params.Amount, params.Currency, params.DonorCoversFee)
	if err != nil {
		return nil, err
	}
	if params.PaymentMethod == "" {
		return nil, NewError(q.Name(), ErrCodeValidation, "square requires a tokenized payment source at creation")
	}

	// Square has no free-form metadata on payments; the fee breakdown rides
	// in the note so reconciliation can recover pre-fee amounts.
	note := encodeSquareNote(params.Amount, fees.CalculatedFee, params.DonorCoversFee)

	body := map[string]interface{}{
		"idempotency_key": idempotencyKey,
		"source_id":       params.PaymentMethod,
		"autocomplete":    false,
		"location_id":     q.locationID,
		"amount_money": map[string]interface{}{
			"amount":   fees.TotalAmount,
			"currency": strings.ToUpper(params.Currency),
		},
		"note": note,
	}
	if params.DonorEmail != "" {
		body["buyer_email_address"] = params.DonorEmail
	}
	if ref := params.Metadata["reference_id"]; ref != "" {
		body["reference_id"] = ref
	}

	raw, err := q.post(ctx, "/v2/payments", body)
	if err != nil {
		return nil, err
	}
	return q.intentFromPayment(getMap(raw, "payment")), nil
}

// ConfirmPayment completes an approved payment. An already completed payment
// is read back instead of failing.
func (q *SquareProcessor) ConfirmPayment(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	raw, err := q.post(ctx, "/v2/payments/"+paymentIntentID+"/complete", map[string]interface{}{})
	if err != nil {
		pe := AsError(q.Name(), err)
		if pe.Transient() {
			return nil, err
		}
		raw, err = q.get(ctx, "/v2/payments/"+paymentIntentID)
		if err != nil {
			return nil, err
		}
	}
	return q.intentFromPayment(getMap(raw, "payment")), nil
}

func (q *SquareProcessor) RefundPayment(ctx context.Context, params RefundParams, idempotencyKey string) (*RefundResult, error) {
	paymentID := params.TransactionID
	if paymentID == "" {
		paymentID = params.PaymentIntentID
	}
	if paymentID == "" {
		return nil, NewError(q.Name(), ErrCodeRefundFailed, "no payment reference to refund")
	}

	amount := params.Amount
	currency := params.Currency
	if amount <= 0 {
		payment, err := q.get(ctx, "/v2/payments/"+paymentID)
		if err != nil {
			return nil, err
		}
		money := getMap(getMap(payment, "payment"), "amount_money")
		if money == nil {
			return nil, NewError(q.Name(), ErrCodeRefundFailed, "payment "+paymentID+" has no amount to refund")
		}
		amount = getInt64(money, "amount")
		currency = strings.ToLower(getString(money, "currency"))
	}

	body := map[string]interface{}{
		"idempotency_key": idempotencyKey,
		"payment_id":      paymentID,
		"amount_money": map[string]interface{}{
			"amount":   amount,
			"currency": strings.ToUpper(currency),
		},
	}
	if params.Reason != "" {
		body["reason"] = params.Reason
	}

	raw, err := q.post(ctx, "/v2/refunds", body)
	if err != nil {
		return nil, err
	}

	refund := getMap(raw, "refund")
	return &RefundResult{
		RefundID:      getString(refund, "id"),
		Status:        squareRefundStatus(getString(refund, "status")),
		Amount:        getInt64(getMap(refund, "amount_money"), "amount"),
		Currency:      currency,
		TransactionID: getString(refund, "payment_id"),
	}, nil
}

func (q *SquareProcessor) CreateRecurringMandate(ctx context.Context, params MandateParams, idempotencyKey string) (*RecurringMandate, error) {
	if !params.Frequency.Valid() {
		return nil, NewError(q.Name(), ErrCodeValidation, "unsupported frequency: "+string(params.Frequency))
	}

	planVariationID, err := q.upsertPlan(ctx, params, idempotencyKey)
	if err != nil {
		pe := AsError(q.Name(), err)
		if !pe.Transient() && pe.Code != ErrCodeIdempotencyKeyReused {
			pe.Code = ErrCodeMandateCreationFailed
		}
		return nil, pe
	}

	body := map[string]interface{}{
		"idempotency_key":   idempotencyKey,
		"location_id":       q.locationID,
		"plan_variation_id": planVariationID,
		"card_id":           params.PaymentMethod,
		"price_override_money": map[string]interface{}{
			"amount":   params.Amount,
			"currency": strings.ToUpper(params.Currency),
		},
	}
	if cust := params.Metadata["customer_id"]; cust != "" {
		body["customer_id"] = cust
	}

	raw, err := q.post(ctx, "/v2/subscriptions", body)
	if err != nil {
		pe := AsError(q.Name(), err)
		if !pe.Transient() && pe.Code != ErrCodeIdempotencyKeyReused {
			pe.Code = ErrCodeMandateCreationFailed
		}
		return nil, pe
	}
	return q.mandateFromSubscription(getMap(raw, "subscription"), params.Amount, params.Currency, params.Frequency), nil
}

// UpdateRecurringMandate reports Square's capability limitation: a live
// subscription's price cannot be changed in place, and silently cancelling
// and recreating would surprise the donor.
func (q *SquareProcessor) UpdateRecurringMandate(ctx context.Context, mandateID string, params MandateUpdateParams) (*RecurringMandate, error) {
	current, err := q.get(ctx, "/v2/subscriptions/"+mandateID)
	if err != nil {
		return nil, err
	}
	if squareMandateStatus(getString(getMap(current, "subscription"), "status")) == MandateCancelled {
		return nil, NewError(q.Name(), ErrCodeValidation, "mandate "+mandateID+" is cancelled and cannot be updated")
	}
	return nil, NewError(q.Name(), ErrCodeMandateUpdateUnsupported,
		"square subscriptions cannot be repriced in place; cancel and create a new mandate")
}

func (q *SquareProcessor) CancelRecurringMandate(ctx context.Context, mandateID string) (*RecurringMandate, error) {
	raw, err := q.post(ctx, "/v2/subscriptions/"+mandateID+"/cancel", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	return q.mandateFromSubscription(getMap(raw, "subscription"), 0, "", ""), nil
}

// VerifyWebhookSignature checks Square's scheme: base64 HMAC-SHA256 over the
// registered notification URL concatenated with the raw body.
func (q *SquareProcessor) VerifyWebhookSignature(ctx context.Context, payload []byte, signature string) (bool, error) {
	if signature == "" {
		return false, nil
	}
	mac := hmac.New(sha256.New, []byte(q.signatureKey))
	mac.Write([]byte(q.notificationURL))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

// squareEventTypes maps Square event names onto the shared enumeration.
// payment.* events are refined by the payment status in the payload, since
// Square signals success and failure through the same event name.
var squareEventTypes = map[string]WebhookEventType{
	"refund.created":       EventPaymentRefunded,
	"refund.updated":       EventPaymentRefunded,
	"subscription.created": EventMandateCreated,
	"subscription.updated": EventMandateUpdated,
	"invoice.payment_made": EventMandateCharged,
}

func (q *SquareProcessor) ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, WrapError(q.Name(), ErrCodeWebhookProcessing, "malformed webhook payload", err)
	}

	id := getString(raw, "event_id")
	if id == "" {
		return nil, NewError(q.Name(), ErrCodeWebhookProcessing, "webhook payload missing event_id")
	}

	vendorType := getString(raw, "type")
	data := getMap(getMap(raw, "data"), "object")

	eventType, ok := squareEventTypes[vendorType]
	if !ok {
		switch vendorType {
		case "payment.created", "payment.updated":
			eventType = squarePaymentEventType(data)
		default:
			eventType = EventUnknown
		}
	}
	if eventType == EventMandateUpdated {
		if squareMandateStatus(getString(getMap(data, "subscription"), "status")) == MandateCancelled {
			eventType = EventMandateCancelled
		}
	}

	createdAt := q.now().UTC()
	if t, err := time.Parse(time.RFC3339, getString(raw, "created_at")); err == nil {
		createdAt = t.UTC()
	}

	return &WebhookEvent{
		ID:        id,
		Type:      eventType,
		Processor: q.Name(),
		Data:      data,
		CreatedAt: createdAt,
		Raw:       payload,
	}, nil
}

func squarePaymentEventType(data map[string]interface{}) WebhookEventType {
	switch getString(getMap(data, "payment"), "status") {
	case "COMPLETED":
		return EventPaymentSucceeded
	case "FAILED", "CANCELED":
		return EventPaymentFailed
	default:
		return EventUnknown
	}
}

// ── HTTP plumbing ────────────────────────────────────────────────────

func (q *SquareProcessor) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	resp, err := q.client.PostJSON(ctx, q.baseURL+path, body, nil)
	if err != nil {
		return nil, transportError(q.Name(), "POST "+path, err)
	}
	return q.decode(resp)
}

func (q *SquareProcessor) get(ctx context.Context, path string) (map[string]interface{}, error) {
	resp, err := q.client.Get(ctx, q.baseURL+path, nil)
	if err != nil {
		return nil, transportError(q.Name(), "GET "+path, err)
	}
	return q.decode(resp)
}

func (q *SquareProcessor) decode(resp *httpclient.Response) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &raw); err != nil {
			return nil, WrapError(q.Name(), ErrCodeAPIError, "unparseable response", err)
		}
	}
	if !resp.OK() {
		return nil, q.translateError(resp.StatusCode, raw)
	}
	return raw, nil
}

// translateError converts a Square errors array into the agnostic taxonomy.
func (q *SquareProcessor) translateError(status int, raw map[string]interface{}) *Error {
	var category, vendorCode, detail string
	if errs, ok := raw["errors"].([]interface{}); ok && len(errs) > 0 {
		if e, ok := errs[0].(map[string]interface{}); ok {
			category = getString(e, "category")
			vendorCode = getString(e, "code")
			detail = getString(e, "detail")
		}
	}

	code := statusCode(status)
	switch vendorCode {
	case "CARD_DECLINED", "GENERIC_DECLINE", "CVV_FAILURE", "ADDRESS_VERIFICATION_FAILURE":
		code = ErrCodeCardDeclined
	case "INSUFFICIENT_FUNDS":
		code = ErrCodeInsufficientFunds
	case "CARD_EXPIRED":
		code = ErrCodeExpiredCard
	case "INVALID_CARD", "INVALID_CARD_DATA", "INVALID_EXPIRATION":
		code = ErrCodeInvalidCard
	case "IDEMPOTENCY_KEY_REUSED":
		code = ErrCodeIdempotencyKeyReused
	default:
		switch category {
		case "AUTHENTICATION_ERROR":
			code = ErrCodeInvalidAPIKey
		case "RATE_LIMIT_ERROR":
			code = ErrCodeAPIError
		case "PAYMENT_METHOD_ERROR":
			code = ErrCodePaymentFailed
		}
	}

	return &Error{
		Code:          code,
		Processor:     q.Name(),
		Message:       "square request failed",
		VendorCode:    vendorCode,
		VendorMessage: detail,
		HTTPStatus:    status,
	}
}

// upsertPlan creates a catalog subscription plan variation for the requested
// cadence, keyed to the mandate's idempotency key so retries reuse the plan.
func (q *SquareProcessor) upsertPlan(ctx context.Context, params MandateParams, idempotencyKey string) (string, error) {
	cadence := squareCadence(params.Frequency)
	name := params.Description
	if name == "" {
		name = "Recurring donation"
	}

	body := map[string]interface{}{
		"idempotency_key": idempotencyKey + "-plan",
		"object": map[string]interface{}{
			"type": "SUBSCRIPTION_PLAN",
			"id":   "#donation-plan",
			"subscription_plan_data": map[string]interface{}{
				"name": name,
				"subscription_plan_variations": []interface{}{
					map[string]interface{}{
						"type": "SUBSCRIPTION_PLAN_VARIATION",
						"id":   "#donation-plan-variation",
						"subscription_plan_variation_data": map[string]interface{}{
							"name": name + " (" + string(params.Frequency) + ")",
							"phases": []interface{}{
								map[string]interface{}{
									"cadence": cadence,
									"pricing": map[string]interface{}{"type": "STATIC"},
								},
							},
						},
					},
				},
			},
		},
	}

	raw, err := q.post(ctx, "/v2/catalog/object", body)
	if err != nil {
		return "", err
	}

	if mappings, ok := raw["id_mappings"].([]interface{}); ok {
		for _, m := range mappings {
			mm, ok := m.(map[string]interface{})
			if !ok {
				continue
			}
			if getString(mm, "client_object_id") == "#donation-plan-variation" {
				return getString(mm, "object_id"), nil
			}
		}
	}
	return "", NewError(q.Name(), ErrCodeAPIError, "catalog upsert returned no plan variation id")
}

func (q *SquareProcessor) intentFromPayment(payment map[string]interface{}) *PaymentIntent {
	if payment == nil {
		return &PaymentIntent{Status: IntentFailed}
	}

	money := getMap(payment, "amount_money")
	amount := getInt64(money, "amount")
	baseAmount, fee, coversFee := decodeSquareNote(getString(payment, "note"))

	meta := map[string]string{}
	if fee > 0 || coversFee {
		meta["base_amount"] = strconv.FormatInt(baseAmount, 10)
		meta["processor_fee"] = strconv.FormatInt(fee, 10)
		if coversFee {
			meta["donor_covers_fee"] = "true"
		} else {
			meta["donor_covers_fee"] = "false"
		}
	}

	return &PaymentIntent{
		ID:           getString(payment, "id"),
		Status:       squarePaymentStatus(getString(payment, "status")),
		Amount:       amount,
		Currency:     strings.ToLower(getString(money, "currency")),
		ProcessorFee: fee,
		NetAmount:    amount - fee,
		Metadata:     meta,
	}
}

func (q *SquareProcessor) mandateFromSubscription(sub map[string]interface{}, amount int64, currency string, freq Frequency) *RecurringMandate {
	if sub == nil {
		return &RecurringMandate{Status: MandatePending, Frequency: freq}
	}

	if amount == 0 {
		if override := getMap(sub, "price_override_money"); override != nil {
			amount = getInt64(override, "amount")
			currency = strings.ToLower(getString(override, "currency"))
		}
	}
	if freq == "" {
		freq = FrequencyMonthly
	}

	// charged_through_date is the authoritative billing-period end; fall back
	// to local arithmetic right after creation, before the first cycle.
	next := time.Time{}
	if d := getString(sub, "charged_through_date"); d != "" {
		if t, err := time.Parse("2006-01-02", d); err == nil {
			next = t.UTC()
		}
	}
	if next.IsZero() {
		next = freq.NextChargeDate(q.now().UTC())
	}

	return &RecurringMandate{
		ID:             getString(sub, "id"),
		Status:         squareMandateStatus(getString(sub, "status")),
		Amount:         amount,
		Currency:       currency,
		Frequency:      freq,
		NextChargeDate: next,
	}
}

func squarePaymentStatus(status string) PaymentIntentStatus {
	switch status {
	case "COMPLETED":
		return IntentSuccess
	case "CANCELED":
		return IntentCancelled
	case "APPROVED", "PENDING":
		return IntentPending
	default:
		return IntentFailed
	}
}

func squareRefundStatus(status string) RefundStatus {
	switch status {
	case "COMPLETED":
		return RefundSucceeded
	case "PENDING":
		return RefundPending
	default:
		return RefundFailed
	}
}

func squareMandateStatus(status string) MandateStatus {
	switch status {
	case "ACTIVE":
		return MandateActive
	case "CANCELED", "DEACTIVATED":
		return MandateCancelled
	default:
		return MandatePending
	}
}

func squareCadence(f Frequency) string {
	switch f {
	case FrequencyQuarterly:
		return "QUARTERLY"
	case FrequencyAnnually:
		return "ANNUAL"
	default:
		return "MONTHLY"
	}
}

// encodeSquareNote packs the fee breakdown into the payment note, Square's
// only free-form field, as "donation base=10000 fee=320 covered=true".
func encodeSquareNote(base, fee int64, covered bool) string {
	return "donation base=" + strconv.FormatInt(base, 10) +
		" fee=" + strconv.FormatInt(fee, 10) +
		" covered=" + strconv.FormatBool(covered)
}

func decodeSquareNote(note string) (base, fee int64, covered bool) {
	if !strings.HasPrefix(note, "donation ") {
		return 0, 0, false
	}
	for _, field := range strings.Fields(note[len("donation "):]) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "base":
			base, _ = strconv.ParseInt(kv[1], 10, 64)
		case "fee":
			fee, _ = strconv.ParseInt(kv[1], 10, 64)
		case "covered":
			covered = kv[1] == "true"
		}
	}
	return base, fee, covered
}
