package processor

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/half-paul/donations2.0-sub001/internal/pkg/httpclient"
)

const stripeAPIBase = "https://api.stripe.com/v1"

// stripeSignatureTolerance bounds how old a webhook timestamp may be before
// the notification is treated as a replay.
const stripeSignatureTolerance = 5 * time.Minute

// StripeProcessor implements Processor against the Stripe HTTP API.
// Recurring mandates map onto Stripe subscriptions with inline price data;
// quarterly cadence uses a three-month interval so donors are charged true
// quarterly.
type StripeProcessor struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	productID     string
	client        *httpclient.Client

	// now is swappable for signature-tolerance tests.
	now func() time.Time
}

// NewStripeProcessor creates a Stripe adapter. productID is the pre-created
// Stripe product recurring prices attach to.
func NewStripeProcessor(secretKey, webhookSecret, productID string) *StripeProcessor {
	return &StripeProcessor{
		baseURL:       stripeAPIBase,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		productID:     productID,
		client:        httpclient.New().WithTimeout(20 * time.Second).WithBearerToken(secretKey),
		now:           time.Now,
	}
}

func (s *StripeProcessor) Name() string { return "stripe" }

var stripeFeeSchedule = FeeSchedule{Percentage: 2.9, FixedAmount: 30}

func (s *StripeProcessor) CalculateFees(amount int64, currency string, donorCoversFee bool) (*FeeCalculation, error) {
	return calculateFees(s.Name(), stripeFeeSchedule, amount, currency, donorCoversFee)
}

func (s *StripeProcessor) CreatePaymentIntent(ctx context.Context, params CreateIntentParams, idempotencyKey string) (*PaymentIntent, error) {
	fees, err := s.CalculateFees(params.Amount, params.Currency, params.DonorCoversFee)
	if err != nil {
		return nil, err
	}

	form := map[string]string{
		"amount":                             strconv.FormatInt(fees.TotalAmount, 10),
		"currency":                           params.Currency,
		"automatic_payment_methods[enabled]": "true",
		"metadata[base_amount]":              strconv.FormatInt(params.Amount, 10),
		"metadata[processor_fee]":            strconv.FormatInt(fees.CalculatedFee, 10),
		"metadata[donor_covers_fee]":         strconv.FormatBool(params.DonorCoversFee),
	}
	if params.Description != "" {
		form["description"] = params.Description
	}
	if params.DonorEmail != "" {
		form["receipt_email"] = params.DonorEmail
	}
	for k, v := range params.Metadata {
		form["metadata["+k+"]"] = v
	}

	raw, err := s.post(ctx, "/payment_intents", form, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return s.intentFromRaw(raw, fees), nil
}

func (s *StripeProcessor) ConfirmPayment(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	raw, err := s.get(ctx, "/payment_intents/"+paymentIntentID)
	if err != nil {
		return nil, err
	}
	return s.intentFromRaw(raw, nil), nil
}

func (s *StripeProcessor) RefundPayment(ctx context.Context, params RefundParams, idempotencyKey string) (*RefundResult, error) {
	form := map[string]string{}
	switch {
	case params.TransactionID != "":
		form["charge"] = params.TransactionID
	case params.PaymentIntentID != "":
		form["payment_intent"] = params.PaymentIntentID
	default:
		return nil, NewError(s.Name(), ErrCodeRefundFailed, "no charge or payment intent reference to refund")
	}
	if params.Amount > 0 {
		form["amount"] = strconv.FormatInt(params.Amount, 10)
	}
	if params.Reason != "" {
		form["reason"] = params.Reason
	}

	raw, err := s.post(ctx, "/refunds", form, idempotencyKey)
	if err != nil {
		return nil, err
	}

	return &RefundResult{
		RefundID:      getString(raw, "id"),
		Status:        stripeRefundStatus(getString(raw, "status")),
		Amount:        getInt64(raw, "amount"),
		Currency:      getString(raw, "currency"),
		TransactionID: getString(raw, "charge"),
	}, nil
}

func (s *StripeProcessor) CreateRecurringMandate(ctx context.Context, params MandateParams, idempotencyKey string) (*RecurringMandate, error) {
	if !params.Frequency.Valid() {
		return nil, NewError(s.Name(), ErrCodeValidation, "unsupported frequency: "+string(params.Frequency))
	}

	customerID, err := s.createCustomer(ctx, params, idempotencyKey)
	if err != nil {
		return nil, err
	}

	interval, count := stripeInterval(params.Frequency)
	form := map[string]string{
		"customer":                          customerID,
		"items[0][price_data][currency]":    params.Currency,
		"items[0][price_data][product]":     s.productID,
		"items[0][price_data][unit_amount]": strconv.FormatInt(params.Amount, 10),
		"items[0][price_data][recurring][interval]":       interval,
		"items[0][price_data][recurring][interval_count]": strconv.Itoa(count),
		"metadata[frequency]":                             string(params.Frequency),
	}
	if params.PaymentMethod != "" {
		form["default_payment_method"] = params.PaymentMethod
	}
	for k, v := range params.Metadata {
		form["metadata["+k+"]"] = v
	}

	raw, err := s.post(ctx, "/subscriptions", form, idempotencyKey)
	if err != nil {
		pe := AsError(s.Name(), err)
		if !pe.Transient() && pe.Code != ErrCodeIdempotencyKeyReused {
			pe.Code = ErrCodeMandateCreationFailed
		}
		return nil, pe
	}
	return s.mandateFromRaw(raw, params.Amount, params.Currency, params.Frequency), nil
}

func (s *StripeProcessor) UpdateRecurringMandate(ctx context.Context, mandateID string, params MandateUpdateParams) (*RecurringMandate, error) {
	raw, err := s.get(ctx, "/subscriptions/"+mandateID)
	if err != nil {
		return nil, err
	}
	if getString(raw, "status") == "canceled" {
		return nil, NewError(s.Name(), ErrCodeValidation, "mandate "+mandateID+" is cancelled and cannot be updated")
	}

	form := map[string]string{}
	if params.Amount > 0 {
		itemID, currency := stripeFirstItem(raw)
		if itemID == "" {
			return nil, NewError(s.Name(), ErrCodeValidation, "subscription has no item to reprice")
		}
		interval, count := stripeSubscriptionInterval(raw)
		form["items[0][id]"] = itemID
		form["items[0][price_data][currency]"] = currency
		form["items[0][price_data][product]"] = s.productID
		form["items[0][price_data][unit_amount]"] = strconv.FormatInt(params.Amount, 10)
		form["items[0][price_data][recurring][interval]"] = interval
		form["items[0][price_data][recurring][interval_count]"] = strconv.Itoa(count)
		form["proration_behavior"] = "none"
	}
	if params.PaymentMethod != "" {
		form["default_payment_method"] = params.PaymentMethod
	}
	if len(form) == 0 {
		return nil, NewError(s.Name(), ErrCodeValidation, "nothing to update")
	}

	updated, err := s.post(ctx, "/subscriptions/"+mandateID, form, "")
	if err != nil {
		return nil, err
	}
	return s.mandateFromRaw(updated, params.Amount, "", ""), nil
}

func (s *StripeProcessor) CancelRecurringMandate(ctx context.Context, mandateID string) (*RecurringMandate, error) {
	resp, err := s.client.Delete(ctx, s.baseURL+"/subscriptions/"+mandateID, nil)
	if err != nil {
		return nil, transportError(s.Name(), "cancel subscription", err)
	}
	raw, perr := s.decode(resp)
	if perr != nil {
		return nil, perr
	}
	return s.mandateFromRaw(raw, 0, "", ""), nil
}

// VerifyWebhookSignature checks the Stripe-Signature header scheme:
// HMAC-SHA256 over "<t>.<payload>" with the endpoint secret, hex encoded in
// the v1 element, with a bounded timestamp to reject replays.
func (s *StripeProcessor) VerifyWebhookSignature(ctx context.Context, payload []byte, signature string) (bool, error) {
	var ts string
	var candidates []string
	for _, part := range strings.Split(signature, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if ts == "" || len(candidates) == 0 {
		return false, nil
	}

	epoch, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false, nil
	}
	if d := s.now().Sub(time.Unix(epoch, 0)); d > stripeSignatureTolerance || d < -stripeSignatureTolerance {
		return false, nil
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, c := range candidates {
		if hmac.Equal([]byte(expected), []byte(c)) {
			return true, nil
		}
	}
	return false, nil
}

// stripeEventTypes maps Stripe event names onto the shared enumeration.
var stripeEventTypes = map[string]WebhookEventType{
	"payment_intent.succeeded":      EventPaymentSucceeded,
	"payment_intent.payment_failed": EventPaymentFailed,
	"payment_intent.canceled":       EventPaymentFailed,
	"charge.refunded":               EventPaymentRefunded,
	"customer.subscription.created": EventMandateCreated,
	"customer.subscription.updated": EventMandateUpdated,
	"customer.subscription.deleted": EventMandateCancelled,
	"invoice.paid":                  EventMandateCharged,
}

func (s *StripeProcessor) ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, WrapError(s.Name(), ErrCodeWebhookProcessing, "malformed webhook payload", err)
	}

	id := getString(raw, "id")
	if id == "" {
		return nil, NewError(s.Name(), ErrCodeWebhookProcessing, "webhook payload missing event id")
	}

	eventType, ok := stripeEventTypes[getString(raw, "type")]
	if !ok {
		eventType = EventUnknown
	}

	var data map[string]interface{}
	if obj := getMap(raw, "data"); obj != nil {
		data = getMap(obj, "object")
	}

	return &WebhookEvent{
		ID:        id,
		Type:      eventType,
		Processor: s.Name(),
		Data:      data,
		CreatedAt: time.Unix(getInt64(raw, "created"), 0).UTC(),
		Raw:       payload,
	}, nil
}

// ── HTTP plumbing ────────────────────────────────────────────────────

func (s *StripeProcessor) post(ctx context.Context, path string, form map[string]string, idempotencyKey string) (map[string]interface{}, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	resp, err := s.client.PostForm(ctx, s.baseURL+path, form, headers)
	if err != nil {
		return nil, transportError(s.Name(), "POST "+path, err)
	}
	return s.decode(resp)
}

func (s *StripeProcessor) get(ctx context.Context, path string) (map[string]interface{}, error) {
	resp, err := s.client.Get(ctx, s.baseURL+path, nil)
	if err != nil {
		return nil, transportError(s.Name(), "GET "+path, err)
	}
	return s.decode(resp)
}

func (s *StripeProcessor) decode(resp *httpclient.Response) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, WrapError(s.Name(), ErrCodeAPIError, "unparseable response", err)
	}
	if !resp.OK() {
		return nil, s.translateError(resp.StatusCode, raw)
	}
	return raw, nil
}

// translateError converts a Stripe error envelope into the agnostic taxonomy.
func (s *StripeProcessor) translateError(status int, raw map[string]interface{}) *Error {
	errObj := getMap(raw, "error")
	vendorType := getString(errObj, "type")
	vendorCode := getString(errObj, "code")
	declineCode := getString(errObj, "decline_code")
	message := getString(errObj, "message")

	code := statusCode(status)
	switch vendorType {
	case "card_error":
		code = stripeDeclineCode(vendorCode, declineCode)
	case "idempotency_error":
		code = ErrCodeIdempotencyKeyReused
	case "authentication_error":
		code = ErrCodeInvalidAPIKey
	case "rate_limit_error", "api_error":
		code = ErrCodeAPIError
	case "invalid_request_error":
		if status == 401 {
			code = ErrCodeInvalidAPIKey
		} else {
			code = ErrCodeValidation
		}
	}

	return &Error{
		Code:          code,
		Processor:     s.Name(),
		Message:       "stripe request failed",
		VendorCode:    vendorCode,
		VendorMessage: message,
		HTTPStatus:    status,
	}
}

func stripeDeclineCode(code, declineCode string) ErrorCode {
	switch code {
	case "expired_card":
		return ErrCodeExpiredCard
	case "incorrect_number", "invalid_number", "incorrect_cvc", "invalid_cvc", "invalid_expiry_month", "invalid_expiry_year":
		return ErrCodeInvalidCard
	}
	switch declineCode {
	case "insufficient_funds":
		return ErrCodeInsufficientFunds
	case "expired_card":
		return ErrCodeExpiredCard
	}
	return ErrCodeCardDeclined
}

func stripeIntentStatus(status string) PaymentIntentStatus {
	switch status {
	case "succeeded":
		return IntentSuccess
	case "canceled":
		return IntentCancelled
	case "requires_payment_method", "requires_confirmation", "requires_action", "requires_capture", "processing":
		return IntentPending
	default:
		return IntentFailed
	}
}

func stripeRefundStatus(status string) RefundStatus {
	switch status {
	case "succeeded":
		return RefundSucceeded
	case "pending", "requires_action":
		return RefundPending
	default:
		return RefundFailed
	}
}

func stripeMandateStatus(status string) MandateStatus {
	switch status {
	case "active", "trialing":
		return MandateActive
	case "canceled":
		return MandateCancelled
	default:
		return MandatePending
	}
}

func stripeInterval(f Frequency) (string, int) {
	switch f {
	case FrequencyQuarterly:
		return "month", 3
	case FrequencyAnnually:
		return "year", 1
	default:
		return "month", 1
	}
}

// stripeSubscriptionInterval reads the recurring interval back off a
// subscription payload so repricing keeps the original cadence.
func stripeSubscriptionInterval(raw map[string]interface{}) (string, int) {
	items := getMap(raw, "items")
	if data, ok := items["data"].([]interface{}); ok && len(data) > 0 {
		if item, ok := data[0].(map[string]interface{}); ok {
			price := getMap(item, "price")
			recurring := getMap(price, "recurring")
			if recurring != nil {
				count := int(getInt64(recurring, "interval_count"))
				if count == 0 {
					count = 1
				}
				return getString(recurring, "interval"), count
			}
		}
	}
	return "month", 1
}

func stripeFirstItem(raw map[string]interface{}) (itemID, currency string) {
	items := getMap(raw, "items")
	if data, ok := items["data"].([]interface{}); ok && len(data) > 0 {
		if item, ok := data[0].(map[string]interface{}); ok {
			price := getMap(item, "price")
			return getString(item, "id"), getString(price, "currency")
		}
	}
	return "", ""
}

func (s *StripeProcessor) createCustomer(ctx context.Context, params MandateParams, idempotencyKey string) (string, error) {
	form := map[string]string{}
	if params.DonorEmail != "" {
		form["email"] = params.DonorEmail
	}
	if params.Description != "" {
		form["description"] = params.Description
	}
	if params.PaymentMethod != "" {
		form["payment_method"] = params.PaymentMethod
		form["invoice_settings[default_payment_method]"] = params.PaymentMethod
	}

	key := ""
	if idempotencyKey != "" {
		key = idempotencyKey + "-customer"
	}
	raw, err := s.post(ctx, "/customers", form, key)
	if err != nil {
		return "", err
	}
	id := getString(raw, "id")
	if id == "" {
		return "", NewError(s.Name(), ErrCodeAPIError, "customer creation returned no id")
	}
	return id, nil
}

// intentFromRaw normalizes a Stripe payment-intent payload. When fees is nil
// (status read-back) the fee breakdown is recovered from the intent metadata
// written at creation.
func (s *StripeProcessor) intentFromRaw(raw map[string]interface{}, fees *FeeCalculation) *PaymentIntent {
	amount := getInt64(raw, "amount")
	meta := map[string]string{}
	for k, v := range getMap(raw, "metadata") {
		if sv, ok := v.(string); ok {
			meta[k] = sv
		}
	}

	var fee int64
	if fees != nil {
		fee = fees.CalculatedFee
	} else if v, err := strconv.ParseInt(meta["processor_fee"], 10, 64); err == nil {
		fee = v
	}

	return &PaymentIntent{
		ID:           getString(raw, "id"),
		ClientSecret: getString(raw, "client_secret"),
		Status:       stripeIntentStatus(getString(raw, "status")),
		Amount:       amount,
		Currency:     getString(raw, "currency"),
		ProcessorFee: fee,
		NetAmount:    amount - fee,
		Metadata:     meta,
	}
}

// mandateFromRaw normalizes a Stripe subscription payload. The vendor's
// current_period_end is authoritative for the next charge date; local date
// arithmetic is the fallback immediately after creation.
func (s *StripeProcessor) mandateFromRaw(raw map[string]interface{}, amount int64, currency string, freq Frequency) *RecurringMandate {
	if itemAmount, itemCurrency, itemFreq := stripeItemDetail(raw); itemAmount > 0 {
		amount = itemAmount
		currency = itemCurrency
		if itemFreq != "" {
			freq = itemFreq
		}
	}
	if freq == "" {
		if f := Frequency(getString(getMap(raw, "metadata"), "frequency")); f.Valid() {
			freq = f
		} else {
			freq = FrequencyMonthly
		}
	}

	next := time.Time{}
	if end := getInt64(raw, "current_period_end"); end > 0 {
		next = time.Unix(end, 0).UTC()
	} else {
		next = freq.NextChargeDate(s.now().UTC())
	}

	return &RecurringMandate{
		ID:             getString(raw, "id"),
		Status:         stripeMandateStatus(getString(raw, "status")),
		Amount:         amount,
		Currency:       currency,
		Frequency:      freq,
		NextChargeDate: next,
	}
}

func stripeItemDetail(raw map[string]interface{}) (int64, string, Frequency) {
	items := getMap(raw, "items")
	data, ok := items["data"].([]interface{})
	if !ok || len(data) == 0 {
		return 0, "", ""
	}
	item, ok := data[0].(map[string]interface{})
	if !ok {
		return 0, "", ""
	}
	price := getMap(item, "price")
	if price == nil {
		return 0, "", ""
	}
	var freq Frequency
	if recurring := getMap(price, "recurring"); recurring != nil {
		count := getInt64(recurring, "interval_count")
		switch fmt.Sprintf("%s/%d", getString(recurring, "interval"), count) {
		case "month/1", "month/0":
			freq = FrequencyMonthly
		case "month/3":
			freq = FrequencyQuarterly
		case "year/1", "year/0":
			freq = FrequencyAnnually
		}
	}
	return getInt64(price, "unit_amount"), getString(price, "currency"), freq
}
