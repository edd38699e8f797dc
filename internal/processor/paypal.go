package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/half-paul/donations2.0-sub001/internal/pkg/httpclient"
)

const (
	paypalLiveBase    = "https://api-m.paypal.com"
	paypalSandboxBase = "https://api-m.sandbox.paypal.com"
)

// PayPalProcessor implements Processor against the PayPal REST API.
// One-time gifts use Orders v2 with an explicit capture step on redirect
// return; recurring mandates use Billing Subscriptions. The access token is
// cached and refreshed under a mutex so concurrent donations share one
// in-flight refresh instead of storming the token endpoint.
type PayPalProcessor struct {
	baseURL   string
	clientID  string
	secret    string
	webhookID string
	productID string
	client    *httpclient.Client
	now       func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalProcessor creates a PayPal adapter. webhookID is the vendor-side
// webhook registration used for signature verification; productID is the
// catalog product billing plans attach to. testMode selects the sandbox API.
func NewPayPalProcessor(clientID, secret, webhookID, productID string, testMode bool) *PayPalProcessor {
	base := paypalLiveBase
	if testMode {
		base = paypalSandboxBase
	}
	return &PayPalProcessor{
		baseURL:   base,
		clientID:  clientID,
		secret:    secret,
		webhookID: webhookID,
		productID: productID,
		client:    httpclient.New().WithTimeout(20 * time.Second),
		now:       time.Now,
	}
}

func (p *PayPalProcessor) Name() string { return "paypal" }

var paypalFeeSchedule = FeeSchedule{Percentage: 2.89, FixedAmount: 49}

func (p *PayPalProcessor) CalculateFees(amount int64, currency string, donorCoversFee bool) (*FeeCalculation, error) {
	return calculateFees(p.Name(), paypalFeeSchedule, amount, currency, donorCoversFee)
}

func (p *PayPalProcessor) CreatePaymentIntent(ctx context.Context, params CreateIntentParams, idempotencyKey string) (*PaymentIntent, error) {
	fees, err := p.CalculateFees(params.Amount, params.Currency, params.DonorCoversFee)
	if err != nil {
		return nil, err
	}

	custom := map[string]string{
		"base_amount":      strconv.FormatInt(params.Amount, 10),
		"processor_fee":    strconv.FormatInt(fees.CalculatedFee, 10),
		"donor_covers_fee": strconv.FormatBool(params.DonorCoversFee),
	}
	for k, v := range params.Metadata {
		custom[k] = v
	}
	customJSON, _ := json.Marshal(custom)

	unit := map[string]interface{}{
		"amount": map[string]string{
			"currency_code": strings.ToUpper(params.Currency),
			"value":         minorToDecimal(fees.TotalAmount, params.Currency),
		},
		"custom_id": string(customJSON),
	}
	if params.Description != "" {
		unit["description"] = params.Description
	}

	body := map[string]interface{}{
		"intent":         "CAPTURE",
		"purchase_units": []interface{}{unit},
	}
	if params.ReturnURL != "" {
		body["application_context"] = map[string]string{"return_url": params.ReturnURL}
	}

	raw, err := p.postJSON(ctx, "/v2/checkout/orders", body, idempotencyKey)
	if err != nil {
		return nil, err
	}

	return &PaymentIntent{
		ID:           getString(raw, "id"),
		Status:       paypalOrderStatus(getString(raw, "status")),
		Amount:       fees.TotalAmount,
		Currency:     params.Currency,
		ProcessorFee: fees.CalculatedFee,
		NetAmount:    fees.TotalAmount - fees.CalculatedFee,
		Metadata:     custom,
	}, nil
}

// ConfirmPayment captures an approved order. A previously captured order is
// read back instead of failing, so a retried redirect-return stays idempotent.
func (p *PayPalProcessor) ConfirmPayment(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	raw, err := p.postJSON(ctx, "/v2/checkout/orders/"+paymentIntentID+"/capture", map[string]interface{}{}, "")
	if err != nil {
		if IsCode(err, ErrCodeValidation) && strings.Contains(AsError(p.Name(), err).VendorCode, "ORDER_ALREADY_CAPTURED") {
			raw, err = p.getJSON(ctx, "/v2/checkout/orders/"+paymentIntentID)
		}
		if err != nil {
			return nil, err
		}
	}
	return p.intentFromOrder(raw), nil
}

func (p *PayPalProcessor) RefundPayment(ctx context.Context, params RefundParams, idempotencyKey string) (*RefundResult, error) {
	captureID := params.TransactionID
	if captureID == "" {
		if params.PaymentIntentID == "" {
			return nil, NewError(p.Name(), ErrCodeRefundFailed, "no capture or order reference to refund")
		}
		order, err := p.getJSON(ctx, "/v2/checkout/orders/"+params.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		captureID = paypalFirstCaptureID(order)
		if captureID == "" {
			return nil, NewError(p.Name(), ErrCodeRefundFailed, "order "+params.PaymentIntentID+" has no capture to refund")
		}
	}

	body := map[string]interface{}{}
	if params.Amount > 0 {
		body["amount"] = map[string]string{
			"currency_code": strings.ToUpper(params.Currency),
			"value":         minorToDecimal(params.Amount, params.Currency),
		}
	}
	if params.Reason != "" {
		body["note_to_payer"] = params.Reason
	}

	raw, err := p.postJSON(ctx, "/v2/payments/captures/"+captureID+"/refund", body, idempotencyKey)
	if err != nil {
		return nil, err
	}

	amount := params.Amount
	if amt := getMap(raw, "amount"); amt != nil {
		amount = decimalToMinor(getString(amt, "value"), params.Currency)
	}

	return &RefundResult{
		RefundID:      getString(raw, "id"),
		Status:        paypalRefundStatus(getString(raw, "status")),
		Amount:        amount,
		Currency:      params.Currency,
		TransactionID: captureID,
	}, nil
}

func (p *PayPalProcessor) CreateRecurringMandate(ctx context.Context, params MandateParams, idempotencyKey string) (*RecurringMandate, error) {
	if !params.Frequency.Valid() {
		return nil, NewError(p.Name(), ErrCodeValidation, "unsupported frequency: "+string(params.Frequency))
	}

	planID, err := p.createPlan(ctx, params, idempotencyKey)
	if err != nil {
		pe := AsError(p.Name(), err)
		if !pe.Transient() && pe.Code != ErrCodeIdempotencyKeyReused {
			pe.Code = ErrCodeMandateCreationFailed
		}
		return nil, pe
	}

	body := map[string]interface{}{
		"plan_id":   planID,
		"custom_id": string(params.Frequency),
	}
	if params.DonorEmail != "" {
		body["subscriber"] = map[string]interface{}{
			"email_address": params.DonorEmail,
		}
	}

	raw, err := p.postJSON(ctx, "/v1/billing/subscriptions", body, idempotencyKey)
	if err != nil {
		pe := AsError(p.Name(), err)
		if !pe.Transient() && pe.Code != ErrCodeIdempotencyKeyReused {
			pe.Code = ErrCodeMandateCreationFailed
		}
		return nil, pe
	}
	return p.mandateFromSubscription(raw, params.Amount, params.Currency, params.Frequency), nil
}

// UpdateRecurringMandate revises the subscription's first billing cycle
// price in place.
func (p *PayPalProcessor) UpdateRecurringMandate(ctx context.Context, mandateID string, params MandateUpdateParams) (*RecurringMandate, error) {
	current, err := p.getJSON(ctx, "/v1/billing/subscriptions/"+mandateID)
	if err != nil {
		return nil, err
	}
	if paypalMandateStatus(getString(current, "status")) == MandateCancelled {
		return nil, NewError(p.Name(), ErrCodeValidation, "mandate "+mandateID+" is cancelled and cannot be updated")
	}
	if params.PaymentMethod != "" {
		// Payment source changes go through PayPal's approval flow, not the API.
		return nil, NewError(p.Name(), ErrCodeMandateUpdateUnsupported, "paypal requires donor re-approval to change the payment source")
	}
	if params.Amount <= 0 {
		return nil, NewError(p.Name(), ErrCodeValidation, "nothing to update")
	}

	currency := paypalSubscriptionCurrency(current)
	body := map[string]interface{}{
		"plan": map[string]interface{}{
			"billing_cycles": []interface{}{
				map[string]interface{}{
					"sequence": 1,
					"pricing_scheme": map[string]interface{}{
						"fixed_price": map[string]string{
							"currency_code": strings.ToUpper(currency),
							"value":         minorToDecimal(params.Amount, currency),
						},
					},
				},
			},
		},
	}
	if _, err := p.postJSON(ctx, "/v1/billing/subscriptions/"+mandateID+"/revise", body, ""); err != nil {
		return nil, err
	}

	updated, err := p.getJSON(ctx, "/v1/billing/subscriptions/"+mandateID)
	if err != nil {
		return nil, err
	}
	return p.mandateFromSubscription(updated, params.Amount, currency, ""), nil
}

func (p *PayPalProcessor) CancelRecurringMandate(ctx context.Context, mandateID string) (*RecurringMandate, error) {
	token, err := p.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.PostJSON(ctx, p.baseURL+"/v1/billing/subscriptions/"+mandateID+"/cancel",
		map[string]string{"reason": "donor cancelled"}, p.authHeaders(token, ""))
	if err != nil {
		return nil, transportError(p.Name(), "cancel subscription", err)
	}
	// 204 on success, body may be empty.
	if !resp.OK() {
		var raw map[string]interface{}
		_ = json.Unmarshal(resp.Body, &raw)
		return nil, p.translateError(resp.StatusCode, raw)
	}

	sub, err := p.getJSON(ctx, "/v1/billing/subscriptions/"+mandateID)
	if err != nil {
		return nil, err
	}
	return p.mandateFromSubscription(sub, 0, "", ""), nil
}

// paypalSignatureHeaders is the transmission-header bundle the webhook
// endpoint hands over as the signature argument, JSON encoded.
type paypalSignatureHeaders struct {
	TransmissionID   string `json:"transmission_id"`
	TransmissionTime string `json:"transmission_time"`
	TransmissionSig  string `json:"transmission_sig"`
	CertURL          string `json:"cert_url"`
	AuthAlgo         string `json:"auth_algo"`
}

// VerifyWebhookSignature validates the notification through PayPal's
// verify-webhook-signature API (certificate-based on the vendor side; PayPal
// does not publish a shared HMAC secret).
func (p *PayPalProcessor) VerifyWebhookSignature(ctx context.Context, payload []byte, signature string) (bool, error) {
	var hdrs paypalSignatureHeaders
	if err := json.Unmarshal([]byte(signature), &hdrs); err != nil {
		return false, nil
	}
	if hdrs.TransmissionID == "" || hdrs.TransmissionSig == "" {
		return false, nil
	}

	body := map[string]interface{}{
		"transmission_id":   hdrs.TransmissionID,
		"transmission_time": hdrs.TransmissionTime,
		"transmission_sig":  hdrs.TransmissionSig,
		"cert_url":          hdrs.CertURL,
		"auth_algo":         hdrs.AuthAlgo,
		"webhook_id":        p.webhookID,
		"webhook_event":     json.RawMessage(payload),
	}

	raw, err := p.postJSON(ctx, "/v1/notifications/verify-webhook-signature", body, "")
	if err != nil {
		return false, err
	}
	return getString(raw, "verification_status") == "SUCCESS", nil
}

// paypalEventTypes maps PayPal event names onto the shared enumeration.
var paypalEventTypes = map[string]WebhookEventType{
	"PAYMENT.CAPTURE.COMPLETED":      EventPaymentSucceeded,
	"PAYMENT.CAPTURE.DENIED":         EventPaymentFailed,
	"PAYMENT.CAPTURE.DECLINED":       EventPaymentFailed,
	"PAYMENT.CAPTURE.REFUNDED":       EventPaymentRefunded,
	"BILLING.SUBSCRIPTION.CREATED":   EventMandateCreated,
	"BILLING.SUBSCRIPTION.ACTIVATED": EventMandateCreated,
	"BILLING.SUBSCRIPTION.UPDATED":   EventMandateUpdated,
	"BILLING.SUBSCRIPTION.CANCELLED": EventMandateCancelled,
	"PAYMENT.SALE.COMPLETED":         EventMandateCharged,
}

func (p *PayPalProcessor) ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, WrapError(p.Name(), ErrCodeWebhookProcessing, "malformed webhook payload", err)
	}

	id := getString(raw, "id")
	if id == "" {
		return nil, NewError(p.Name(), ErrCodeWebhookProcessing, "webhook payload missing event id")
	}

	eventType, ok := paypalEventTypes[getString(raw, "event_type")]
	if !ok {
		eventType = EventUnknown
	}

	createdAt := p.now().UTC()
	if t, err := time.Parse(time.RFC3339, getString(raw, "create_time")); err == nil {
		createdAt = t.UTC()
	}

	return &WebhookEvent{
		ID:        id,
		Type:      eventType,
		Processor: p.Name(),
		Data:      getMap(raw, "resource"),
		CreatedAt: createdAt,
		Raw:       payload,
	}, nil
}

// ── OAuth token cache ────────────────────────────────────────────────

// ensureToken returns a valid access token, refreshing under the mutex when
// expired. A narrow race may cause at most one extra refresh; execution of
// vendor requests is never serialized.
func (p *PayPalProcessor) ensureToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && p.now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	resp, err := p.client.PostForm(ctx, p.baseURL+"/v1/oauth2/token",
		map[string]string{"grant_type": "client_credentials"},
		map[string]string{"Authorization": "Basic " + basicAuth(p.clientID, p.secret)})
	if err != nil {
		return "", transportError(p.Name(), "token request", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return "", WrapError(p.Name(), ErrCodeAPIError, "unparseable token response", err)
	}
	if !resp.OK() {
		code := ErrCodeAuthenticationFailed
		if resp.StatusCode == 401 {
			code = ErrCodeInvalidAPIKey
		}
		return "", &Error{
			Code:          code,
			Processor:     p.Name(),
			Message:       "token request rejected",
			VendorCode:    getString(raw, "error"),
			VendorMessage: getString(raw, "error_description"),
			HTTPStatus:    resp.StatusCode,
		}
	}

	token := getString(raw, "access_token")
	if token == "" {
		return "", NewError(p.Name(), ErrCodeAuthenticationFailed, "token response missing access_token")
	}

	ttl := getInt64(raw, "expires_in")
	if ttl <= 0 {
		ttl = 300
	}
	p.accessToken = token
	// Refresh a minute before vendor-side expiry.
	p.tokenExpiry = p.now().Add(time.Duration(ttl-60) * time.Second)
	return token, nil
}

func (p *PayPalProcessor) authHeaders(token, idempotencyKey string) map[string]string {
	headers := map[string]string{"Authorization": "Bearer " + token}
	if idempotencyKey != "" {
		headers["PayPal-Request-Id"] = idempotencyKey
	}
	return headers
}

func (p *PayPalProcessor) postJSON(ctx context.Context, path string, body interface{}, idempotencyKey string) (map[string]interface{}, error) {
	token, err := p.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.PostJSON(ctx, p.baseURL+path, body, p.authHeaders(token, idempotencyKey))
	if err != nil {
		return nil, transportError(p.Name(), "POST "+path, err)
	}
	return p.decode(resp)
}

func (p *PayPalProcessor) getJSON(ctx context.Context, path string) (map[string]interface{}, error) {
	token, err := p.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Get(ctx, p.baseURL+path, p.authHeaders(token, ""))
	if err != nil {
		return nil, transportError(p.Name(), "GET "+path, err)
	}
	return p.decode(resp)
}

func (p *PayPalProcessor) decode(resp *httpclient.Response) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &raw); err != nil {
			return nil, WrapError(p.Name(), ErrCodeAPIError, "unparseable response", err)
		}
	}
	if !resp.OK() {
		return nil, p.translateError(resp.StatusCode, raw)
	}
	return raw, nil
}

// translateError converts a PayPal error envelope into the agnostic taxonomy.
func (p *PayPalProcessor) translateError(status int, raw map[string]interface{}) *Error {
	name := getString(raw, "name")
	message := getString(raw, "message")

	issue := ""
	if details, ok := raw["details"].([]interface{}); ok && len(details) > 0 {
		if d, ok := details[0].(map[string]interface{}); ok {
			issue = getString(d, "issue")
		}
	}

	code := statusCode(status)
	switch {
	case issue == "INSTRUMENT_DECLINED":
		code = ErrCodeCardDeclined
	case issue == "DUPLICATE_REQUEST_ID":
		code = ErrCodeIdempotencyKeyReused
	case status == 401:
		code = ErrCodeInvalidAPIKey
	}

	vendorCode := name
	if issue != "" {
		vendorCode = name + "/" + issue
	}

	return &Error{
		Code:          code,
		Processor:     p.Name(),
		Message:       "paypal request failed",
		VendorCode:    vendorCode,
		VendorMessage: message,
		HTTPStatus:    status,
	}
}

// createPlan builds a billing plan for the requested amount and cadence.
// PayPal requires a plan object per price point; the plan is keyed to the
// mandate's idempotency key so a retried create reuses the same plan.
func (p *PayPalProcessor) createPlan(ctx context.Context, params MandateParams, idempotencyKey string) (string, error) {
	unit, count := paypalInterval(params.Frequency)
	body := map[string]interface{}{
		"product_id": p.productID,
		"name":       fmt.Sprintf("Recurring donation %s %s", minorToDecimal(params.Amount, params.Currency), strings.ToUpper(params.Currency)),
		"billing_cycles": []interface{}{
			map[string]interface{}{
				"sequence":     1,
				"tenure_type":  "REGULAR",
				"total_cycles": 0, // until cancelled
				"frequency": map[string]interface{}{
					"interval_unit":  unit,
					"interval_count": count,
				},
				"pricing_scheme": map[string]interface{}{
					"fixed_price": map[string]string{
						"currency_code": strings.ToUpper(params.Currency),
						"value":         minorToDecimal(params.Amount, params.Currency),
					},
				},
			},
		},
		"payment_preferences": map[string]interface{}{
			"auto_bill_outstanding":     true,
			"payment_failure_threshold": 3,
		},
	}

	key := ""
	if idempotencyKey != "" {
		key = idempotencyKey + "-plan"
	}
	raw, err := p.postJSON(ctx, "/v1/billing/plans", body, key)
	if err != nil {
		return "", err
	}
	id := getString(raw, "id")
	if id == "" {
		return "", NewError(p.Name(), ErrCodeAPIError, "plan creation returned no id")
	}
	return id, nil
}

func (p *PayPalProcessor) intentFromOrder(raw map[string]interface{}) *PaymentIntent {
	intent := &PaymentIntent{
		ID:     getString(raw, "id"),
		Status: paypalOrderStatus(getString(raw, "status")),
	}

	units, ok := raw["purchase_units"].([]interface{})
	if !ok || len(units) == 0 {
		return intent
	}
	unit, ok := units[0].(map[string]interface{})
	if !ok {
		return intent
	}

	if amt := getMap(unit, "amount"); amt != nil {
		intent.Currency = strings.ToLower(getString(amt, "currency_code"))
		intent.Amount = decimalToMinor(getString(amt, "value"), intent.Currency)
	}

	// Creation wrote the fee breakdown into custom_id; recover it so
	// reconciliation never needs a second lookup.
	meta := map[string]string{}
	if custom := paypalCustomID(unit); custom != "" {
		_ = json.Unmarshal([]byte(custom), &meta)
	}
	intent.Metadata = meta
	if fee, err := strconv.ParseInt(meta["processor_fee"], 10, 64); err == nil {
		intent.ProcessorFee = fee
		intent.NetAmount = intent.Amount - fee
	} else {
		intent.NetAmount = intent.Amount
	}

	return intent
}

// paypalCustomID finds the order's custom_id on the unit or its capture.
func paypalCustomID(unit map[string]interface{}) string {
	if v := getString(unit, "custom_id"); v != "" {
		return v
	}
	payments := getMap(unit, "payments")
	if captures, ok := payments["captures"].([]interface{}); ok && len(captures) > 0 {
		if c, ok := captures[0].(map[string]interface{}); ok {
			return getString(c, "custom_id")
		}
	}
	return ""
}

func paypalFirstCaptureID(order map[string]interface{}) string {
	units, ok := order["purchase_units"].([]interface{})
	if !ok || len(units) == 0 {
		return ""
	}
	unit, ok := units[0].(map[string]interface{})
	if !ok {
		return ""
	}
	payments := getMap(unit, "payments")
	if captures, ok := payments["captures"].([]interface{}); ok && len(captures) > 0 {
		if c, ok := captures[0].(map[string]interface{}); ok {
			return getString(c, "id")
		}
	}
	return ""
}

func (p *PayPalProcessor) mandateFromSubscription(raw map[string]interface{}, amount int64, currency string, freq Frequency) *RecurringMandate {
	if freq == "" {
		if f := Frequency(getString(raw, "custom_id")); f.Valid() {
			freq = f
		} else {
			freq = FrequencyMonthly
		}
	}

	next := time.Time{}
	if info := getMap(raw, "billing_info"); info != nil {
		if t, err := time.Parse(time.RFC3339, getString(info, "next_billing_time")); err == nil {
			next = t.UTC()
		}
		if tier := getMap(info, "last_payment"); tier != nil && amount == 0 {
			if amt := getMap(tier, "amount"); amt != nil {
				currency = strings.ToLower(getString(amt, "currency_code"))
				amount = decimalToMinor(getString(amt, "value"), currency)
			}
		}
	}
	if next.IsZero() {
		next = freq.NextChargeDate(p.now().UTC())
	}

	return &RecurringMandate{
		ID:             getString(raw, "id"),
		Status:         paypalMandateStatus(getString(raw, "status")),
		Amount:         amount,
		Currency:       currency,
		Frequency:      freq,
		NextChargeDate: next,
	}
}

func paypalSubscriptionCurrency(raw map[string]interface{}) string {
	if info := getMap(raw, "billing_info"); info != nil {
		if last := getMap(info, "last_payment"); last != nil {
			if amt := getMap(last, "amount"); amt != nil {
				if c := getString(amt, "currency_code"); c != "" {
					return strings.ToLower(c)
				}
			}
		}
		if balance := getMap(info, "outstanding_balance"); balance != nil {
			if c := getString(balance, "currency_code"); c != "" {
				return strings.ToLower(c)
			}
		}
	}
	return "usd"
}

func paypalOrderStatus(status string) PaymentIntentStatus {
	switch status {
	case "COMPLETED":
		return IntentSuccess
	case "VOIDED":
		return IntentCancelled
	case "CREATED", "SAVED", "APPROVED", "PAYER_ACTION_REQUIRED":
		return IntentPending
	default:
		return IntentFailed
	}
}

func paypalRefundStatus(status string) RefundStatus {
	switch status {
	case "COMPLETED":
		return RefundSucceeded
	case "PENDING":
		return RefundPending
	default:
		return RefundFailed
	}
}

func paypalMandateStatus(status string) MandateStatus {
	switch status {
	case "ACTIVE":
		return MandateActive
	case "CANCELLED", "EXPIRED", "SUSPENDED":
		return MandateCancelled
	default:
		return MandatePending
	}
}

func paypalInterval(f Frequency) (string, int) {
	switch f {
	case FrequencyQuarterly:
		return "MONTH", 3
	case FrequencyAnnually:
		return "YEAR", 1
	default:
		return "MONTH", 1
	}
}

// minorToDecimal renders a minor-unit amount as the vendor's decimal string
// ("10320" usd → "103.20"; jpy passes through whole units).
func minorToDecimal(amount int64, currency string) string {
	digits := minorUnitDigits[currency]
	if digits == 0 {
		return strconv.FormatInt(amount, 10)
	}
	factor := int64(math.Pow(10, float64(digits)))
	return fmt.Sprintf("%d.%0*d", amount/factor, digits, amount%factor)
}

// decimalToMinor parses a vendor decimal string back to minor units.
func decimalToMinor(value, currency string) int64 {
	if value == "" {
		return 0
	}
	digits := minorUnitDigits[currency]
	parts := strings.SplitN(value, ".", 2)
	major, _ := strconv.ParseInt(parts[0], 10, 64)
	factor := int64(math.Pow(10, float64(digits)))
	minor := int64(0)
	if len(parts) == 2 && digits > 0 {
		frac := parts[1]
		for len(frac) < digits {
			frac += "0"
		}
		minor, _ = strconv.ParseInt(frac[:digits], 10, 64)
	}
	return major*factor + minor
}
