package processor

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// FakeProcessor is a deterministic in-memory Processor for tests and local
// development. It honors idempotency keys by replaying the originally
// returned result, counts every vendor-side effect, and can be scripted to
// fail so retry and error-propagation behavior is testable without a vendor.
type FakeProcessor struct {
	webhookSecret string
	now           func() time.Time

	mu       sync.Mutex
	seq      int
	calls    map[string]int
	intents  map[string]*PaymentIntent // by intent ID
	mandates map[string]*RecurringMandate
	byKey    map[string]string // idempotency key -> created object ID
	scripted []error
}

// NewFakeProcessor creates the test double. webhookSecret is used for the
// HMAC-SHA256 signature scheme in VerifyWebhookSignature.
func NewFakeProcessor(webhookSecret string) *FakeProcessor {
	return &FakeProcessor{
		webhookSecret: webhookSecret,
		now:           time.Now,
		calls:         map[string]int{},
		intents:       map[string]*PaymentIntent{},
		mandates:      map[string]*RecurringMandate{},
		byKey:         map[string]string{},
	}
}

func (f *FakeProcessor) Name() string { return "fake" }

// FailNext scripts errors returned by subsequent mutating calls, in order.
func (f *FakeProcessor) FailNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripted = append(f.scripted, errs...)
}

// Calls returns how many times the named method reached the fake vendor
// (idempotent replays do not count).
func (f *FakeProcessor) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// SetNow overrides the clock for date-sensitive assertions.
func (f *FakeProcessor) SetNow(now func() time.Time) { f.now = now }

var fakeFeeSchedule = FeeSchedule{Percentage: 2.9, FixedAmount: 30}

func (f *FakeProcessor) CalculateFees(amount int64, currency string, donorCoversFee bool) (*FeeCalculation, error) {
	return calculateFees(f.Name(), fakeFeeSchedule, amount, currency, donorCoversFee)
}

func (f *FakeProcessor) nextScripted() error {
	if len(f.scripted) == 0 {
		return nil
	}
	err := f.scripted[0]
	f.scripted = f.scripted[1:]
	return err
}

func (f *FakeProcessor) CreatePaymentIntent(ctx context.Context, params CreateIntentParams, idempotencyKey string) (*PaymentIntent, error) {
	fees, err := f.CalculateFees(params.Amount, params.Currency, params.DonorCoversFee)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.byKey[idempotencyKey]; ok && idempotencyKey != "" {
		if intent, ok := f.intents[id]; ok {
			copied := *intent
			return &copied, nil
		}
	}

	if err := f.nextScripted(); err != nil {
		return nil, err
	}

	f.calls["CreatePaymentIntent"]++
	f.seq++
	intent := &PaymentIntent{
		ID:           fmt.Sprintf("fake_pi_%d", f.seq),
		ClientSecret: fmt.Sprintf("fake_secret_%d", f.seq),
		Status:       IntentPending,
		Amount:       fees.TotalAmount,
		Currency:     params.Currency,
		ProcessorFee: fees.CalculatedFee,
		NetAmount:    fees.TotalAmount - fees.CalculatedFee,
		Metadata:     params.Metadata,
	}
	f.intents[intent.ID] = intent
	if idempotencyKey != "" {
		f.byKey[idempotencyKey] = intent.ID
	}
	copied := *intent
	return &copied, nil
}

func (f *FakeProcessor) ConfirmPayment(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.nextScripted(); err != nil {
		return nil, err
	}
	f.calls["ConfirmPayment"]++

	intent, ok := f.intents[paymentIntentID]
	if !ok {
		return nil, NewError(f.Name(), ErrCodeValidation, "unknown payment intent "+paymentIntentID)
	}
	if intent.Status == IntentPending {
		intent.Status = IntentSuccess
	}
	copied := *intent
	return &copied, nil
}

func (f *FakeProcessor) RefundPayment(ctx context.Context, params RefundParams, idempotencyKey string) (*RefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.byKey[idempotencyKey]; ok && idempotencyKey != "" {
		return &RefundResult{
			RefundID:      id,
			Status:        RefundSucceeded,
			Amount:        params.Amount,
			Currency:      params.Currency,
			TransactionID: params.TransactionID,
		}, nil
	}

	if err := f.nextScripted(); err != nil {
		return nil, err
	}

	ref := params.TransactionID
	if ref == "" {
		ref = params.PaymentIntentID
	}
	if ref == "" {
		return nil, NewError(f.Name(), ErrCodeRefundFailed, "no transaction reference to refund")
	}

	f.calls["RefundPayment"]++
	f.seq++
	refundID := fmt.Sprintf("fake_re_%d", f.seq)
	if idempotencyKey != "" {
		f.byKey[idempotencyKey] = refundID
	}
	return &RefundResult{
		RefundID:      refundID,
		Status:        RefundSucceeded,
		Amount:        params.Amount,
		Currency:      params.Currency,
		TransactionID: ref,
	}, nil
}

func (f *FakeProcessor) CreateRecurringMandate(ctx context.Context, params MandateParams, idempotencyKey string) (*RecurringMandate, error) {
	if !params.Frequency.Valid() {
		return nil, NewError(f.Name(), ErrCodeValidation, "unsupported frequency: "+string(params.Frequency))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.byKey[idempotencyKey]; ok && idempotencyKey != "" {
		if mandate, ok := f.mandates[id]; ok {
			copied := *mandate
			return &copied, nil
		}
	}

	if err := f.nextScripted(); err != nil {
		return nil, err
	}

	f.calls["CreateRecurringMandate"]++
	f.seq++
	mandate := &RecurringMandate{
		ID:             fmt.Sprintf("fake_sub_%d", f.seq),
		Status:         MandateActive,
		Amount:         params.Amount,
		Currency:       params.Currency,
		Frequency:      params.Frequency,
		NextChargeDate: params.Frequency.NextChargeDate(f.now().UTC()),
	}
	f.mandates[mandate.ID] = mandate
	if idempotencyKey != "" {
		f.byKey[idempotencyKey] = mandate.ID
	}
	copied := *mandate
	return &copied, nil
}

func (f *FakeProcessor) UpdateRecurringMandate(ctx context.Context, mandateID string, params MandateUpdateParams) (*RecurringMandate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.nextScripted(); err != nil {
		return nil, err
	}
	f.calls["UpdateRecurringMandate"]++

	mandate, ok := f.mandates[mandateID]
	if !ok {
		return nil, NewError(f.Name(), ErrCodeValidation, "unknown mandate "+mandateID)
	}
	if mandate.Status == MandateCancelled {
		return nil, NewError(f.Name(), ErrCodeValidation, "mandate "+mandateID+" is cancelled and cannot be updated")
	}
	if params.Amount > 0 {
		mandate.Amount = params.Amount
	}
	copied := *mandate
	return &copied, nil
}

func (f *FakeProcessor) CancelRecurringMandate(ctx context.Context, mandateID string) (*RecurringMandate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.nextScripted(); err != nil {
		return nil, err
	}
	f.calls["CancelRecurringMandate"]++

	mandate, ok := f.mandates[mandateID]
	if !ok {
		return nil, NewError(f.Name(), ErrCodeValidation, "unknown mandate "+mandateID)
	}
	mandate.Status = MandateCancelled
	copied := *mandate
	return &copied, nil
}

// VerifyWebhookSignature checks hex HMAC-SHA256 of the payload under the
// configured secret, the scheme SignWebhook produces.
func (f *FakeProcessor) VerifyWebhookSignature(ctx context.Context, payload []byte, signature string) (bool, error) {
	return hmac.Equal([]byte(f.SignWebhook(payload)), []byte(signature)), nil
}

// SignWebhook produces a signature VerifyWebhookSignature accepts.
func (f *FakeProcessor) SignWebhook(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(f.webhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// fakeEventTypes mirrors a vendor mapping table for the double.
var fakeEventTypes = map[string]WebhookEventType{
	"payment.succeeded": EventPaymentSucceeded,
	"payment.failed":    EventPaymentFailed,
	"payment.refunded":  EventPaymentRefunded,
	"mandate.created":   EventMandateCreated,
	"mandate.updated":   EventMandateUpdated,
	"mandate.cancelled": EventMandateCancelled,
	"mandate.charged":   EventMandateCharged,
}

func (f *FakeProcessor) ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, WrapError(f.Name(), ErrCodeWebhookProcessing, "malformed webhook payload", err)
	}

	id := getString(raw, "id")
	if id == "" {
		return nil, NewError(f.Name(), ErrCodeWebhookProcessing, "webhook payload missing event id")
	}

	eventType, ok := fakeEventTypes[getString(raw, "type")]
	if !ok {
		eventType = EventUnknown
	}

	createdAt := f.now().UTC()
	if v := getInt64(raw, "created"); v > 0 {
		createdAt = time.Unix(v, 0).UTC()
	}

	return &WebhookEvent{
		ID:        id,
		Type:      eventType,
		Processor: f.Name(),
		Data:      getMap(raw, "data"),
		CreatedAt: createdAt,
		Raw:       payload,
	}, nil
}
