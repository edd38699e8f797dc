package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeProcessorIdempotentCreate(t *testing.T) {
	f := NewFakeProcessor("secret")
	ctx := context.Background()
	params := CreateIntentParams{Amount: 5000, Currency: "usd", DonorCoversFee: true}

	first, err := f.CreatePaymentIntent(ctx, params, "key-1")
	require.NoError(t, err)
	second, err := f.CreatePaymentIntent(ctx, params, "key-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.Calls("CreatePaymentIntent"), "replay must not reach the vendor side")

	third, err := f.CreatePaymentIntent(ctx, params, "key-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, 2, f.Calls("CreatePaymentIntent"))
}

func TestFakeProcessorIdempotentRefund(t *testing.T) {
	f := NewFakeProcessor("secret")
	ctx := context.Background()

	intent, err := f.CreatePaymentIntent(ctx, CreateIntentParams{Amount: 5000, Currency: "usd"}, "pay-key")
	require.NoError(t, err)
	_, err = f.ConfirmPayment(ctx, intent.ID)
	require.NoError(t, err)

	first, err := f.RefundPayment(ctx, RefundParams{PaymentIntentID: intent.ID, Amount: 2000, Currency: "usd"}, "refund-key")
	require.NoError(t, err)
	second, err := f.RefundPayment(ctx, RefundParams{PaymentIntentID: intent.ID, Amount: 2000, Currency: "usd"}, "refund-key")
	require.NoError(t, err)

	assert.Equal(t, first.RefundID, second.RefundID)
	assert.Equal(t, 1, f.Calls("RefundPayment"))
}

func TestFakeProcessorMandateLifecycle(t *testing.T) {
	f := NewFakeProcessor("secret")
	ctx := context.Background()

	mandate, err := f.CreateRecurringMandate(ctx, MandateParams{
		Amount:    2500,
		Currency:  "usd",
		Frequency: FrequencyQuarterly,
	}, "mandate-key")
	require.NoError(t, err)
	assert.Equal(t, MandateActive, mandate.Status)
	assert.Equal(t, FrequencyQuarterly, mandate.Frequency)
	assert.False(t, mandate.NextChargeDate.IsZero())

	updated, err := f.UpdateRecurringMandate(ctx, mandate.ID, MandateUpdateParams{Amount: 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), updated.Amount)

	cancelled, err := f.CancelRecurringMandate(ctx, mandate.ID)
	require.NoError(t, err)
	assert.Equal(t, MandateCancelled, cancelled.Status)

	// Cancellation is terminal.
	_, err = f.UpdateRecurringMandate(ctx, mandate.ID, MandateUpdateParams{Amount: 100})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestFakeProcessorScriptedFailures(t *testing.T) {
	f := NewFakeProcessor("secret")
	ctx := context.Background()
	f.FailNext(
		NewError("fake", ErrCodeNetwork, "scripted outage"),
		NewError("fake", ErrCodeTimeout, "scripted timeout"),
	)

	r := NewRetryer(DefaultRetryPolicy(), nil)
	r.sleep = func(context.Context, time.Duration) error { return nil }

	var intent *PaymentIntent
	err := r.Do(ctx, "create_payment_intent", func(ctx context.Context) error {
		var opErr error
		intent, opErr = f.CreatePaymentIntent(ctx, CreateIntentParams{Amount: 1000, Currency: "usd"}, "retried-key")
		return opErr
	})

	require.NoError(t, err, "third attempt should succeed under the same key")
	require.NotNil(t, intent)
	assert.Equal(t, IntentPending, intent.Status)
}

func TestFakeProcessorWebhookRoundTrip(t *testing.T) {
	f := NewFakeProcessor("secret")
	ctx := context.Background()

	payload := []byte(`{"id":"evt_1","type":"payment.succeeded","data":{"id":"fake_pi_1"}}`)
	sig := f.SignWebhook(payload)

	ok, err := f.VerifyWebhookSignature(ctx, payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.VerifyWebhookSignature(ctx, []byte(`{"id":"evt_1","tampered":true}`), sig)
	require.NoError(t, err)
	assert.False(t, ok)

	event, err := f.ParseWebhookEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventPaymentSucceeded, event.Type)
	assert.Equal(t, "fake", event.Processor)
}
