package processor

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStripe(t *testing.T, handler http.HandlerFunc) *StripeProcessor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := NewStripeProcessor("sk_test_abc", "whsec_test", "prod_donation")
	s.baseURL = srv.URL
	return s
}

func TestStripeCreatePaymentIntent(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents", r.URL.Path)
		assert.Equal(t, "idem-123", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer sk_test_abc", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "10320", r.Form.Get("amount"))
		assert.Equal(t, "usd", r.Form.Get("currency"))
		assert.Equal(t, "10000", r.Form.Get("metadata[base_amount]"))
		assert.Equal(t, "320", r.Form.Get("metadata[processor_fee]"))
		assert.Equal(t, "true", r.Form.Get("metadata[donor_covers_fee]"))

		fmt.Fprint(w, `{
			"id": "pi_123",
			"client_secret": "pi_123_secret",
			"status": "requires_payment_method",
			"amount": 10320,
			"currency": "usd",
			"metadata": {"base_amount": "10000", "processor_fee": "320"}
		}`)
	})

	intent, err := s.CreatePaymentIntent(context.Background(), CreateIntentParams{
		Amount:         10000,
		Currency:       "usd",
		DonorCoversFee: true,
	}, "idem-123")
	require.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret", intent.ClientSecret)
	assert.Equal(t, IntentPending, intent.Status)
	assert.Equal(t, int64(10320), intent.Amount)
	assert.Equal(t, int64(320), intent.ProcessorFee)
	assert.Equal(t, int64(10000), intent.NetAmount)
}

func TestStripeConfirmPaymentRecoversFeeFromMetadata(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents/pi_123", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		fmt.Fprint(w, `{
			"id": "pi_123",
			"status": "succeeded",
			"amount": 10320,
			"currency": "usd",
			"metadata": {"processor_fee": "320"}
		}`)
	})

	intent, err := s.ConfirmPayment(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, IntentSuccess, intent.Status)
	assert.Equal(t, int64(320), intent.ProcessorFee)
	assert.Equal(t, int64(10000), intent.NetAmount)
}

func TestStripeRefundPayment(t *testing.T) {
	t.Run("charge takes precedence", func(t *testing.T) {
		s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/refunds", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "ch_55", r.Form.Get("charge"))
			assert.Empty(t, r.Form.Get("payment_intent"))
			assert.Equal(t, "2000", r.Form.Get("amount"))
			fmt.Fprint(w, `{"id":"re_1","status":"succeeded","amount":2000,"currency":"usd","charge":"ch_55"}`)
		})

		result, err := s.RefundPayment(context.Background(), RefundParams{
			PaymentIntentID: "pi_123",
			TransactionID:   "ch_55",
			Amount:          2000,
			Currency:        "usd",
		}, "refund-key")
		require.NoError(t, err)
		assert.Equal(t, "re_1", result.RefundID)
		assert.Equal(t, RefundSucceeded, result.Status)
		assert.Equal(t, "ch_55", result.TransactionID)
	})

	t.Run("no reference", func(t *testing.T) {
		s := NewStripeProcessor("sk", "whsec", "prod")
		_, err := s.RefundPayment(context.Background(), RefundParams{Amount: 100}, "k")
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeRefundFailed))
	})
}

func TestStripeCreateRecurringMandate(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/customers":
			assert.Equal(t, "sub-key-customer", r.Header.Get("Idempotency-Key"))
			fmt.Fprint(w, `{"id":"cus_9"}`)
		case "/subscriptions":
			assert.Equal(t, "sub-key", r.Header.Get("Idempotency-Key"))
			assert.Equal(t, "cus_9", r.Form.Get("customer"))
			assert.Equal(t, "month", r.Form.Get("items[0][price_data][recurring][interval]"))
			assert.Equal(t, "3", r.Form.Get("items[0][price_data][recurring][interval_count]"))
			fmt.Fprint(w, `{
				"id": "sub_1",
				"status": "active",
				"current_period_end": 1767225600,
				"items": {"data": [{"id": "si_1", "price": {
					"unit_amount": 2500, "currency": "usd",
					"recurring": {"interval": "month", "interval_count": 3}
				}}]}
			}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	mandate, err := s.CreateRecurringMandate(context.Background(), MandateParams{
		Amount:    2500,
		Currency:  "usd",
		Frequency: FrequencyQuarterly,
	}, "sub-key")
	require.NoError(t, err)

	assert.Equal(t, "sub_1", mandate.ID)
	assert.Equal(t, MandateActive, mandate.Status)
	assert.Equal(t, FrequencyQuarterly, mandate.Frequency)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), mandate.NextChargeDate)
}

func TestStripeErrorTranslation(t *testing.T) {
	serve := func(status int, body string) *StripeProcessor {
		return newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			fmt.Fprint(w, body)
		})
	}
	params := CreateIntentParams{Amount: 1000, Currency: "usd"}

	t.Run("insufficient funds", func(t *testing.T) {
		s := serve(402, `{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`)
		_, err := s.CreatePaymentIntent(context.Background(), params, "k")
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeInsufficientFunds))
		assert.False(t, IsTransient(err))

		perr := AsError("stripe", err)
		assert.Equal(t, "card_declined", perr.VendorCode)
		assert.Equal(t, 402, perr.HTTPStatus)
	})

	t.Run("expired card", func(t *testing.T) {
		s := serve(402, `{"error":{"type":"card_error","code":"expired_card","message":"Your card has expired."}}`)
		_, err := s.CreatePaymentIntent(context.Background(), params, "k")
		assert.True(t, IsCode(err, ErrCodeExpiredCard))
	})

	t.Run("idempotency conflict", func(t *testing.T) {
		s := serve(400, `{"error":{"type":"idempotency_error","message":"Keys for idempotent requests can only be used with the same parameters."}}`)
		_, err := s.CreatePaymentIntent(context.Background(), params, "k")
		assert.True(t, IsCode(err, ErrCodeIdempotencyKeyReused))
	})

	t.Run("bad api key", func(t *testing.T) {
		s := serve(401, `{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`)
		_, err := s.CreatePaymentIntent(context.Background(), params, "k")
		assert.True(t, IsCode(err, ErrCodeInvalidAPIKey))
		assert.False(t, IsTransient(err))
	})

	t.Run("rate limited is transient", func(t *testing.T) {
		s := serve(429, `{"error":{"type":"rate_limit_error","message":"Too many requests"}}`)
		_, err := s.CreatePaymentIntent(context.Background(), params, "k")
		assert.True(t, IsCode(err, ErrCodeAPIError))
		assert.True(t, IsTransient(err))
	})
}

func stripeSign(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeVerifyWebhookSignature(t *testing.T) {
	s := NewStripeProcessor("sk", "whsec_test", "prod")
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	ctx := context.Background()

	t.Run("valid signature", func(t *testing.T) {
		ok, err := s.VerifyWebhookSignature(ctx, payload, stripeSign("whsec_test", now.Unix(), payload))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("tampered payload", func(t *testing.T) {
		sig := stripeSign("whsec_test", now.Unix(), payload)
		ok, err := s.VerifyWebhookSignature(ctx, []byte(`{"id":"evt_1","amount":999999}`), sig)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong secret", func(t *testing.T) {
		ok, err := s.VerifyWebhookSignature(ctx, payload, stripeSign("whsec_other", now.Unix(), payload))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("stale timestamp rejected", func(t *testing.T) {
		old := now.Add(-6 * time.Minute).Unix()
		ok, err := s.VerifyWebhookSignature(ctx, payload, stripeSign("whsec_test", old, payload))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupt header", func(t *testing.T) {
		for _, sig := range []string{"", "garbage", "t=notanumber,v1=abc", "v1=abc"} {
			ok, err := s.VerifyWebhookSignature(ctx, payload, sig)
			require.NoError(t, err)
			assert.False(t, ok, "signature %q must be rejected", sig)
		}
	})
}

func TestStripeParseWebhookEvent(t *testing.T) {
	s := NewStripeProcessor("sk", "whsec", "prod")

	cases := []struct {
		vendorType string
		want       WebhookEventType
	}{
		{"payment_intent.succeeded", EventPaymentSucceeded},
		{"payment_intent.payment_failed", EventPaymentFailed},
		{"charge.refunded", EventPaymentRefunded},
		{"customer.subscription.created", EventMandateCreated},
		{"customer.subscription.deleted", EventMandateCancelled},
		{"invoice.paid", EventMandateCharged},
		{"account.updated", EventUnknown},
	}
	for _, tc := range cases {
		payload := fmt.Sprintf(`{"id":"evt_1","type":%q,"created":1767225600,"data":{"object":{"id":"pi_9"}}}`, tc.vendorType)
		event, err := s.ParseWebhookEvent([]byte(payload))
		require.NoError(t, err)
		assert.Equal(t, tc.want, event.Type, tc.vendorType)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, "pi_9", event.Data["id"])
	}

	_, err := s.ParseWebhookEvent([]byte(`not json`))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeWebhookProcessing))

	_, err = s.ParseWebhookEvent([]byte(`{"type":"payment_intent.succeeded"}`))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeWebhookProcessing))
}
