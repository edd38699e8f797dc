package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayPal(t *testing.T, mux *http.ServeMux) (*PayPalProcessor, *int32) {
	t.Helper()
	var tokenRequests int32
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenRequests, 1)
		assert.NotEmpty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"access_token":"tok_1","expires_in":3600}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	p := NewPayPalProcessor("client_abc", "secret_abc", "wh_1", "prod_1", true)
	p.baseURL = srv.URL
	return p, &tokenRequests
}

func decodeJSONBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestPayPalCreatePaymentIntent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok_1", r.Header.Get("Authorization"))
		assert.Equal(t, "order-key", r.Header.Get("PayPal-Request-Id"))

		body := decodeJSONBody(t, r)
		assert.Equal(t, "CAPTURE", body["intent"])
		units := body["purchase_units"].([]interface{})
		unit := units[0].(map[string]interface{})
		amount := unit["amount"].(map[string]interface{})
		assert.Equal(t, "USD", amount["currency_code"])
		// 10000 + 2.89% + 49¢ = 10338 → "103.38"
		assert.Equal(t, "103.38", amount["value"])

		var custom map[string]string
		require.NoError(t, json.Unmarshal([]byte(unit["custom_id"].(string)), &custom))
		assert.Equal(t, "10000", custom["base_amount"])
		assert.Equal(t, "338", custom["processor_fee"])

		fmt.Fprint(w, `{"id":"ORDER-1","status":"CREATED"}`)
	})
	p, tokenRequests := newTestPayPal(t, mux)

	intent, err := p.CreatePaymentIntent(context.Background(), CreateIntentParams{
		Amount:         10000,
		Currency:       "usd",
		DonorCoversFee: true,
	}, "order-key")
	require.NoError(t, err)

	assert.Equal(t, "ORDER-1", intent.ID)
	assert.Equal(t, IntentPending, intent.Status)
	assert.Equal(t, int64(10338), intent.Amount)
	assert.Equal(t, int64(338), intent.ProcessorFee)
	assert.Equal(t, int64(10000), intent.NetAmount)
	assert.Equal(t, int32(1), *tokenRequests)
}

func TestPayPalTokenCachedAcrossCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"ORDER-1","status":"CREATED"}`)
	})
	p, tokenRequests := newTestPayPal(t, mux)
	params := CreateIntentParams{Amount: 1000, Currency: "usd"}

	_, err := p.CreatePaymentIntent(context.Background(), params, "k1")
	require.NoError(t, err)
	_, err = p.CreatePaymentIntent(context.Background(), params, "k2")
	require.NoError(t, err)

	assert.Equal(t, int32(1), *tokenRequests, "second call must reuse the cached token")
}

func TestPayPalConfirmPaymentAlreadyCaptured(t *testing.T) {
	captured := `{
		"id": "ORDER-1",
		"status": "COMPLETED",
		"purchase_units": [{
			"amount": {"currency_code": "USD", "value": "103.38"},
			"payments": {"captures": [{"id": "CAP-1", "custom_id": "{\"processor_fee\":\"338\"}"}]}
		}]
	}`

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/checkout/orders/ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		fmt.Fprint(w, `{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`)
	})
	mux.HandleFunc("/v2/checkout/orders/ORDER-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		fmt.Fprint(w, captured)
	})
	p, _ := newTestPayPal(t, mux)

	intent, err := p.ConfirmPayment(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, IntentSuccess, intent.Status)
	assert.Equal(t, int64(10338), intent.Amount)
	assert.Equal(t, int64(338), intent.ProcessorFee)
}

func TestPayPalRefundResolvesCaptureFromOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/checkout/orders/ORDER-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-1"}]}}]}`)
	})
	mux.HandleFunc("/v2/payments/captures/CAP-1/refund", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refund-key", r.Header.Get("PayPal-Request-Id"))
		body := decodeJSONBody(t, r)
		amount := body["amount"].(map[string]interface{})
		assert.Equal(t, "20.00", amount["value"])
		fmt.Fprint(w, `{"id":"REF-1","status":"COMPLETED","amount":{"currency_code":"USD","value":"20.00"}}`)
	})
	p, _ := newTestPayPal(t, mux)

	result, err := p.RefundPayment(context.Background(), RefundParams{
		PaymentIntentID: "ORDER-1",
		Amount:          2000,
		Currency:        "usd",
	}, "refund-key")
	require.NoError(t, err)

	assert.Equal(t, "REF-1", result.RefundID)
	assert.Equal(t, RefundSucceeded, result.Status)
	assert.Equal(t, int64(2000), result.Amount)
	assert.Equal(t, "CAP-1", result.TransactionID)
}

func TestPayPalCreateRecurringMandate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/billing/plans", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sub-key-plan", r.Header.Get("PayPal-Request-Id"))
		body := decodeJSONBody(t, r)
		cycles := body["billing_cycles"].([]interface{})
		freq := cycles[0].(map[string]interface{})["frequency"].(map[string]interface{})
		assert.Equal(t, "MONTH", freq["interval_unit"])
		assert.Equal(t, float64(3), freq["interval_count"])
		fmt.Fprint(w, `{"id":"PLAN-1"}`)
	})
	mux.HandleFunc("/v1/billing/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		body := decodeJSONBody(t, r)
		assert.Equal(t, "PLAN-1", body["plan_id"])
		fmt.Fprint(w, `{
			"id": "SUB-1",
			"status": "ACTIVE",
			"custom_id": "quarterly",
			"billing_info": {"next_billing_time": "2026-11-30T00:00:00Z"}
		}`)
	})
	p, _ := newTestPayPal(t, mux)

	mandate, err := p.CreateRecurringMandate(context.Background(), MandateParams{
		Amount:    2500,
		Currency:  "usd",
		Frequency: FrequencyQuarterly,
	}, "sub-key")
	require.NoError(t, err)

	assert.Equal(t, "SUB-1", mandate.ID)
	assert.Equal(t, MandateActive, mandate.Status)
	assert.Equal(t, FrequencyQuarterly, mandate.Frequency)
	assert.Equal(t, mustDate(t, "2026-11-30"), mandate.NextChargeDate)
}

func TestPayPalMandatePlanStepReusedKey(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/billing/plans", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		fmt.Fprint(w, `{"name":"DUPLICATE_REQUEST_ID","details":[{"issue":"DUPLICATE_REQUEST_ID"}]}`)
	})
	p, _ := newTestPayPal(t, mux)

	_, err := p.CreateRecurringMandate(context.Background(), MandateParams{
		Amount:    2500,
		Currency:  "usd",
		Frequency: FrequencyMonthly,
	}, "sub-key")
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeIdempotencyKeyReused),
		"reused key on the plan step must resolve, not read as a creation failure")
}

func TestPayPalUpdateMandatePaymentMethodUnsupported(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/billing/subscriptions/SUB-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"SUB-1","status":"ACTIVE"}`)
	})
	p, _ := newTestPayPal(t, mux)

	_, err := p.UpdateRecurringMandate(context.Background(), "SUB-1", MandateUpdateParams{PaymentMethod: "new-source"})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeMandateUpdateUnsupported))
}

func TestPayPalVerifyWebhookSignature(t *testing.T) {
	var verdict string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		body := decodeJSONBody(t, r)
		assert.Equal(t, "wh_1", body["webhook_id"])
		assert.Equal(t, "trans-1", body["transmission_id"])
		fmt.Fprintf(w, `{"verification_status":%q}`, verdict)
	})
	p, _ := newTestPayPal(t, mux)
	ctx := context.Background()

	payload := []byte(`{"id":"WH-EVT-1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`)
	sig := `{"transmission_id":"trans-1","transmission_time":"2026-08-30T12:00:00Z","transmission_sig":"sig","cert_url":"https://api.paypal.com/cert","auth_algo":"SHA256withRSA"}`

	verdict = "SUCCESS"
	ok, err := p.VerifyWebhookSignature(ctx, payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	verdict = "FAILURE"
	ok, err = p.VerifyWebhookSignature(ctx, payload, sig)
	require.NoError(t, err)
	assert.False(t, ok)

	// Malformed or incomplete header bundles fail closed without a vendor call.
	ok, err = p.VerifyWebhookSignature(ctx, payload, "not json")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.VerifyWebhookSignature(ctx, payload, `{"transmission_id":"trans-1"}`)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPayPalParseWebhookEvent(t *testing.T) {
	p := NewPayPalProcessor("c", "s", "wh", "prod", true)

	cases := []struct {
		vendorType string
		want       WebhookEventType
	}{
		{"PAYMENT.CAPTURE.COMPLETED", EventPaymentSucceeded},
		{"PAYMENT.CAPTURE.DENIED", EventPaymentFailed},
		{"PAYMENT.CAPTURE.REFUNDED", EventPaymentRefunded},
		{"BILLING.SUBSCRIPTION.ACTIVATED", EventMandateCreated},
		{"BILLING.SUBSCRIPTION.CANCELLED", EventMandateCancelled},
		{"PAYMENT.SALE.COMPLETED", EventMandateCharged},
		{"CUSTOMER.DISPUTE.CREATED", EventUnknown},
	}
	for _, tc := range cases {
		payload := fmt.Sprintf(`{"id":"WH-1","event_type":%q,"create_time":"2026-08-30T10:00:00Z","resource":{"id":"CAP-1"}}`, tc.vendorType)
		event, err := p.ParseWebhookEvent([]byte(payload))
		require.NoError(t, err)
		assert.Equal(t, tc.want, event.Type, tc.vendorType)
		assert.Equal(t, "paypal", event.Processor)
		assert.Equal(t, "CAP-1", event.Data["id"])
	}
}

func TestPayPalErrorTranslation(t *testing.T) {
	t.Run("instrument declined", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v2/checkout/orders/ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(422)
			fmt.Fprint(w, `{"name":"UNPROCESSABLE_ENTITY","message":"declined","details":[{"issue":"INSTRUMENT_DECLINED"}]}`)
		})
		p, _ := newTestPayPal(t, mux)

		_, err := p.ConfirmPayment(context.Background(), "ORDER-1")
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeCardDeclined))
		assert.Equal(t, "UNPROCESSABLE_ENTITY/INSTRUMENT_DECLINED", AsError("paypal", err).VendorCode)
	})

	t.Run("duplicate request id", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(400)
			fmt.Fprint(w, `{"name":"DUPLICATE_REQUEST_ID","details":[{"issue":"DUPLICATE_REQUEST_ID"}]}`)
		})
		p, _ := newTestPayPal(t, mux)

		_, err := p.CreatePaymentIntent(context.Background(), CreateIntentParams{Amount: 1000, Currency: "usd"}, "k")
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeIdempotencyKeyReused))
	})

	t.Run("rejected credentials", func(t *testing.T) {
		mux := http.NewServeMux()
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)
		mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(401)
			fmt.Fprint(w, `{"error":"invalid_client","error_description":"Client Authentication failed"}`)
		})
		p := NewPayPalProcessor("bad", "creds", "wh", "prod", true)
		p.baseURL = srv.URL

		_, err := p.CreatePaymentIntent(context.Background(), CreateIntentParams{Amount: 1000, Currency: "usd"}, "k")
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeInvalidAPIKey))
		assert.Equal(t, "invalid_client", AsError("paypal", err).VendorCode)
	})
}

func TestDecimalConversion(t *testing.T) {
	assert.Equal(t, "103.38", minorToDecimal(10338, "usd"))
	assert.Equal(t, "103.05", minorToDecimal(10305, "usd"))
	assert.Equal(t, "1059", minorToDecimal(1059, "jpy"))

	assert.Equal(t, int64(10338), decimalToMinor("103.38", "usd"))
	assert.Equal(t, int64(10300), decimalToMinor("103", "usd"))
	assert.Equal(t, int64(1059), decimalToMinor("1059", "jpy"))
}
