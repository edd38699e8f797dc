package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/half-paul/donations2.0-sub001/internal/processor"
)

func testRegistry() *processor.Registry {
	return processor.NewRegistry(processor.Config{
		Fake: &processor.FakeConfig{WebhookSecret: "secret"},
	}, nil)
}

func getRequest(t *testing.T, target string, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func TestProcessorList(t *testing.T) {
	h := NewProcessorHandler(testRegistry(), nil)
	rec := getRequest(t, "/api/processors", h.List)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fake"`)
	assert.NotContains(t, rec.Body.String(), `"stripe"`)
}

func TestFeePreview(t *testing.T) {
	h := NewDonationHandler(testRegistry(), processor.NewRetryer(processor.DefaultRetryPolicy(), nil), &Repos{}, nil)

	t.Run("valid", func(t *testing.T) {
		rec := getRequest(t, "/api/fees?processor=fake&amount=10000&currency=usd&donor_covers_fee=true", h.Fees)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"calculated_fee":320`)
		assert.Contains(t, rec.Body.String(), `"total_amount":10320`)
	})

	t.Run("unconfigured processor", func(t *testing.T) {
		rec := getRequest(t, "/api/fees?processor=stripe&amount=10000&currency=usd", h.Fees)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("bad amount", func(t *testing.T) {
		rec := getRequest(t, "/api/fees?processor=fake&amount=abc&currency=usd", h.Fees)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unsupported currency", func(t *testing.T) {
		rec := getRequest(t, "/api/fees?processor=fake&amount=10000&currency=xyz", h.Fees)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProcessorHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, processorHTTPStatus(processor.ErrCodeTimeout))
	assert.Equal(t, http.StatusServiceUnavailable, processorHTTPStatus(processor.ErrCodeNotConfigured))
	assert.Equal(t, http.StatusPaymentRequired, processorHTTPStatus(processor.ErrCodeCardDeclined))
	assert.Equal(t, http.StatusConflict, processorHTTPStatus(processor.ErrCodeIdempotencyKeyReused))
	assert.Equal(t, http.StatusBadRequest, processorHTTPStatus(processor.ErrCodeMandateUpdateUnsupported))
	assert.Equal(t, http.StatusInternalServerError, processorHTTPStatus(processor.ErrCodeWebhookProcessing))
}
