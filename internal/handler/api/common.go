package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/half-paul/donations2.0-sub001/internal/processor"
	"github.com/half-paul/donations2.0-sub001/internal/repository"
)

// Repos bundles the repositories the staff API handlers read and write.
type Repos struct {
	Donation *repository.DonationRepository
	Plan     *repository.RecurringPlanRepository
	Event    *repository.WebhookEventRepository
}

func successResponse(c echo.Context, obj interface{}) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": true,
		"data":   obj,
	})
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]interface{}{
		"status": false,
		"error":  msg,
	})
}

// processorError converts an adapter failure into an HTTP response. Donor
// correctable failures carry the generic donor message plus the error code;
// the vendor's raw code and message never leave the server logs.
func processorError(c echo.Context, err error) error {
	perr := processor.AsError("", err)
	body := map[string]interface{}{
		"status": false,
		"error":  perr.DonorMessage(),
		"code":   string(perr.Code),
	}
	return c.JSON(processorHTTPStatus(perr.Code), body)
}

func processorHTTPStatus(code processor.ErrorCode) int {
	switch code {
	case processor.ErrCodeNetwork, processor.ErrCodeTimeout, processor.ErrCodeAPIError:
		return http.StatusBadGateway
	case processor.ErrCodeAuthenticationFailed, processor.ErrCodeInvalidAPIKey,
		processor.ErrCodeNotConfigured:
		return http.StatusServiceUnavailable
	case processor.ErrCodeCardDeclined, processor.ErrCodeInsufficientFunds,
		processor.ErrCodeExpiredCard, processor.ErrCodeInvalidCard,
		processor.ErrCodePaymentFailed:
		return http.StatusPaymentRequired
	case processor.ErrCodeValidation, processor.ErrCodeUnsupportedCurrency,
		processor.ErrCodeMandateUpdateUnsupported:
		return http.StatusBadRequest
	case processor.ErrCodeIdempotencyKeyReused:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
