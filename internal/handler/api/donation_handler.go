package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/half-paul/donations2.0-sub001/internal/models"
	"github.com/half-paul/donations2.0-sub001/internal/processor"
)

// DonationHandler drives one-time donation flows through the configured
// payment processors.
type DonationHandler struct {
	registry *processor.Registry
	retryer  *processor.Retryer
	repos    *Repos
	logger   *zap.Logger
}

func NewDonationHandler(registry *processor.Registry, retryer *processor.Retryer, repos *Repos, logger *zap.Logger) *DonationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DonationHandler{registry: registry, retryer: retryer, repos: repos, logger: logger}
}

type createDonationRequest struct {
	Processor      string            `json:"processor"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	DonorCoversFee bool              `json:"donor_covers_fee"`
	DonorEmail     string            `json:"donor_email"`
	PaymentMethod  string            `json:"payment_method"`
	Description    string            `json:"description"`
	ReturnURL      string            `json:"return_url"`
	IdempotencyKey string            `json:"idempotency_key"`
	Metadata       map[string]string `json:"metadata"`
}

// Create is POST /api/donations. Replaying a request with the same
// idempotency key returns the original donation without touching the vendor.
func (h *DonationHandler) Create(c echo.Context) error {
	var req createDonationRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Processor == "" || req.Amount <= 0 || req.Currency == "" {
		return errorJSON(c, http.StatusBadRequest, "processor, amount and currency are required")
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	if existing, err := h.repos.Donation.FindByIdempotencyKey(req.IdempotencyKey); err != nil {
		h.logger.Error("Idempotency lookup failed", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "lookup failed")
	} else if existing != nil {
		return successResponse(c, existing)
	}

	proc, err := h.registry.Get(req.Processor)
	if err != nil {
		return processorError(c, err)
	}

	params := processor.CreateIntentParams{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		DonorEmail:     req.DonorEmail,
		DonorCoversFee: req.DonorCoversFee,
		PaymentMethod:  req.PaymentMethod,
		ReturnURL:      req.ReturnURL,
		Metadata:       req.Metadata,
	}

	var intent *processor.PaymentIntent
	err = h.retryer.Do(c.Request().Context(), "create_payment_intent", func(ctx context.Context) error {
		var opErr error
		intent, opErr = proc.CreatePaymentIntent(ctx, params, req.IdempotencyKey)
		return opErr
	})
	if err != nil {
		h.logger.Warn("Donation intent creation failed",
			zap.String("processor", req.Processor), zap.Error(err))
		return processorError(c, err)
	}

	donation := &models.Donation{
		OrderID:         uuid.NewString(),
		Processor:       proc.Name(),
		PaymentIntentID: intent.ID,
		IdempotencyKey:  req.IdempotencyKey,
		Status:          string(intent.Status),
		Amount:          intent.Amount,
		ProcessorFee:    intent.ProcessorFee,
		NetAmount:       intent.NetAmount,
		Currency:        intent.Currency,
		DonorCoversFee:  req.DonorCoversFee,
		DonorEmail:      req.DonorEmail,
	}
	if err := h.repos.Donation.Create(donation); err != nil {
		h.logger.Error("Failed to persist donation", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to record donation")
	}

	return successResponse(c, map[string]interface{}{
		"order_id":      donation.OrderID,
		"intent":        intent,
		"client_secret": intent.ClientSecret,
	})
}

// Confirm is POST /api/donations/:orderID/confirm — captures the intent after
// the donor completed the hosted payment step.
func (h *DonationHandler) Confirm(c echo.Context) error {
	donation, err := h.repos.Donation.FindByOrderID(c.Param("orderID"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, "donation not found")
	}

	proc, err := h.registry.Get(donation.Processor)
	if err != nil {
		return processorError(c, err)
	}

	var intent *processor.PaymentIntent
	err = h.retryer.Do(c.Request().Context(), "confirm_payment", func(ctx context.Context) error {
		var opErr error
		intent, opErr = proc.ConfirmPayment(ctx, donation.PaymentIntentID)
		return opErr
	})
	if err != nil {
		h.logger.Warn("Donation confirmation failed",
			zap.String("order_id", donation.OrderID), zap.Error(err))
		return processorError(c, err)
	}

	if err := h.repos.Donation.UpdateStatus(donation.OrderID, string(intent.Status)); err != nil {
		h.logger.Error("Failed to update donation status", zap.Error(err))
	}
	return successResponse(c, intent)
}

type refundRequest struct {
	Amount         int64  `json:"amount"` // 0 means full refund
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Refund is POST /api/donations/:orderID/refund.
func (h *DonationHandler) Refund(c echo.Context) error {
	donation, err := h.repos.Donation.FindByOrderID(c.Param("orderID"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, "donation not found")
	}

	var req refundRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	proc, err := h.registry.Get(donation.Processor)
	if err != nil {
		return processorError(c, err)
	}

	params := processor.RefundParams{
		PaymentIntentID: donation.PaymentIntentID,
		Amount:          req.Amount,
		Currency:        donation.Currency,
		Reason:          req.Reason,
	}

	var result *processor.RefundResult
	err = h.retryer.Do(c.Request().Context(), "refund_payment", func(ctx context.Context) error {
		var opErr error
		result, opErr = proc.RefundPayment(ctx, params, req.IdempotencyKey)
		return opErr
	})
	if err != nil {
		h.logger.Warn("Refund failed",
			zap.String("order_id", donation.OrderID), zap.Error(err))
		return processorError(c, err)
	}

	if err := h.repos.Donation.AddRefundedAmount(donation.Processor, donation.PaymentIntentID, result.Amount); err != nil {
		h.logger.Error("Failed to record refunded amount", zap.Error(err))
	}
	if result.Amount >= donation.Amount {
		if err := h.repos.Donation.UpdateStatus(donation.OrderID, "refunded"); err != nil {
			h.logger.Error("Failed to update donation status", zap.Error(err))
		}
	}
	return successResponse(c, result)
}

// Get is GET /api/donations/:orderID.
func (h *DonationHandler) Get(c echo.Context) error {
	donation, err := h.repos.Donation.FindByOrderID(c.Param("orderID"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, "donation not found")
	}
	return successResponse(c, donation)
}

// Fees is GET /api/fees?processor=&amount=&currency=&donor_covers_fee= — a
// pure fee preview, no vendor call involved.
func (h *DonationHandler) Fees(c echo.Context) error {
	proc, err := h.registry.Get(c.QueryParam("processor"))
	if err != nil {
		return processorError(c, err)
	}
	amount, err := strconv.ParseInt(c.QueryParam("amount"), 10, 64)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "amount must be an integer in minor units")
	}
	coversFee, _ := strconv.ParseBool(c.QueryParam("donor_covers_fee"))

	fees, err := proc.CalculateFees(amount, c.QueryParam("currency"), coversFee)
	if err != nil {
		return processorError(c, err)
	}
	return successResponse(c, fees)
}
