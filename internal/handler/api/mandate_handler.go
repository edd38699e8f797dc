package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/half-paul/donations2.0-sub001/internal/models"
	"github.com/half-paul/donations2.0-sub001/internal/processor"
)

// MandateHandler drives recurring donation mandate lifecycles.
type MandateHandler struct {
	registry *processor.Registry
	retryer  *processor.Retryer
	repos    *Repos
	logger   *zap.Logger
}

func NewMandateHandler(registry *processor.Registry, retryer *processor.Retryer, repos *Repos, logger *zap.Logger) *MandateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MandateHandler{registry: registry, retryer: retryer, repos: repos, logger: logger}
}

type createMandateRequest struct {
	Processor      string              `json:"processor"`
	Amount         int64               `json:"amount"`
	Currency       string              `json:"currency"`
	Frequency      processor.Frequency `json:"frequency"`
	DonorEmail     string              `json:"donor_email"`
	PaymentMethod  string              `json:"payment_method"`
	Description    string              `json:"description"`
	IdempotencyKey string              `json:"idempotency_key"`
}

// Create is POST /api/mandates.
func (h *MandateHandler) Create(c echo.Context) error {
	var req createMandateRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Processor == "" || req.Amount <= 0 || req.Currency == "" {
		return errorJSON(c, http.StatusBadRequest, "processor, amount and currency are required")
	}
	if !req.Frequency.Valid() {
		return errorJSON(c, http.StatusBadRequest, "frequency must be monthly, quarterly or annually")
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	if existing, err := h.repos.Plan.FindByIdempotencyKey(req.IdempotencyKey); err != nil {
		h.logger.Error("Idempotency lookup failed", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "lookup failed")
	} else if existing != nil {
		return successResponse(c, existing)
	}

	proc, err := h.registry.Get(req.Processor)
	if err != nil {
		return processorError(c, err)
	}

	params := processor.MandateParams{
		Amount:        req.Amount,
		Currency:      req.Currency,
		Frequency:     req.Frequency,
		DonorEmail:    req.DonorEmail,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
	}

	var mandate *processor.RecurringMandate
	err = h.retryer.Do(c.Request().Context(), "create_recurring_mandate", func(ctx context.Context) error {
		var opErr error
		mandate, opErr = proc.CreateRecurringMandate(ctx, params, req.IdempotencyKey)
		return opErr
	})
	if err != nil {
		h.logger.Warn("Mandate creation failed",
			zap.String("processor", req.Processor), zap.Error(err))
		return processorError(c, err)
	}

	plan := &models.RecurringPlan{
		Processor:      proc.Name(),
		MandateID:      mandate.ID,
		IdempotencyKey: req.IdempotencyKey,
		Status:         string(mandate.Status),
		Amount:         mandate.Amount,
		Currency:       mandate.Currency,
		Frequency:      string(mandate.Frequency),
		DonorEmail:     req.DonorEmail,
		NextChargeDate: mandate.NextChargeDate,
	}
	if err := h.repos.Plan.Create(plan); err != nil {
		h.logger.Error("Failed to persist recurring plan", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to record plan")
	}

	return successResponse(c, mandate)
}

type updateMandateRequest struct {
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
}

// Update is PATCH /api/mandates/:processor/:mandateID.
func (h *MandateHandler) Update(c echo.Context) error {
	name := c.Param("processor")
	mandateID := c.Param("mandateID")

	var req updateMandateRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	proc, err := h.registry.Get(name)
	if err != nil {
		return processorError(c, err)
	}

	var mandate *processor.RecurringMandate
	err = h.retryer.Do(c.Request().Context(), "update_recurring_mandate", func(ctx context.Context) error {
		var opErr error
		mandate, opErr = proc.UpdateRecurringMandate(ctx, mandateID, processor.MandateUpdateParams{
			Amount:        req.Amount,
			PaymentMethod: req.PaymentMethod,
		})
		return opErr
	})
	if err != nil {
		h.logger.Warn("Mandate update failed",
			zap.String("processor", name), zap.String("mandate_id", mandateID), zap.Error(err))
		return processorError(c, err)
	}

	if plan, findErr := h.repos.Plan.FindByMandateID(name, mandateID); findErr == nil {
		plan.Amount = mandate.Amount
		plan.Status = string(mandate.Status)
		plan.NextChargeDate = mandate.NextChargeDate
		if saveErr := h.repos.Plan.Update(plan); saveErr != nil {
			h.logger.Error("Failed to update recurring plan record", zap.Error(saveErr))
		}
	}
	return successResponse(c, mandate)
}

// Cancel is DELETE /api/mandates/:processor/:mandateID. Cancellation is
// terminal; donors start a new mandate to resume giving.
func (h *MandateHandler) Cancel(c echo.Context) error {
	name := c.Param("processor")
	mandateID := c.Param("mandateID")

	proc, err := h.registry.Get(name)
	if err != nil {
		return processorError(c, err)
	}

	var mandate *processor.RecurringMandate
	err = h.retryer.Do(c.Request().Context(), "cancel_recurring_mandate", func(ctx context.Context) error {
		var opErr error
		mandate, opErr = proc.CancelRecurringMandate(ctx, mandateID)
		return opErr
	})
	if err != nil {
		h.logger.Warn("Mandate cancellation failed",
			zap.String("processor", name), zap.String("mandate_id", mandateID), zap.Error(err))
		return processorError(c, err)
	}

	if err := h.repos.Plan.UpdateStatus(name, mandateID, string(mandate.Status)); err != nil {
		h.logger.Error("Failed to update recurring plan status", zap.Error(err))
	}
	return successResponse(c, mandate)
}
