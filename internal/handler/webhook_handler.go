package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/half-paul/donations2.0-sub001/internal/dedup"
	"github.com/half-paul/donations2.0-sub001/internal/models"
	"github.com/half-paul/donations2.0-sub001/internal/processor"
)

// DonationStore is the slice of the donation repository webhook processing
// needs; narrowed to an interface so tests can run without a database.
type DonationStore interface {
	UpdateStatusByIntentID(processor, intentID, status string) error
}

// PlanStore is the recurring-plan slice webhook processing needs.
type PlanStore interface {
	UpdateStatus(processor, mandateID, status string) error
}

// EventStore journals received events.
type EventStore interface {
	Create(event *models.WebhookEventLog) error
	MarkProcessed(processor, eventID string) error
	Processed(processor, eventID string) (bool, error)
}

// WebhookRepos bundles the stores webhook processing writes to.
type WebhookRepos struct {
	Donation DonationStore
	Plan     PlanStore
	Event    EventStore
}

// WebhookHandler receives vendor notifications, verifies their signatures,
// deduplicates them and applies the normalized event to local records.
type WebhookHandler struct {
	registry *processor.Registry
	deduper  dedup.EventDeduper
	repos    *WebhookRepos
	logger   *zap.Logger
}

func NewWebhookHandler(registry *processor.Registry, deduper dedup.EventDeduper, repos *WebhookRepos, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		registry: registry,
		deduper:  deduper,
		repos:    repos,
		logger:   logger,
	}
}

// Handle is POST /webhooks/:processor. A failed signature check is always
// answered with 401 so the vendor does not mark the delivery as accepted.
func (h *WebhookHandler) Handle(c echo.Context) error {
	name := c.Param("processor")

	proc, err := h.registry.Get(name)
	if err != nil {
		h.logger.Warn("Webhook for unconfigured processor", zap.String("processor", name))
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown processor"})
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	signature := extractSignature(name, c.Request().Header)
	ok, err := proc.VerifyWebhookSignature(c.Request().Context(), payload, signature)
	if err != nil {
		// Verification itself failed (e.g. PayPal's verify API unreachable).
		// Refusing with 5xx makes the vendor redeliver.
		h.logger.Error("Webhook verification error",
			zap.String("processor", name), zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "verification unavailable"})
	}
	if !ok {
		h.logger.Warn("Webhook signature rejected", zap.String("processor", name))
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
	}

	event, err := proc.ParseWebhookEvent(payload)
	if err != nil {
		h.logger.Warn("Webhook payload unparseable",
			zap.String("processor", name), zap.Error(err))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed payload"})
	}

	seen, err := h.deduper.Seen(c.Request().Context(), event.Processor, event.ID)
	if err != nil {
		h.logger.Warn("Webhook dedup check failed, processing anyway",
			zap.String("processor", name), zap.Error(err))
	}
	if seen {
		h.logger.Debug("Duplicate webhook absorbed",
			zap.String("processor", name), zap.String("event_id", event.ID))
		return c.JSON(http.StatusOK, map[string]string{"status": "duplicate"})
	}

	if err := h.recordEvent(event, payload); err != nil {
		// Unique-index violation: another delivery journaled the event
		// first. Absorb it only if that delivery finished applying;
		// otherwise this is a redelivery of a failed attempt.
		done, perr := h.repos.Event.Processed(event.Processor, event.ID)
		if perr != nil {
			h.logger.Error("Webhook journal check failed",
				zap.String("processor", name), zap.String("event_id", event.ID), zap.Error(perr))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		}
		if done {
			h.logger.Debug("Duplicate webhook absorbed via journal",
				zap.String("processor", name), zap.String("event_id", event.ID))
			return c.JSON(http.StatusOK, map[string]string{"status": "duplicate"})
		}
	}

	// Answering 5xx here leaves the event unmarked, so the vendor's
	// redelivery gets applied instead of absorbed.
	if err := h.applyEvent(event); err != nil {
		h.logger.Error("Webhook event apply failed",
			zap.String("processor", name),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "processing failed"})
	}

	if err := h.repos.Event.MarkProcessed(event.Processor, event.ID); err != nil {
		h.logger.Warn("Failed to mark webhook event processed", zap.Error(err))
	}
	if err := h.deduper.Mark(c.Request().Context(), event.Processor, event.ID); err != nil {
		h.logger.Warn("Failed to mark webhook event in deduper", zap.Error(err))
	}

	h.logger.Info("Webhook processed",
		zap.String("processor", name),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
	return c.JSON(http.StatusOK, map[string]string{"status": "processed"})
}

func (h *WebhookHandler) recordEvent(event *processor.WebhookEvent, payload []byte) error {
	return h.repos.Event.Create(&models.WebhookEventLog{
		Processor:  event.Processor,
		EventID:    event.ID,
		EventType:  string(event.Type),
		Payload:    string(payload),
		ReceivedAt: time.Now(),
	})
}

// applyEvent projects the normalized event onto donation and plan records.
// Unknown event types are acknowledged and logged, never failed.
func (h *WebhookHandler) applyEvent(event *processor.WebhookEvent) error {
	switch event.Type {
	case processor.EventPaymentSucceeded:
		return h.updateDonation(event, string(processor.IntentSuccess))
	case processor.EventPaymentFailed:
		return h.updateDonation(event, string(processor.IntentFailed))
	case processor.EventPaymentRefunded:
		return h.updateDonation(event, "refunded")
	case processor.EventMandateCancelled:
		return h.updatePlan(event, string(processor.MandateCancelled))
	case processor.EventMandateCreated, processor.EventMandateUpdated:
		return h.updatePlan(event, string(processor.MandateActive))
	case processor.EventMandateCharged:
		// Charge notifications carry the payment, not the plan; the
		// reconciler refreshes the plan's next charge date from the vendor.
		return nil
	default:
		h.logger.Info("Unrecognized webhook event type acknowledged",
			zap.String("processor", event.Processor),
			zap.String("event_id", event.ID))
		return nil
	}
}

func (h *WebhookHandler) updateDonation(event *processor.WebhookEvent, status string) error {
	intentID := objectID(event.Data, "payment")
	if intentID == "" {
		h.logger.Warn("Payment event without object id",
			zap.String("processor", event.Processor), zap.String("event_id", event.ID))
		return nil
	}
	return h.repos.Donation.UpdateStatusByIntentID(event.Processor, intentID, status)
}

func (h *WebhookHandler) updatePlan(event *processor.WebhookEvent, status string) error {
	mandateID := objectID(event.Data, "subscription")
	if mandateID == "" {
		h.logger.Warn("Mandate event without object id",
			zap.String("processor", event.Processor), zap.String("event_id", event.ID))
		return nil
	}
	return h.repos.Plan.UpdateStatus(event.Processor, mandateID, status)
}

// objectID finds the vendor object's identifier. Most vendors put it at the
// top of the event's data object; Square wraps the object under a type key
// ("payment", "subscription").
func objectID(data map[string]interface{}, wrapper string) string {
	if data == nil {
		return ""
	}
	if s, ok := data["id"].(string); ok && s != "" {
		return s
	}
	if inner, ok := data[wrapper].(map[string]interface{}); ok {
		s, _ := inner["id"].(string)
		return s
	}
	return ""
}

// extractSignature pulls the vendor's signature material out of the request
// headers. PayPal spreads it over five transmission headers, bundled here as
// JSON for the adapter.
func extractSignature(name string, h http.Header) string {
	switch name {
	case "stripe":
		return h.Get("Stripe-Signature")
	case "paypal":
		bundle := map[string]string{
			"transmission_id":   h.Get("Paypal-Transmission-Id"),
			"transmission_time": h.Get("Paypal-Transmission-Time"),
			"transmission_sig":  h.Get("Paypal-Transmission-Sig"),
			"cert_url":          h.Get("Paypal-Cert-Url"),
			"auth_algo":         h.Get("Paypal-Auth-Algo"),
		}
		raw, _ := json.Marshal(bundle)
		return string(raw)
	case "square":
		return h.Get("X-Square-Hmacsha256-Signature")
	default:
		return h.Get("X-Webhook-Signature")
	}
}
