package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/half-paul/donations2.0-sub001/internal/models"
)

// WebhookEventRepository persists received webhook events for audit and
// replay investigation.
type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(event *models.WebhookEventLog) error {
	return r.db.Create(event).Error
}

// MarkProcessed stamps the event as handled.
func (r *WebhookEventRepository) MarkProcessed(processor, eventID string) error {
	return r.db.Model(&models.WebhookEventLog{}).
		Where("processor = ? AND event_id = ?", processor, eventID).
		Update("processed_at", time.Now()).Error
}

// Processed reports whether the event was journaled and fully applied.
func (r *WebhookEventRepository) Processed(processor, eventID string) (bool, error) {
	var event models.WebhookEventLog
	err := r.db.Where("processor = ? AND event_id = ?", processor, eventID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !event.ProcessedAt.IsZero(), nil
}

// FindRecent returns the most recently received events for a processor.
func (r *WebhookEventRepository) FindRecent(processor string, limit int) ([]models.WebhookEventLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.WebhookEventLog
	err := r.db.Where("processor = ?", processor).
		Order("received_at DESC").Limit(limit).Find(&events).Error
	return events, err
}
