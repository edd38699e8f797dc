package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/half-paul/donations2.0-sub001/internal/models"
)

// RecurringPlanRepository handles recurring plan database operations.
type RecurringPlanRepository struct {
	db *gorm.DB
}

func NewRecurringPlanRepository(db *gorm.DB) *RecurringPlanRepository {
	return &RecurringPlanRepository{db: db}
}

func (r *RecurringPlanRepository) Create(plan *models.RecurringPlan) error {
	return r.db.Create(plan).Error
}

// FindByMandateID returns a plan by its vendor mandate ID.
func (r *RecurringPlanRepository) FindByMandateID(processor, mandateID string) (*models.RecurringPlan, error) {
	var plan models.RecurringPlan
	err := r.db.Where("processor = ? AND mandate_id = ?", processor, mandateID).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindByIdempotencyKey returns the plan previously created under a key, or
// nil when the key is unused.
func (r *RecurringPlanRepository) FindByIdempotencyKey(key string) (*models.RecurringPlan, error) {
	var plan models.RecurringPlan
	err := r.db.Where("idempotency_key = ?", key).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindActive returns active plans whose recorded next charge date is stale,
// for the reconciler to refresh against the vendor.
func (r *RecurringPlanRepository) FindActive(before time.Time, limit int) ([]models.RecurringPlan, error) {
	if limit <= 0 {
		limit = 100
	}
	var plans []models.RecurringPlan
	err := r.db.Where("status = ? AND next_charge_date < ?", "active", before).
		Order("next_charge_date ASC").Limit(limit).Find(&plans).Error
	return plans, err
}

// Update persists amount, frequency, status and next charge date changes.
func (r *RecurringPlanRepository) Update(plan *models.RecurringPlan) error {
	return r.db.Save(plan).Error
}

// UpdateStatus updates a plan's status by vendor mandate ID.
func (r *RecurringPlanRepository) UpdateStatus(processor, mandateID, status string) error {
	return r.db.Model(&models.RecurringPlan{}).
		Where("processor = ? AND mandate_id = ?", processor, mandateID).
		Update("status", status).Error
}

// UpdateNextChargeDate records the vendor-reported next charge date.
func (r *RecurringPlanRepository) UpdateNextChargeDate(processor, mandateID string, next time.Time) error {
	return r.db.Model(&models.RecurringPlan{}).
		Where("processor = ? AND mandate_id = ?", processor, mandateID).
		Update("next_charge_date", next).Error
}
