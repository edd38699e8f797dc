package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/half-paul/donations2.0-sub001/internal/models"
)

// DonationRepository handles donation record database operations.
type DonationRepository struct {
	db *gorm.DB
}

func NewDonationRepository(db *gorm.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// Create creates a new donation record.
func (r *DonationRepository) Create(donation *models.Donation) error {
	return r.db.Create(donation).Error
}

// FindByOrderID returns a donation by order ID.
func (r *DonationRepository) FindByOrderID(orderID string) (*models.Donation, error) {
	var donation models.Donation
	if err := r.db.Where("order_id = ?", orderID).First(&donation).Error; err != nil {
		return nil, err
	}
	return &donation, nil
}

// FindByIntentID returns a donation by its vendor payment intent ID.
func (r *DonationRepository) FindByIntentID(processor, intentID string) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.Where("processor = ? AND payment_intent_id = ?", processor, intentID).
		First(&donation).Error
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

// FindByIdempotencyKey returns the donation previously created under a key,
// or nil when the key is unused.
func (r *DonationRepository) FindByIdempotencyKey(key string) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.Where("idempotency_key = ?", key).First(&donation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

// FindPending returns donations still awaiting vendor confirmation, oldest
// first, for the reconciler.
func (r *DonationRepository) FindPending(limit int) ([]models.Donation, error) {
	if limit <= 0 {
		limit = 100
	}
	var donations []models.Donation
	err := r.db.Where("status = ?", "pending").
		Order("created_at ASC").Limit(limit).Find(&donations).Error
	return donations, err
}

// UpdateStatus updates a donation's status by order ID.
func (r *DonationRepository) UpdateStatus(orderID, status string) error {
	return r.db.Model(&models.Donation{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error
}

// UpdateStatusByIntentID updates a donation's status by vendor intent ID.
func (r *DonationRepository) UpdateStatusByIntentID(processor, intentID, status string) error {
	return r.db.Model(&models.Donation{}).
		Where("processor = ? AND payment_intent_id = ?", processor, intentID).
		Update("status", status).Error
}

// AddRefundedAmount accumulates a refund against the donation.
func (r *DonationRepository) AddRefundedAmount(processor, intentID string, amount int64) error {
	return r.db.Model(&models.Donation{}).
		Where("processor = ? AND payment_intent_id = ?", processor, intentID).
		Update("refunded_amount", gorm.Expr("refunded_amount + ?", amount)).Error
}
