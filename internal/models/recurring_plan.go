package models

import "time"

// RecurringPlan maps to the `recurring_plans` table. It references the
// vendor-side mandate by ID; cancelled plans are terminal and a new plan is
// created to resume giving.
type RecurringPlan struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Processor      string    `gorm:"column:processor;size:32;index" json:"processor"`
	MandateID      string    `gorm:"column:mandate_id;size:128;uniqueIndex" json:"mandate_id"`
	IdempotencyKey string    `gorm:"column:idempotency_key;size:128;uniqueIndex" json:"idempotency_key"`
	Status         string    `gorm:"column:status;size:32;index" json:"status"`
	Amount         int64     `gorm:"column:amount" json:"amount"`
	Currency       string    `gorm:"column:currency;size:8" json:"currency"`
	Frequency      string    `gorm:"column:frequency;size:16" json:"frequency"`
	DonorEmail     string    `gorm:"column:donor_email;size:255" json:"donor_email"`
	NextChargeDate time.Time `gorm:"column:next_charge_date" json:"next_charge_date"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (RecurringPlan) TableName() string {
	return "recurring_plans"
}
