package models

import "time"

// Donation maps to the `donations` table. It references the vendor's intent
// by ID; the adapter layer owns the intent itself.
type Donation struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID         string    `gorm:"column:order_id;size:64;uniqueIndex" json:"order_id"`
	Processor       string    `gorm:"column:processor;size:32;index" json:"processor"`
	PaymentIntentID string    `gorm:"column:payment_intent_id;size:128;index" json:"payment_intent_id"`
	IdempotencyKey  string    `gorm:"column:idempotency_key;size:128;uniqueIndex" json:"idempotency_key"`
	Status          string    `gorm:"column:status;size:32;index" json:"status"`
	Amount          int64     `gorm:"column:amount" json:"amount"`
	ProcessorFee    int64     `gorm:"column:processor_fee" json:"processor_fee"`
	NetAmount       int64     `gorm:"column:net_amount" json:"net_amount"`
	Currency        string    `gorm:"column:currency;size:8" json:"currency"`
	DonorCoversFee  bool      `gorm:"column:donor_covers_fee" json:"donor_covers_fee"`
	DonorEmail      string    `gorm:"column:donor_email;size:255" json:"donor_email"`
	RefundedAmount  int64     `gorm:"column:refunded_amount" json:"refunded_amount"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Donation) TableName() string {
	return "donations"
}
