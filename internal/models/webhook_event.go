package models

import "time"

// WebhookEventLog maps to the `webhook_events` table: the journal of
// normalized events already applied, keyed by (processor, event_id) as a
// second line of defense behind the fast deduper.
type WebhookEventLog struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Processor   string    `gorm:"column:processor;size:32;uniqueIndex:idx_processor_event" json:"processor"`
	EventID     string    `gorm:"column:event_id;size:128;uniqueIndex:idx_processor_event" json:"event_id"`
	EventType   string    `gorm:"column:event_type;size:64;index" json:"event_type"`
	Payload     string    `gorm:"column:payload;type:text" json:"payload"`
	ReceivedAt  time.Time `gorm:"column:received_at" json:"received_at"`
	ProcessedAt time.Time `gorm:"column:processed_at" json:"processed_at"`
}

func (WebhookEventLog) TableName() string {
	return "webhook_events"
}
