package notify

import (
	"time"

	"gorm.io/gorm"
)

// Notification types emitted by the ordering engine
const (
	TypeOrderFailed     = "order_failed"
	TypeFailoverSuccess = "failover_success"
)

// AdminNotification is a structured admin-facing event. Delivery/display is a
// collaborator's concern; this package only records and publishes.
type AdminNotification struct {
	gorm.Model     `json:"-"`
	NotificationID string    `gorm:"uniqueIndex" json:"notification_id"`
	Type           string    `gorm:"index" json:"type"` // order_failed, failover_success
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Metadata       string    `json:"metadata"` // JSON payload with per-attempt details
	Published      bool      `gorm:"index" json:"published"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
