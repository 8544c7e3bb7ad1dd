package migrations

import (
	"github.com/simfinity/connect-api/internal/notify"
	"github.com/simfinity/connect-api/internal/ordering"
	"gorm.io/gorm"
)

// AddPurchaseOrders creates the order, idempotency, and admin notification
// tables
func AddPurchaseOrders(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&ordering.PurchaseOrder{},
		&ordering.IdempotencyRecord{},
		&notify.AdminNotification{},
	); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_purchase_orders_client
		 ON purchase_orders(client_id, created_at)`,

		`CREATE INDEX IF NOT EXISTS idx_purchase_orders_status
		 ON purchase_orders(status)`,

		`CREATE INDEX IF NOT EXISTS idx_admin_notifications_type_created
		 ON admin_notifications(type, created_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
