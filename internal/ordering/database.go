package ordering

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/simfinity/connect-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetPurchaseOrder(orderID string) (*PurchaseOrder, error) {
	var order PurchaseOrder
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetPurchaseOrderByOrderIDAndClientID(orderID, clientID string) (*PurchaseOrder, error) {
	var order PurchaseOrder
	if err := d.db.Where("order_id = ? AND client_id = ?", orderID, clientID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) UpdatePurchaseOrder(order *PurchaseOrder) error {
	return d.db.Save(order).Error
}

// CreatePurchaseOrderWithIdempotency creates a new purchase order and its
// idempotency record in one transaction
func (d *Database) CreatePurchaseOrderWithIdempotency(order *PurchaseOrder, idempotencyKey string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		return err
	}

	record := IdempotencyRecord{
		IdempotencyKey: idempotencyKey,
		ResourceID:     order.OrderID,
		ResourceType:   "purchase_order",
		ExpiresAt:      time.Now().Add(24 * time.Hour),
	}

	if err := tx.Create(&record).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// GetIdempotencyRecord retrieves an idempotency record by key
func (d *Database) GetIdempotencyRecord(key string) (*IdempotencyRecord, error) {
	var record IdempotencyRecord
	if err := d.db.Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &record, nil
		}
		return nil, err
	}
	return &record, nil
}

// SaveFailoverOutcome writes back which provider was originally chosen, which
// one ultimately fulfilled the order, and the full attempts ledger
func (d *Database) SaveFailoverOutcome(orderID, originalProviderID, finalProviderID string, attempts []types.FailoverAttempt) error {
	ledger, err := json.Marshal(attempts)
	if err != nil {
		return err
	}

	result := d.db.Model(&PurchaseOrder{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"original_provider_id": originalProviderID,
			"final_provider_id":    finalProviderID,
			"failover_used":        originalProviderID != finalProviderID,
			"failover_attempts":    string(ledger),
			"updated_at":           time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("purchase order not found")
	}
	return nil
}
