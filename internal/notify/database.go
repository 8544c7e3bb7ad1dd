package notify

import (
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateNotification(notification *AdminNotification) error {
	return d.db.Create(notification).Error
}

func (d *Database) GetRecentNotifications(limit int) ([]AdminNotification, error) {
	var notifications []AdminNotification
	if err := d.db.Order("created_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (d *Database) GetUnpublishedNotifications() ([]AdminNotification, error) {
	var notifications []AdminNotification
	if err := d.db.Where("published = ?", false).
		Order("created_at ASC").
		Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (d *Database) MarkPublished(notificationID string) error {
	return d.db.Model(&AdminNotification{}).
		Where("notification_id = ?", notificationID).
		Updates(map[string]interface{}{
			"published":  true,
			"updated_at": time.Now(),
		}).Error
}
