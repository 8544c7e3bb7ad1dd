package notify

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/simfinity/connect-api/internal/types"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&AdminNotification{}))
	return NewService(db, nil)
}

func TestOrderFailedRecordsNotification(t *testing.T) {
	service := newTestService(t)

	attempts := []types.FailoverAttempt{
		{ProviderID: "prov-1", ProviderName: "GlobalSim", Error: "Out of stock", ErrorCode: types.ErrCodeProviderError, ResponseMs: 140},
		{ProviderID: "prov-2", ProviderName: "Roamify", Error: "connection refused", ErrorCode: types.ErrCodeException, ResponseMs: 5000},
	}

	service.OrderFailed("buyer@example.com", 2, attempts)

	notifications, err := service.GetRecentNotifications(10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	notification := notifications[0]
	require.Equal(t, TypeOrderFailed, notification.Type)
	require.Contains(t, notification.Message, "buyer@example.com")
	require.Contains(t, notification.Message, "2 attempt(s)")
	require.False(t, notification.Published)

	var metadata []attemptMetadata
	require.NoError(t, json.Unmarshal([]byte(notification.Metadata), &metadata))
	require.Len(t, metadata, 2)
	require.Equal(t, "prov-1", metadata[0].ProviderID)
	require.Equal(t, types.ErrCodeException, metadata[1].ErrorCode)
}

func TestFailoverSuccessRecordsNotification(t *testing.T) {
	service := newTestService(t)

	attempts := []types.FailoverAttempt{
		{ProviderID: "prov-1", Error: "Out of stock"},
		{ProviderID: "prov-2", Success: true},
	}

	service.FailoverSuccess("prov-1", "prov-2", 1, attempts)

	notifications, err := service.GetRecentNotifications(10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, TypeFailoverSuccess, notifications[0].Type)
	require.Contains(t, notifications[0].Message, "prov-1")
	require.Contains(t, notifications[0].Message, "prov-2")
}

func TestUnpublishedNotificationsAwaitRedelivery(t *testing.T) {
	service := newTestService(t)

	// No NATS connection, so everything lands unpublished
	service.OrderFailed("a@example.com", 1, nil)
	service.OrderFailed("b@example.com", 1, nil)

	pending, err := service.GetDB().GetUnpublishedNotifications()
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, service.GetDB().MarkPublished(pending[0].NotificationID))

	pending, err = service.GetDB().GetUnpublishedNotifications()
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestGetRecentNotificationsDefaultLimit(t *testing.T) {
	service := newTestService(t)

	service.OrderFailed("a@example.com", 1, nil)

	notifications, err := service.GetRecentNotifications(0)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
}
