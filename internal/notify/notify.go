package notify

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/simfinity/connect-api/internal/types"
	"github.com/simfinity/connect-api/pkg/response"
	"gorm.io/gorm"
)

// NATSSubject carries admin notification payloads to whatever dashboard or
// alerting consumer is subscribed
const NATSSubject = "admin.notifications"

// Service records admin-facing events and publishes them fire-and-forget.
// Every failure in here is logged and swallowed: a notification problem must
// never surface as an order failure.
type Service struct {
	db   *Database
	conn *nats.Conn // nil disables publishing
}

// NewService creates a notification service. conn may be nil when no NATS
// server is configured; notifications are then only persisted.
func NewService(gormDB *gorm.DB, conn *nats.Conn) *Service {
	return &Service{
		db:   NewDatabase(gormDB),
		conn: conn,
	}
}

type attemptMetadata struct {
	ProviderID   string `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ResponseMs   int64  `json:"response_ms"`
}

// OrderFailed records a total-failure event: every provider was exhausted (or
// none qualified) and a human has to intervene
func (s *Service) OrderFailed(customerEmail string, quantity int, attempts []types.FailoverAttempt) {
	title := "Order fulfillment failed"
	message := fmt.Sprintf("Order for %s (quantity %d) failed after %d attempt(s); manual remediation required",
		customerEmail, quantity, len(attempts))

	s.record(TypeOrderFailed, title, message, attempts)
}

// FailoverSuccess records that the primary provider failed but an alternative
// fulfilled the order
func (s *Service) FailoverSuccess(originalProviderID, finalProviderID string, failedAttempts int, attempts []types.FailoverAttempt) {
	title := "Order fulfilled via failover"
	message := fmt.Sprintf("Primary provider %s failed, order fulfilled by %s after %d failed attempt(s)",
		originalProviderID, finalProviderID, failedAttempts)

	s.record(TypeFailoverSuccess, title, message, attempts)
}

// GetRecentNotifications returns the latest admin events, newest first
func (s *Service) GetRecentNotifications(limit int) ([]AdminNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.db.GetRecentNotifications(limit)
}

func (s *Service) record(notificationType, title, message string, attempts []types.FailoverAttempt) {
	logger := log.With().
		Str("type", notificationType).
		Str("service", "notify").
		Logger()

	metadata := make([]attemptMetadata, len(attempts))
	for i, attempt := range attempts {
		metadata[i] = attemptMetadata{
			ProviderID:   attempt.ProviderID,
			ProviderName: attempt.ProviderName,
			Success:      attempt.Success,
			Error:        attempt.Error,
			ErrorCode:    attempt.ErrorCode,
			ResponseMs:   attempt.ResponseMs,
		}
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal notification metadata")
		metadataJSON = []byte("[]")
	}

	notification := &AdminNotification{
		NotificationID: "NTF_" + uuid.New().String(),
		Type:           notificationType,
		Title:          title,
		Message:        message,
		Metadata:       string(metadataJSON),
	}

	notification.Published = s.publish(notification)

	if err := s.db.CreateNotification(notification); err != nil {
		logger.Error().Err(err).Msg("failed to persist admin notification")
		return
	}

	logger.Info().
		Str("notification_id", notification.NotificationID).
		Str("title", title).
		Int("attempts", len(attempts)).
		Msg("admin notification recorded")
}

// publish pushes the notification to NATS. Returns whether delivery succeeded;
// failures are logged and left for the dispatcher to retry.
func (s *Service) publish(notification *AdminNotification) bool {
	if s.conn == nil {
		return false
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		log.Error().Err(err).
			Str("notification_id", notification.NotificationID).
			Str("service", "notify").
			Msg("failed to marshal notification payload")
		return false
	}

	if err := s.conn.Publish(NATSSubject, payload); err != nil {
		log.Warn().Err(err).
			Str("notification_id", notification.NotificationID).
			Str("service", "notify").
			Msg("failed to publish notification, will retry later")
		return false
	}
	return true
}

// GetDB exposes the notification database for the dispatcher
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for admin notification endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RecentNotificationsHandler handles GET requests for recent admin events
// Requires internal authentication
func (h *GinHandlers) RecentNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		notifications, err := h.service.GetRecentNotifications(limit)
		response.Handle(c, notifications, err)
	}
}
