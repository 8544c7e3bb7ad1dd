package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Dispatcher retries publication of notifications that could not be delivered
// when they were recorded (NATS down, transient publish errors)
type Dispatcher struct {
	db            *Database
	conn          *nats.Conn
	retryInterval time.Duration
}

func NewDispatcher(db *Database, conn *nats.Conn) *Dispatcher {
	return &Dispatcher{
		db:            db,
		conn:          conn,
		retryInterval: time.Minute,
	}
}

// Start begins the redelivery loop
func (d *Dispatcher) Start(ctx context.Context) {
	logger := log.With().Str("component", "notification_dispatcher").Logger()

	if d.conn == nil {
		logger.Info().Msg("no NATS connection configured, dispatcher idle")
		return
	}

	logger.Info().Msg("starting notification dispatcher")

	ticker := time.NewTicker(d.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down notification dispatcher")
			return
		case <-ticker.C:
			if err := d.redeliverPending(); err != nil {
				logger.Error().Err(err).Msg("failed to redeliver pending notifications")
			}
		}
	}
}

func (d *Dispatcher) redeliverPending() error {
	logger := log.With().Str("component", "notification_dispatcher").Logger()

	pending, err := d.db.GetUnpublishedNotifications()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	logger.Info().Int("pending_count", len(pending)).Msg("redelivering pending notifications")

	for _, notification := range pending {
		payload, err := json.Marshal(notification)
		if err != nil {
			logger.Error().Err(err).
				Str("notification_id", notification.NotificationID).
				Msg("failed to marshal notification, skipping")
			continue
		}

		if err := d.conn.Publish(NATSSubject, payload); err != nil {
			logger.Warn().Err(err).
				Str("notification_id", notification.NotificationID).
				Msg("publish still failing, will retry next cycle")
			continue
		}

		if err := d.db.MarkPublished(notification.NotificationID); err != nil {
			logger.Error().Err(err).
				Str("notification_id", notification.NotificationID).
				Msg("failed to mark notification published")
		}
	}

	return nil
}
