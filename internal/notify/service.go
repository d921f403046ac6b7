// Package notify implements best-effort live delivery plus durable storage
// of per-user notifications.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/fy-st0rm/lobic/internal/apperrors"
	"github.com/fy-st0rm/lobic/internal/conns"
	"github.com/fy-st0rm/lobic/internal/domain"
	"github.com/fy-st0rm/lobic/internal/metrics"
	"github.com/fy-st0rm/lobic/internal/protocol"
	"github.com/fy-st0rm/lobic/internal/retry"
)

var persistPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("retrying notification persist", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

// Service pushes notifications to live connections and persists every one of
// them for offline pickup.
type Service struct {
	registry *conns.Registry
	store    domain.NotificationStore
	clock    clockwork.Clock
}

func NewService(registry *conns.Registry, store domain.NotificationStore, clock clockwork.Clock) *Service {
	return &Service{registry: registry, store: store, clock: clock}
}

// Notify builds a notification for userID and delivers it. Delivery is
// fire-and-forget: a disconnected target or a failing store never propagates
// an error to the triggering operation.
func (s *Service) Notify(ctx context.Context, userID, opCode string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode notification value", "op_code", opCode, "error", err)
		return
	}

	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		OpCode:    opCode,
		Value:     raw,
		CreatedAt: s.clock.Now().UTC(),
	}

	if sender, ok := s.registry.Lookup(userID); ok {
		sender.Send(protocol.Notification(n))
		metrics.NotificationsDeliveredLive.Inc()
	}

	err = retry.DoVoid(ctx, persistPolicy, retry.AlwaysRetry, func() error {
		return s.store.Insert(ctx, n)
	})
	if err != nil {
		metrics.NotificationPersistFailures.Inc()
		slog.ErrorContext(ctx, "failed to persist notification",
			"notification_id", n.ID, "user_id", userID, "op_code", opCode, "error", err)
		return
	}
	metrics.NotificationsPersisted.Inc()
}

// ListFor returns the stored notifications addressed to userID.
func (s *Service) ListFor(ctx context.Context, userID string) ([]domain.Notification, error) {
	notifications, err := s.store.ListFor(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list notifications", err)
	}
	return notifications, nil
}

// Delete acknowledges a notification, removing it from the store.
func (s *Service) Delete(ctx context.Context, notificationID string) error {
	err := s.store.Delete(ctx, notificationID)
	if errors.Is(err, domain.ErrNotificationNotFound) {
		return apperrors.NotFound("notification not found: " + notificationID)
	}
	if err != nil {
		return apperrors.Internal("failed to delete notification", err)
	}
	return nil
}
