package service

import (
	"context"

	"github.com/ds124wfegd/notification-hub/internal/entity"
)

type IngestionService interface {
	Accept(ctx context.Context, req *entity.NotificationRequest) (*entity.AcceptResult, error)
	BulkAccept(ctx context.Context, req *entity.BulkNotificationRequest) (*entity.BulkAcceptResult, error)
	Status(ctx context.Context, notificationID string) (*entity.NotificationStatus, error)
}

// StatusNotifier emits status transitions from the worker. Publishing is
// fire-and-forget: failures are logged and swallowed, never surfaced into the
// delivery state machine.
type StatusNotifier interface {
	Pending(ctx context.Context, notificationID string)
	Delivered(ctx context.Context, notificationID string)
	Failed(ctx context.Context, notificationID, reason string)
}
