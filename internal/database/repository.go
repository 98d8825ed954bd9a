package database

import (
	"context"

	"github.com/ds124wfegd/notification-hub/internal/entity"
)

// IdempotencyRepository dedups client retries of the same logical request.
type IdempotencyRepository interface {
	GetNotificationID(ctx context.Context, requestID string) (string, error)
	SaveNotificationID(ctx context.Context, requestID, notificationID string) error
	GetBulkResult(ctx context.Context, requestID string) ([]string, error)
	SaveBulkResult(ctx context.Context, requestID string, notificationIDs []string) error
}

// StatusRepository persists the latest known status per notification.
type StatusRepository interface {
	Get(ctx context.Context, notificationID string) (*entity.NotificationStatus, error)
	SetInitial(ctx context.Context, notificationID string, channel entity.Channel) error
	Upsert(ctx context.Context, event *entity.StatusEvent) error
}

// RetryRepository tracks per-message retry counters and processed markers.
type RetryRepository interface {
	Get(ctx context.Context, notificationID string) (*entity.RetryMetadata, error)
	Save(ctx context.Context, notificationID string, meta *entity.RetryMetadata) error
	Clear(ctx context.Context, notificationID string) error
	IsProcessed(ctx context.Context, notificationID string) (bool, error)
	MarkProcessed(ctx context.Context, notificationID string) error
}

// TemplateCacheRepository caches rendered templates keyed by code, language
// and a hash of the render variables.
type TemplateCacheRepository interface {
	Get(ctx context.Context, code, language, hash string) (*entity.RenderedTemplate, error)
	Set(ctx context.Context, code, language, hash string, tpl *entity.RenderedTemplate) error
	Invalidate(ctx context.Context, code, language string) (int, error)
}
