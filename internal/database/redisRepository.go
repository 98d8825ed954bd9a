package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/notification-hub/internal/entity"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyTTL = 24 * time.Hour
	statusTTL      = 7 * 24 * time.Hour
	retryTTL       = time.Hour
	processedTTL   = 24 * time.Hour
	templateTTL    = time.Hour
)

func idempotencyKey(requestID string) string {
	return fmt.Sprintf("idempotent:%s", requestID)
}

func bulkKey(requestID string) string {
	return fmt.Sprintf("bulk:%s", requestID)
}

func statusKey(notificationID string) string {
	return fmt.Sprintf("notification:%s", notificationID)
}

func retryKey(notificationID string) string {
	return fmt.Sprintf("retry:%s", notificationID)
}

func processedKey(notificationID string) string {
	return fmt.Sprintf("processed:%s", notificationID)
}

func templateKey(code, language, hash string) string {
	return fmt.Sprintf("template:%s:%s:%s", code, language, hash)
}

type idempotencyRepository struct {
	client *redis.Client
}

func NewIdempotencyRepository(client *redis.Client) IdempotencyRepository {
	return &idempotencyRepository{client: client}
}

func (r *idempotencyRepository) GetNotificationID(ctx context.Context, requestID string) (string, error) {
	id, err := r.client.Get(ctx, idempotencyKey(requestID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func (r *idempotencyRepository) SaveNotificationID(ctx context.Context, requestID, notificationID string) error {
	return r.client.Set(ctx, idempotencyKey(requestID), notificationID, idempotencyTTL).Err()
}

func (r *idempotencyRepository) GetBulkResult(ctx context.Context, requestID string) ([]string, error) {
	data, err := r.client.Get(ctx, bulkKey(requestID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bulk result: %w", err)
	}
	return ids, nil
}

func (r *idempotencyRepository) SaveBulkResult(ctx context.Context, requestID string, notificationIDs []string) error {
	data, err := json.Marshal(notificationIDs)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, bulkKey(requestID), data, idempotencyTTL).Err()
}

type statusRepository struct {
	client *redis.Client
}

func NewStatusRepository(client *redis.Client) StatusRepository {
	return &statusRepository{client: client}
}

func (r *statusRepository) Get(ctx context.Context, notificationID string) (*entity.NotificationStatus, error) {
	data, err := r.client.Get(ctx, statusKey(notificationID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, entity.ErrStatusNotFound
	}
	if err != nil {
		return nil, err
	}

	var status entity.NotificationStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}

func (r *statusRepository) SetInitial(ctx context.Context, notificationID string, channel entity.Channel) error {
	now := time.Now().UTC()
	return r.write(ctx, &entity.NotificationStatus{
		NotificationID: notificationID,
		Status:         entity.StatusPending,
		Channel:        channel,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// Upsert overwrites the stored status from an event. CreatedAt is fixed at
// the first write; only UpdatedAt moves on later transitions.
func (r *statusRepository) Upsert(ctx context.Context, event *entity.StatusEvent) error {
	createdAt := event.Timestamp
	if existing, err := r.Get(ctx, event.NotificationID); err == nil {
		createdAt = existing.CreatedAt
	} else if !errors.Is(err, entity.ErrStatusNotFound) {
		return err
	}

	return r.write(ctx, &entity.NotificationStatus{
		NotificationID: event.NotificationID,
		Status:         event.Status,
		Channel:        event.Channel,
		Error:          event.Error,
		CreatedAt:      createdAt,
		UpdatedAt:      time.Now().UTC(),
	})
}

func (r *statusRepository) write(ctx context.Context, status *entity.NotificationStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, statusKey(status.NotificationID), data, statusTTL).Err()
}

type retryRepository struct {
	client *redis.Client
}

func NewRetryRepository(client *redis.Client) RetryRepository {
	return &retryRepository{client: client}
}

func (r *retryRepository) Get(ctx context.Context, notificationID string) (*entity.RetryMetadata, error) {
	data, err := r.client.Get(ctx, retryKey(notificationID)).Result()
	if errors.Is(err, redis.Nil) {
		return &entity.RetryMetadata{RetryCount: 0, FirstAttempt: time.Now().UnixMilli()}, nil
	}
	if err != nil {
		return nil, err
	}

	var meta entity.RetryMetadata
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal retry metadata: %w", err)
	}
	return &meta, nil
}

func (r *retryRepository) Save(ctx context.Context, notificationID string, meta *entity.RetryMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, retryKey(notificationID), data, retryTTL).Err()
}

func (r *retryRepository) Clear(ctx context.Context, notificationID string) error {
	return r.client.Del(ctx, retryKey(notificationID)).Err()
}

func (r *retryRepository) IsProcessed(ctx context.Context, notificationID string) (bool, error) {
	exists, err := r.client.Exists(ctx, processedKey(notificationID)).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

func (r *retryRepository) MarkProcessed(ctx context.Context, notificationID string) error {
	return r.client.Set(ctx, processedKey(notificationID), "1", processedTTL).Err()
}

type templateCacheRepository struct {
	client *redis.Client
}

func NewTemplateCacheRepository(client *redis.Client) TemplateCacheRepository {
	return &templateCacheRepository{client: client}
}

func (r *templateCacheRepository) Get(ctx context.Context, code, language, hash string) (*entity.RenderedTemplate, error) {
	data, err := r.client.Get(ctx, templateKey(code, language, hash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tpl entity.RenderedTemplate
	if err := json.Unmarshal([]byte(data), &tpl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached template: %w", err)
	}
	return &tpl, nil
}

func (r *templateCacheRepository) Set(ctx context.Context, code, language, hash string, tpl *entity.RenderedTemplate) error {
	data, err := json.Marshal(tpl)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, templateKey(code, language, hash), data, templateTTL).Err()
}

// Invalidate drops every cached variables-hash for a template+language pair.
func (r *templateCacheRepository) Invalidate(ctx context.Context, code, language string) (int, error) {
	pattern := templateKey(code, language, "*")
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return 0, err
	}
	return len(keys), nil
}
