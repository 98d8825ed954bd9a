package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/notification-hub/internal/clients"
	"github.com/ds124wfegd/notification-hub/internal/database"
	"github.com/ds124wfegd/notification-hub/internal/entity"
	"github.com/ds124wfegd/notification-hub/internal/provider"
	"github.com/ds124wfegd/notification-hub/internal/rabbitMQ"
	"github.com/ds124wfegd/notification-hub/pkg/breaker"
	"github.com/ds124wfegd/notification-hub/pkg/metrics"

	"github.com/sirupsen/logrus"
)

var retryBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

const backoffCeiling = 8 * time.Second

const defaultMaxRetries = 3

// DeliveryService owns the per-message retry/backoff state machine for one
// channel queue. Multiple instances run as competing consumers; idempotence
// is guaranteed by the processed marker, not by the broker.
type DeliveryService struct {
	channel    entity.Channel
	queue      string
	users      clients.UserClient
	templates  clients.TemplateRenderer
	dispatcher provider.Provider
	dispatchCB *breaker.Breaker[struct{}]
	retries    database.RetryRepository
	cache      database.TemplateCacheRepository
	status     StatusNotifier
	publisher  rabbitMQ.Publisher
	metrics    *metrics.Metrics
	maxRetries int
}

func NewDeliveryService(
	channel entity.Channel,
	users clients.UserClient,
	templates clients.TemplateRenderer,
	dispatcher provider.Provider,
	retries database.RetryRepository,
	cache database.TemplateCacheRepository,
	status StatusNotifier,
	publisher rabbitMQ.Publisher,
	m *metrics.Metrics,
	maxRetries int,
) *DeliveryService {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &DeliveryService{
		channel:    channel,
		queue:      rabbitMQ.DeliveryQueue(string(channel)),
		users:      users,
		templates:  templates,
		dispatcher: dispatcher,
		dispatchCB: breaker.New[struct{}](breaker.Settings{Name: dispatcher.Name() + "-dispatch"}),
		retries:    retries,
		cache:      cache,
		status:     status,
		publisher:  publisher,
		metrics:    m,
		maxRetries: maxRetries,
	}
}

// DispatchBreakerState is exposed on the worker health endpoint.
func (s *DeliveryService) DispatchBreakerState() string {
	return s.dispatchCB.State()
}

// HandleDelivery decides the fate of one queued envelope:
// ack on success or terminal failure, delayed nack-requeue on a transient
// failure below the retry bound, explicit dead-letter plus ack at the bound.
func (s *DeliveryService) HandleDelivery(ctx context.Context, body []byte) rabbitMQ.Verdict {
	var envelope entity.NotificationEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		logrus.Errorf("failed to unmarshal envelope, dropping: %v", err)
		return rabbitMQ.Verdict{Action: rabbitMQ.Drop}
	}
	if envelope.NotificationID == "" {
		// Without an id the retry and processed keys would all collide on the
		// empty suffix.
		logrus.Error("envelope without notification id, dropping")
		return rabbitMQ.Verdict{Action: rabbitMQ.Drop}
	}

	s.metrics.IncConsumed()

	meta, err := s.retries.Get(ctx, envelope.NotificationID)
	if err != nil {
		logrus.Warnf("failed to read retry metadata for %s: %v", envelope.NotificationID, err)
		meta = &entity.RetryMetadata{FirstAttempt: time.Now().UnixMilli()}
	}

	if meta.RetryCount >= s.maxRetries {
		return s.deadLetter(ctx, envelope.NotificationID, body)
	}

	if err := s.process(ctx, &envelope); err != nil {
		if errors.Is(err, entity.ErrOptedOut) || errors.Is(err, entity.ErrNoContactPoint) {
			// Business-terminal: recorded as failed, never retried.
			s.metrics.IncFailed()
			return rabbitMQ.Verdict{Action: rabbitMQ.Ack}
		}
		return s.retry(ctx, &envelope, body, meta, err)
	}

	s.metrics.IncDelivered()
	return rabbitMQ.Verdict{Action: rabbitMQ.Ack}
}

func (s *DeliveryService) process(ctx context.Context, envelope *entity.NotificationEnvelope) error {
	processed, err := s.retries.IsProcessed(ctx, envelope.NotificationID)
	if err != nil {
		return fmt.Errorf("failed to check processed marker: %w", err)
	}
	if processed {
		// Broker redelivery after a crash between dispatch and ack.
		logrus.Warnf("notification %s already processed, skipping", envelope.NotificationID)
		return nil
	}

	s.status.Pending(ctx, envelope.NotificationID)

	user, err := s.users.GetUser(ctx, envelope.RecipientID)
	if err != nil {
		return err
	}

	if !user.AllowsChannel(s.channel) {
		logrus.Warnf("user %s has disabled %s notifications", user.ID, s.channel)
		s.status.Failed(ctx, envelope.NotificationID, entity.ErrOptedOut.Error())
		return entity.ErrOptedOut
	}

	contact := s.contactPoint(user)
	if contact == "" {
		s.status.Failed(ctx, envelope.NotificationID, entity.ErrNoContactPoint.Error())
		return entity.ErrNoContactPoint
	}

	language := envelope.Language
	if language == "" {
		language = user.Language
	}
	if language == "" {
		language = "en"
	}

	tpl, err := s.templates.Render(ctx, envelope.TemplateCode, language, envelope.Variables)
	if err != nil {
		return err
	}

	dispatch := &provider.Dispatch{
		NotificationID: envelope.NotificationID,
		To:             contact,
		Subject:        tpl.RenderedSubject,
		Body:           tpl.RenderedBody,
		Data:           stringifyVariables(envelope.Variables),
	}

	if _, err := s.dispatchCB.Execute(func() (struct{}, error) {
		return struct{}{}, s.dispatcher.Send(ctx, dispatch)
	}); err != nil {
		return err
	}

	if err := s.retries.MarkProcessed(ctx, envelope.NotificationID); err != nil {
		return fmt.Errorf("failed to set processed marker: %w", err)
	}
	if err := s.retries.Clear(ctx, envelope.NotificationID); err != nil {
		logrus.Warnf("failed to clear retry metadata for %s: %v", envelope.NotificationID, err)
	}

	s.status.Delivered(ctx, envelope.NotificationID)
	logrus.Infof("delivered notification %s via %s", envelope.NotificationID, s.dispatcher.Name())
	return nil
}

func (s *DeliveryService) retry(ctx context.Context, envelope *entity.NotificationEnvelope, body []byte,
	meta *entity.RetryMetadata, cause error) rabbitMQ.Verdict {

	s.metrics.IncFailed()
	s.status.Failed(ctx, envelope.NotificationID, cause.Error())

	count := meta.RetryCount + 1
	if count >= s.maxRetries {
		return s.deadLetter(ctx, envelope.NotificationID, body)
	}

	if err := s.retries.Save(ctx, envelope.NotificationID, &entity.RetryMetadata{
		RetryCount:   count,
		FirstAttempt: meta.FirstAttempt,
	}); err != nil {
		logrus.Errorf("failed to persist retry metadata for %s: %v", envelope.NotificationID, err)
	}

	delay := backoffDelay(count)
	s.metrics.IncRetried()
	logrus.Warnf("retry %d/%d for %s after %s: %v", count, s.maxRetries, envelope.NotificationID, delay, cause)

	return rabbitMQ.Verdict{Action: rabbitMQ.Requeue, Delay: delay}
}

// deadLetter moves the message verbatim to the channel DLQ and drops it from
// the live queue.
func (s *DeliveryService) deadLetter(ctx context.Context, notificationID string, body []byte) rabbitMQ.Verdict {
	s.metrics.IncDeadLettered()
	logrus.Errorf("max retries exceeded for %s, moving to DLQ", notificationID)

	if err := s.publisher.PublishToQueue(ctx, rabbitMQ.DeadLetterQueue(s.queue), json.RawMessage(body)); err != nil {
		logrus.Errorf("failed to move %s to DLQ: %v", notificationID, err)
	}

	return rabbitMQ.Verdict{Action: rabbitMQ.Ack}
}

// HandleTemplateUpdate evicts cached renders for an updated template. These
// failures are logged only; they never touch the delivery path.
func (s *DeliveryService) HandleTemplateUpdate(ctx context.Context, body []byte) rabbitMQ.Verdict {
	var event entity.TemplateUpdatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logrus.Errorf("failed to unmarshal template update: %v", err)
		return rabbitMQ.Verdict{Action: rabbitMQ.Ack}
	}

	if event.TemplateCode == "" || event.Language == "" {
		return rabbitMQ.Verdict{Action: rabbitMQ.Ack}
	}

	dropped, err := s.cache.Invalidate(ctx, event.TemplateCode, event.Language)
	if err != nil {
		logrus.Warnf("cache invalidation failed for %s:%s: %v", event.TemplateCode, event.Language, err)
		return rabbitMQ.Verdict{Action: rabbitMQ.Ack}
	}

	if dropped > 0 {
		logrus.Debugf("invalidated %d cache entries for %s:%s", dropped, event.TemplateCode, event.Language)
	}
	return rabbitMQ.Verdict{Action: rabbitMQ.Ack}
}

func (s *DeliveryService) contactPoint(user *entity.User) string {
	if s.channel == entity.ChannelPush {
		return user.PushToken
	}
	return user.Email
}

func backoffDelay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return retryBackoff[0]
	}
	if retryCount > len(retryBackoff) {
		return backoffCeiling
	}
	return retryBackoff[retryCount-1]
}

func stringifyVariables(variables map[string]interface{}) map[string]string {
	result := make(map[string]string, len(variables))
	for key, value := range variables {
		result[key] = fmt.Sprint(value)
	}
	return result
}
