package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/notification-hub/internal/entity"
	"github.com/ds124wfegd/notification-hub/internal/rabbitMQ"

	"github.com/sirupsen/logrus"
)

type statusPublisher struct {
	queue   rabbitMQ.Publisher
	channel entity.Channel
}

func NewStatusPublisher(queue rabbitMQ.Publisher, channel entity.Channel) StatusNotifier {
	return &statusPublisher{queue: queue, channel: channel}
}

func (s *statusPublisher) Pending(ctx context.Context, notificationID string) {
	s.publish(ctx, notificationID, entity.StatusPending, "")
}

func (s *statusPublisher) Delivered(ctx context.Context, notificationID string) {
	s.publish(ctx, notificationID, entity.StatusDelivered, "")
}

func (s *statusPublisher) Failed(ctx context.Context, notificationID, reason string) {
	s.publish(ctx, notificationID, entity.StatusFailed, reason)
}

func (s *statusPublisher) publish(ctx context.Context, notificationID, status, reason string) {
	event := &entity.StatusEvent{
		NotificationID: notificationID,
		Status:         status,
		Channel:        s.channel,
		Error:          reason,
		Timestamp:      time.Now().UTC(),
	}

	// Status is best-effort: a publish failure must not break delivery.
	if err := s.queue.Publish(ctx, rabbitMQ.StatusRoutingKey, event); err != nil {
		logrus.Errorf("failed to publish %s status for %s: %v", status, notificationID, err)
	}
}
