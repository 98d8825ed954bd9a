package service

import (
	"context"
	"encoding/json"

	"github.com/ds124wfegd/notification-hub/internal/database"
	"github.com/ds124wfegd/notification-hub/internal/entity"
	"github.com/ds124wfegd/notification-hub/internal/rabbitMQ"

	"github.com/sirupsen/logrus"
)

// StatusListener persists worker status events so the gateway can answer
// status queries without talking to workers.
type StatusListener struct {
	status database.StatusRepository
}

func NewStatusListener(status database.StatusRepository) *StatusListener {
	return &StatusListener{status: status}
}

// Handle upserts one status event. Persist failures are dropped (nack without
// requeue): status is best-effort and must never amplify into a requeue loop.
func (l *StatusListener) Handle(ctx context.Context, body []byte) rabbitMQ.Verdict {
	var event entity.StatusEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logrus.Errorf("failed to unmarshal status event: %v", err)
		return rabbitMQ.Verdict{Action: rabbitMQ.Drop}
	}

	if err := l.status.Upsert(ctx, &event); err != nil {
		logrus.Errorf("failed to store status for %s: %v", event.NotificationID, err)
		return rabbitMQ.Verdict{Action: rabbitMQ.Drop}
	}

	return rabbitMQ.Verdict{Action: rabbitMQ.Ack}
}
