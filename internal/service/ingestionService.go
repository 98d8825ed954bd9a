package service

import (
	"context"
	"fmt"

	"github.com/ds124wfegd/notification-hub/internal/clients"
	"github.com/ds124wfegd/notification-hub/internal/database"
	"github.com/ds124wfegd/notification-hub/internal/entity"
	"github.com/ds124wfegd/notification-hub/internal/rabbitMQ"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ingestionService struct {
	idempotency database.IdempotencyRepository
	status      database.StatusRepository
	queue       rabbitMQ.Publisher
	users       clients.UserClient
}

func NewIngestionService(
	idempotency database.IdempotencyRepository,
	status database.StatusRepository,
	queue rabbitMQ.Publisher,
	users clients.UserClient,
) IngestionService {
	return &ingestionService{
		idempotency: idempotency,
		status:      status,
		queue:       queue,
		users:       users,
	}
}

func (s *ingestionService) Accept(ctx context.Context, req *entity.NotificationRequest) (*entity.AcceptResult, error) {
	if req.RequestID != "" {
		existing, err := s.idempotency.GetNotificationID(ctx, req.RequestID)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup failed: %w", err)
		}
		if existing != "" {
			return &entity.AcceptResult{
				NotificationID: existing,
				RequestID:      req.RequestID,
				Status:         entity.StatusPending,
			}, nil
		}
	}

	notificationID, err := s.enqueue(ctx, req.Channel, req.RecipientID, req.TemplateCode, req.Variables, req.Priority, req.Language)
	if err != nil {
		return nil, err
	}

	if req.RequestID != "" {
		if err := s.idempotency.SaveNotificationID(ctx, req.RequestID, notificationID); err != nil {
			return nil, fmt.Errorf("failed to store idempotency record: %w", err)
		}
	}

	logrus.Infof("created notification %s (%s)", notificationID, req.Channel)

	return &entity.AcceptResult{
		NotificationID: notificationID,
		RequestID:      req.RequestID,
		Status:         entity.StatusPending,
	}, nil
}

func (s *ingestionService) Status(ctx context.Context, notificationID string) (*entity.NotificationStatus, error) {
	return s.status.Get(ctx, notificationID)
}

func (s *ingestionService) BulkAccept(ctx context.Context, req *entity.BulkNotificationRequest) (*entity.BulkAcceptResult, error) {
	if req.RequestID != "" {
		existing, err := s.idempotency.GetBulkResult(ctx, req.RequestID)
		if err != nil {
			return nil, fmt.Errorf("bulk idempotency lookup failed: %w", err)
		}
		if existing != nil {
			logrus.Infof("bulk request %s already processed, returning stored result", req.RequestID)
			return &entity.BulkAcceptResult{
				Scheduled:       len(existing),
				NotificationIDs: existing,
			}, nil
		}
	}

	userIDs, err := s.users.GetUsersByPreference(ctx, req.Channel)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if len(userIDs) == 0 {
		logrus.Warnf("no users found with preference %s", req.Channel)
		return &entity.BulkAcceptResult{NotificationIDs: []string{}}, nil
	}

	notificationIDs := make([]string, 0, len(userIDs))
	var failed int
	for _, userID := range userIDs {
		notificationID, err := s.enqueue(ctx, req.Channel, userID, req.TemplateCode, req.Variables, req.Priority, req.Language)
		if err != nil {
			failed++
			logrus.Errorf("failed to schedule notification for user %s: %v", userID, err)
			continue
		}
		notificationIDs = append(notificationIDs, notificationID)
	}

	if req.RequestID != "" && len(notificationIDs) > 0 {
		if err := s.idempotency.SaveBulkResult(ctx, req.RequestID, notificationIDs); err != nil {
			return nil, fmt.Errorf("failed to store bulk idempotency record: %w", err)
		}
	}

	if failed > 0 {
		logrus.Warnf("bulk request completed with %d errors out of %d users", failed, len(userIDs))
	}
	logrus.Infof("bulk notification scheduled: %d/%d users (%s)", len(notificationIDs), len(userIDs), req.Channel)

	return &entity.BulkAcceptResult{
		Scheduled:       len(notificationIDs),
		NotificationIDs: notificationIDs,
	}, nil
}

// enqueue publishes an envelope and records the initial pending status. The
// status write happens only after a successful publish, so a publish failure
// never leaves a dangling status behind.
func (s *ingestionService) enqueue(ctx context.Context, channel entity.Channel, recipientID, templateCode string,
	variables map[string]interface{}, priority int, language string) (string, error) {

	notificationID := uuid.New().String()

	envelope := &entity.NotificationEnvelope{
		NotificationID: notificationID,
		RecipientID:    recipientID,
		TemplateCode:   templateCode,
		Variables:      variables,
		Priority:       priority,
		Language:       language,
	}

	queue := rabbitMQ.DeliveryQueue(string(channel))
	if err := s.queue.Publish(ctx, queue, envelope); err != nil {
		return "", fmt.Errorf("failed to publish notification: %w", err)
	}

	if err := s.status.SetInitial(ctx, notificationID, channel); err != nil {
		return "", fmt.Errorf("failed to record initial status: %w", err)
	}

	return notificationID, nil
}
