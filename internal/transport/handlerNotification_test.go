package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ds124wfegd/notification-hub/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIngestion struct {
	acceptResult *entity.AcceptResult
	acceptErr    error
	bulkResult   *entity.BulkAcceptResult
	bulkErr      error
	status       *entity.NotificationStatus
	statusErr    error
	lastRequest  *entity.NotificationRequest
}

func (s *stubIngestion) Accept(_ context.Context, req *entity.NotificationRequest) (*entity.AcceptResult, error) {
	s.lastRequest = req
	return s.acceptResult, s.acceptErr
}

func (s *stubIngestion) BulkAccept(_ context.Context, _ *entity.BulkNotificationRequest) (*entity.BulkAcceptResult, error) {
	return s.bulkResult, s.bulkErr
}

func (s *stubIngestion) Status(_ context.Context, _ string) (*entity.NotificationStatus, error) {
	return s.status, s.statusErr
}

func testRouter(svc *stubIngestion) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewNotificationHandler(svc)
	router.POST("/api/v1/notifications", handler.CreateNotification)
	router.GET("/api/v1/notifications/:id/status", handler.GetNotificationStatus)
	router.POST("/api/v1/notifications/bulk", handler.CreateBulkNotification)
	return router
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestCreateNotification(t *testing.T) {
	svc := &stubIngestion{acceptResult: &entity.AcceptResult{
		NotificationID: "n-1",
		Status:         entity.StatusPending,
	}}
	router := testRouter(svc)

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/notifications", gin.H{
		"notification_type": "email",
		"user_id":           "a81bc81b-dead-4e5d-abff-90865d1e13b1",
		"template_code":     "welcome",
		"variables":         gin.H{"name": "Alice"},
	})

	assert.Equal(t, http.StatusAccepted, recorder.Code)

	var result entity.AcceptResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, "n-1", result.NotificationID)
	assert.Equal(t, entity.StatusPending, result.Status)

	require.NotNil(t, svc.lastRequest)
	assert.Equal(t, entity.ChannelEmail, svc.lastRequest.Channel)
}

func TestCreateNotification_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payload gin.H
	}{
		{name: "missing channel", payload: gin.H{
			"user_id":       "a81bc81b-dead-4e5d-abff-90865d1e13b1",
			"template_code": "welcome",
			"variables":     gin.H{},
		}},
		{name: "unknown channel", payload: gin.H{
			"notification_type": "sms",
			"user_id":           "a81bc81b-dead-4e5d-abff-90865d1e13b1",
			"template_code":     "welcome",
			"variables":         gin.H{},
		}},
		{name: "user id not a uuid", payload: gin.H{
			"notification_type": "email",
			"user_id":           "user-1",
			"template_code":     "welcome",
			"variables":         gin.H{},
		}},
		{name: "missing variables", payload: gin.H{
			"notification_type": "email",
			"user_id":           "a81bc81b-dead-4e5d-abff-90865d1e13b1",
			"template_code":     "welcome",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubIngestion{}
			router := testRouter(svc)

			recorder := performJSON(t, router, http.MethodPost, "/api/v1/notifications", tt.payload)

			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Nil(t, svc.lastRequest, "invalid requests must not reach the service")
		})
	}
}

func TestCreateNotification_ServiceError(t *testing.T) {
	svc := &stubIngestion{acceptErr: errors.New("broker unavailable")}
	router := testRouter(svc)

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/notifications", gin.H{
		"notification_type": "email",
		"user_id":           "a81bc81b-dead-4e5d-abff-90865d1e13b1",
		"template_code":     "welcome",
		"variables":         gin.H{},
	})

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestGetNotificationStatus(t *testing.T) {
	svc := &stubIngestion{status: &entity.NotificationStatus{
		NotificationID: "n-1",
		Status:         entity.StatusDelivered,
		Channel:        entity.ChannelEmail,
	}}
	router := testRouter(svc)

	recorder := performJSON(t, router, http.MethodGet, "/api/v1/notifications/n-1/status", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var status entity.NotificationStatus
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &status))
	assert.Equal(t, entity.StatusDelivered, status.Status)
}

func TestGetNotificationStatus_NotFound(t *testing.T) {
	svc := &stubIngestion{statusErr: entity.ErrStatusNotFound}
	router := testRouter(svc)

	recorder := performJSON(t, router, http.MethodGet, "/api/v1/notifications/unknown/status", nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCreateBulkNotification(t *testing.T) {
	svc := &stubIngestion{bulkResult: &entity.BulkAcceptResult{
		Scheduled:       2,
		NotificationIDs: []string{"n-1", "n-2"},
	}}
	router := testRouter(svc)

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/notifications/bulk", gin.H{
		"notification_type": "push",
		"template_code":     "promo",
		"variables":         gin.H{"discount": 20},
	})

	assert.Equal(t, http.StatusAccepted, recorder.Code)

	var result entity.BulkAcceptResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Scheduled)
	assert.Len(t, result.NotificationIDs, 2)
}

func TestCreateBulkNotification_MissingTemplate(t *testing.T) {
	svc := &stubIngestion{}
	router := testRouter(svc)

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/notifications/bulk", gin.H{
		"notification_type": "push",
		"variables":         gin.H{},
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
