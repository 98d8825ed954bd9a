package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ds124wfegd/notification-hub/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/user-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": {
				"id": "user-1",
				"email": "user@example.com",
				"push_token": "token-1",
				"language": "de",
				"preferences": {"email": true, "push": false}
			}
		}`))
	}))
	defer server.Close()

	client := NewUserClient(server.URL, time.Second)
	user, err := client.GetUser(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, "de", user.Language)
	assert.True(t, user.AllowsChannel(entity.ChannelEmail))
	assert.False(t, user.AllowsChannel(entity.ChannelPush))
}

func TestGetUser_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewUserClient(server.URL, time.Second)
	_, err := client.GetUser(context.Background(), "missing")

	assert.ErrorIs(t, err, entity.ErrUserNotFound)
}

func TestGetUser_UnsuccessfulEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success": false, "error": "user service degraded"}`))
	}))
	defer server.Close()

	client := NewUserClient(server.URL, time.Second)
	_, err := client.GetUser(context.Background(), "user-1")

	assert.ErrorIs(t, err, entity.ErrInvalidResponse)
	assert.Contains(t, err.Error(), "user service degraded")
}

func TestGetUser_NullData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success": true, "data": null}`))
	}))
	defer server.Close()

	client := NewUserClient(server.URL, time.Second)
	user, err := client.GetUser(context.Background(), "user-1")

	assert.ErrorIs(t, err, entity.ErrInvalidResponse, "a null payload must not decode into a zero-value user")
	assert.Nil(t, user)
}

func TestGetUsersByPreference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users", r.URL.Path)
		assert.Equal(t, "push", r.URL.Query().Get("preference"))
		w.Write([]byte(`{"success": true, "data": {"user_ids": ["u-1", "u-2"]}}`))
	}))
	defer server.Close()

	client := NewUserClient(server.URL, time.Second)
	ids, err := client.GetUsersByPreference(context.Background(), entity.ChannelPush)

	require.NoError(t, err)
	assert.Equal(t, []string{"u-1", "u-2"}, ids)
}

func TestGetUsersByPreference_EmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success": true, "data": {"user_ids": []}}`))
	}))
	defer server.Close()

	client := NewUserClient(server.URL, time.Second)
	ids, err := client.GetUsersByPreference(context.Background(), entity.ChannelEmail)

	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestGetUsersByPreference_RejectsUnknownShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bare array", body: `{"success": true, "data": ["u-1", "u-2"]}`},
		{name: "wrong key", body: `{"success": true, "data": {"users": ["u-1"]}}`},
		{name: "object list", body: `{"success": true, "data": {"user_ids": [{"id": "u-1"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewUserClient(server.URL, time.Second)
			_, err := client.GetUsersByPreference(context.Background(), entity.ChannelEmail)

			assert.ErrorIs(t, err, entity.ErrInvalidResponse)
		})
	}
}

func TestGetUser_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewUserClient(server.URL, time.Second)
	_, err := client.GetUser(context.Background(), "user-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
