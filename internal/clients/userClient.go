package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ds124wfegd/notification-hub/internal/entity"
	"github.com/ds124wfegd/notification-hub/pkg/breaker"
)

type userClient struct {
	baseURL string
	client  *http.Client
	breaker *breaker.Breaker[json.RawMessage]
}

// NewUserClient builds the profile collaborator client. All calls go through
// one circuit breaker; the per-call timeout bounds latency independently of
// breaker state.
func NewUserClient(baseURL string, timeout time.Duration) UserClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &userClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker.New[json.RawMessage](breaker.Settings{Name: "user-service"}),
	}
}

func (c *userClient) GetUser(ctx context.Context, userID string) (*entity.User, error) {
	path := fmt.Sprintf("%s/api/v1/users/%s", c.baseURL, url.PathEscape(userID))

	data, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.get(ctx, path)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}

	var user entity.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidResponse, err)
	}
	return &user, nil
}

func (c *userClient) GetUsersByPreference(ctx context.Context, preference entity.Channel) ([]string, error) {
	path := fmt.Sprintf("%s/api/v1/users?preference=%s", c.baseURL, url.QueryEscape(string(preference)))

	data, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.get(ctx, path)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users with preference %s: %w", preference, err)
	}

	// Exactly one payload shape is accepted; anything else is an integration
	// bug on the collaborator's side.
	var payload struct {
		UserIDs []string `json:"user_ids"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.UserIDs == nil {
		return nil, fmt.Errorf("%w: expected {user_ids: [...]}", entity.ErrInvalidResponse)
	}
	return payload.UserIDs, nil
}

func (c *userClient) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, entity.ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return unwrap(body)
}
