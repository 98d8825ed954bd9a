package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type pushProvider struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

// NewPushProvider sends push notifications through an FCM-compatible HTTP
// endpoint authenticated with a server key.
func NewPushProvider(endpoint, serverKey string, timeout time.Duration) Provider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &pushProvider{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *pushProvider) Name() string {
	return "fcm"
}

type pushResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

func (p *pushProvider) Send(ctx context.Context, dispatch *Dispatch) error {
	if dispatch.To == "" {
		return fmt.Errorf("push: no token supplied")
	}

	payload := map[string]interface{}{
		"to": dispatch.To,
		"notification": map[string]string{
			"title": dispatch.Subject,
			"body":  dispatch.Body,
		},
	}
	if len(dispatch.Data) > 0 {
		payload["data"] = dispatch.Data
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.serverKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push provider returned %d", resp.StatusCode)
	}

	var result pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("push: failed to decode response: %w", err)
	}
	for _, res := range result.Results {
		if res.Error != "" {
			return fmt.Errorf("push: provider rejected token: %s", res.Error)
		}
	}

	return nil
}
