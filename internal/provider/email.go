package provider

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"
)

type emailProvider struct {
	client *postmark.Client
	from   string
}

// NewEmailProvider sends email through Postmark's transactional API.
func NewEmailProvider(serverToken, accountToken, from string) Provider {
	return &emailProvider{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}
}

func (p *emailProvider) Name() string {
	return "postmark"
}

func (p *emailProvider) Send(ctx context.Context, dispatch *Dispatch) error {
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.from,
		To:       dispatch.To,
		Subject:  dispatch.Subject,
		HTMLBody: dispatch.Body,
		Tag:      "notification",
	})
	if err != nil {
		return fmt.Errorf("postmark send failed: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message)
	}
	return nil
}
