package provider

import "context"

// Dispatch carries a fully rendered notification to a provider. To is the
// channel contact point: an email address or a push token.
type Dispatch struct {
	NotificationID string
	To             string
	Subject        string
	Body           string
	Data           map[string]string
}

type Provider interface {
	Name() string
	Send(ctx context.Context, dispatch *Dispatch) error
}
