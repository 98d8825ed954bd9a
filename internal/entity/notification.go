package entity

import (
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

type NotificationRequest struct {
	Channel      Channel                `json:"notification_type" binding:"required,oneof=email push"`
	RecipientID  string                 `json:"user_id" binding:"required,uuid"`
	TemplateCode string                 `json:"template_code" binding:"required,max=100"`
	Variables    map[string]interface{} `json:"variables" binding:"required"`
	RequestID    string                 `json:"request_id" binding:"omitempty,uuid"`
	Priority     int                    `json:"priority"`
	Language     string                 `json:"language" binding:"omitempty,max=10"`
	Metadata     map[string]interface{} `json:"metadata"`
}

type BulkNotificationRequest struct {
	Channel      Channel                `json:"notification_type" binding:"required,oneof=email push"`
	TemplateCode string                 `json:"template_code" binding:"required,max=100"`
	Variables    map[string]interface{} `json:"variables" binding:"required"`
	RequestID    string                 `json:"request_id" binding:"omitempty,uuid"`
	Priority     int                    `json:"priority"`
	Language     string                 `json:"language" binding:"omitempty,max=10"`
}

// NotificationEnvelope is the message published to a channel queue. It is
// consumed by exactly one worker per delivery attempt; redelivery is possible
// and guarded by the processed marker.
type NotificationEnvelope struct {
	NotificationID string                 `json:"notification_id"`
	RecipientID    string                 `json:"user_id"`
	TemplateCode   string                 `json:"template_code"`
	Variables      map[string]interface{} `json:"variables"`
	Priority       int                    `json:"priority,omitempty"`
	Language       string                 `json:"language,omitempty"`
}

type NotificationStatus struct {
	NotificationID string    `json:"notification_id"`
	Status         string    `json:"status"`
	Channel        Channel   `json:"channel"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StatusEvent is the transient wire message that drives a NotificationStatus
// write; it is not itself durably queried.
type StatusEvent struct {
	NotificationID string    `json:"notification_id"`
	Status         string    `json:"status"`
	Channel        Channel   `json:"channel"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type TemplateUpdatedEvent struct {
	TemplateCode string    `json:"template_code"`
	Language     string    `json:"language"`
	Version      int       `json:"version"`
	EventType    string    `json:"event_type"`
	Timestamp    time.Time `json:"timestamp"`
}

type RenderedTemplate struct {
	TemplateCode    string `json:"template_code"`
	Language        string `json:"language"`
	Version         int    `json:"version"`
	RenderedSubject string `json:"rendered_subject"`
	RenderedBody    string `json:"rendered_body"`
}

// RetryMetadata tracks delivery attempts for one notification. Absence in the
// store implies RetryCount = 0.
type RetryMetadata struct {
	RetryCount   int   `json:"retry_count"`
	FirstAttempt int64 `json:"first_attempt"`
}

type UserPreferences struct {
	Email *bool `json:"email,omitempty"`
	Push  *bool `json:"push,omitempty"`
}

type User struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	PushToken   string          `json:"push_token,omitempty"`
	Language    string          `json:"language,omitempty"`
	Preferences UserPreferences `json:"preferences"`
}

// AllowsChannel reports whether the user accepts notifications on the given
// channel. Unset preferences default to allowed.
func (u *User) AllowsChannel(channel Channel) bool {
	switch channel {
	case ChannelEmail:
		return u.Preferences.Email == nil || *u.Preferences.Email
	case ChannelPush:
		return u.Preferences.Push == nil || *u.Preferences.Push
	default:
		return false
	}
}

type AcceptResult struct {
	NotificationID string `json:"notification_id"`
	RequestID      string `json:"request_id,omitempty"`
	Status         string `json:"status"`
}

type BulkAcceptResult struct {
	Scheduled       int      `json:"scheduled"`
	NotificationIDs []string `json:"notification_ids"`
}
