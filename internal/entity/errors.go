package entity

import "errors"

var (
	// Notification errors
	ErrStatusNotFound = errors.New("notification status not found")
	ErrUnknownChannel = errors.New("unknown notification channel")

	// Delivery errors
	ErrOptedOut        = errors.New("user has disabled notifications for this channel")
	ErrNoContactPoint  = errors.New("user has no contact point for this channel")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidResponse = errors.New("invalid collaborator response")
)
