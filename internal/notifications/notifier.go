package notifications

import (
	"context"

	"github.com/geocoder89/chathub/internal/domain/message"
)

// MessageCreatedInput is what participants are told when a message lands.
type MessageCreatedInput struct {
	Message    message.Message
	Recipients []string
}

type Notifier interface {
	MessageCreated(ctx context.Context, input MessageCreatedInput) error
}
