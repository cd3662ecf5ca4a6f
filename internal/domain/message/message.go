package message

import (
	"errors"
	"time"

	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("message not found")

type Message struct {
	ID             string    `json:"message_id"`
	SenderID       string    `json:"sender"`
	ConversationID string    `json:"conversation"`
	Body           string    `json:"message_body"`
	SentAt         time.Time `json:"sent_at"`

	// Conversation is the owning conversation when the caller loaded it.
	Conversation *conversation.Conversation `json:"-"`
}

// Participants delegates to the owning conversation. An unloaded owner
// protects nothing, so every check against it fails.
func (m Message) Participants() []string {
	if m.Conversation == nil || m.Conversation.ID != m.ConversationID {
		return nil
	}
	return m.Conversation.Participants()
}

type SendMessageRequest struct {
	Body *string `json:"message_body" binding:"required"`
}

// CreateMessageRequest is the flat POST /messages body. A sender in the body
// is ignored; the caller is always the sender.
type CreateMessageRequest struct {
	ConversationID string  `json:"conversation" binding:"required,uuid"`
	Body           *string `json:"message_body" binding:"required"`
}

type ListFilter struct {
	Sender       *string
	Conversation *string
	SentAfter    *time.Time // inclusive
	SentBefore   *time.Time // inclusive
	Limit        int        // 0 means no limit
	Offset       int
}

// Matches reports whether m passes the sender/conversation/time filters.
// Paging fields are ignored.
func (f ListFilter) Matches(m Message) bool {
	if f.Sender != nil && m.SenderID != *f.Sender {
		return false
	}
	if f.Conversation != nil && m.ConversationID != *f.Conversation {
		return false
	}
	if f.SentAfter != nil && m.SentAt.Before(*f.SentAfter) {
		return false
	}
	if f.SentBefore != nil && m.SentAt.After(*f.SentBefore) {
		return false
	}
	return true
}

func New(conversationID, senderID, body string, now time.Time) Message {
	return Message{
		ID:             uuid.NewString(),
		SenderID:       senderID,
		ConversationID: conversationID,
		Body:           body,
		SentAt:         now.UTC().Truncate(time.Microsecond),
	}
}
