package handlers

import (
	"time"

	"github.com/geocoder89/chathub/internal/chat"
	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
)

// List shapes reference related records by id; detail shapes nest them.

type messageDetail struct {
	ID             string    `json:"message_id"`
	Sender         user.User `json:"sender"`
	ConversationID string    `json:"conversation"`
	Body           string    `json:"message_body"`
	SentAt         time.Time `json:"sent_at"`
}

func toMessageDetail(m message.Message, sender user.User) messageDetail {
	return messageDetail{
		ID:             m.ID,
		Sender:         sender,
		ConversationID: m.ConversationID,
		Body:           m.Body,
		SentAt:         m.SentAt,
	}
}

func toMessageDetails(items []message.Message, senders map[string]user.User) []messageDetail {
	out := make([]messageDetail, 0, len(items))
	for _, m := range items {
		sender, ok := senders[m.SenderID]
		if !ok {
			sender = user.User{ID: m.SenderID}
		}
		out = append(out, toMessageDetail(m, sender))
	}
	return out
}

type conversationDetail struct {
	ID           string            `json:"conversation_id"`
	Participants []user.User       `json:"participants"`
	Messages     []message.Message `json:"messages"`
	CreatedAt    time.Time         `json:"created_at"`
}

func toConversationDetail(d chat.ConversationDetail) conversationDetail {
	return conversationDetail{
		ID:           d.Conversation.ID,
		Participants: nonNil(d.Participants),
		Messages:     nonNil(d.Messages),
		CreatedAt:    d.Conversation.CreatedAt,
	}
}

type conversationList struct {
	Count   int                         `json:"count"`
	Results []conversation.Conversation `json:"results"`
}

type userList struct {
	Count   int         `json:"count"`
	Results []user.User `json:"results"`
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
