package chat

import (
	"context"
	"errors"

	"github.com/geocoder89/chathub/internal/access"
	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/geocoder89/chathub/internal/notifications"
	"github.com/geocoder89/chathub/internal/query"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MessageList is one page of caller-visible messages with their senders.
type MessageList struct {
	Items   []message.Message
	Senders map[string]user.User
	Total   int
	Page    query.PageRequest
}

// CreateMessage is the flat create path. An unknown conversation is a
// validation failure; a foreign one is forbidden.
func (s *Service) CreateMessage(ctx context.Context, caller access.Caller, req message.CreateMessageRequest) (message.Message, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return message.Message{}, err
	}

	convID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		return message.Message{}, ErrInvalidConversation
	}

	c, err := s.convs.GetByID(ctx, convID.String())
	if errors.Is(err, conversation.ErrNotFound) {
		return message.Message{}, ErrInvalidConversation
	}
	if err != nil {
		return message.Message{}, err
	}

	if err := access.Authorize(caller, c); err != nil {
		return message.Message{}, err
	}

	var body string
	if req.Body != nil {
		body = *req.Body
	}

	return s.appendMessage(ctx, caller, c, body)
}

// GetMessage checks the caller against the message's owning conversation.
func (s *Service) GetMessage(ctx context.Context, caller access.Caller, id string) (message.Message, user.User, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return message.Message{}, user.User{}, err
	}

	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return message.Message{}, user.User{}, err
	}

	c, err := s.convs.GetByID(ctx, m.ConversationID)
	if err != nil && !errors.Is(err, conversation.ErrNotFound) {
		return message.Message{}, user.User{}, err
	}
	if err == nil {
		m.Conversation = &c
	}

	if err := access.Authorize(caller, m); err != nil {
		return message.Message{}, user.User{}, err
	}

	sender, err := s.users.GetByID(ctx, m.SenderID)
	if err != nil {
		return message.Message{}, user.User{}, err
	}

	return m, sender, nil
}

// ConversationMessages returns every message of one conversation, oldest
// first and unpaginated.
func (s *Service) ConversationMessages(ctx context.Context, caller access.Caller, conversationID string) ([]message.Message, error) {
	c, err := s.loadConversation(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}

	return s.messages.ListByConversation(ctx, c.ID)
}

// ListMessages pages through every message the caller can see, oldest first.
func (s *Service) ListMessages(ctx context.Context, caller access.Caller, f message.ListFilter, page query.PageRequest) (MessageList, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return MessageList{}, err
	}

	f.Limit = page.Size
	f.Offset = page.Offset()

	items, total, err := s.messages.ListVisible(ctx, caller.UserID, f)
	if err != nil {
		return MessageList{}, err
	}

	resolved, err := page.Resolve(total)
	if err != nil {
		return MessageList{}, err
	}

	// "last" is only known once the total is
	if resolved.Offset() != f.Offset {
		f.Offset = resolved.Offset()
		items, total, err = s.messages.ListVisible(ctx, caller.UserID, f)
		if err != nil {
			return MessageList{}, err
		}
	}

	senders, err := s.senders(ctx, items)
	if err != nil {
		return MessageList{}, err
	}

	return MessageList{Items: items, Senders: senders, Total: total, Page: resolved}, nil
}

// AllVisible is the unfiltered, unpaged visible log for a caller.
func (s *Service) AllVisible(ctx context.Context, caller access.Caller) ([]message.Message, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return nil, err
	}

	items, _, err := s.messages.ListVisible(ctx, caller.UserID, message.ListFilter{})
	return items, err
}

func (s *Service) senders(ctx context.Context, items []message.Message) (map[string]user.User, error) {
	ids := lo.Uniq(lo.Map(items, func(m message.Message, _ int) string { return m.SenderID }))
	if len(ids) == 0 {
		return map[string]user.User{}, nil
	}

	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	return lo.KeyBy(users, func(u user.User) string { return u.ID }), nil
}

func notificationsInput(m message.Message, recipients []string) notifications.MessageCreatedInput {
	return notifications.MessageCreatedInput{
		Message:    m,
		Recipients: recipients,
	}
}
