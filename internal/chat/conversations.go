package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/chathub/internal/access"
	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ConversationDetail nests the participant records and the full message list.
type ConversationDetail struct {
	Conversation conversation.Conversation
	Participants []user.User
	Messages     []message.Message
}

// CreateConversation adds the caller to the new conversation along with any
// requested participants.
func (s *Service) CreateConversation(ctx context.Context, caller access.Caller, req conversation.CreateConversationRequest) (conversation.Conversation, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return conversation.Conversation{}, err
	}

	others := make([]string, 0, len(req.Participants))
	for _, raw := range req.Participants {
		id, err := uuid.Parse(raw)
		if err != nil {
			return conversation.Conversation{}, fmt.Errorf("%w: %s", ErrInvalidParticipant, raw)
		}
		others = append(others, id.String())
	}

	c := conversation.New(caller.UserID, others, s.now())

	created, err := s.convs.Create(ctx, c)
	if errors.Is(err, user.ErrNotFound) {
		return conversation.Conversation{}, ErrInvalidParticipant
	}

	return created, err
}

// ListConversations is collection level: it only needs an authenticated
// caller and is scoped to the caller's own conversations.
func (s *Service) ListConversations(ctx context.Context, caller access.Caller, f conversation.ListFilter) ([]conversation.Conversation, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return nil, err
	}

	return s.convs.ListForUser(ctx, caller.UserID, f)
}

// loadConversation resolves the conversation first so a missing id is
// NotFound and a foreign one is Forbidden.
func (s *Service) loadConversation(ctx context.Context, caller access.Caller, id string) (conversation.Conversation, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return conversation.Conversation{}, err
	}

	c, err := s.convs.GetByID(ctx, id)
	if err != nil {
		return conversation.Conversation{}, err
	}

	if err := access.Authorize(caller, c); err != nil {
		return conversation.Conversation{}, err
	}

	return c, nil
}

func (s *Service) GetConversation(ctx context.Context, caller access.Caller, id string) (ConversationDetail, error) {
	c, err := s.loadConversation(ctx, caller, id)
	if err != nil {
		return ConversationDetail{}, err
	}

	participants, err := s.users.GetMany(ctx, c.ParticipantIDs)
	if err != nil {
		return ConversationDetail{}, err
	}

	msgs, err := s.messages.ListByConversation(ctx, c.ID)
	if err != nil {
		return ConversationDetail{}, err
	}

	return ConversationDetail{Conversation: c, Participants: participants, Messages: msgs}, nil
}

func (s *Service) ListParticipants(ctx context.Context, caller access.Caller, id string) ([]user.User, error) {
	c, err := s.loadConversation(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	return s.users.GetMany(ctx, c.ParticipantIDs)
}

// AddParticipant lets any participant add any known user. Adding an existing
// participant succeeds without changing the set.
func (s *Service) AddParticipant(ctx context.Context, caller access.Caller, conversationID, userID string) error {
	c, err := s.loadConversation(ctx, caller, conversationID)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return user.ErrNotFound
	}

	if c.HasParticipant(id.String()) {
		return nil
	}

	return s.convs.AddParticipant(ctx, c.ID, id.String())
}

// SendMessage appends to a conversation the caller belongs to. The sender is
// always the caller.
func (s *Service) SendMessage(ctx context.Context, caller access.Caller, conversationID, body string) (message.Message, error) {
	c, err := s.loadConversation(ctx, caller, conversationID)
	if err != nil {
		return message.Message{}, err
	}

	return s.appendMessage(ctx, caller, c, body)
}

func (s *Service) appendMessage(ctx context.Context, caller access.Caller, c conversation.Conversation, body string) (message.Message, error) {
	m, err := s.messages.Append(ctx, message.New(c.ID, caller.UserID, body, s.now()))
	if err != nil {
		return message.Message{}, err
	}

	s.notifyMessageCreated(ctx, c, m)

	return m, nil
}

func (s *Service) notifyMessageCreated(ctx context.Context, c conversation.Conversation, m message.Message) {
	if s.notifier == nil {
		return
	}

	in := notificationsInput(m, lo.Uniq(c.ParticipantIDs))

	// delivery is best effort and never fails the write
	if err := s.notifier.MessageCreated(ctx, in); err != nil {
		s.log.WarnContext(ctx, "message notification failed",
			"err", err,
			"message_id", m.ID,
			"conversation_id", c.ID,
		)
	}
}
