package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/user"
)

type ConversationsRepo struct {
	s *Store
}

func (r *ConversationsRepo) Create(_ context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, id := range c.ParticipantIDs {
		if _, ok := r.s.users[id]; !ok {
			return conversation.Conversation{}, user.ErrNotFound
		}
	}

	c = cloneConversation(c)
	if _, exists := r.s.conversations[c.ID]; !exists {
		r.s.nextConvSeq++
		r.s.convSeq[c.ID] = r.s.nextConvSeq
	}
	r.s.conversations[c.ID] = c
	return cloneConversation(c), nil
}

func (r *ConversationsRepo) GetByID(_ context.Context, id string) (conversation.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.conversations[id]
	if !ok {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	return cloneConversation(c), nil
}

func (r *ConversationsRepo) ListForUser(_ context.Context, userID string, f conversation.ListFilter) ([]conversation.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]conversation.Conversation, 0)
	for _, c := range r.s.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		if f.Participant != nil && !c.HasParticipant(*f.Participant) {
			continue
		}
		out = append(out, cloneConversation(c))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return r.s.convSeq[out[i].ID] > r.s.convSeq[out[j].ID]
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (r *ConversationsRepo) AddParticipant(_ context.Context, conversationID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.conversations[conversationID]
	if !ok {
		return conversation.ErrNotFound
	}
	if _, ok := r.s.users[userID]; !ok {
		return user.ErrNotFound
	}

	if c.HasParticipant(userID) {
		return nil
	}

	c = cloneConversation(c)
	c.ParticipantIDs = append(c.ParticipantIDs, userID)
	r.s.conversations[conversationID] = c
	return nil
}

func (r *ConversationsRepo) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.conversations[conversationID]
	if !ok {
		return false, conversation.ErrNotFound
	}
	return c.HasParticipant(userID), nil
}
