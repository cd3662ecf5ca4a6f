package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/samber/lo"
)

type MessagesRepo struct {
	s *Store
}

func (r *MessagesRepo) Append(_ context.Context, m message.Message) (message.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[m.ConversationID]; !ok {
		return message.Message{}, conversation.ErrNotFound
	}
	if _, ok := r.s.users[m.SenderID]; !ok {
		return message.Message{}, user.ErrNotFound
	}

	m.Conversation = nil
	r.s.messages = append(r.s.messages, m)
	return m, nil
}

func (r *MessagesRepo) GetByID(_ context.Context, id string) (message.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := lo.Find(r.s.messages, func(m message.Message) bool { return m.ID == id })
	if !ok {
		return message.Message{}, message.ErrNotFound
	}
	return m, nil
}

func (r *MessagesRepo) ListByConversation(_ context.Context, conversationID string) ([]message.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := lo.Filter(r.s.messages, func(m message.Message, _ int) bool {
		return m.ConversationID == conversationID
	})
	sortBySentAt(out)
	return out, nil
}

func (r *MessagesRepo) ListVisible(_ context.Context, userID string, f message.ListFilter) ([]message.Message, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	visible := lo.Filter(r.s.messages, func(m message.Message, _ int) bool {
		c, ok := r.s.conversations[m.ConversationID]
		return ok && c.HasParticipant(userID) && f.Matches(m)
	})
	sortBySentAt(visible)

	total := len(visible)

	if f.Offset >= total {
		return []message.Message{}, total, nil
	}
	visible = visible[f.Offset:]

	if f.Limit > 0 && f.Limit < len(visible) {
		visible = visible[:f.Limit]
	}

	return visible, total, nil
}

// sortBySentAt is stable, so equal timestamps keep append order.
func sortBySentAt(items []message.Message) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SentAt.Before(items[j].SentAt)
	})
}
