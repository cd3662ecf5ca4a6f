// Package memory is the in-process store used for local runs and tests.
package memory

import (
	"sync"

	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
)

// Store holds every record behind one lock so cross-entity writes such as
// cascades and conversation creation stay atomic.
type Store struct {
	mu sync.RWMutex

	users         map[string]user.User
	conversations map[string]conversation.Conversation
	// convSeq records creation order for created_at ties
	convSeq     map[string]uint64
	nextConvSeq uint64
	// messages is kept in append order
	messages []message.Message
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string]user.User),
		conversations: make(map[string]conversation.Conversation),
		convSeq:       make(map[string]uint64),
	}
}

func (s *Store) Users() *UsersRepo {
	return &UsersRepo{s: s}
}

func (s *Store) Conversations() *ConversationsRepo {
	return &ConversationsRepo{s: s}
}

func (s *Store) Messages() *MessagesRepo {
	return &MessagesRepo{s: s}
}

func cloneConversation(c conversation.Conversation) conversation.Conversation {
	c.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	return c
}
