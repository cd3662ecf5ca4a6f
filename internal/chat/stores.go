package chat

import (
	"context"

	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
)

// UserStore holds user records. Create and Update report user.ErrEmailTaken
// when the email already belongs to another user.
type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	// GetMany skips ids that do not resolve and keeps the order of ids.
	GetMany(ctx context.Context, ids []string) ([]user.User, error)
	// List returns every user, oldest first.
	List(ctx context.Context) ([]user.User, error)
	Update(ctx context.Context, u user.User) (user.User, error)
	// Delete removes the user with their sent messages and memberships.
	Delete(ctx context.Context, id string) error
}

// ConversationStore holds conversations and their participant sets.
type ConversationStore interface {
	// Create stores the conversation and every initial membership atomically.
	// It fails with user.ErrNotFound if any participant is unknown.
	Create(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error)
	GetByID(ctx context.Context, id string) (conversation.Conversation, error)
	// ListForUser returns conversations containing userID, newest first.
	ListForUser(ctx context.Context, userID string, f conversation.ListFilter) ([]conversation.Conversation, error)
	// AddParticipant is an idempotent upsert.
	AddParticipant(ctx context.Context, conversationID, userID string) error
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// MessageStore is the append-only message log. Listings are ascending by
// sent_at with insertion order breaking ties.
type MessageStore interface {
	Append(ctx context.Context, m message.Message) (message.Message, error)
	GetByID(ctx context.Context, id string) (message.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]message.Message, error)
	// ListVisible returns one page of messages from every conversation userID
	// participates in, plus the unpaged total.
	ListVisible(ctx context.Context, userID string, f message.ListFilter) ([]message.Message, int, error)
}
