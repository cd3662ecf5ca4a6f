// Package chat is the conversation and message core. Every operation takes
// the caller explicitly and runs the access guard before touching a store.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/geocoder89/chathub/internal/notifications"
	"github.com/geocoder89/chathub/internal/security"
)

var (
	// ErrInvalidParticipant means an initial participant id does not resolve.
	ErrInvalidParticipant = errors.New("participant does not exist")
	// ErrInvalidConversation means a message body named an unknown conversation.
	ErrInvalidConversation = errors.New("conversation does not exist")
)

type Service struct {
	users    UserStore
	convs    ConversationStore
	messages MessageStore

	notifier notifications.Notifier
	log      *slog.Logger
	now      func() time.Time
	hash     func(string) (string, error)
}

type Option func(*Service)

func WithNotifier(n notifications.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the source of created_at and sent_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPasswordHasher(hash func(string) (string, error)) Option {
	return func(s *Service) { s.hash = hash }
}

func NewService(users UserStore, convs ConversationStore, messages MessageStore, opts ...Option) *Service {
	s := &Service{
		users:    users,
		convs:    convs,
		messages: messages,
		log:      slog.Default(),
		now:      time.Now,
		hash:     security.HashPassword,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// EnsureAdmin creates the bootstrap admin unless a user with that email
// already exists.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, firstName, lastName string) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	_, err = s.createUser(ctx, user.CreateUserRequest{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  password,
		Role:      user.RoleAdmin,
	})

	// lost a race with another instance seeding the same admin
	if errors.Is(err, user.ErrEmailTaken) {
		return nil
	}

	return err
}
