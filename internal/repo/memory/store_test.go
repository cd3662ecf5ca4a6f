package memory

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, s *Store, email string) user.User {
	t.Helper()

	u := user.New(user.CreateUserRequest{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Role:      user.RoleGuest,
	}, "hash", t0)

	created, err := s.Users().Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func TestUsersRepo_DuplicateEmail(t *testing.T) {
	s := NewStore()
	seedUser(t, s, "a@example.com")

	dup := user.New(user.CreateUserRequest{Email: "a@example.com", Role: user.RoleGuest}, "hash", t0)
	_, err := s.Users().Create(context.Background(), dup)
	require.ErrorIs(t, err, user.ErrEmailTaken)

	_, err = s.Users().GetByID(context.Background(), dup.ID)
	require.ErrorIs(t, err, user.ErrNotFound)
}

func TestUsersRepo_GetManyKeepsOrderAndSkipsMissing(t *testing.T) {
	s := NewStore()
	a := seedUser(t, s, "a@example.com")
	b := seedUser(t, s, "b@example.com")

	got, err := s.Users().GetMany(context.Background(), []string{b.ID, "missing", a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, b.ID, got[0].ID)
	require.Equal(t, a.ID, got[1].ID)
}

func TestConversationsRepo_CreateRejectsUnknownParticipant(t *testing.T) {
	s := NewStore()
	a := seedUser(t, s, "a@example.com")

	c := conversation.New(a.ID, []string{"00000000-0000-0000-0000-000000000001"}, t0)
	_, err := s.Conversations().Create(context.Background(), c)
	require.ErrorIs(t, err, user.ErrNotFound)

	_, err = s.Conversations().GetByID(context.Background(), c.ID)
	require.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestConversationsRepo_ListNewestFirstAndAddIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedUser(t, s, "a@example.com")
	b := seedUser(t, s, "b@example.com")

	older, err := s.Conversations().Create(ctx, conversation.New(a.ID, nil, t0))
	require.NoError(t, err)
	newer, err := s.Conversations().Create(ctx, conversation.New(a.ID, []string{b.ID}, t0.Add(time.Minute)))
	require.NoError(t, err)

	list, err := s.Conversations().ListForUser(ctx, a.ID, conversation.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)
	require.Equal(t, older.ID, list[1].ID)

	list, err = s.Conversations().ListForUser(ctx, a.ID, conversation.ListFilter{Participant: &b.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.Conversations().AddParticipant(ctx, older.ID, b.ID))
	require.NoError(t, s.Conversations().AddParticipant(ctx, older.ID, b.ID))

	got, err := s.Conversations().GetByID(ctx, older.ID)
	require.NoError(t, err)
	require.Equal(t, []string{a.ID, b.ID}, got.ParticipantIDs)

	ok, err := s.Conversations().IsParticipant(ctx, older.ID, b.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestConversationsRepo_TiesListNewestInsertionFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedUser(t, s, "a@example.com")

	var created []string
	for range 5 {
		c, err := s.Conversations().Create(ctx, conversation.New(a.ID, nil, t0))
		require.NoError(t, err)
		created = append(created, c.ID)
	}

	list, err := s.Conversations().ListForUser(ctx, a.ID, conversation.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, len(created))
	for i, c := range list {
		require.Equal(t, created[len(created)-1-i], c.ID)
	}
}

func TestMessagesRepo_OrderingVisibilityAndPaging(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedUser(t, s, "a@example.com")
	b := seedUser(t, s, "b@example.com")

	shared, err := s.Conversations().Create(ctx, conversation.New(a.ID, []string{b.ID}, t0))
	require.NoError(t, err)
	private, err := s.Conversations().Create(ctx, conversation.New(a.ID, nil, t0))
	require.NoError(t, err)

	// same timestamp: append order must win
	first, err := s.Messages().Append(ctx, message.New(shared.ID, a.ID, "first", t0))
	require.NoError(t, err)
	second, err := s.Messages().Append(ctx, message.New(shared.ID, b.ID, "second", t0))
	require.NoError(t, err)
	_, err = s.Messages().Append(ctx, message.New(private.ID, a.ID, "hidden from b", t0))
	require.NoError(t, err)
	earliest, err := s.Messages().Append(ctx, message.New(shared.ID, a.ID, "earliest", t0.Add(-time.Hour)))
	require.NoError(t, err)

	msgs, err := s.Messages().ListByConversation(ctx, shared.ID)
	require.NoError(t, err)
	require.Equal(t, []string{earliest.ID, first.ID, second.ID}, ids(msgs))

	visible, total, err := s.Messages().ListVisible(ctx, b.ID, message.ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Equal(t, []string{earliest.ID, first.ID, second.ID}, ids(visible))

	page, total, err := s.Messages().ListVisible(ctx, a.ID, message.ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Len(t, page, 2)

	empty, total, err := s.Messages().ListVisible(ctx, a.ID, message.ListFilter{Limit: 2, Offset: 10})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Empty(t, empty)
}

func TestUsersRepo_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedUser(t, s, "a@example.com")
	b := seedUser(t, s, "b@example.com")

	c, err := s.Conversations().Create(ctx, conversation.New(a.ID, []string{b.ID}, t0))
	require.NoError(t, err)
	_, err = s.Messages().Append(ctx, message.New(c.ID, b.ID, "bye", t0))
	require.NoError(t, err)
	kept, err := s.Messages().Append(ctx, message.New(c.ID, a.ID, "stay", t0))
	require.NoError(t, err)

	require.NoError(t, s.Users().Delete(ctx, b.ID))

	msgs, err := s.Messages().ListByConversation(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, []string{kept.ID}, ids(msgs))

	got, err := s.Conversations().GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, []string{a.ID}, got.ParticipantIDs)

	require.ErrorIs(t, s.Users().Delete(ctx, b.ID), user.ErrNotFound)
}

func ids(msgs []message.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
