package postgres

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/chathub/internal/db"
	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	require.NoError(t, db.Migrate(dsn, slog.New(slog.NewTextHandler(io.Discard, nil))))

	pool, err := db.NewPool(context.Background(), db.PoolConfig{URL: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(), `TRUNCATE messages, conversation_participants, conversations, users CASCADE`)
	require.NoError(t, err)

	return pool
}

func createUser(t *testing.T, repo *UsersRepo, email string) user.User {
	t.Helper()

	u := user.New(user.CreateUserRequest{FirstName: "Pg", LastName: "User", Email: email, Role: user.RoleGuest}, "hash", t0)
	created, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func TestUsersRepo_Postgres(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	users := NewUsersRepo(pool, nil)

	a := createUser(t, users, "a@example.com")

	_, err := users.Create(ctx, user.New(user.CreateUserRequest{Email: "a@example.com", Role: user.RoleGuest}, "hash", t0))
	require.ErrorIs(t, err, user.ErrEmailTaken)

	got, err := users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.Email, got.Email)
	require.True(t, a.CreatedAt.Equal(got.CreatedAt))

	_, err = users.GetByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, user.ErrNotFound)

	phone := "+15550100"
	got.PhoneNumber = &phone
	updated, err := users.Update(ctx, got)
	require.NoError(t, err)
	require.Equal(t, phone, *updated.PhoneNumber)

	later := user.New(user.CreateUserRequest{FirstName: "Pg", LastName: "Later", Email: "b@example.com", Role: user.RoleGuest}, "hash", t0.Add(time.Minute))
	_, err = users.Create(ctx, later)
	require.NoError(t, err)

	all, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, a.ID, all[0].ID)
	require.Equal(t, later.ID, all[1].ID)
}

func TestConversationsAndMessages_Postgres(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	users := NewUsersRepo(pool, nil)
	convs := NewConversationsRepo(pool, nil)
	msgs := NewMessagesRepo(pool, nil)

	a := createUser(t, users, "a@example.com")
	b := createUser(t, users, "b@example.com")

	_, err := convs.Create(ctx, conversation.New(a.ID, []string{"00000000-0000-0000-0000-000000000001"}, t0))
	require.ErrorIs(t, err, user.ErrNotFound)

	c, err := convs.Create(ctx, conversation.New(a.ID, []string{b.ID}, t0))
	require.NoError(t, err)

	got, err := convs.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, []string{a.ID, b.ID}, got.ParticipantIDs)

	require.NoError(t, convs.AddParticipant(ctx, c.ID, b.ID))

	// same created_at: the later insert lists first
	tied, err := convs.Create(ctx, conversation.New(a.ID, nil, t0))
	require.NoError(t, err)
	listed, err := convs.ListForUser(ctx, a.ID, conversation.ListFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, tied.ID, listed[0].ID)
	require.Equal(t, c.ID, listed[1].ID)

	first, err := msgs.Append(ctx, message.New(c.ID, a.ID, "first", t0))
	require.NoError(t, err)
	second, err := msgs.Append(ctx, message.New(c.ID, b.ID, "second", t0))
	require.NoError(t, err)

	list, err := msgs.ListByConversation(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first.ID, list[0].ID)
	require.Equal(t, second.ID, list[1].ID)

	page, total, err := msgs.ListVisible(ctx, b.ID, message.ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, page, 1)
	require.Equal(t, second.ID, page[0].ID)

	empty, total, err := msgs.ListVisible(ctx, b.ID, message.ListFilter{Limit: 1, Offset: 5})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Empty(t, empty)

	require.NoError(t, users.Delete(ctx, b.ID))

	list, err = msgs.ListByConversation(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err = convs.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, []string{a.ID}, got.ParticipantIDs)
}
