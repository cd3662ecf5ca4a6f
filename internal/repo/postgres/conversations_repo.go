package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/geocoder89/chathub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// participants are aggregated in join order so the creator stays first
const conversationSelect = `
	SELECT c.id::text,
		c.created_at,
		COALESCE(
			(SELECT array_agg(p.user_id::text ORDER BY p.joined_seq)
			FROM conversation_participants p
			WHERE p.conversation_id = c.id),
			'{}'
		) AS participants
	FROM conversations c`

type ConversationsRepo struct {
	base
}

func NewConversationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ConversationsRepo {
	return &ConversationsRepo{base{pool: pool, prom: prom}}
}

func scanConversation(row pgx.Row) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(&c.ID, &c.CreatedAt, &c.ParticipantIDs)
	return c, err
}

// Create inserts the conversation and its initial memberships in one
// transaction.
func (r *ConversationsRepo) Create(ctx context.Context, c conversation.Conversation) (out conversation.Conversation, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("conversations.create.insert", func() error {
		_, e := tx.Exec(ctx, `INSERT INTO conversations (id, created_at) VALUES ($1,$2)`, c.ID, c.CreatedAt)
		return e
	})
	if err != nil {
		err = fmt.Errorf("insert conversation: %w", err)
		return
	}

	for _, userID := range c.ParticipantIDs {
		err = r.observe("conversations.create.participant", func() error {
			_, e := tx.Exec(ctx,
				`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1,$2)
				ON CONFLICT DO NOTHING`,
				c.ID, userID,
			)
			return e
		})

		if isForeignKeyViolation(err) || isInvalidText(err) {
			err = user.ErrNotFound
			return
		}
		if err != nil {
			err = fmt.Errorf("insert participant: %w", err)
			return
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		return
	}

	out = c
	return
}

func (r *ConversationsRepo) GetByID(ctx context.Context, id string) (conversation.Conversation, error) {
	var c conversation.Conversation

	err := r.observe("conversations.get_by_id", func() error {
		var err error
		c, err = scanConversation(r.pool.QueryRow(ctx, conversationSelect+` WHERE c.id = $1`, id))
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}

	return c, nil
}

func (r *ConversationsRepo) ListForUser(ctx context.Context, userID string, f conversation.ListFilter) ([]conversation.Conversation, error) {
	query := conversationSelect + `
	WHERE EXISTS (
		SELECT 1 FROM conversation_participants me
		WHERE me.conversation_id = c.id AND me.user_id = $1
	)`
	args := []any{userID}

	if f.Participant != nil {
		query += `
	AND EXISTS (
		SELECT 1 FROM conversation_participants other
		WHERE other.conversation_id = c.id AND other.user_id = $2
	)`
		args = append(args, *f.Participant)
	}

	query += ` ORDER BY c.created_at DESC, c.seq DESC`

	var out []conversation.Conversation

	err := r.observe("conversations.list_for_user", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}

		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (conversation.Conversation, error) {
			return scanConversation(row)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	if out == nil {
		out = []conversation.Conversation{}
	}

	return out, nil
}

// AddParticipant is an upsert: adding an existing member is not an error.
func (r *ConversationsRepo) AddParticipant(ctx context.Context, conversationID, userID string) error {
	err := r.observe("conversations.add_participant", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1,$2)
			ON CONFLICT (conversation_id, user_id) DO NOTHING`,
			conversationID, userID,
		)
		return err
	})

	if isForeignKeyViolation(err) || isInvalidText(err) {
		return r.missingSide(ctx, conversationID)
	}
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}

	return nil
}

// missingSide reports which foreign key failed: the conversation or the user.
func (r *ConversationsRepo) missingSide(ctx context.Context, conversationID string) error {
	if _, err := r.GetByID(ctx, conversationID); err != nil {
		return err
	}
	return user.ErrNotFound
}

func (r *ConversationsRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var ok bool

	err := r.observe("conversations.is_participant", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM conversation_participants
				WHERE conversation_id = $1 AND user_id = $2
			)`,
			conversationID, userID,
		).Scan(&ok)
	})

	if isInvalidText(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}

	return ok, nil
}
