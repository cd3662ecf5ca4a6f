package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/geocoder89/chathub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `m.id::text, m.sender_id::text, m.conversation_id::text, m.body, m.sent_at`

type MessagesRepo struct {
	base
}

func NewMessagesRepo(pool *pgxpool.Pool, prom *observability.Prom) *MessagesRepo {
	return &MessagesRepo{base{pool: pool, prom: prom}}
}

func scanMessage(row pgx.Row, extra ...any) (message.Message, error) {
	var m message.Message
	dest := append([]any{&m.ID, &m.SenderID, &m.ConversationID, &m.Body, &m.SentAt}, extra...)
	err := row.Scan(dest...)
	return m, err
}

func (r *MessagesRepo) Append(ctx context.Context, m message.Message) (message.Message, error) {
	err := r.observe("messages.append", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO messages (id, conversation_id, sender_id, body, sent_at) VALUES ($1,$2,$3,$4,$5)`,
			m.ID, m.ConversationID, m.SenderID, m.Body, m.SentAt,
		)
		return err
	})

	if isForeignKeyViolation(err) {
		if constraintName(err) == "messages_sender_id_fkey" {
			return message.Message{}, user.ErrNotFound
		}
		return message.Message{}, conversation.ErrNotFound
	}
	if err != nil {
		return message.Message{}, fmt.Errorf("append message: %w", err)
	}

	m.Conversation = nil
	return m, nil
}

func (r *MessagesRepo) GetByID(ctx context.Context, id string) (message.Message, error) {
	var m message.Message

	err := r.observe("messages.get_by_id", func() error {
		var err error
		m, err = scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages m WHERE m.id = $1`, id))
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return message.Message{}, message.ErrNotFound
	}
	if err != nil {
		return message.Message{}, fmt.Errorf("get message: %w", err)
	}

	return m, nil
}

func (r *MessagesRepo) ListByConversation(ctx context.Context, conversationID string) ([]message.Message, error) {
	var out []message.Message

	err := r.observe("messages.list_by_conversation", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+messageColumns+`
			FROM messages m
			WHERE m.conversation_id = $1
			ORDER BY m.sent_at ASC, m.seq ASC`,
			conversationID,
		)
		if err != nil {
			return err
		}

		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (message.Message, error) {
			return scanMessage(row)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list conversation messages: %w", err)
	}

	if out == nil {
		out = []message.Message{}
	}

	return out, nil
}

// ListVisible pages through messages of every conversation userID is in.
// The total comes from a window count so one round trip serves both.
func (r *MessagesRepo) ListVisible(ctx context.Context, userID string, f message.ListFilter) ([]message.Message, int, error) {
	conds := []string{`EXISTS (
		SELECT 1 FROM conversation_participants p
		WHERE p.conversation_id = m.conversation_id AND p.user_id = $1
	)`}
	args := []any{userID}

	argsPosition := 2

	if f.Sender != nil {
		conds = append(conds, fmt.Sprintf("m.sender_id = $%d", argsPosition))
		args = append(args, *f.Sender)
		argsPosition++
	}

	if f.Conversation != nil {
		conds = append(conds, fmt.Sprintf("m.conversation_id = $%d", argsPosition))
		args = append(args, *f.Conversation)
		argsPosition++
	}

	if f.SentAfter != nil {
		conds = append(conds, fmt.Sprintf("m.sent_at >= $%d", argsPosition))
		args = append(args, *f.SentAfter)
		argsPosition++
	}

	if f.SentBefore != nil {
		conds = append(conds, fmt.Sprintf("m.sent_at <= $%d", argsPosition))
		args = append(args, *f.SentBefore)
		argsPosition++
	}

	where := " WHERE " + strings.Join(conds, " AND ")

	query := `SELECT ` + messageColumns + `, COUNT(*) OVER() AS total FROM messages m` + where +
		` ORDER BY m.sent_at ASC, m.seq ASC`

	pageArgs := args
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argsPosition)
		pageArgs = append(pageArgs, f.Limit)
		argsPosition++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argsPosition)
		pageArgs = append(pageArgs, f.Offset)
	}

	out := make([]message.Message, 0, max(f.Limit, 0))
	total := 0

	err := r.observe("messages.list_visible", func() error {
		rows, err := r.pool.Query(ctx, query, pageArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t int
			m, err := scanMessage(rows, &t)
			if err != nil {
				return err
			}
			total = t
			out = append(out, m)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list visible messages: %w", err)
	}

	// an offset past the end returns no rows and so no window count
	if len(out) == 0 && f.Offset > 0 {
		err = r.observe("messages.count_visible", func() error {
			return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages m`+where, args...).Scan(&total)
		})
		if err != nil {
			return nil, 0, fmt.Errorf("count visible messages: %w", err)
		}
	}

	return out, total, nil
}
