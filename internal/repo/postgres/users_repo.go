package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/geocoder89/chathub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

const userColumns = `id::text, first_name, last_name, email, password_hash, phone_number, role, created_at`

type UsersRepo struct {
	base
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{base{pool: pool, prom: prom}}
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.PhoneNumber, &u.Role, &u.CreatedAt)
	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, first_name, last_name, email, password_hash, phone_number, role, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.PhoneNumber, u.Role, u.CreatedAt,
		)
		return err
	})

	if IsUniqueViolation(err) {
		return user.User{}, user.ErrEmailTaken
	}
	if err != nil {
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("get user: %w", err)
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("get user by email: %w", err)
	}

	return u, nil
}

func (r *UsersRepo) GetMany(ctx context.Context, ids []string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}

	var found []user.User

	err := r.observe("users.get_many", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id::text = ANY($1)`, ids)
		if err != nil {
			return err
		}

		found, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.User, error) {
			return scanUser(row)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}

	byID := lo.KeyBy(found, func(u user.User) string { return u.ID })

	out := make([]user.User, 0, len(found))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}

	return out, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	var out []user.User

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return err
		}

		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.User, error) {
			return scanUser(row)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	if out == nil {
		out = []user.User{}
	}

	return out, nil
}

func (r *UsersRepo) Update(ctx context.Context, u user.User) (user.User, error) {
	var updated user.User

	err := r.observe("users.update", func() error {
		var err error
		updated, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users
				SET first_name = $2,
					last_name = $3,
					email = $4,
					password_hash = $5,
					phone_number = $6,
					role = $7
			WHERE id = $1
			RETURNING `+userColumns,
			u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.PhoneNumber, u.Role,
		))
		return err
	})

	switch {
	case errors.Is(err, pgx.ErrNoRows), isInvalidText(err):
		return user.User{}, user.ErrNotFound
	case IsUniqueViolation(err):
		return user.User{}, user.ErrEmailTaken
	case err != nil:
		return user.User{}, fmt.Errorf("update user: %w", err)
	}

	return updated, nil
}

// Delete relies on ON DELETE CASCADE for sent messages and memberships.
func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	var affected int64

	err := r.observe("users.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})

	if isInvalidText(err) {
		return user.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return user.ErrNotFound
	}

	return nil
}
