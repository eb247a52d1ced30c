package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Repository provides SQL backed persistence on a handle or transaction.
type Repository struct {
	q sqlx.ExtContext
}

// NewRepository constructs a repository over q (*sqlx.DB or *sqlx.Tx).
func NewRepository(q sqlx.ExtContext) *Repository {
	return &Repository{q: q}
}

// UserByEmail returns the user with the given email.
func (r *Repository) UserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := sqlx.GetContext(ctx, r.q, &user, r.q.Rebind(`SELECT id, email, COALESCE(name, '') AS name, role_id
FROM users WHERE email = ?`), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("users: lookup %s: %w", email, err)
	}
	return user, nil
}

// InsertUser creates a user unless the email is taken. It reports whether a
// row was inserted.
func (r *Repository) InsertUser(ctx context.Context, email, passwordHash, name string) (bool, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`INSERT INTO users (email, password, name)
VALUES (?, ?, ?)
ON CONFLICT (email) DO NOTHING`), email, passwordHash, name)
	if err != nil {
		return false, fmt.Errorf("users: insert %s: %w", email, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
