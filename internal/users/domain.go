package users

import (
	"database/sql"
	"errors"
)

// ErrNotFound indicates no user matched the lookup.
var ErrNotFound = errors.New("users: not found")

// User represents a stored user account.
type User struct {
	ID     int64         `db:"id"`
	Email  string        `db:"email"`
	Name   string        `db:"name"`
	RoleID sql.NullInt64 `db:"role_id"`
}

// Admin describes the bootstrap administrator account to create.
type Admin struct {
	Email    string
	Password string
	Name     string
}
