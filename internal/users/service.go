package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	UserByEmail(ctx context.Context, email string) (User, error)
	InsertUser(ctx context.Context, email, passwordHash, name string) (bool, error)
}

// Service handles user account logic.
type Service struct {
	repo RepositoryPort
	cost int
}

// NewService builds a Service hashing passwords with the given bcrypt cost
// (bcrypt.DefaultCost when cost is not positive).
func NewService(repo RepositoryPort, cost int) *Service {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, cost: cost}
}

// EnsureAdmin creates the administrator account when no user holds its
// email. It never modifies an existing account. The returned bool reports
// whether the account was created.
func (s *Service) EnsureAdmin(ctx context.Context, admin Admin) (User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" || admin.Password == "" {
		return User{}, false, errors.New("users: admin email and password required")
	}

	user, err := s.repo.UserByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), s.cost)
	if err != nil {
		return User{}, false, err
	}
	created, err := s.repo.InsertUser(ctx, email, string(hash), strings.TrimSpace(admin.Name))
	if err != nil {
		return User{}, false, err
	}
	user, err = s.repo.UserByEmail(ctx, email)
	if err != nil {
		return User{}, false, err
	}
	return user, created, nil
}
