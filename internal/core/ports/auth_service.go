package ports

import (
	"context"
	"time"

	"github.com/aibutler/butler-api/internal/core/domain"
)

// RegisterInput is the public sign-up payload. It carries no role: public
// registrations always produce a regular user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// AdminCreateUserInput is the admin-only creation payload. An empty Role means user.
type AdminCreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// LoginResult is returned after a successful credential check.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	User        *domain.User
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	CreateUser(ctx context.Context, input AdminCreateUserInput) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Profile(ctx context.Context, identity domain.Identity) (*domain.User, error)
	ListUsers(ctx context.Context, page Page) ([]*domain.User, error)
	UpdateRole(ctx context.Context, id int64, role string) (*domain.User, error)
}
