package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

const tokenTypeBearer = "bearer"

// AuthService implements registration, login and user administration.
type AuthService struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	tokens ports.TokenIssuer
	logger zerolog.Logger
	now    func() time.Time

	// dummyHash is verified against when the username is unknown so that both
	// login failures cost one hash comparison.
	dummyHash string
}

func NewAuthService(repo ports.UserRepository, hasher ports.PasswordHasher, tokens ports.TokenIssuer, logger zerolog.Logger) *AuthService {
	dummy, err := hasher.Hash("butler-unknown-user")
	if err != nil {
		logger.Warn().Err(err).Msg("failed to prepare login timing hash")
	}
	return &AuthService{repo: repo, hasher: hasher, tokens: tokens, logger: logger, now: time.Now, dummyHash: dummy}
}

// Register creates a regular user. The input type carries no role, so public
// sign-ups can never produce an admin.
func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*domain.User, error) {
	return s.create(ctx, input.Username, input.Email, input.Password, domain.RoleUser)
}

// CreateUser is the admin path and accepts any known role.
func (s *AuthService) CreateUser(ctx context.Context, input ports.AdminCreateUserInput) (*domain.User, error) {
	role := domain.RoleUser
	if strings.TrimSpace(input.Role) != "" {
		r, err := domain.ParseRole(input.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}
	return s.create(ctx, input.Username, input.Email, input.Password, role)
}

func (s *AuthService) create(ctx context.Context, username, email, password string, role domain.Role) (*domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if !errors.Is(err, domain.ErrUserExists) {
			s.logger.Error().Err(err).Str("username", username).Msg("failed to create user")
		}
		return nil, err
	}

	s.logger.Info().Int64("user_id", created.ID).Str("username", created.Username).Str("role", string(created.Role)).Msg("user created")
	return created, nil
}

// Login checks credentials and issues an access token carrying the stored role.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(domain.Identity{ID: user.ID, Username: user.Username, Role: user.Role})
	if err != nil {
		return nil, err
	}

	return &ports.LoginResult{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresAt:   exp,
		User:        user,
	}, nil
}

// Profile returns the stored account behind identity.
func (s *AuthService) Profile(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", domain.ErrUnauthorized)
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, page ports.Page) ([]*domain.User, error) {
	return s.repo.List(ctx, page.Normalize())
}

// UpdateRole changes the role of an existing user. Only the known roles are accepted.
func (s *AuthService) UpdateRole(ctx context.Context, id int64, role string) (*domain.User, error) {
	r, err := domain.ParseRole(role)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.UpdateRole(ctx, id, r)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", id).Str("role", string(r)).Msg("user role updated")
	return user, nil
}
