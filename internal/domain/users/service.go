package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paddleapp/paddle/pkg/auth"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("username and password are required")
)

// Service implements registration, login and balance lookups.
type Service struct {
	repo            Repository
	signer          *auth.Signer
	startingBalance int64
}

// NewService creates a new user service. New accounts start with
// startingBalance of in-game currency.
func NewService(repo Repository, signer *auth.Signer, startingBalance int64) *Service {
	return &Service{repo: repo, signer: signer, startingBalance: startingBalance}
}

// Register creates an account with a hashed password.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	if cmd.Username == "" || cmd.Password == "" {
		return nil, ErrInvalidInput
	}

	if _, err := s.repo.GetByUsername(ctx, cmd.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Username:     cmd.Username,
		Email:        cmd.Email,
		PasswordHash: hash,
		Balance:      s.startingBalance,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, cmd LoginCommand) (*User, string, error) {
	u, err := s.repo.GetByUsername(ctx, cmd.Username)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, cmd.Password)
	if err != nil || !ok {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.signer.Sign(u.ID, u.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}
	return u, token, nil
}

// GetUser retrieves a user by id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}
