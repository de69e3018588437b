package users

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for users.
type Repository interface {
	Insert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}
