package rooms

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for rooms and membership.
type Repository interface {
	Insert(ctx context.Context, r *Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*Room, error)

	// AddMember is idempotent; joining twice is not an error.
	AddMember(ctx context.Context, m *Member) error
	CountMembers(ctx context.Context, roomID uuid.UUID) (int, error)
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]*Member, error)
}
