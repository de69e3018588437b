package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrInvalidName  = errors.New("room name is required")
)

// Service implements room creation and membership.
type Service struct {
	repo Repository
}

// NewService creates a new room service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateRoom opens a room with the given settings, falling back to
// defaults for anything the host leaves unset.
func (s *Service) CreateRoom(ctx context.Context, cmd CreateRoomCommand) (*Room, error) {
	if cmd.Name == "" {
		return nil, ErrInvalidName
	}

	settings := DefaultSettings()
	if cmd.Settings != nil {
		settings = *cmd.Settings
		if settings.MaxPlayers <= 0 {
			settings.MaxPlayers = DefaultSettings().MaxPlayers
		}
		if settings.BidIncrementType == "" {
			settings.BidIncrementType = DefaultSettings().BidIncrementType
		}
	}

	r := &Room{
		ID:         uuid.New(),
		Name:       cmd.Name,
		HostUserID: cmd.HostUserID,
		Settings:   settings,
		Status:     StatusOpen,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.Insert(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to insert room: %w", err)
	}

	// The host is a member of their own room.
	host := &Member{RoomID: r.ID, UserID: cmd.HostUserID, JoinedAt: time.Now()}
	if err := s.repo.AddMember(ctx, host); err != nil {
		return nil, fmt.Errorf("failed to add host member: %w", err)
	}

	return r, nil
}

// JoinRoom adds a user to a room, enforcing capacity. Joining a room the
// user is already in is a no-op.
func (s *Service) JoinRoom(ctx context.Context, cmd JoinRoomCommand) (*Room, error) {
	r, err := s.repo.GetByID(ctx, cmd.RoomID)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountMembers(ctx, cmd.RoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if count >= r.Settings.MaxPlayers {
		return nil, ErrRoomFull
	}

	m := &Member{
		RoomID:      cmd.RoomID,
		UserID:      cmd.UserID,
		DisplayName: cmd.DisplayName,
		JoinedAt:    time.Now(),
	}
	if err := s.repo.AddMember(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return r, nil
}

// GetRoom retrieves a room by id.
func (s *Service) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	return s.repo.GetByID(ctx, id)
}
