package players

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrInvalidName    = errors.New("player name is required")
)

// Repository defines the persistence interface for players.
type Repository interface {
	Insert(ctx context.Context, p *Player) error
	GetByID(ctx context.Context, id uuid.UUID) (*Player, error)
}

// Service implements player card management.
type Service struct {
	repo Repository
}

// NewService creates a new player service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreatePlayer adds a player card.
func (s *Service) CreatePlayer(ctx context.Context, cmd CreatePlayerCommand) (*Player, error) {
	if cmd.Name == "" {
		return nil, ErrInvalidName
	}

	rarity := cmd.Rarity
	if rarity == "" {
		rarity = RarityCommon
	}
	skill := cmd.SkillRating
	if skill == 0 {
		skill = 50
	}
	base := cmd.BaseValue
	if base == 0 {
		base = 10
	}

	p := &Player{
		ID:          uuid.New(),
		Name:        cmd.Name,
		Position:    cmd.Position,
		Club:        cmd.Club,
		SkillRating: skill,
		BaseValue:   base,
		Rarity:      rarity,
		ImageURL:    cmd.ImageURL,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to insert player: %w", err)
	}
	return p, nil
}

// GetPlayer retrieves a player by id.
func (s *Service) GetPlayer(ctx context.Context, id uuid.UUID) (*Player, error) {
	return s.repo.GetByID(ctx, id)
}
