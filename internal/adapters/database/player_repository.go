package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddleapp/paddle/internal/domain/players"
)

// PostgresPlayerRepository implements players.Repository using pgx.
type PostgresPlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPlayerRepository creates a new PostgreSQL player repository.
func NewPostgresPlayerRepository(pool *pgxpool.Pool) *PostgresPlayerRepository {
	return &PostgresPlayerRepository{pool: pool}
}

// Insert saves a new player.
func (r *PostgresPlayerRepository) Insert(ctx context.Context, p *players.Player) error {
	query := `
		INSERT INTO players (id, name, position, club, skill_rating, base_value, rarity, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Position,
		p.Club,
		p.SkillRating,
		p.BaseValue,
		p.Rarity,
		p.ImageURL,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert player: %w", err)
	}
	return nil
}

// GetByID retrieves a player by id.
func (r *PostgresPlayerRepository) GetByID(ctx context.Context, id uuid.UUID) (*players.Player, error) {
	query := `
		SELECT id, name, position, club, skill_rating, base_value, rarity, image_url, created_at
		FROM players
		WHERE id = $1
	`
	var p players.Player
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Position,
		&p.Club,
		&p.SkillRating,
		&p.BaseValue,
		&p.Rarity,
		&p.ImageURL,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, players.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return &p, nil
}
