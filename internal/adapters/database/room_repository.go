package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddleapp/paddle/internal/domain/rooms"
)

// PostgresRoomRepository implements rooms.Repository using pgx.
type PostgresRoomRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRoomRepository creates a new PostgreSQL room repository.
func NewPostgresRoomRepository(pool *pgxpool.Pool) *PostgresRoomRepository {
	return &PostgresRoomRepository{pool: pool}
}

// Insert saves a new room.
func (r *PostgresRoomRepository) Insert(ctx context.Context, room *rooms.Room) error {
	query := `
		INSERT INTO rooms (id, name, host_user_id, status,
			bid_increment_type, bid_increment_value, auction_time_sec,
			anti_snipe_window_sec, anti_snipe_extend_sec, max_players, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		room.ID,
		room.Name,
		room.HostUserID,
		room.Status,
		room.Settings.BidIncrementType,
		room.Settings.BidIncrementValue,
		room.Settings.AuctionTimeSec,
		room.Settings.AntiSnipeWindowSec,
		room.Settings.AntiSnipeExtendSec,
		room.Settings.MaxPlayers,
		room.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

// GetByID retrieves a room by id.
func (r *PostgresRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*rooms.Room, error) {
	query := `
		SELECT id, name, host_user_id, status,
			bid_increment_type, bid_increment_value, auction_time_sec,
			anti_snipe_window_sec, anti_snipe_extend_sec, max_players, created_at
		FROM rooms
		WHERE id = $1
	`
	var room rooms.Room
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&room.ID,
		&room.Name,
		&room.HostUserID,
		&room.Status,
		&room.Settings.BidIncrementType,
		&room.Settings.BidIncrementValue,
		&room.Settings.AuctionTimeSec,
		&room.Settings.AntiSnipeWindowSec,
		&room.Settings.AntiSnipeExtendSec,
		&room.Settings.MaxPlayers,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rooms.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

// AddMember inserts a membership row; joining twice is a no-op.
func (r *PostgresRoomRepository) AddMember(ctx context.Context, m *rooms.Member) error {
	query := `
		INSERT INTO room_members (room_id, user_id, display_name, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, user_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, m.RoomID, m.UserID, m.DisplayName, m.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to add room member: %w", err)
	}
	return nil
}

// CountMembers returns the number of members in a room.
func (r *PostgresRoomRepository) CountMembers(ctx context.Context, roomID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM room_members WHERE room_id = $1`, roomID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count room members: %w", err)
	}
	return count, nil
}

// ListMembers returns a room's members in join order.
func (r *PostgresRoomRepository) ListMembers(ctx context.Context, roomID uuid.UUID) ([]*rooms.Member, error) {
	query := `
		SELECT room_id, user_id, display_name, joined_at
		FROM room_members
		WHERE room_id = $1
		ORDER BY joined_at ASC
	`
	rows, err := r.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query room members: %w", err)
	}
	defer rows.Close()

	var result []*rooms.Member
	for rows.Next() {
		var m rooms.Member
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.DisplayName, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room member: %w", err)
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room members: %w", err)
	}
	return result, nil
}
