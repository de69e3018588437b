package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddleapp/paddle/internal/domain/auctions"
	"github.com/paddleapp/paddle/pkg/database"
)

// PostgresAuctionRepository implements auctions.Repository and
// settlement.AuctionStore using pgx.
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool // for non-transactional reads and writes
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository.
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// Insert saves a new auction within a transaction.
func (r *PostgresAuctionRepository) Insert(ctx context.Context, tx pgx.Tx, a *auctions.Auction) error {
	query := `
		INSERT INTO auctions (id, room_id, player_id, start_time, end_time, reserve_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.Exec(ctx, query,
		a.ID,
		a.RoomID,
		a.PlayerID,
		a.StartTime,
		a.EndTime,
		a.ReservePrice,
		a.Status,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// GetByID retrieves an auction with its full bid history.
func (r *PostgresAuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auctions.Auction, error) {
	a, err := r.getByID(ctx, r.pool, id, false)
	if err != nil {
		return nil, err
	}

	bids, err := r.listBids(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Bids = bids
	return a, nil
}

// GetByIDForUpdate retrieves an auction and locks its row. Bids are not
// loaded; admission only needs the highest-bid mirror.
func (r *PostgresAuctionRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*auctions.Auction, error) {
	return r.getByID(ctx, tx, id, true)
}

func (r *PostgresAuctionRepository) getByID(ctx context.Context, db database.DBTX, id uuid.UUID, forUpdate bool) (*auctions.Auction, error) {
	query := `
		SELECT id, room_id, player_id, start_time, end_time, reserve_price,
		       highest_bidder_id, highest_amount, highest_at, status, created_at, updated_at
		FROM auctions
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var a auctions.Auction
	var highBidder *uuid.UUID
	var highAmount *int64
	var highAt *time.Time
	err := db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.RoomID,
		&a.PlayerID,
		&a.StartTime,
		&a.EndTime,
		&a.ReservePrice,
		&highBidder,
		&highAmount,
		&highAt,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auctions.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	if highBidder != nil && highAmount != nil && highAt != nil {
		a.HighestBid = &auctions.HighestBid{
			BidderID: *highBidder,
			Amount:   *highAmount,
			PlacedAt: *highAt,
		}
	}
	return &a, nil
}

func (r *PostgresAuctionRepository) listBids(ctx context.Context, auctionID uuid.UUID) ([]*auctions.Bid, error) {
	query := `
		SELECT id, auction_id, bidder_id, amount, placed_at, is_auto, position
		FROM bids
		WHERE auction_id = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*auctions.Bid
	for rows.Next() {
		var b auctions.Bid
		if err := rows.Scan(
			&b.ID,
			&b.AuctionID,
			&b.BidderID,
			&b.Amount,
			&b.PlacedAt,
			&b.IsAuto,
			&b.Position,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return result, nil
}

// AppendBid inserts a bid at the next position in the auction's
// acceptance sequence. The caller holds the auction row lock, so the
// MAX(position) read is race-free.
func (r *PostgresAuctionRepository) AppendBid(ctx context.Context, tx pgx.Tx, b *auctions.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at, is_auto, position)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM bids WHERE auction_id = $2))
		RETURNING position
	`
	err := tx.QueryRow(ctx, query,
		b.ID,
		b.AuctionID,
		b.BidderID,
		b.Amount,
		b.PlacedAt,
		b.IsAuto,
	).Scan(&b.Position)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// SetHighestBid updates the highest-bid mirror and the end time within a
// transaction. The end time only moves forward.
func (r *PostgresAuctionRepository) SetHighestBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, b *auctions.Bid, endTime time.Time) error {
	query := `
		UPDATE auctions
		SET highest_bidder_id = $1, highest_amount = $2, highest_at = $3,
		    end_time = GREATEST(end_time, $4), updated_at = NOW()
		WHERE id = $5
	`
	result, err := tx.Exec(ctx, query, b.BidderID, b.Amount, b.PlacedAt, endTime, auctionID)
	if err != nil {
		return fmt.Errorf("failed to update highest bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrAuctionNotFound
	}
	return nil
}

// UpdateStatus persists a status change immediately.
func (r *PostgresAuctionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status auctions.Status) error {
	return r.updateStatus(ctx, r.pool, id, status)
}

// UpdateStatusTx persists a status change within a transaction.
func (r *PostgresAuctionRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status auctions.Status) error {
	return r.updateStatus(ctx, tx, id, status)
}

func (r *PostgresAuctionRepository) updateStatus(ctx context.Context, db database.DBTX, id uuid.UUID, status auctions.Status) error {
	query := `
		UPDATE auctions
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := db.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update auction status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrAuctionNotFound
	}
	return nil
}
