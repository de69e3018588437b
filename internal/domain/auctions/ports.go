package auctions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paddleapp/paddle/internal/domain/users"
)

// Repository defines the persistence interface for auctions and their bids.
type Repository interface {
	// Insert saves a new auction within a transaction.
	Insert(ctx context.Context, tx pgx.Tx, a *Auction) error

	// GetByID retrieves an auction together with its full bid history.
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)

	// GetByIDForUpdate retrieves an auction and locks its row for update.
	// Bids are not loaded. Must be called within a transaction.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Auction, error)

	// AppendBid inserts a bid, assigning the next position in the
	// auction's acceptance sequence.
	AppendBid(ctx context.Context, tx pgx.Tx, b *Bid) error

	// SetHighestBid updates the auction's highest-bid mirror and end time
	// within a transaction.
	SetHighestBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, b *Bid, endTime time.Time) error
}

// UserReader is the read-only view of users needed at bid admission.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// Lock is a held lease on a coordination-store lock.
type Lock interface {
	// Unlock releases the lease. Safe to call from any exit path.
	Unlock(ctx context.Context) error
}

// Locker hands out exclusive, auto-expiring locks keyed by auction id.
// Acquisition uses bounded retry and fails with ErrLockUnavailable rather
// than blocking indefinitely.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lock, error)
}

// Scheduler maintains the time-ordered index of open auctions' end times.
type Scheduler interface {
	// Schedule upserts the auction's position in the index. Idempotent;
	// last writer wins on the score.
	Schedule(ctx context.Context, auctionID uuid.UUID, end time.Time) error

	// Unschedule removes the auction from the index. Safe to call on an
	// already-removed id.
	Unschedule(ctx context.Context, auctionID uuid.UUID) error

	// Due returns up to limit auction ids whose end time is <= now,
	// ascending by end time. Repeated calls reflect current state.
	Due(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}
