package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paddleapp/paddle/internal/domain/auctions"
	"github.com/paddleapp/paddle/internal/domain/users"
	"github.com/paddleapp/paddle/pkg/database"
)

// Terminal no-sale reasons.
const (
	ReasonNoBids              = "no_bids"
	ReasonWinnerNotFound      = "winner_not_found"
	ReasonInsufficientBalance = "insufficient_balance_at_settle"
)

// Outcome is the result of a settlement attempt. Handled is false when
// another process holds the settlement lock; that is expected under
// concurrent drivers, not a fault.
type Outcome struct {
	AuctionID uuid.UUID
	Handled   bool
	Settled   bool
	Reason    string
	WinnerID  uuid.UUID
	Amount    int64
}

// AuctionStore is the auction persistence view settlement needs.
type AuctionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*auctions.Auction, error)
	// UpdateStatus persists a status change immediately, outside any
	// caller transaction.
	UpdateStatus(ctx context.Context, id uuid.UUID, status auctions.Status) error
	// UpdateStatusTx persists a status change within a transaction.
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status auctions.Status) error
}

// UserStore is the user persistence view settlement needs.
type UserStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*users.User, error)
	Debit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error
}

// Service finalizes due auctions. Settle is idempotent: the settlement
// lock serializes attempts, and the status check after acquiring it makes
// repeats no-ops.
type Service struct {
	txm      database.TransactionManager
	auctions AuctionStore
	users    UserStore
	locks    auctions.Locker
	schedule auctions.Scheduler
	logger   *slog.Logger
}

// NewService creates the settlement service. locks must use the
// settlement lock namespace, distinct from the bid lock namespace.
func NewService(
	txm database.TransactionManager,
	auctionStore AuctionStore,
	userStore UserStore,
	locks auctions.Locker,
	schedule auctions.Scheduler,
	logger *slog.Logger,
) *Service {
	return &Service{
		txm:      txm,
		auctions: auctionStore,
		users:    userStore,
		locks:    locks,
		schedule: schedule,
		logger:   logger,
	}
}

// Settle transitions an auction to a terminal state and, if there is a
// winning bid, debits the winner exactly once. May be invoked any number
// of times for the same auction.
func (s *Service) Settle(ctx context.Context, auctionID uuid.UUID) (Outcome, error) {
	lock, err := s.locks.Acquire(ctx, auctionID.String())
	if err != nil {
		if errors.Is(err, auctions.ErrLockUnavailable) {
			// Another worker is settling this auction.
			return Outcome{AuctionID: auctionID}, nil
		}
		return Outcome{AuctionID: auctionID}, err
	}
	defer func() {
		if unlockErr := lock.Unlock(ctx); unlockErr != nil {
			s.logger.Error("failed to release settlement lock", "auction_id", auctionID, "error", unlockErr)
		}
	}()

	a, err := s.auctions.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, auctions.ErrAuctionNotFound) {
			// Stale scheduling entry; clean it up.
			s.unschedule(ctx, auctionID)
			return Outcome{AuctionID: auctionID, Handled: true}, nil
		}
		return Outcome{AuctionID: auctionID}, err
	}
	if a.Status != auctions.StatusRunning {
		// Already finalized elsewhere.
		s.unschedule(ctx, auctionID)
		return Outcome{AuctionID: auctionID, Handled: true}, nil
	}

	// Close the bidding window irrevocably before any money moves. A
	// crash past this point never reopens bidding.
	if err := s.auctions.UpdateStatus(ctx, auctionID, auctions.StatusEnded); err != nil {
		return Outcome{AuctionID: auctionID}, fmt.Errorf("failed to end auction: %w", err)
	}

	if a.HighestBid == nil {
		s.unschedule(ctx, auctionID)
		return Outcome{AuctionID: auctionID, Handled: true, Reason: ReasonNoBids}, nil
	}

	outcome, err := s.transfer(ctx, auctionID, a.HighestBid)
	// Once the entry is gone the driver never re-attempts this auction;
	// every branch below is permanent by design, including failures.
	s.unschedule(ctx, auctionID)
	return outcome, err
}

// transfer runs the one atomic transaction spanning the winner's balance
// and the auction's terminal status.
func (s *Service) transfer(ctx context.Context, auctionID uuid.UUID, winning *auctions.HighestBid) (Outcome, error) {
	tx, err := s.txm.BeginTx(ctx)
	if err != nil {
		return Outcome{AuctionID: auctionID}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	winner, err := s.users.GetByIDForUpdate(ctx, tx, winning.BidderID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return Outcome{AuctionID: auctionID, Handled: true, Reason: ReasonWinnerNotFound}, nil
		}
		return Outcome{AuctionID: auctionID}, fmt.Errorf("failed to load winner: %w", err)
	}

	if winner.Balance < winning.Amount {
		// The auction stays ended, never settled. Funds were not
		// reserved at bid time, so this is a recognized terminal state.
		return Outcome{AuctionID: auctionID, Handled: true, Reason: ReasonInsufficientBalance}, nil
	}

	if err := s.users.Debit(ctx, tx, winner.ID, winning.Amount); err != nil {
		return Outcome{AuctionID: auctionID}, fmt.Errorf("failed to debit winner: %w", err)
	}
	if err := s.auctions.UpdateStatusTx(ctx, tx, auctionID, auctions.StatusSettled); err != nil {
		return Outcome{AuctionID: auctionID}, fmt.Errorf("failed to mark auction settled: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Outcome{AuctionID: auctionID}, fmt.Errorf("failed to commit settlement: %w", err)
	}

	return Outcome{
		AuctionID: auctionID,
		Handled:   true,
		Settled:   true,
		WinnerID:  winner.ID,
		Amount:    winning.Amount,
	}, nil
}

func (s *Service) unschedule(ctx context.Context, auctionID uuid.UUID) {
	if err := s.schedule.Unschedule(ctx, auctionID); err != nil {
		s.logger.Error("failed to remove scheduling entry", "auction_id", auctionID, "error", err)
	}
}
