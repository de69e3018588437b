package auctions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/paddleapp/paddle/pkg/database"
	"github.com/paddleapp/paddle/pkg/events"
)

// Admission errors. ErrBidTooLow is carried by BidTooLowError so callers
// can report the minimum acceptable amount.
var (
	ErrLockUnavailable     = errors.New("could not acquire auction lock; try again")
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrAuctionNotRunning   = errors.New("auction not running")
	ErrAuctionExpired      = errors.New("auction already ended")
	ErrBidTooLow           = errors.New("bid too low")
	ErrBidderNotFound      = errors.New("bidder not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// BidTooLowError reports the minimum next bid alongside the rejection.
type BidTooLowError struct {
	MinNext int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low; min next is %d", e.MinNext)
}

func (e *BidTooLowError) Is(target error) bool { return target == ErrBidTooLow }

// Rules holds the process-wide bidding configuration.
type Rules struct {
	DefaultIncrementPct float64
	AntiSnipeWindow     time.Duration
	AntiSnipeExtend     time.Duration
	DefaultDuration     time.Duration
}

// Service implements auction creation and bid admission.
type Service struct {
	txm       database.TransactionManager
	auctions  Repository
	users     UserReader
	locks     Locker
	schedule  Scheduler
	broadcast events.Broadcaster
	rules     Rules
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates the bid admission service.
func NewService(
	txm database.TransactionManager,
	auctions Repository,
	users UserReader,
	locks Locker,
	schedule Scheduler,
	broadcast events.Broadcaster,
	rules Rules,
	logger *slog.Logger,
) *Service {
	return &Service{
		txm:       txm,
		auctions:  auctions,
		users:     users,
		locks:     locks,
		schedule:  schedule,
		broadcast: broadcast,
		rules:     rules,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateAuction creates a running auction and registers its deadline with
// the scheduler. This is the only entry point that creates an auction.
func (s *Service) CreateAuction(ctx context.Context, cmd CreateAuctionCommand) (*Auction, error) {
	start := cmd.StartTime
	if start.IsZero() {
		start = s.now()
	}
	duration := cmd.Duration
	if duration <= 0 {
		duration = s.rules.DefaultDuration
	}
	end := start.Add(duration)

	a := &Auction{
		ID:           uuid.New(),
		RoomID:       cmd.RoomID,
		PlayerID:     cmd.PlayerID,
		StartTime:    start,
		EndTime:      end,
		ReservePrice: cmd.ReservePrice,
		Status:       StatusRunning,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}

	tx, err := s.txm.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.auctions.Insert(ctx, tx, a); err != nil {
		return nil, fmt.Errorf("failed to insert auction: %w", err)
	}

	// Index before commit: a scheduling entry without an auction only
	// triggers a defensive cleanup at settlement, while a running auction
	// missing from the index would never be discovered.
	if err := s.scheduleWithRetry(ctx, a.ID, end); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return a, nil
}

// GetAuction retrieves an auction with its full bid history.
func (s *Service) GetAuction(ctx context.Context, id uuid.UUID) (*Auction, error) {
	return s.auctions.GetByID(ctx, id)
}

// PlaceBid validates and commits a single bid under the per-auction lock.
// Bids on the same auction are strictly serialized; bids on different
// auctions proceed in parallel.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*BidResult, error) {
	lock, err := s.locks.Acquire(ctx, cmd.AuctionID.String())
	if err != nil {
		return nil, err
	}
	defer func() {
		if unlockErr := lock.Unlock(ctx); unlockErr != nil {
			s.logger.Error("failed to release bid lock", "auction_id", cmd.AuctionID, "error", unlockErr)
		}
	}()

	tx, err := s.txm.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := s.auctions.GetByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusRunning {
		return nil, ErrAuctionNotRunning
	}

	now := s.now()
	if !a.EndTime.After(now) {
		// The window is closed even if the settlement driver has not
		// fired yet.
		return nil, ErrAuctionExpired
	}

	current := a.ReservePrice
	if a.HighestBid != nil {
		current = a.HighestBid.Amount
	}
	minNext := MinNextBid(current, cmd.Rules, s.rules.DefaultIncrementPct)
	if cmd.Amount < minNext {
		return nil, &BidTooLowError{MinNext: minNext}
	}

	// Best-effort balance check only; funds are not reserved until
	// settlement.
	bidder, err := s.users.GetByID(ctx, cmd.BidderID)
	if err != nil {
		return nil, ErrBidderNotFound
	}
	if bidder.Balance < cmd.Amount {
		return nil, ErrInsufficientBalance
	}

	bid := &Bid{
		ID:        uuid.New(),
		AuctionID: cmd.AuctionID,
		BidderID:  cmd.BidderID,
		Amount:    cmd.Amount,
		PlacedAt:  now,
		IsAuto:    false,
	}
	if err := s.auctions.AppendBid(ctx, tx, bid); err != nil {
		return nil, fmt.Errorf("failed to append bid: %w", err)
	}

	endTime := a.EndTime
	extended := false
	if endTime.Sub(now) <= s.rules.AntiSnipeWindow {
		endTime = now.Add(s.rules.AntiSnipeExtend)
		extended = true
	}

	if err := s.auctions.SetHighestBid(ctx, tx, cmd.AuctionID, bid, endTime); err != nil {
		return nil, fmt.Errorf("failed to update highest bid: %w", err)
	}

	if extended {
		// The index must move with the deadline; a committed bid whose
		// extension never reaches the scheduler would let the driver
		// settle early. Rescheduling before commit keeps the failure
		// mode on the safe side: the bid is dropped, not the deadline.
		if err := s.scheduleWithRetry(ctx, cmd.AuctionID, endTime); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	result := &BidResult{
		AuctionID: cmd.AuctionID,
		HighestBid: HighestBid{
			BidderID: bid.BidderID,
			Amount:   bid.Amount,
			PlacedAt: bid.PlacedAt,
		},
		TimeLeftSec: secondsLeft(endTime, s.now()),
	}

	ev := events.NewHighestBidEvent(cmd.AuctionID, events.HighestBid{
		UserID:    bid.BidderID,
		Amount:    bid.Amount,
		Timestamp: bid.PlacedAt.UnixMilli(),
	}, result.TimeLeftSec)
	if err := s.broadcast.Broadcast(ctx, ev); err != nil {
		s.logger.Error("failed to broadcast new highest bid", "auction_id", cmd.AuctionID, "error", err)
	}

	return result, nil
}

// scheduleWithRetry upserts the deadline index entry, retrying transient
// failures. Failures are never silently dropped.
func (s *Service) scheduleWithRetry(ctx context.Context, auctionID uuid.UUID, end time.Time) error {
	const attempts = 3
	var err error
	for i := 0; i < attempts; i++ {
		if err = s.schedule.Schedule(ctx, auctionID, end); err == nil {
			return nil
		}
		s.logger.Warn("failed to update deadline index; retrying",
			"auction_id", auctionID, "attempt", i+1, "error", err)
	}
	return fmt.Errorf("failed to update deadline index: %w", err)
}

func secondsLeft(end, now time.Time) int64 {
	left := end.Sub(now)
	if left <= 0 {
		return 0
	}
	return int64(math.Ceil(left.Seconds()))
}
