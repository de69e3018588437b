package auctions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paddleapp/paddle/internal/domain/users"
	"github.com/paddleapp/paddle/pkg/events"
	"github.com/paddleapp/paddle/pkg/testhelpers"
)

// MockRepository is a mock implementation of Repository for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Insert(ctx context.Context, tx pgx.Tx, a *Auction) error {
	args := m.Called(ctx, tx, a)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Auction, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockRepository) AppendBid(ctx context.Context, tx pgx.Tx, b *Bid) error {
	args := m.Called(ctx, tx, b)
	return args.Error(0)
}

func (m *MockRepository) SetHighestBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, b *Bid, endTime time.Time) error {
	args := m.Called(ctx, tx, auctionID, b, endTime)
	return args.Error(0)
}

// MockUserReader is a mock implementation of UserReader for testing
type MockUserReader struct {
	mock.Mock
}

func (m *MockUserReader) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

// fakeLocker hands out locks unless told to be busy.
type fakeLocker struct {
	mu       sync.Mutex
	busy     bool
	acquired []string
}

func (l *fakeLocker) Acquire(ctx context.Context, key string) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return nil, ErrLockUnavailable
	}
	l.acquired = append(l.acquired, key)
	return fakeLock{}, nil
}

type fakeLock struct{}

func (fakeLock) Unlock(ctx context.Context) error { return nil }

// fakeScheduler records deadline index writes.
type fakeScheduler struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]time.Time
	failTimes int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{entries: make(map[uuid.UUID]time.Time)}
}

func (s *fakeScheduler) Schedule(ctx context.Context, auctionID uuid.UUID, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTimes > 0 {
		s.failTimes--
		return errors.New("scheduler unavailable")
	}
	s.entries[auctionID] = end
	return nil
}

func (s *fakeScheduler) Unschedule(ctx context.Context, auctionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, auctionID)
	return nil
}

func (s *fakeScheduler) Due(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *fakeScheduler) endFor(id uuid.UUID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	end, ok := s.entries[id]
	return end, ok
}

// fakeBroadcaster records broadcast events.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, ev events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultRules() Rules {
	return Rules{
		DefaultIncrementPct: 0.05,
		AntiSnipeWindow:     10 * time.Second,
		AntiSnipeExtend:     10 * time.Second,
		DefaultDuration:     30 * time.Second,
	}
}

type serviceFixture struct {
	svc       *Service
	repo      *MockRepository
	users     *MockUserReader
	locks     *fakeLocker
	schedule  *fakeScheduler
	broadcast *fakeBroadcaster
	txm       *testhelpers.FakeTxManager
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		repo:      new(MockRepository),
		users:     new(MockUserReader),
		locks:     &fakeLocker{},
		schedule:  newFakeScheduler(),
		broadcast: &fakeBroadcaster{},
		txm:       &testhelpers.FakeTxManager{},
	}
	f.svc = NewService(f.txm, f.repo, f.users, f.locks, f.schedule, f.broadcast, defaultRules(), testLogger())
	return f
}

func runningAuction(now time.Time, endIn time.Duration) *Auction {
	return &Auction{
		ID:        uuid.New(),
		RoomID:    uuid.New(),
		PlayerID:  uuid.New(),
		StartTime: now.Add(-time.Minute),
		EndTime:   now.Add(endIn),
		Status:    StatusRunning,
	}
}

func TestService_CreateAuction(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	f.repo.On("Insert", mock.Anything, mock.Anything, mock.AnythingOfType("*auctions.Auction")).Return(nil)

	a, err := f.svc.CreateAuction(context.Background(), CreateAuctionCommand{
		RoomID:   uuid.New(),
		PlayerID: uuid.New(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusRunning, a.Status)
	assert.Equal(t, now, a.StartTime)
	assert.Equal(t, now.Add(30*time.Second), a.EndTime)

	end, ok := f.schedule.endFor(a.ID)
	require.True(t, ok, "auction must be registered in the deadline index")
	assert.Equal(t, a.EndTime, end)

	assert.True(t, f.txm.LastTx().Committed)
	f.repo.AssertExpectations(t)
}

func TestService_CreateAuction_SchedulerDownAbortsCreation(t *testing.T) {
	f := newFixture(t)
	f.schedule.failTimes = 10 // more than the retry budget

	f.repo.On("Insert", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.CreateAuction(context.Background(), CreateAuctionCommand{
		RoomID:   uuid.New(),
		PlayerID: uuid.New(),
	})
	require.Error(t, err)
	assert.False(t, f.txm.LastTx().Committed, "an unschedulable auction must not be committed")
}

func TestService_PlaceBid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bidderID := uuid.New()

	tests := []struct {
		name    string
		amount  int64
		setup   func(f *serviceFixture)
		wantErr error
	}{
		{
			name:   "lock unavailable",
			amount: 100,
			setup: func(f *serviceFixture) {
				f.locks.busy = true
			},
			wantErr: ErrLockUnavailable,
		},
		{
			name:   "auction not found",
			amount: 100,
			setup: func(f *serviceFixture) {
				f.repo.On("GetByIDForUpdate", mock.Anything, mock.Anything, mock.Anything).
					Return(nil, ErrAuctionNotFound)
			},
			wantErr: ErrAuctionNotFound,
		},
		{
			name:   "auction not running",
			amount: 100,
			setup: func(f *serviceFixture) {
				a := runningAuction(now, time.Minute)
				a.Status = StatusEnded
				f.repo.On("GetByIDForUpdate", mock.Anything, mock.Anything, mock.Anything).Return(a, nil)
			},
			wantErr: ErrAuctionNotRunning,
		},
		{
			name:   "auction past its end time",
			amount: 100,
			setup: func(f *serviceFixture) {
				a := runningAuction(now, -time.Second)
				f.repo.On("GetByIDForUpdate", mock.Anything, mock.Anything, mock.Anything).Return(a, nil)
			},
			wantErr: ErrAuctionExpired,
		},
		{
			name:   "bid below minimum increment",
			amount: 104,
			setup: func(f *serviceFixture) {
				a := runningAuction(now, time.Minute)
				a.HighestBid = &HighestBid{BidderID: uuid.New(), Amount: 100, PlacedAt: now.Add(-time.Second)}
				f.repo.On("GetByIDForUpdate", mock.Anything, mock.Anything, mock.Anything).Return(a, nil)
			},
			wantErr: ErrBidTooLow,
		},
		{
			name:   "bidder not found",
			amount: 100,
			setup: func(f *serviceFixture) {
				a := runningAuction(now, time.Minute)
				f.repo.On("GetByIDForUpdate", mock.Anything, mock.Anything, mock.Anything).Return(a, nil)
				f.users.On("GetByID", mock.Anything, bidderID).Return(nil, errors.New("no rows"))
			},
			wantErr: ErrBidderNotFound,
		},
		{
			name:   "insufficient balance",
			amount: 100,
			setup: func(f *serviceFixture) {
				a := runningAuction(now, time.Minute)
				f.repo.On("GetByIDForUpdate", mock.Anything, mock.Anything, mock.Anything).Return(a, nil)
				f.users.On("GetByID", mock.Anything, bidderID).Return(&users.User{ID: bidderID, Balance: 50}, nil)
			},
			wantErr: ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.svc.now = func() time.Time { return now }
			tt.setup(f)

			_, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{
				AuctionID: uuid.New(),
				BidderID:  bidderID,
				Amount:    tt.amount,
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.broadcast.events, "rejected bids must not broadcast")
			if tx := f.txm.LastTx(); tx != nil {
				assert.False(t, tx.Committed, "rejected bids must not commit")
			}
		})
	}
}

func TestService_PlaceBid_ReportsMinimumNextBid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t)
	f.svc.now = func() time.Time { return now }

	a := runningAuction(now, time.Minute)
	a.HighestBid = &HighestBid{BidderID: uuid.New(), Amount: 100, PlacedAt: now.Add(-time.Second)}
	f.repo.On("GetByIDForUpdate", mock.Anything, mock.Anything, mock.Anything).Return(a, nil)

	_, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{
		AuctionID: a.ID,
		BidderID:  uuid.New(),
		Amount:    104,
	})

	var tooLow *BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	assert.Equal(t, int64(105), tooLow.MinNext)
}

func TestService_PlaceBid_Success(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bidderID := uuid.New()

	f := newFixture(t)
	f.svc.now = func() time.Time { return now }

	a := runningAuction(now, time.Minute)
	a.HighestBid = &HighestBid{BidderID: uuid.New(), Amount: 100, PlacedAt: now.Add(-time.Second)}

	f.repo.On("GetByIDForUpdate", mock.Anything, mock.Anything, a.ID).Return(a, nil)
	f.users.On("GetByID", mock.Anything, bidderID).Return(&users.User{ID: bidderID, Balance: 1000}, nil)
	f.repo.On("AppendBid", mock.Anything, mock.Anything, mock.AnythingOfType("*auctions.Bid")).Return(nil)
	// One minute out: no anti-snipe, end time unchanged.
	f.repo.On("SetHighestBid", mock.Anything, mock.Anything, a.ID, mock.Anything, a.EndTime).Return(nil)

	result, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{
		AuctionID: a.ID,
		BidderID:  bidderID,
		Amount:    105,
	})
	require.NoError(t, err)

	assert.Equal(t, a.ID, result.AuctionID)
	assert.Equal(t, bidderID, result.HighestBid.BidderID)
	assert.Equal(t, int64(105), result.HighestBid.Amount)
	assert.Equal(t, int64(60), result.TimeLeftSec)

	require.True(t, f.txm.LastTx().Committed)

	require.Len(t, f.broadcast.events, 1)
	ev, ok := f.broadcast.events[0].(events.NewHighestBid)
	require.True(t, ok)
	assert.Equal(t, a.ID, ev.AuctionID)
	assert.Equal(t, int64(105), ev.HighestBid.Amount)

	// No extension means the deadline index was not touched.
	_, scheduled := f.schedule.endFor(a.ID)
	assert.False(t, scheduled)

	f.repo.AssertExpectations(t)
}

func TestService_PlaceBid_AntiSnipeExtendsDeadline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bidderID := uuid.New()

	f := newFixture(t)
	f.svc.now = func() time.Time { return now }

	// Three seconds left, inside the ten second window.
	a := runningAuction(now, 3*time.Second)
	wantEnd := now.Add(10 * time.Second)

	f.repo.On("GetByIDForUpdate", mock.Anything, mock.Anything, a.ID).Return(a, nil)
	f.users.On("GetByID", mock.Anything, bidderID).Return(&users.User{ID: bidderID, Balance: 1000}, nil)
	f.repo.On("AppendBid", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.repo.On("SetHighestBid", mock.Anything, mock.Anything, a.ID, mock.Anything, wantEnd).Return(nil)

	result, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{
		AuctionID: a.ID,
		BidderID:  bidderID,
		Amount:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.TimeLeftSec)

	end, ok := f.schedule.endFor(a.ID)
	require.True(t, ok, "extension must move the deadline index")
	assert.Equal(t, wantEnd, end)
	assert.True(t, end.After(a.EndTime), "anti-snipe never shortens the deadline")

	f.repo.AssertExpectations(t)
}

func TestService_PlaceBid_SchedulerDownDropsBid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bidderID := uuid.New()

	f := newFixture(t)
	f.svc.now = func() time.Time { return now }
	f.schedule.failTimes = 10

	a := runningAuction(now, 3*time.Second)
	f.repo.On("GetByIDForUpdate", mock.Anything, mock.Anything, a.ID).Return(a, nil)
	f.users.On("GetByID", mock.Anything, bidderID).Return(&users.User{ID: bidderID, Balance: 1000}, nil)
	f.repo.On("AppendBid", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.repo.On("SetHighestBid", mock.Anything, mock.Anything, a.ID, mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{
		AuctionID: a.ID,
		BidderID:  bidderID,
		Amount:    1,
	})
	require.Error(t, err)
	assert.False(t, f.txm.LastTx().Committed, "a bid whose extension cannot be indexed must roll back")
	assert.Empty(t, f.broadcast.events)
}

func TestService_PlaceBid_FirstBidAgainstReserve(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bidderID := uuid.New()

	f := newFixture(t)
	f.svc.now = func() time.Time { return now }

	a := runningAuction(now, time.Minute)
	a.ReservePrice = 50

	f.repo.On("GetByIDForUpdate", mock.Anything, mock.Anything, a.ID).Return(a, nil)

	// 52 is under reserve + 5% of 50 (rounded: 3) = 53.
	_, err := f.svc.PlaceBid(context.Background(), PlaceBidCommand{
		AuctionID: a.ID,
		BidderID:  bidderID,
		Amount:    52,
	})
	var tooLow *BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	assert.Equal(t, int64(53), tooLow.MinNext)
}

func TestSecondsLeft(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(0), secondsLeft(now.Add(-time.Second), now))
	assert.Equal(t, int64(0), secondsLeft(now, now))
	assert.Equal(t, int64(1), secondsLeft(now.Add(200*time.Millisecond), now))
	assert.Equal(t, int64(30), secondsLeft(now.Add(30*time.Second), now))
}
