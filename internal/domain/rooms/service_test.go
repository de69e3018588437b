package rooms

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paddleapp/paddle/internal/domain/auctions"
)

// MockRepository is a mock implementation of Repository for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Insert(ctx context.Context, r *Room) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Room), args.Error(1)
}

func (m *MockRepository) AddMember(ctx context.Context, member *Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockRepository) CountMembers(ctx context.Context, roomID uuid.UUID) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ListMembers(ctx context.Context, roomID uuid.UUID) ([]*Member, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Member), args.Error(1)
}

func TestService_CreateRoom(t *testing.T) {
	hostID := uuid.New()

	t.Run("applies default settings and enrolls the host", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Insert", mock.Anything, mock.AnythingOfType("*rooms.Room")).Return(nil)
		repo.On("AddMember", mock.Anything, mock.MatchedBy(func(m *Member) bool {
			return m.UserID == hostID
		})).Return(nil)
		svc := NewService(repo)

		r, err := svc.CreateRoom(context.Background(), CreateRoomCommand{Name: "friday league", HostUserID: hostID})
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), r.Settings)
		assert.Equal(t, StatusOpen, r.Status)
		repo.AssertExpectations(t)
	})

	t.Run("keeps custom settings but repairs invalid capacity", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Insert", mock.Anything, mock.Anything).Return(nil)
		repo.On("AddMember", mock.Anything, mock.Anything).Return(nil)
		svc := NewService(repo)

		r, err := svc.CreateRoom(context.Background(), CreateRoomCommand{
			Name:       "fixed increments",
			HostUserID: hostID,
			Settings: &Settings{
				BidIncrementType:  auctions.IncrementFixed,
				BidIncrementValue: 25,
				AuctionTimeSec:    60,
				MaxPlayers:        0,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, auctions.IncrementFixed, r.Settings.BidIncrementType)
		assert.Equal(t, int64(25), r.Settings.BidIncrementValue)
		assert.Equal(t, DefaultSettings().MaxPlayers, r.Settings.MaxPlayers)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		svc := NewService(new(MockRepository))
		_, err := svc.CreateRoom(context.Background(), CreateRoomCommand{HostUserID: hostID})
		assert.ErrorIs(t, err, ErrInvalidName)
	})
}

func TestService_JoinRoom(t *testing.T) {
	roomID := uuid.New()
	userID := uuid.New()

	openRoom := func(maxPlayers int) *Room {
		return &Room{
			ID:       roomID,
			Name:     "friday league",
			Status:   StatusOpen,
			Settings: Settings{MaxPlayers: maxPlayers},
		}
	}

	t.Run("adds member when capacity allows", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", mock.Anything, roomID).Return(openRoom(4), nil)
		repo.On("CountMembers", mock.Anything, roomID).Return(2, nil)
		repo.On("AddMember", mock.Anything, mock.MatchedBy(func(m *Member) bool {
			return m.RoomID == roomID && m.UserID == userID
		})).Return(nil)
		svc := NewService(repo)

		r, err := svc.JoinRoom(context.Background(), JoinRoomCommand{RoomID: roomID, UserID: userID})
		require.NoError(t, err)
		assert.Equal(t, roomID, r.ID)
		repo.AssertExpectations(t)
	})

	t.Run("rejects a full room", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", mock.Anything, roomID).Return(openRoom(2), nil)
		repo.On("CountMembers", mock.Anything, roomID).Return(2, nil)
		svc := NewService(repo)

		_, err := svc.JoinRoom(context.Background(), JoinRoomCommand{RoomID: roomID, UserID: userID})
		assert.ErrorIs(t, err, ErrRoomFull)
		repo.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything)
	})

	t.Run("propagates missing room", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", mock.Anything, roomID).Return(nil, ErrRoomNotFound)
		svc := NewService(repo)

		_, err := svc.JoinRoom(context.Background(), JoinRoomCommand{RoomID: roomID, UserID: userID})
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestSettings_BidRules(t *testing.T) {
	s := Settings{BidIncrementType: auctions.IncrementPercent, BidIncrementValue: 10}
	rules := s.BidRules()
	require.NotNil(t, rules)
	assert.Equal(t, auctions.IncrementPercent, rules.Type)
	assert.Equal(t, int64(10), rules.Value)
}
