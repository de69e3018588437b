package rooms

import (
	"time"

	"github.com/google/uuid"

	"github.com/paddleapp/paddle/internal/domain/auctions"
)

// RoomStatus tracks the room lifecycle.
type RoomStatus string

const (
	StatusOpen       RoomStatus = "open"
	StatusInProgress RoomStatus = "inProgress"
	StatusClosed     RoomStatus = "closed"
)

// Settings are the room's auction parameters.
type Settings struct {
	BidIncrementType   auctions.IncrementType
	BidIncrementValue  int64
	AuctionTimeSec     int
	AntiSnipeWindowSec int
	AntiSnipeExtendSec int
	MaxPlayers         int
}

// DefaultSettings mirrors the defaults a room gets when the host supplies
// nothing.
func DefaultSettings() Settings {
	return Settings{
		BidIncrementType:   auctions.IncrementPercent,
		BidIncrementValue:  5,
		AuctionTimeSec:     30,
		AntiSnipeWindowSec: 10,
		AntiSnipeExtendSec: 10,
		MaxPlayers:         50,
	}
}

// BidRules projects the settings onto the admission rules.
func (s Settings) BidRules() *auctions.BidRules {
	return &auctions.BidRules{
		Type:  s.BidIncrementType,
		Value: s.BidIncrementValue,
	}
}

// Room is a multiplayer auction room.
type Room struct {
	ID         uuid.UUID `db:"id"`
	Name       string    `db:"name"`
	HostUserID uuid.UUID `db:"host_user_id"`
	Settings   Settings
	Status     RoomStatus `db:"status"`
	CreatedAt  time.Time  `db:"created_at"`
}

// Member is a user who joined a room.
type Member struct {
	RoomID      uuid.UUID `db:"room_id"`
	UserID      uuid.UUID `db:"user_id"`
	DisplayName string    `db:"display_name"`
	JoinedAt    time.Time `db:"joined_at"`
}

// CreateRoomCommand represents the command to open a room.
type CreateRoomCommand struct {
	Name       string
	HostUserID uuid.UUID
	Settings   *Settings // nil means defaults
}

// JoinRoomCommand represents the command to join a room.
type JoinRoomCommand struct {
	RoomID      uuid.UUID
	UserID      uuid.UUID
	DisplayName string
}
