package auctions

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an auction. Transitions only ever move
// forward: scheduled -> running -> ended -> settled.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusEnded     Status = "ended"
	StatusSettled   Status = "settled"
)

// Auction is a timed bidding round for one player inside a room.
type Auction struct {
	ID           uuid.UUID  `db:"id"`
	RoomID       uuid.UUID  `db:"room_id"`
	PlayerID     uuid.UUID  `db:"player_id"`
	StartTime    time.Time  `db:"start_time"`
	EndTime      time.Time  `db:"end_time"` // extended by anti-snipe, never decreases
	ReservePrice int64      `db:"reserve_price"`
	HighestBid   *HighestBid
	Bids         []*Bid
	Status       Status    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// HighestBid mirrors the last appended bid.
type HighestBid struct {
	BidderID uuid.UUID
	Amount   int64
	PlacedAt time.Time
}

// Bid is an accepted bid. Immutable once appended; Position records
// acceptance order within the auction.
type Bid struct {
	ID        uuid.UUID `db:"id"`
	AuctionID uuid.UUID `db:"auction_id"`
	BidderID  uuid.UUID `db:"bidder_id"`
	Amount    int64     `db:"amount"`
	PlacedAt  time.Time `db:"placed_at"`
	IsAuto    bool      `db:"is_auto"` // reserved for automated bidding
	Position  int       `db:"position"`
}

// IncrementType selects how the minimum next bid is derived.
type IncrementType string

const (
	IncrementFixed   IncrementType = "fixed"
	IncrementPercent IncrementType = "percent"
)

// BidRules are the room's bidding rules. For percent rules Value is a whole
// percentage (5 means 5%); a zero Value falls back to the process default.
type BidRules struct {
	Type  IncrementType
	Value int64
}

// PlaceBidCommand represents the command to place a bid.
type PlaceBidCommand struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    int64
	Rules     *BidRules // nil means process-default percent rule
}

// CreateAuctionCommand represents the command to start an auction in a room.
type CreateAuctionCommand struct {
	RoomID       uuid.UUID
	PlayerID     uuid.UUID
	StartTime    time.Time // zero value means now
	Duration     time.Duration
	ReservePrice int64
}

// BidResult is returned to the caller after a successful bid.
type BidResult struct {
	AuctionID   uuid.UUID
	HighestBid  HighestBid
	TimeLeftSec int64
}
