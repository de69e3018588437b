package events

import (
	"context"

	"github.com/google/uuid"
)

// Event kinds relayed to room viewers by the realtime gateway.
const (
	KindNewHighestBid      = "new_highest_bid"
	KindAuctionSettled     = "auction_settled"
	KindAuctionEndedNoSale = "auction_ended_no_sale"
)

// Event is a broadcastable engine event. The Type field doubles as the
// pub/sub discriminator and the broker routing key.
type Event interface {
	Kind() string
}

// HighestBid is the bid summary carried inside NewHighestBid payloads.
type HighestBid struct {
	UserID    uuid.UUID `json:"userId"`
	Amount    int64     `json:"amount"`
	Timestamp int64     `json:"timestamp"`
}

// NewHighestBid announces a freshly accepted bid to room viewers.
type NewHighestBid struct {
	Type        string     `json:"type"`
	AuctionID   uuid.UUID  `json:"auctionId"`
	HighestBid  HighestBid `json:"highestBid"`
	TimeLeftSec int64      `json:"timeLeft"`
}

func (NewHighestBid) Kind() string { return KindNewHighestBid }

// AuctionSettled announces a completed funds transfer.
type AuctionSettled struct {
	Type      string    `json:"type"`
	AuctionID uuid.UUID `json:"auctionId"`
	Winner    uuid.UUID `json:"winner"`
	Amount    int64     `json:"amount"`
}

func (AuctionSettled) Kind() string { return KindAuctionSettled }

// AuctionEndedNoSale announces that an auction closed without a transfer.
type AuctionEndedNoSale struct {
	Type      string    `json:"type"`
	AuctionID uuid.UUID `json:"auctionId"`
	Reason    string    `json:"reason"`
}

func (AuctionEndedNoSale) Kind() string { return KindAuctionEndedNoSale }

// NewHighestBidEvent builds a NewHighestBid with its type discriminator set.
func NewHighestBidEvent(auctionID uuid.UUID, hb HighestBid, timeLeftSec int64) NewHighestBid {
	return NewHighestBid{Type: KindNewHighestBid, AuctionID: auctionID, HighestBid: hb, TimeLeftSec: timeLeftSec}
}

// NewAuctionSettledEvent builds an AuctionSettled with its type discriminator set.
func NewAuctionSettledEvent(auctionID, winner uuid.UUID, amount int64) AuctionSettled {
	return AuctionSettled{Type: KindAuctionSettled, AuctionID: auctionID, Winner: winner, Amount: amount}
}

// NewAuctionEndedNoSaleEvent builds an AuctionEndedNoSale with its type discriminator set.
func NewAuctionEndedNoSaleEvent(auctionID uuid.UUID, reason string) AuctionEndedNoSale {
	return AuctionEndedNoSale{Type: KindAuctionEndedNoSale, AuctionID: auctionID, Reason: reason}
}

// Broadcaster fans an event out to the realtime channel consumed by the
// socket gateway. Publish once; delivery guarantees end there.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev Event) error
}

// Publisher pushes a raw message to a message broker exchange.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}
