package settlement

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paddleapp/paddle/internal/domain/auctions"
	"github.com/paddleapp/paddle/pkg/events"
)

// Exchange is the broker exchange carrying durable settlement outcomes.
const Exchange = "auction.events"

// Settler settles one auction. Satisfied by *Service.
type Settler interface {
	Settle(ctx context.Context, auctionID uuid.UUID) (Outcome, error)
}

// Driver polls the deadline index and settles due auctions. Any number of
// driver instances may run concurrently; Settle is the serialization
// point, so correctness never depends on a single instance.
type Driver struct {
	settler   Settler
	schedule  auctions.Scheduler
	broadcast events.Broadcaster
	publisher events.Publisher
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewDriver creates a settlement driver.
func NewDriver(
	settler Settler,
	schedule auctions.Scheduler,
	broadcast events.Broadcaster,
	publisher events.Publisher,
	batchSize int,
	interval time.Duration,
	logger *slog.Logger,
) *Driver {
	return &Driver{
		settler:   settler,
		schedule:  schedule,
		broadcast: broadcast,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run polls until the context is cancelled. An in-flight batch is always
// finished before returning.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce processes one bounded batch of due auctions. One auction's
// failure never blocks the rest of the batch.
func (d *Driver) RunOnce(ctx context.Context) {
	due, err := d.schedule.Due(ctx, d.now(), d.batchSize)
	if err != nil {
		d.logger.Error("failed to query due auctions", "error", err)
		return
	}

	for _, auctionID := range due {
		outcome, err := d.settler.Settle(ctx, auctionID)
		if err != nil {
			d.logger.Error("error settling auction", "auction_id", auctionID, "error", err)
			continue
		}
		if !outcome.Handled {
			// Another driver holds the settlement lock; it will publish.
			continue
		}
		d.announce(ctx, outcome)
	}
}

// announce publishes exactly one outcome event per decisively settled
// auction: a funds transfer or a no-sale with a reason. Neutral
// already-handled outcomes publish nothing.
func (d *Driver) announce(ctx context.Context, outcome Outcome) {
	var ev events.Event
	switch {
	case outcome.Settled:
		d.logger.Info("settled auction",
			"auction_id", outcome.AuctionID, "winner", outcome.WinnerID, "amount", outcome.Amount)
		ev = events.NewAuctionSettledEvent(outcome.AuctionID, outcome.WinnerID, outcome.Amount)
	case outcome.Reason != "":
		d.logger.Info("auction ended without sale",
			"auction_id", outcome.AuctionID, "reason", outcome.Reason)
		ev = events.NewAuctionEndedNoSaleEvent(outcome.AuctionID, outcome.Reason)
	default:
		d.logger.Debug("auction already handled", "auction_id", outcome.AuctionID)
		return
	}

	if err := d.broadcast.Broadcast(ctx, ev); err != nil {
		d.logger.Error("failed to broadcast settlement outcome", "auction_id", outcome.AuctionID, "error", err)
	}

	if d.publisher != nil {
		body, err := json.Marshal(ev)
		if err != nil {
			d.logger.Error("failed to marshal settlement outcome", "auction_id", outcome.AuctionID, "error", err)
			return
		}
		if err := d.publisher.Publish(ctx, Exchange, ev.Kind(), body); err != nil {
			d.logger.Error("failed to publish settlement outcome", "auction_id", outcome.AuctionID, "error", err)
		}
	}
}
