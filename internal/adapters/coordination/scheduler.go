package coordination

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// endingKey is the sorted set of open auctions, scored by end time in
	// epoch milliseconds.
	endingKey = "auctions:ending"
)

func endKey(auctionID uuid.UUID) string {
	return fmt.Sprintf("auction:%s:end", auctionID)
}

// RedisScheduler implements auctions.Scheduler on a Redis sorted set plus
// a convenience end-time key per auction.
type RedisScheduler struct {
	client redis.UniversalClient
}

// NewRedisScheduler creates a Redis-backed deadline scheduler.
func NewRedisScheduler(client redis.UniversalClient) *RedisScheduler {
	return &RedisScheduler{client: client}
}

// Schedule upserts the auction's deadline. ZADD on an existing member
// just moves its score, so concurrent calls resolve last-writer-wins.
func (s *RedisScheduler) Schedule(ctx context.Context, auctionID uuid.UUID, end time.Time) error {
	score := float64(end.UnixMilli())
	if err := s.client.ZAdd(ctx, endingKey, redis.Z{Score: score, Member: auctionID.String()}).Err(); err != nil {
		return fmt.Errorf("failed to add scheduling entry: %w", err)
	}
	if err := s.client.Set(ctx, endKey(auctionID), end.UnixMilli(), 0).Err(); err != nil {
		return fmt.Errorf("failed to set end-time key: %w", err)
	}
	return nil
}

// Unschedule removes the auction from both structures. Removing an
// already-removed id is not an error.
func (s *RedisScheduler) Unschedule(ctx context.Context, auctionID uuid.UUID) error {
	if err := s.client.ZRem(ctx, endingKey, auctionID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove scheduling entry: %w", err)
	}
	if err := s.client.Del(ctx, endKey(auctionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete end-time key: %w", err)
	}
	return nil
}

// Due returns up to limit auction ids whose end time has passed,
// ascending by end time.
func (s *RedisScheduler) Due(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	members, err := s.client.ZRangeByScore(ctx, endingKey, &redis.ZRangeBy{
		Min:    "0",
		Max:    strconv.FormatInt(now.UnixMilli(), 10),
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query due auctions: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, parseErr := uuid.Parse(m)
		if parseErr != nil {
			return nil, fmt.Errorf("malformed scheduling entry %q: %w", m, parseErr)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
