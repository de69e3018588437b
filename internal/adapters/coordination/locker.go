package coordination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/paddleapp/paddle/internal/domain/auctions"
)

// Lock key namespaces. Bid admission and settlement use distinct
// namespaces so a bid and a settlement on the same auction never contend
// for the same lock.
const (
	bidLockPrefix    = "locks:auction:"
	settleLockPrefix = "locks:auction:settle:"
)

// LockOptions tunes lease duration and bounded retry.
type LockOptions struct {
	Lease      time.Duration
	RetryCount int
	RetryDelay time.Duration
}

// RedsyncLocker implements auctions.Locker on a Redis-backed redlock.
// Leases self-expire, so a crashed holder unblocks subsequent attempts
// after at most the lease duration.
type RedsyncLocker struct {
	rs     *redsync.Redsync
	prefix string
	opts   LockOptions
}

// NewBidLocker creates the locker serializing bid admission per auction.
func NewBidLocker(client redis.UniversalClient, opts LockOptions) *RedsyncLocker {
	return newLocker(client, bidLockPrefix, opts)
}

// NewSettleLocker creates the locker serializing settlement per auction.
func NewSettleLocker(client redis.UniversalClient, opts LockOptions) *RedsyncLocker {
	return newLocker(client, settleLockPrefix, opts)
}

func newLocker(client redis.UniversalClient, prefix string, opts LockOptions) *RedsyncLocker {
	pool := goredis.NewPool(client)
	return &RedsyncLocker{
		rs:     redsync.New(pool),
		prefix: prefix,
		opts:   opts,
	}
}

// Acquire obtains the lock or fails with auctions.ErrLockUnavailable
// after the bounded retries are exhausted.
func (l *RedsyncLocker) Acquire(ctx context.Context, key string) (auctions.Lock, error) {
	mutex := l.rs.NewMutex(l.prefix+key,
		redsync.WithExpiry(l.opts.Lease),
		redsync.WithTries(l.opts.RetryCount),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", auctions.ErrLockUnavailable, err)
	}
	return &redsyncLock{mutex: mutex}, nil
}

type redsyncLock struct {
	mutex *redsync.Mutex
}

func (l *redsyncLock) Unlock(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		// The lease expired before release; the lock was already free.
		return errors.New("lock was no longer held")
	}
	return nil
}
