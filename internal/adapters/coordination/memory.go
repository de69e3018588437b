package coordination

import (
	"container/heap"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paddleapp/paddle/internal/domain/auctions"
)

// MemoryLocker is a single-process auctions.Locker used as a test double
// and for single-node deployments that skip Redis.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

// Acquire fails fast with auctions.ErrLockUnavailable when the key is
// already held; there is no retry since in-process contention is brief.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (auctions.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, auctions.ErrLockUnavailable
	}
	l.held[key] = true
	return &memoryLock{locker: l, key: key}, nil
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	once   sync.Once
}

func (m *memoryLock) Unlock(ctx context.Context) error {
	m.once.Do(func() {
		m.locker.mu.Lock()
		delete(m.locker.held, m.key)
		m.locker.mu.Unlock()
	})
	return nil
}

type scheduleEntry struct {
	auctionID uuid.UUID
	endMs     int64
	index     int
}

type scheduleHeap []*scheduleEntry

func (h scheduleHeap) Len() int            { return len(h) }
func (h scheduleHeap) Less(i, j int) bool  { return h[i].endMs < h[j].endMs }
func (h scheduleHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *scheduleHeap) Push(x any)         { e := x.(*scheduleEntry); e.index = len(*h); *h = append(*h, e) }
func (h *scheduleHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// MemoryScheduler is a min-heap auctions.Scheduler with an id->entry map,
// mirroring the sorted-set semantics for single-process use and tests.
type MemoryScheduler struct {
	mu      sync.Mutex
	entries scheduleHeap
	byID    map[uuid.UUID]*scheduleEntry
}

// NewMemoryScheduler creates an in-process deadline scheduler.
func NewMemoryScheduler() *MemoryScheduler {
	return &MemoryScheduler{byID: make(map[uuid.UUID]*scheduleEntry)}
}

// Schedule upserts; last writer wins on the end time.
func (s *MemoryScheduler) Schedule(ctx context.Context, auctionID uuid.UUID, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[auctionID]; ok {
		e.endMs = end.UnixMilli()
		heap.Fix(&s.entries, e.index)
		return nil
	}
	e := &scheduleEntry{auctionID: auctionID, endMs: end.UnixMilli()}
	heap.Push(&s.entries, e)
	s.byID[auctionID] = e
	return nil
}

// Unschedule removes the entry; removing a missing id is a no-op.
func (s *MemoryScheduler) Unschedule(ctx context.Context, auctionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[auctionID]
	if !ok {
		return nil
	}
	heap.Remove(&s.entries, e.index)
	delete(s.byID, auctionID)
	return nil
}

// Due returns up to limit ids with end time <= now, ascending. Entries
// stay in the index until Unschedule removes them.
func (s *MemoryScheduler) Due(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()
	due := make([]*scheduleEntry, 0)
	for _, e := range s.entries {
		if e.endMs <= nowMs {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].endMs < due[j].endMs })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	ids := make([]uuid.UUID, len(due))
	for i, e := range due {
		ids[i] = e.auctionID
	}
	return ids, nil
}
