package app

import (
	"sync"
	"time"

	"quiz-editor/internal/domain"
)

// Allocator hands out provisional ids. Values follow the wall clock in
// milliseconds and never repeat within the allocator's lifetime.
type Allocator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func NewAllocator() *Allocator {
	return NewAllocatorWithClock(time.Now)
}

// NewAllocatorWithClock is used by tests for deterministic ids.
func NewAllocatorWithClock(now func() time.Time) *Allocator {
	return &Allocator{now: now}
}

// Allocate returns a fresh provisional id.
func (a *Allocator) Allocate() domain.ID {
	a.mu.Lock()
	defer a.mu.Unlock()

	v := a.now().UnixMilli()
	if v <= a.last {
		v = a.last + 1
	}
	a.last = v
	return domain.ProvisionalID(v)
}
