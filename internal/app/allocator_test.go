package app_test

import (
	"testing"

	"quiz-editor/internal/app"
	"quiz-editor/internal/domain"
)

func TestAllocatorIDsAreDistinctUnderFrozenClock(t *testing.T) {
	ids := app.NewAllocatorWithClock(fixedClock(1_690_000_000_000))

	seen := make(map[domain.ID]struct{})
	for i := 0; i < 1000; i++ {
		id := ids.Allocate()
		if !id.IsProvisional() {
			t.Fatalf("expected provisional id, got %s", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate provisional id %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestAllocatorNeverCollidesWithDurableIDs(t *testing.T) {
	ids := app.NewAllocatorWithClock(fixedClock(10))

	id := ids.Allocate()
	if id == domain.DurableID(10) {
		t.Fatalf("provisional %s must not equal durable 10", id)
	}
	if id.Value() != 10 {
		t.Fatalf("expected clock value 10, got %d", id.Value())
	}
}
