package quota

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/acme/campaign-console/internal/domain"
	"github.com/acme/campaign-console/internal/repository"
)

func TestRemaining(t *testing.T) {
	cases := []struct {
		allowance int
		consumed  int
		want      int
	}{
		{1000, 0, 1000},
		{1000, 400, 600},
		{1000, 1000, 0},
		{1000, 1200, -200},
		{0, 0, 0},
	}

	for _, tc := range cases {
		if got := Remaining(tc.allowance, tc.consumed); got != tc.want {
			t.Errorf("Remaining(%d, %d) = %d, want %d", tc.allowance, tc.consumed, got, tc.want)
		}
	}
}

func TestWouldExceedCountsOnlyValidContacts(t *testing.T) {
	batch := []domain.Contact{
		{Phone: "+14155552671"},
		{Phone: "not-a-phone"},
		{Phone: "9876543210"},
	}

	if WouldExceed(batch, 2) {
		t.Fatal("two valid contacts against remaining 2 should not exceed")
	}
	if !WouldExceed(batch, 1) {
		t.Fatal("two valid contacts against remaining 1 should exceed")
	}
}

func TestWouldExceedOverconsumed(t *testing.T) {
	// countValid > allowance - consumed must hold even past the
	// allowance: an over-consumed client exceeds with any batch.
	remaining := Remaining(500, 700)
	if !WouldExceed(nil, remaining) {
		t.Fatal("over-consumed client with empty batch must exceed")
	}
	if !WouldExceed([]domain.Contact{{Phone: "+14155552671"}}, remaining) {
		t.Fatal("over-consumed client must exceed")
	}
}

func TestWouldExceedBoundary(t *testing.T) {
	batch := make([]domain.Contact, 600)
	for i := range batch {
		batch[i] = domain.Contact{Phone: "+14155552671"}
	}

	if WouldExceed(batch, 600) {
		t.Fatal("batch equal to remaining must be allowed")
	}
	if !WouldExceed(batch, 599) {
		t.Fatal("batch one over remaining must be rejected")
	}
}

type staticUsage struct {
	usage repository.Usage
}

func (s staticUsage) Get(context.Context, uuid.UUID) (repository.Usage, error) {
	return s.usage, nil
}

func TestTrackerSnapshot(t *testing.T) {
	tracker := NewTracker(staticUsage{usage: repository.Usage{Allowance: 1000, Consumed: 400}})

	snap, err := tracker.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Allowance != 1000 || snap.Consumed != 400 || snap.Remaining != 600 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestTrackerSnapshotOverconsumed(t *testing.T) {
	tracker := NewTracker(staticUsage{usage: repository.Usage{Allowance: 500, Consumed: 700}})

	snap, err := tracker.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Remaining != -200 {
		t.Fatalf("remaining = %d, want -200", snap.Remaining)
	}
}
