package quota

import (
	"context"

	"github.com/google/uuid"

	"github.com/acme/campaign-console/internal/domain"
	"github.com/acme/campaign-console/internal/repository"
)

// Remaining returns the allowance left for the period. Goes negative when
// the client is over-consumed so WouldExceed stays a strict comparison of
// countValid against allowance minus consumed.
func Remaining(allowance, consumed int) int {
	return allowance - consumed
}

// WouldExceed reports whether launching the batch would exceed the
// remaining allowance. Only contacts with a valid phone count.
func WouldExceed(batch []domain.Contact, remaining int) bool {
	return domain.CountValid(batch) > remaining
}

// Tracker supplies live usage figures for quota gates.
type Tracker struct {
	usage repository.UsageRepository
}

// NewTracker constructs a tracker over the usage source.
func NewTracker(usage repository.UsageRepository) *Tracker {
	return &Tracker{usage: usage}
}

// Snapshot is a point-in-time view of a client's quota.
type Snapshot struct {
	Allowance int
	Consumed  int
	Remaining int
}

// Get fetches the client's current quota snapshot.
func (t *Tracker) Get(ctx context.Context, clientID uuid.UUID) (Snapshot, error) {
	usage, err := t.usage.Get(ctx, clientID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Allowance: usage.Allowance,
		Consumed:  usage.Consumed,
		Remaining: Remaining(usage.Allowance, usage.Consumed),
	}, nil
}
