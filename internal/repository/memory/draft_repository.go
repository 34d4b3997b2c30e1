package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/acme/campaign-console/internal/domain"
)

// DraftRepository is an in-memory draft store for tests and single-node
// development. Snapshots are kept as serialized JSON so load/save behave
// exactly like the Redis-backed implementation.
type DraftRepository struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID][]byte
}

// NewDraftRepository constructs an empty in-memory store.
func NewDraftRepository() *DraftRepository {
	return &DraftRepository{snapshots: make(map[uuid.UUID][]byte)}
}

// Save overwrites the client's snapshot.
func (r *DraftRepository) Save(_ context.Context, clientID uuid.UUID, cfg domain.WizardConfiguration) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshots[clientID] = payload
	r.mu.Unlock()
	return nil
}

// Load returns the snapshot or the default configuration.
func (r *DraftRepository) Load(_ context.Context, clientID uuid.UUID) (domain.WizardConfiguration, error) {
	r.mu.RLock()
	payload, ok := r.snapshots[clientID]
	r.mu.RUnlock()
	if !ok {
		return domain.DefaultConfiguration(), nil
	}
	var cfg domain.WizardConfiguration
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return domain.DefaultConfiguration(), nil
	}
	return cfg, nil
}

// Clear removes the snapshot.
func (r *DraftRepository) Clear(_ context.Context, clientID uuid.UUID) error {
	r.mu.Lock()
	delete(r.snapshots, clientID)
	r.mu.Unlock()
	return nil
}

// Corrupt overwrites the client's snapshot with an undecodable payload.
// Test hook for the corrupt-snapshot fallback path.
func (r *DraftRepository) Corrupt(clientID uuid.UUID) {
	r.mu.Lock()
	r.snapshots[clientID] = []byte("{not json")
	r.mu.Unlock()
}
