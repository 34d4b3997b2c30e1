package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/acme/campaign-console/internal/domain"
)

// DraftRepository stores wizard draft snapshots in Redis, one snapshot per
// client under a fixed namespace. Last write wins; there is no locking
// between concurrent sessions of the same client.
type DraftRepository struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewDraftRepository constructs the repository. A zero ttl keeps drafts
// until explicitly cleared.
func NewDraftRepository(client *redis.Client, namespace string, ttl time.Duration) *DraftRepository {
	if namespace == "" {
		namespace = "campaign:wizard:draft"
	}
	return &DraftRepository{client: client, namespace: namespace, ttl: ttl}
}

// Save unconditionally overwrites the client's snapshot.
func (r *DraftRepository) Save(ctx context.Context, clientID uuid.UUID, cfg domain.WizardConfiguration) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("draft repo: marshal: %w", err)
	}
	if err := r.client.Set(ctx, r.key(clientID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("draft repo: save: %w", err)
	}
	return nil
}

// Load returns the client's snapshot, or the default configuration when
// no snapshot exists or the stored payload does not deserialize.
func (r *DraftRepository) Load(ctx context.Context, clientID uuid.UUID) (domain.WizardConfiguration, error) {
	payload, err := r.client.Get(ctx, r.key(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DefaultConfiguration(), nil
		}
		return domain.WizardConfiguration{}, fmt.Errorf("draft repo: load: %w", err)
	}

	var cfg domain.WizardConfiguration
	if err := json.Unmarshal(payload, &cfg); err != nil {
		// A corrupt snapshot is unrecoverable user state; fall back to
		// defaults rather than blocking the wizard.
		return domain.DefaultConfiguration(), nil
	}
	return cfg, nil
}

// Clear removes the client's snapshot.
func (r *DraftRepository) Clear(ctx context.Context, clientID uuid.UUID) error {
	if err := r.client.Del(ctx, r.key(clientID)).Err(); err != nil {
		return fmt.Errorf("draft repo: clear: %w", err)
	}
	return nil
}

func (r *DraftRepository) key(clientID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", r.namespace, clientID.String())
}
