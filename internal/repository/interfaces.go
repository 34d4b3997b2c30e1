package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acme/campaign-console/internal/domain"
	apperrors "github.com/acme/campaign-console/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// ContactListRepository creates contact lists for campaign launches.
type ContactListRepository interface {
	Create(ctx context.Context, list *domain.ContactList) error
}

// ContactRepository stores the contacts of a list. BulkInsert persists a
// single chunk; the orchestrator owns chunking and ordering.
type ContactRepository interface {
	BulkInsert(ctx context.Context, listID uuid.UUID, contacts []domain.Contact) error
	CountByList(ctx context.Context, listID uuid.UUID) (int, error)
}

// CampaignRepository manages campaign record persistence.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error
	ListByStatus(ctx context.Context, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error)
}

// AgentRepository resolves execution agents.
type AgentRepository interface {
	// ActiveForClient returns the client's single active agent, or
	// ErrNotFound when the client has none.
	ActiveForClient(ctx context.Context, clientID uuid.UUID) (*domain.Agent, error)
}

// Usage reports a client's billable allowance and consumption for the
// current period.
type Usage struct {
	Allowance int
	Consumed  int
}

// UsageRepository supplies usage counts per client.
type UsageRepository interface {
	Get(ctx context.Context, clientID uuid.UUID) (Usage, error)
}

// DraftRepository persists the single wizard draft snapshot per client.
// Load falls back to the default configuration on a missing or corrupt
// snapshot rather than propagating an error.
type DraftRepository interface {
	Save(ctx context.Context, clientID uuid.UUID, cfg domain.WizardConfiguration) error
	Load(ctx context.Context, clientID uuid.UUID) (domain.WizardConfiguration, error)
	Clear(ctx context.Context, clientID uuid.UUID) error
}

// AuditEntry captures one launch-stage outcome, with the identifiers
// needed for manual cleanup of partially completed launches.
type AuditEntry struct {
	LaunchID   uuid.UUID
	Seq        int
	Stage      string
	Status     string
	CampaignID uuid.UUID
	ListID     uuid.UUID
	AgentID    uuid.UUID
	Detail     string
	OccurredAt time.Time
}

// LaunchAuditStore keeps an append-only launch audit trail.
type LaunchAuditStore interface {
	Append(ctx context.Context, entry AuditEntry) error
	ListByLaunch(ctx context.Context, launchID uuid.UUID) ([]AuditEntry, error)
}
