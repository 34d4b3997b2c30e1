package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/campaign-console/internal/domain"
	"github.com/acme/campaign-console/internal/repository"
)

// AgentRepository resolves execution agents from PostgreSQL.
type AgentRepository struct {
	db *sqlx.DB
}

// NewAgentRepository constructs the repository.
func NewAgentRepository(db *sqlx.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// ActiveForClient returns the client's single active agent.
func (r *AgentRepository) ActiveForClient(ctx context.Context, clientID uuid.UUID) (*domain.Agent, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT id, client_id, name, active
		FROM agents WHERE client_id = $1 AND active = TRUE
		ORDER BY created_at DESC LIMIT 1`, clientID)

	var record struct {
		ID       uuid.UUID `db:"id"`
		ClientID uuid.UUID `db:"client_id"`
		Name     string    `db:"name"`
		Active   bool      `db:"active"`
	}
	if err := row.StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("agent repo: active for client: %w", err)
	}

	return &domain.Agent{
		ID:       record.ID,
		ClientID: record.ClientID,
		Name:     record.Name,
		Active:   record.Active,
	}, nil
}
