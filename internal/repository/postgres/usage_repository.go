package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/campaign-console/internal/repository"
)

// UsageRepository reads per-client call allowance and consumption.
type UsageRepository struct {
	db               *sqlx.DB
	defaultAllowance int
}

// NewUsageRepository constructs the repository. defaultAllowance applies
// to clients without a usage row.
func NewUsageRepository(db *sqlx.DB, defaultAllowance int) *UsageRepository {
	return &UsageRepository{db: db, defaultAllowance: defaultAllowance}
}

// Get returns the client's usage for the current period.
func (r *UsageRepository) Get(ctx context.Context, clientID uuid.UUID) (repository.Usage, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT allowance, consumed FROM client_usage WHERE client_id = $1`, clientID)

	var usage repository.Usage
	if err := row.Scan(&usage.Allowance, &usage.Consumed); err != nil {
		if err == sql.ErrNoRows {
			return repository.Usage{Allowance: r.defaultAllowance}, nil
		}
		return repository.Usage{}, fmt.Errorf("usage repo: get: %w", err)
	}
	return usage, nil
}
