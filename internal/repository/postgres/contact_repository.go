package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/campaign-console/internal/domain"
)

// ContactRepository persists list contacts. Each BulkInsert call covers a
// single chunk and commits atomically; chunk ordering is the caller's job.
type ContactRepository struct {
	db *sqlx.DB
}

// NewContactRepository constructs the repository.
func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// BulkInsert inserts a chunk of contacts referencing the list.
func (r *ContactRepository) BulkInsert(ctx context.Context, listID uuid.UUID, contacts []domain.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `INSERT INTO contacts (id, list_id, phone, name, email, company, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`)
		if err != nil {
			return fmt.Errorf("contact repo: prepare insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, c := range contacts {
			if _, err := stmt.ExecContext(ctx, uuid.New(), listID, c.Phone, c.Name, c.Email, c.Company, now); err != nil {
				return fmt.Errorf("contact repo: insert: %w", err)
			}
		}
		return nil
	})
}

// CountByList returns the number of contacts stored for a list.
func (r *ContactRepository) CountByList(ctx context.Context, listID uuid.UUID) (int, error) {
	var count int
	if err := r.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM contacts WHERE list_id = $1`, listID).Scan(&count); err != nil {
		return 0, fmt.Errorf("contact repo: count: %w", err)
	}
	return count, nil
}
