package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/acme/campaign-console/internal/domain"
)

// ContactListRepository persists contact lists.
type ContactListRepository struct {
	db *sqlx.DB
}

// NewContactListRepository constructs the repository.
func NewContactListRepository(db *sqlx.DB) *ContactListRepository {
	return &ContactListRepository{db: db}
}

// Create inserts a new contact list and leaves the generated id on the record.
func (r *ContactListRepository) Create(ctx context.Context, list *domain.ContactList) error {
	q := `INSERT INTO contact_lists (id, client_id, name, created_at)
		VALUES (:id, :client_id, :name, :created_at)`

	params := map[string]any{
		"id":         list.ID,
		"client_id":  list.ClientID,
		"name":       list.Name,
		"created_at": list.CreatedAt,
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("contact list repo: insert: %w", err)
	}
	return nil
}
