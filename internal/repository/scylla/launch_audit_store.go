package scylla

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acme/campaign-console/internal/repository"
)

// LaunchAuditStore keeps the per-stage audit trail of launch attempts in
// Scylla. The trail is what supports manual cleanup after a partially
// completed launch: every stage records the identifiers it produced.
type LaunchAuditStore struct {
	session *gocql.Session
}

// NewLaunchAuditStore creates a new store.
func NewLaunchAuditStore(session *gocql.Session) *LaunchAuditStore {
	return &LaunchAuditStore{session: session}
}

// Append writes one stage outcome.
func (s *LaunchAuditStore) Append(ctx context.Context, entry repository.AuditEntry) error {
	if err := s.session.Query(`INSERT INTO launch_audit (launch_id, seq, stage, status, campaign_id, list_id, agent_id, detail, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.LaunchID.String(), entry.Seq, entry.Stage, entry.Status,
		entry.CampaignID.String(), entry.ListID.String(), entry.AgentID.String(),
		entry.Detail, entry.OccurredAt,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("launch audit: insert: %w", err)
	}
	return nil
}

// ListByLaunch returns all stage outcomes of a launch attempt in order.
func (s *LaunchAuditStore) ListByLaunch(ctx context.Context, launchID uuid.UUID) ([]repository.AuditEntry, error) {
	iter := s.session.Query(`SELECT launch_id, seq, stage, status, campaign_id, list_id, agent_id, detail, occurred_at
		FROM launch_audit WHERE launch_id = ? ORDER BY seq ASC`,
		launchID.String(),
	).WithContext(ctx).Iter()

	var entries []repository.AuditEntry
	var (
		launchStr   string
		campaignStr string
		listStr     string
		agentStr    string
	)
	var entry repository.AuditEntry
	for iter.Scan(&launchStr, &entry.Seq, &entry.Stage, &entry.Status, &campaignStr, &listStr, &agentStr, &entry.Detail, &entry.OccurredAt) {
		entry.LaunchID = parseUUID(launchStr)
		entry.CampaignID = parseUUID(campaignStr)
		entry.ListID = parseUUID(listStr)
		entry.AgentID = parseUUID(agentStr)
		entries = append(entries, entry)
		entry = repository.AuditEntry{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("launch audit: list: %w", err)
	}
	return entries, nil
}

// Schema returns the CQL statements required by the store.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS launch_audit (
			launch_id text,
			seq int,
			stage text,
			status text,
			campaign_id text,
			list_id text,
			agent_id text,
			detail text,
			occurred_at timestamp,
			PRIMARY KEY (launch_id, seq)
		) WITH CLUSTERING ORDER BY (seq ASC)`,
	}
}

func parseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}
