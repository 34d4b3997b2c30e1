package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/campaign-console/internal/domain"
	"github.com/acme/campaign-console/internal/repository"
)

// CampaignRepository implements repository.CampaignRepository using PostgreSQL.
type CampaignRepository struct {
	db *sqlx.DB
}

// NewCampaignRepository constructs a new repository.
func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create inserts a new campaign record.
func (r *CampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	q := `INSERT INTO campaigns (
		id, client_id, contact_list_id, name, goal, status,
		schedule_mode, scheduled_at, from_hour, to_hour, active_days, max_calls_per_day,
		retry_enabled, retry_max_attempts, retry_after, retry_unit,
		script, voice_id, language_id, speaking_speed,
		lead_qualification, qualifying_questions, call_recording,
		voicemail_detection, voicemail_action, voicemail_script,
		created_at, updated_at
	) VALUES (
		:id, :client_id, :contact_list_id, :name, :goal, :status,
		:schedule_mode, :scheduled_at, :from_hour, :to_hour, :active_days, :max_calls_per_day,
		:retry_enabled, :retry_max_attempts, :retry_after, :retry_unit,
		:script, :voice_id, :language_id, :speaking_speed,
		:lead_qualification, :qualifying_questions, :call_recording,
		:voicemail_detection, :voicemail_action, :voicemail_script,
		:created_at, :updated_at
	)`

	params, err := campaignParams(campaign)
	if err != nil {
		return err
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("campaign repo: insert: %w", err)
	}

	return nil
}

// Get fetches a campaign by id.
func (r *CampaignRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	row := r.db.QueryRowxContext(ctx, selectCampaignQuery+` WHERE id = $1`, id)

	var record campaignRecord
	if err := row.StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("campaign repo: get: %w", err)
	}

	campaign, err := record.toDomain()
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

// UpdateStatus updates campaign status.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("campaign repo: update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("campaign repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByStatus returns campaigns filtered by status, oldest first.
func (r *CampaignRepository) ListByStatus(ctx context.Context, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryxContext(ctx, selectCampaignQuery+` WHERE status = $1 ORDER BY updated_at ASC LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("campaign repo: list by status: %w", err)
	}
	defer rows.Close()

	var results []*domain.Campaign
	for rows.Next() {
		var record campaignRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("campaign repo: scan: %w", err)
		}
		campaign, err := record.toDomain()
		if err != nil {
			return nil, err
		}
		results = append(results, campaign)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("campaign repo: rows err: %w", err)
	}

	return results, nil
}

const selectCampaignQuery = `SELECT id, client_id, contact_list_id, name, goal, status,
	schedule_mode, scheduled_at, from_hour, to_hour, active_days, max_calls_per_day,
	retry_enabled, retry_max_attempts, retry_after, retry_unit,
	script, voice_id, language_id, speaking_speed,
	lead_qualification, qualifying_questions, call_recording,
	voicemail_detection, voicemail_action, voicemail_script,
	created_at, updated_at
  FROM campaigns`

type campaignRecord struct {
	ID                  uuid.UUID       `db:"id"`
	ClientID            uuid.UUID       `db:"client_id"`
	ContactListID       *uuid.UUID      `db:"contact_list_id"`
	Name                string          `db:"name"`
	Goal                sql.NullString  `db:"goal"`
	Status              string          `db:"status"`
	ScheduleMode        string          `db:"schedule_mode"`
	ScheduledAt         sql.NullTime    `db:"scheduled_at"`
	FromHour            int             `db:"from_hour"`
	ToHour              int             `db:"to_hour"`
	ActiveDays          json.RawMessage `db:"active_days"`
	MaxCallsPerDay      int             `db:"max_calls_per_day"`
	RetryEnabled        bool            `db:"retry_enabled"`
	RetryMaxAttempts    int             `db:"retry_max_attempts"`
	RetryAfter          int             `db:"retry_after"`
	RetryUnit           string          `db:"retry_unit"`
	Script              string          `db:"script"`
	VoiceID             string          `db:"voice_id"`
	LanguageID          string          `db:"language_id"`
	SpeakingSpeed       float64         `db:"speaking_speed"`
	LeadQualification   bool            `db:"lead_qualification"`
	QualifyingQuestions json.RawMessage `db:"qualifying_questions"`
	CallRecording       bool            `db:"call_recording"`
	VoicemailDetection  bool            `db:"voicemail_detection"`
	VoicemailAction     string          `db:"voicemail_action"`
	VoicemailScript     sql.NullString  `db:"voicemail_script"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

func campaignParams(campaign *domain.Campaign) (map[string]any, error) {
	activeDays, err := json.Marshal(campaign.ActiveDays)
	if err != nil {
		return nil, fmt.Errorf("campaign repo: marshal active days: %w", err)
	}
	questions, err := json.Marshal(campaign.QualifyingQuestions)
	if err != nil {
		return nil, fmt.Errorf("campaign repo: marshal questions: %w", err)
	}

	return map[string]any{
		"id":                   campaign.ID,
		"client_id":            campaign.ClientID,
		"contact_list_id":      campaign.ContactListID,
		"name":                 campaign.Name,
		"goal":                 campaign.Goal,
		"status":               campaign.Status,
		"schedule_mode":        campaign.ScheduleMode,
		"scheduled_at":         campaign.ScheduledAt,
		"from_hour":            campaign.FromHour,
		"to_hour":              campaign.ToHour,
		"active_days":          activeDays,
		"max_calls_per_day":    campaign.MaxCallsPerDay,
		"retry_enabled":        campaign.Retry.Enabled,
		"retry_max_attempts":   campaign.Retry.MaxAttempts,
		"retry_after":          campaign.Retry.After,
		"retry_unit":           campaign.Retry.Unit,
		"script":               campaign.Script,
		"voice_id":             campaign.VoiceID,
		"language_id":          campaign.LanguageID,
		"speaking_speed":       campaign.SpeakingSpeed,
		"lead_qualification":   campaign.LeadQualification,
		"qualifying_questions": questions,
		"call_recording":       campaign.CallRecording,
		"voicemail_detection":  campaign.VoicemailDetection,
		"voicemail_action":     campaign.VoicemailAction,
		"voicemail_script":     campaign.VoicemailScript,
		"created_at":           campaign.CreatedAt,
		"updated_at":           campaign.UpdatedAt,
	}, nil
}

func (r campaignRecord) toDomain() (*domain.Campaign, error) {
	var activeDays []time.Weekday
	if len(r.ActiveDays) > 0 {
		if err := json.Unmarshal(r.ActiveDays, &activeDays); err != nil {
			return nil, fmt.Errorf("campaign repo: unmarshal active days: %w", err)
		}
	}
	var questions []string
	if len(r.QualifyingQuestions) > 0 {
		if err := json.Unmarshal(r.QualifyingQuestions, &questions); err != nil {
			return nil, fmt.Errorf("campaign repo: unmarshal questions: %w", err)
		}
	}

	campaign := &domain.Campaign{
		ID:             r.ID,
		ClientID:       r.ClientID,
		ContactListID:  r.ContactListID,
		Name:           r.Name,
		Goal:           r.Goal.String,
		Status:         domain.CampaignStatus(r.Status),
		ScheduleMode:   domain.ScheduleMode(r.ScheduleMode),
		FromHour:       r.FromHour,
		ToHour:         r.ToHour,
		ActiveDays:     activeDays,
		MaxCallsPerDay: r.MaxCallsPerDay,
		Retry: domain.RetrySettings{
			Enabled:     r.RetryEnabled,
			MaxAttempts: r.RetryMaxAttempts,
			After:       r.RetryAfter,
			Unit:        domain.RetryUnit(r.RetryUnit),
		},
		Script:              r.Script,
		VoiceID:             r.VoiceID,
		LanguageID:          r.LanguageID,
		SpeakingSpeed:       r.SpeakingSpeed,
		LeadQualification:   r.LeadQualification,
		QualifyingQuestions: questions,
		CallRecording:       r.CallRecording,
		VoicemailDetection:  r.VoicemailDetection,
		VoicemailAction:     domain.VoicemailAction(r.VoicemailAction),
		VoicemailScript:     r.VoicemailScript.String,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}

	if r.ScheduledAt.Valid {
		t := r.ScheduledAt.Time
		campaign.ScheduledAt = &t
	}

	return campaign, nil
}
