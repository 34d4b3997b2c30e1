package trigger

import (
	"context"

	"github.com/google/uuid"
)

// Payload is the denormalized configuration sent to the external workflow
// engine. It carries every field the remote execution engine needs plus
// the identifiers produced during the launch.
type Payload struct {
	CampaignID          uuid.UUID `json:"campaign_id"`
	AgentID             uuid.UUID `json:"agent_id"`
	ClientID            uuid.UUID `json:"client_id"`
	ListID              uuid.UUID `json:"list_id"`
	CampaignName        string    `json:"campaign_name"`
	Goal                string    `json:"goal,omitempty"`
	ScheduleType        string    `json:"schedule_type"`
	ScheduledAt         string    `json:"scheduled_at,omitempty"`
	FromHour            int       `json:"from_hour"`
	ToHour              int       `json:"to_hour"`
	ActiveDays          []int     `json:"active_days"`
	MaxCallsPerDay      int       `json:"max_calls_per_day,omitempty"`
	RetryEnabled        bool      `json:"retry_enabled"`
	MaxRetries          int       `json:"max_retries"`
	RetryAfter          int       `json:"retry_after"`
	RetryUnit           string    `json:"retry_unit"`
	Script              string    `json:"script"`
	Voice               string    `json:"voice"`
	Language            string    `json:"language"`
	SpeakingSpeed       float64   `json:"speaking_speed"`
	LeadQualification   bool      `json:"lead_qualification"`
	QualifyingQuestions []string  `json:"qualifying_questions"`
	CallRecording       bool      `json:"call_recording"`
	VoicemailDetection  bool      `json:"voicemail_detection"`
	VoicemailAction     string    `json:"voicemail_action"`
	VoicemailScript     string    `json:"voicemail_script,omitempty"`
}

// Result reports which trigger path delivered the payload.
type Result struct {
	UsedFallback bool
}

// Client invokes the external workflow engine.
type Client interface {
	Trigger(ctx context.Context, payload Payload) (Result, error)
}
