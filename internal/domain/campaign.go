package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus enumerates lifecycle states of a campaign record.
type CampaignStatus string

const (
	// CampaignStatusDraft marks an inert placeholder saved from the wizard.
	CampaignStatusDraft CampaignStatus = "draft"
	// CampaignStatusScheduled marks a campaign launched for a later time.
	CampaignStatusScheduled CampaignStatus = "scheduled"
	// CampaignStatusRunning marks a campaign launched immediately.
	CampaignStatusRunning CampaignStatus = "running"
	// CampaignStatusDispatchPending marks a launched campaign whose
	// execution trigger has not been delivered yet.
	CampaignStatusDispatchPending CampaignStatus = "dispatch_pending"
	CampaignStatusCompleted       CampaignStatus = "completed"
	CampaignStatusFailed          CampaignStatus = "failed"
)

// LaunchedStatus derives the campaign status from the schedule mode.
func LaunchedStatus(mode ScheduleMode) CampaignStatus {
	if mode == ScheduleLater {
		return CampaignStatusScheduled
	}
	return CampaignStatusRunning
}

// Campaign is the persisted campaign record created at launch. It carries
// every field the remote execution engine needs, denormalized.
type Campaign struct {
	ID            uuid.UUID
	ClientID      uuid.UUID
	ContactListID *uuid.UUID
	Name          string
	Goal          string
	Status        CampaignStatus

	ScheduleMode   ScheduleMode
	ScheduledAt    *time.Time
	FromHour       int
	ToHour         int
	ActiveDays     []time.Weekday
	MaxCallsPerDay int
	Retry          RetrySettings

	Script              string
	VoiceID             string
	LanguageID          string
	SpeakingSpeed       float64
	LeadQualification   bool
	QualifyingQuestions []string
	CallRecording       bool
	VoicemailDetection  bool
	VoicemailAction     VoicemailAction
	VoicemailScript     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContactList groups the contacts of a single campaign launch.
type ContactList struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Agent is an execution agent owned by a client. Exactly one active
// agent is required to launch.
type Agent struct {
	ID       uuid.UUID
	ClientID uuid.UUID
	Name     string
	Active   bool
}

// TriggerOutcome records how the execution-trigger stage ended.
type TriggerOutcome string

const (
	TriggerDelivered TriggerOutcome = "delivered"
	TriggerFallback  TriggerOutcome = "fallback"
	TriggerFailed    TriggerOutcome = "failed"
	TriggerSkipped   TriggerOutcome = "skipped"
)

// LaunchRecord is the ephemeral trail of remote resources created during
// a single launch attempt. It is never persisted as a unit; on failure it
// is discarded, not rolled back.
type LaunchRecord struct {
	LaunchID         uuid.UUID
	ContactListID    uuid.UUID
	ContactsInserted int
	CampaignID       uuid.UUID
	AgentID          uuid.UUID
	Trigger          TriggerOutcome
	StartedAt        time.Time
}
