package launch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/acme/campaign-console/internal/domain"
	"github.com/acme/campaign-console/internal/queue"
	"github.com/acme/campaign-console/internal/repository"
	"github.com/acme/campaign-console/internal/trigger"
	apperrors "github.com/acme/campaign-console/pkg/errors"
	"github.com/acme/campaign-console/pkg/logger"
)

// ErrNoActiveAgent indicates the client has no active execution agent to
// run the campaign.
var ErrNoActiveAgent = errors.New("no active agent for client")

// TriggerPolicy names how an execution-trigger failure is treated.
type TriggerPolicy string

const (
	// PolicyBestEffort logs trigger failures and still reports the launch
	// as successful; the campaign is parked in dispatch_pending.
	PolicyBestEffort TriggerPolicy = "best_effort"
	// PolicyRequired fails the launch when the trigger cannot be delivered.
	PolicyRequired TriggerPolicy = "required"
)

// ParsePolicy maps a config string to a policy, defaulting to best effort.
func ParsePolicy(s string) TriggerPolicy {
	if TriggerPolicy(s) == PolicyRequired {
		return PolicyRequired
	}
	return PolicyBestEffort
}

// Stage names as recorded in the audit trail and launch events.
const (
	StageCreateList     = "create_list"
	StageInsertContacts = "insert_contacts"
	StageCreateCampaign = "create_campaign"
	StageResolveAgent   = "resolve_agent"
	StageTrigger        = "trigger"
)

// Orchestrator executes the ordered launch sequence: contact list,
// chunked contact inserts, campaign record, agent resolution, execution
// trigger. There is no compensation for partial completion; every stage
// outcome is written to the audit trail with its identifiers so partial
// state can be cleaned up manually.
type Orchestrator struct {
	lists     repository.ContactListRepository
	contacts  repository.ContactRepository
	campaigns repository.CampaignRepository
	agents    repository.AgentRepository
	trigger   trigger.Client
	events    *queue.LaunchPublisher
	audit     repository.LaunchAuditStore
	log       *logger.Logger
	chunkSize int
	policy    TriggerPolicy
}

// Options carries the optional observability sinks.
type Options struct {
	Events *queue.LaunchPublisher
	Audit  repository.LaunchAuditStore
}

// NewOrchestrator constructs the orchestrator.
func NewOrchestrator(
	lists repository.ContactListRepository,
	contacts repository.ContactRepository,
	campaigns repository.CampaignRepository,
	agents repository.AgentRepository,
	triggerClient trigger.Client,
	log *logger.Logger,
	chunkSize int,
	policy TriggerPolicy,
	opts Options,
) *Orchestrator {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if policy == "" {
		policy = PolicyBestEffort
	}
	return &Orchestrator{
		lists:     lists,
		contacts:  contacts,
		campaigns: campaigns,
		agents:    agents,
		trigger:   triggerClient,
		events:    opts.Events,
		audit:     opts.Audit,
		log:       log,
		chunkSize: chunkSize,
		policy:    policy,
	}
}

// Launch runs the full launch sequence for a validated configuration.
// Stages run strictly sequentially; an abort leaves already-created
// remote state in place.
func (o *Orchestrator) Launch(ctx context.Context, clientID uuid.UUID, cfg domain.WizardConfiguration, validContacts []domain.Contact) (*domain.LaunchRecord, error) {
	tracer := otel.Tracer("console.launch")
	ctx, span := tracer.Start(ctx, "launch.sequence")
	defer span.End()

	now := time.Now().UTC()
	record := &domain.LaunchRecord{
		LaunchID:  uuid.New(),
		StartedAt: now,
	}
	span.SetAttributes(
		attribute.String("launch.id", record.LaunchID.String()),
		attribute.Int("contacts.valid", len(validContacts)),
	)

	seq := 0

	// Stage 1: contact list.
	list := &domain.ContactList{
		ID:        uuid.New(),
		ClientID:  clientID,
		Name:      fmt.Sprintf("%s - %s", cfg.Name, now.Format("2006-01-02")),
		CreatedAt: now,
	}
	if err := o.lists.Create(ctx, list); err != nil {
		o.record(ctx, record, clientID, &seq, StageCreateList, "failed", err.Error())
		return nil, fmt.Errorf("launch: create contact list: %w", err)
	}
	record.ContactListID = list.ID
	o.record(ctx, record, clientID, &seq, StageCreateList, "ok", "")

	// Stage 2: chunked contact inserts, strictly sequential. A mid-way
	// failure aborts the rest; inserted chunks stay.
	for i, chunk := range chunkContacts(validContacts, o.chunkSize) {
		if err := o.contacts.BulkInsert(ctx, list.ID, chunk); err != nil {
			o.record(ctx, record, clientID, &seq, StageInsertContacts, "failed",
				fmt.Sprintf("chunk %d: %d contacts inserted before failure: %v", i+1, record.ContactsInserted, err))
			return nil, fmt.Errorf("launch: insert contacts (chunk %d): %w", i+1, err)
		}
		record.ContactsInserted += len(chunk)
	}
	o.record(ctx, record, clientID, &seq, StageInsertContacts, "ok", "")

	// Stage 3: campaign record.
	campaign := buildCampaign(clientID, cfg, now)
	campaign.ContactListID = &list.ID
	if err := o.campaigns.Create(ctx, campaign); err != nil {
		o.record(ctx, record, clientID, &seq, StageCreateCampaign, "failed", err.Error())
		return nil, fmt.Errorf("launch: create campaign: %w", err)
	}
	record.CampaignID = campaign.ID
	o.record(ctx, record, clientID, &seq, StageCreateCampaign, "ok", "")

	// Stage 4: resolve the single active agent.
	agent, err := o.agents.ActiveForClient(ctx, clientID)
	if err != nil {
		o.record(ctx, record, clientID, &seq, StageResolveAgent, "failed", err.Error())
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrNoActiveAgent
		}
		return nil, fmt.Errorf("launch: resolve agent: %w", err)
	}
	record.AgentID = agent.ID
	o.record(ctx, record, clientID, &seq, StageResolveAgent, "ok", "")

	// Stage 5: execution trigger, governed by the trigger policy.
	payload := BuildPayload(campaign, agent.ID)
	result, err := o.trigger.Trigger(ctx, payload)
	switch {
	case err == nil && result.UsedFallback:
		record.Trigger = domain.TriggerFallback
		o.record(ctx, record, clientID, &seq, StageTrigger, "ok", "fallback path")
	case err == nil:
		record.Trigger = domain.TriggerDelivered
		o.record(ctx, record, clientID, &seq, StageTrigger, "ok", "")
	default:
		record.Trigger = domain.TriggerFailed
		o.record(ctx, record, clientID, &seq, StageTrigger, "failed", err.Error())
		if o.policy == PolicyRequired {
			return nil, fmt.Errorf("launch: execution trigger: %w", err)
		}
		o.log.Warn("launch: execution trigger failed; campaign parked for redispatch",
			zap.String("campaign_id", campaign.ID.String()),
			zap.Error(err))
		// Best-effort status downgrade so the redispatcher picks it up.
		if statusErr := o.campaigns.UpdateStatus(ctx, campaign.ID, domain.CampaignStatusDispatchPending); statusErr != nil {
			o.log.Warn("launch: mark dispatch_pending", zap.Error(statusErr))
		}
	}

	return record, nil
}

// SaveAsDraft persists an inert campaign placeholder: a contact list and
// a draft campaign record, nothing else.
func (o *Orchestrator) SaveAsDraft(ctx context.Context, clientID uuid.UUID, cfg domain.WizardConfiguration) (uuid.UUID, error) {
	now := time.Now().UTC()

	list := &domain.ContactList{
		ID:        uuid.New(),
		ClientID:  clientID,
		Name:      fmt.Sprintf("%s - draft", cfg.Name),
		CreatedAt: now,
	}
	if err := o.lists.Create(ctx, list); err != nil {
		return uuid.Nil, fmt.Errorf("save draft: create contact list: %w", err)
	}

	campaign := buildCampaign(clientID, cfg, now)
	campaign.ContactListID = &list.ID
	campaign.Status = domain.CampaignStatusDraft
	if err := o.campaigns.Create(ctx, campaign); err != nil {
		return uuid.Nil, fmt.Errorf("save draft: create campaign: %w", err)
	}

	return campaign.ID, nil
}

// record appends a stage outcome to the audit store and event topic.
// Both sinks are best-effort and never alter the launch outcome.
func (o *Orchestrator) record(ctx context.Context, record *domain.LaunchRecord, clientID uuid.UUID, seq *int, stage, status, detail string) {
	*seq++
	entry := repository.AuditEntry{
		LaunchID:   record.LaunchID,
		Seq:        *seq,
		Stage:      stage,
		Status:     status,
		CampaignID: record.CampaignID,
		ListID:     record.ContactListID,
		AgentID:    record.AgentID,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
	if o.audit != nil {
		if err := o.audit.Append(ctx, entry); err != nil {
			o.log.Warn("launch: audit append failed", zap.String("stage", stage), zap.Error(err))
		}
	}
	if o.events != nil {
		event := queue.LaunchEvent{
			LaunchID:   record.LaunchID,
			ClientID:   clientID,
			Seq:        entry.Seq,
			Stage:      stage,
			Status:     status,
			CampaignID: record.CampaignID,
			ListID:     record.ContactListID,
			AgentID:    record.AgentID,
			Contacts:   record.ContactsInserted,
			Error:      detail,
			OccurredAt: entry.OccurredAt,
		}
		if err := o.events.PublishEvent(ctx, event); err != nil {
			o.log.Warn("launch: publish event failed", zap.String("stage", stage), zap.Error(err))
		}
	}
}

func buildCampaign(clientID uuid.UUID, cfg domain.WizardConfiguration, now time.Time) *domain.Campaign {
	return &domain.Campaign{
		ID:                  uuid.New(),
		ClientID:            clientID,
		Name:                cfg.Name,
		Goal:                cfg.Goal,
		Status:              domain.LaunchedStatus(cfg.ScheduleMode),
		ScheduleMode:        cfg.ScheduleMode,
		ScheduledAt:         cfg.ScheduledAt,
		FromHour:            cfg.FromHour,
		ToHour:              cfg.ToHour,
		ActiveDays:          cfg.ActiveDays,
		MaxCallsPerDay:      cfg.MaxCallsPerDay,
		Retry:               cfg.Retry,
		Script:              cfg.Script,
		VoiceID:             cfg.VoiceID,
		LanguageID:          cfg.LanguageID,
		SpeakingSpeed:       cfg.SpeakingSpeed,
		LeadQualification:   cfg.LeadQualification,
		QualifyingQuestions: cfg.QualifyingQuestions,
		CallRecording:       cfg.CallRecording,
		VoicemailDetection:  cfg.VoicemailDetection,
		VoicemailAction:     cfg.VoicemailAction,
		VoicemailScript:     cfg.VoicemailScript,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// BuildPayload assembles the denormalized trigger payload for a campaign.
// Also used by the redispatcher to re-fire undelivered triggers.
func BuildPayload(campaign *domain.Campaign, agentID uuid.UUID) trigger.Payload {
	days := make([]int, 0, len(campaign.ActiveDays))
	for _, d := range campaign.ActiveDays {
		days = append(days, int(d))
	}

	payload := trigger.Payload{
		CampaignID:          campaign.ID,
		AgentID:             agentID,
		ClientID:            campaign.ClientID,
		CampaignName:        campaign.Name,
		Goal:                campaign.Goal,
		ScheduleType:        string(campaign.ScheduleMode),
		FromHour:            campaign.FromHour,
		ToHour:              campaign.ToHour,
		ActiveDays:          days,
		MaxCallsPerDay:      campaign.MaxCallsPerDay,
		RetryEnabled:        campaign.Retry.Enabled,
		MaxRetries:          campaign.Retry.MaxAttempts,
		RetryAfter:          campaign.Retry.After,
		RetryUnit:           string(campaign.Retry.Unit),
		Script:              campaign.Script,
		Voice:               campaign.VoiceID,
		Language:            campaign.LanguageID,
		SpeakingSpeed:       campaign.SpeakingSpeed,
		LeadQualification:   campaign.LeadQualification,
		QualifyingQuestions: campaign.QualifyingQuestions,
		CallRecording:       campaign.CallRecording,
		VoicemailDetection:  campaign.VoicemailDetection,
		VoicemailAction:     string(campaign.VoicemailAction),
		VoicemailScript:     campaign.VoicemailScript,
	}

	if campaign.ContactListID != nil {
		payload.ListID = *campaign.ContactListID
	}
	if campaign.ScheduledAt != nil {
		payload.ScheduledAt = campaign.ScheduledAt.UTC().Format(time.RFC3339)
	}

	return payload
}

// chunkContacts splits contacts into fixed-size chunks, preserving order.
func chunkContacts(contacts []domain.Contact, size int) [][]domain.Contact {
	if len(contacts) == 0 {
		return nil
	}
	chunks := make([][]domain.Contact, 0, (len(contacts)+size-1)/size)
	for start := 0; start < len(contacts); start += size {
		end := start + size
		if end > len(contacts) {
			end = len(contacts)
		}
		chunks = append(chunks, contacts[start:end])
	}
	return chunks
}
