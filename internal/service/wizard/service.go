package wizard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/campaign-console/internal/domain"
	"github.com/acme/campaign-console/internal/repository"
	"github.com/acme/campaign-console/internal/service/quota"
	apperrors "github.com/acme/campaign-console/pkg/errors"
	"github.com/acme/campaign-console/pkg/logger"
)

// Script length bounds, in runes.
const (
	MinScriptLen = 50
	MaxScriptLen = 2000
)

// Typed gate failures. All wrap a sentinel so the HTTP layer can map them
// without string matching; none of them mutates wizard state.
var (
	ErrSessionNotFound  = fmt.Errorf("%w: wizard session", apperrors.ErrNotFound)
	ErrStepInvalid      = fmt.Errorf("%w: current step is incomplete", apperrors.ErrValidation)
	ErrConsentRequired  = fmt.Errorf("%w: both consents are required before launch", apperrors.ErrValidation)
	ErrJumpUnavailable  = fmt.Errorf("%w: step jumps are only available from review", apperrors.ErrValidation)
	ErrLaunchInProgress = fmt.Errorf("%w: a launch is already in progress", apperrors.ErrConflict)
)

// Launcher is the slice of the launch orchestrator the wizard needs.
type Launcher interface {
	Launch(ctx context.Context, clientID uuid.UUID, cfg domain.WizardConfiguration, validContacts []domain.Contact) (*domain.LaunchRecord, error)
	SaveAsDraft(ctx context.Context, clientID uuid.UUID, cfg domain.WizardConfiguration) (uuid.UUID, error)
}

// Session is one client's in-progress pass through the wizard.
type Session struct {
	ID       uuid.UUID
	ClientID uuid.UUID

	mu        sync.Mutex
	step      domain.Step
	cfg       domain.WizardConfiguration
	launching bool
}

// State is a read-only snapshot of a session handed to the API layer.
type State struct {
	SessionID uuid.UUID
	ClientID  uuid.UUID
	Step      domain.Step
	Config    domain.WizardConfiguration
	Launching bool

	DetailsValid  bool
	ContactsValid bool
	ScriptValid   bool
	Quota         quota.Snapshot
}

// Service hosts wizard sessions and enforces the step gates. Every
// configuration mutation is mirrored into the draft repository so a
// reload resumes the in-progress draft.
type Service struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	drafts   repository.DraftRepository
	tracker  *quota.Tracker
	launcher Launcher
	log      *logger.Logger
}

// NewService constructs the wizard service.
func NewService(drafts repository.DraftRepository, tracker *quota.Tracker, launcher Launcher, log *logger.Logger) *Service {
	return &Service{
		sessions: make(map[uuid.UUID]*Session),
		drafts:   drafts,
		tracker:  tracker,
		launcher: launcher,
		log:      log,
	}
}

// Open creates a session for the client, resuming the persisted draft if
// one exists. A corrupt or missing snapshot yields the defaults.
func (s *Service) Open(ctx context.Context, clientID uuid.UUID) (State, error) {
	cfg, err := s.drafts.Load(ctx, clientID)
	if err != nil {
		return State{}, fmt.Errorf("wizard: load draft: %w", err)
	}

	sess := &Session{
		ID:       uuid.New(),
		ClientID: clientID,
		step:     domain.StepDetails,
		cfg:      cfg,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return s.snapshot(ctx, sess), nil
}

// Get returns the session's current state.
func (s *Service) Get(ctx context.Context, sessionID uuid.UUID) (State, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return State{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.snapshot(ctx, sess), nil
}

// DetailsInput carries the identity/schedule step fields.
type DetailsInput struct {
	Name           string
	Goal           string
	ScheduleMode   domain.ScheduleMode
	ScheduledAt    *time.Time
	FromHour       int
	ToHour         int
	ActiveDays     []time.Weekday
	MaxCallsPerDay int
	Retry          domain.RetrySettings
}

// UpdateDetails replaces the identity/schedule fields.
func (s *Service) UpdateDetails(ctx context.Context, sessionID uuid.UUID, input DetailsInput) (State, error) {
	if err := validateDetailsInput(input); err != nil {
		return State{}, err
	}

	return s.mutate(ctx, sessionID, func(cfg *domain.WizardConfiguration) {
		cfg.Name = input.Name
		cfg.Goal = input.Goal
		cfg.ScheduleMode = input.ScheduleMode
		cfg.ScheduledAt = input.ScheduledAt
		cfg.FromHour = input.FromHour
		cfg.ToHour = input.ToHour
		cfg.ActiveDays = input.ActiveDays
		cfg.MaxCallsPerDay = input.MaxCallsPerDay
		cfg.Retry = input.Retry
	})
}

// ScriptInput carries the script/voice step fields.
type ScriptInput struct {
	Script              string
	VoiceID             string
	LanguageID          string
	SpeakingSpeed       float64
	LeadQualification   bool
	QualifyingQuestions []string
	CallRecording       bool
	VoicemailDetection  bool
	VoicemailAction     domain.VoicemailAction
	VoicemailScript     string
}

// UpdateScript replaces the script/voice fields.
func (s *Service) UpdateScript(ctx context.Context, sessionID uuid.UUID, input ScriptInput) (State, error) {
	if err := validateScriptInput(input); err != nil {
		return State{}, err
	}

	return s.mutate(ctx, sessionID, func(cfg *domain.WizardConfiguration) {
		cfg.Script = input.Script
		cfg.VoiceID = input.VoiceID
		cfg.LanguageID = input.LanguageID
		cfg.SpeakingSpeed = input.SpeakingSpeed
		cfg.LeadQualification = input.LeadQualification
		cfg.QualifyingQuestions = input.QualifyingQuestions
		cfg.CallRecording = input.CallRecording
		cfg.VoicemailDetection = input.VoicemailDetection
		cfg.VoicemailAction = input.VoicemailAction
		cfg.VoicemailScript = input.VoicemailScript
	})
}

// AddContacts appends an ingested batch to the configuration. fileName is
// recorded when the batch came from a file; empty for manual entries.
func (s *Service) AddContacts(ctx context.Context, sessionID uuid.UUID, contacts []domain.Contact, tab domain.ContactTab, fileName string) (State, error) {
	return s.mutate(ctx, sessionID, func(cfg *domain.WizardConfiguration) {
		cfg.Contacts = append(cfg.Contacts, contacts...)
		cfg.ActiveTab = tab
		if fileName != "" {
			cfg.LastFileName = fileName
		}
	})
}

// RemoveContact deletes the contact at index, if present.
func (s *Service) RemoveContact(ctx context.Context, sessionID uuid.UUID, index int) (State, error) {
	return s.mutate(ctx, sessionID, func(cfg *domain.WizardConfiguration) {
		if index < 0 || index >= len(cfg.Contacts) {
			return
		}
		cfg.Contacts = append(cfg.Contacts[:index], cfg.Contacts[index+1:]...)
	})
}

// Next advances one step when the current step's predicate holds.
// An invalid step makes Next a gate failure that leaves state untouched.
func (s *Service) Next(ctx context.Context, sessionID uuid.UUID) (State, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return State{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.step >= domain.StepReview {
		return s.snapshot(ctx, sess), nil
	}

	ok, err := s.stepValid(ctx, sess, sess.step)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{}, ErrStepInvalid
	}

	sess.step++
	return s.snapshot(ctx, sess), nil
}

// Back retreats one step unconditionally.
func (s *Service) Back(ctx context.Context, sessionID uuid.UUID) (State, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return State{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.step > domain.StepDetails {
		sess.step--
	}
	return s.snapshot(ctx, sess), nil
}

// Goto jumps from Review directly to an earlier step for editing.
func (s *Service) Goto(ctx context.Context, sessionID uuid.UUID, step domain.Step) (State, error) {
	if !step.Valid() {
		return State{}, fmt.Errorf("%w: unknown step", apperrors.ErrValidation)
	}

	sess, err := s.session(sessionID)
	if err != nil {
		return State{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.step != domain.StepReview || step >= domain.StepReview {
		return State{}, ErrJumpUnavailable
	}

	sess.step = step
	return s.snapshot(ctx, sess), nil
}

// Quota returns the client's live quota snapshot plus whether the current
// contact batch would exceed it.
type QuotaView struct {
	quota.Snapshot
	ValidContacts int
	WouldExceed   bool
}

// Quota computes the live quota view for the session's batch.
func (s *Service) Quota(ctx context.Context, sessionID uuid.UUID) (QuotaView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return QuotaView{}, err
	}

	snap, err := s.tracker.Get(ctx, sess.ClientID)
	if err != nil {
		return QuotaView{}, fmt.Errorf("wizard: quota lookup: %w", err)
	}

	sess.mu.Lock()
	contacts := sess.cfg.Contacts
	valid := domain.CountValid(contacts)
	exceed := quota.WouldExceed(contacts, snap.Remaining)
	sess.mu.Unlock()

	return QuotaView{Snapshot: snap, ValidContacts: valid, WouldExceed: exceed}, nil
}

// Launch runs the launch sequence from the Review step. Both consents
// must be checked and every step predicate must hold at submit time. On
// success the draft is cleared and the session resets to a fresh
// configuration on the first step.
func (s *Service) Launch(ctx context.Context, sessionID uuid.UUID, consentTerms, consentCompliance bool) (*domain.LaunchRecord, State, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, State{}, err
	}

	sess.mu.Lock()
	if sess.launching {
		sess.mu.Unlock()
		return nil, State{}, ErrLaunchInProgress
	}
	if sess.step != domain.StepReview {
		sess.mu.Unlock()
		return nil, State{}, ErrStepInvalid
	}
	if !consentTerms || !consentCompliance {
		sess.mu.Unlock()
		return nil, State{}, ErrConsentRequired
	}

	// Submit-time gate: every step predicate must hold, quota included,
	// since contacts may have been edited after their first validation.
	for step := domain.StepDetails; step <= domain.StepScript; step++ {
		ok, gateErr := s.stepValid(ctx, sess, step)
		if gateErr != nil {
			sess.mu.Unlock()
			return nil, State{}, gateErr
		}
		if !ok {
			// Copy under the lock; a concurrent contact edit must not race
			// with the quota recheck below.
			contacts := sess.cfg.Contacts
			sess.mu.Unlock()
			if step == domain.StepContacts {
				snap, qErr := s.tracker.Get(ctx, sess.ClientID)
				if qErr == nil && quota.WouldExceed(contacts, snap.Remaining) {
					return nil, State{}, fmt.Errorf("%w: contact batch exceeds remaining allowance", apperrors.ErrQuotaExceeded)
				}
			}
			return nil, State{}, ErrStepInvalid
		}
	}

	sess.launching = true
	clientID := sess.ClientID
	cfg := sess.cfg
	validContacts := cfg.ValidContacts()
	sess.mu.Unlock()

	record, launchErr := s.launcher.Launch(ctx, clientID, cfg, validContacts)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.launching = false

	if launchErr != nil {
		// Configuration stays intact on the Review step so the user can
		// retry without re-entering data.
		return nil, s.snapshot(ctx, sess), launchErr
	}

	s.finishTerminal(ctx, sess)
	return record, s.snapshot(ctx, sess), nil
}

// SaveAsDraft persists an inert campaign placeholder and ends the session
// the same way a successful launch does.
func (s *Service) SaveAsDraft(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, State, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return uuid.Nil, State{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.launching {
		return uuid.Nil, State{}, ErrLaunchInProgress
	}
	if strings.TrimSpace(sess.cfg.Name) == "" {
		return uuid.Nil, State{}, fmt.Errorf("%w: campaign name is required to save a draft", apperrors.ErrValidation)
	}

	campaignID, err := s.launcher.SaveAsDraft(ctx, sess.ClientID, sess.cfg)
	if err != nil {
		return uuid.Nil, s.snapshot(ctx, sess), err
	}

	s.finishTerminal(ctx, sess)
	return campaignID, s.snapshot(ctx, sess), nil
}

// finishTerminal clears the persisted draft and resets the session.
// Caller holds the session lock.
func (s *Service) finishTerminal(ctx context.Context, sess *Session) {
	if err := s.drafts.Clear(ctx, sess.ClientID); err != nil {
		s.log.Warn("wizard: clear draft", zap.String("client_id", sess.ClientID.String()), zap.Error(err))
	}
	sess.cfg = domain.DefaultConfiguration()
	sess.step = domain.StepDetails
}

func (s *Service) session(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// mutate applies fn to the configuration and mirrors the result into the
// draft repository. Draft persistence failures are logged, not surfaced:
// editing must not be blocked by the side channel.
func (s *Service) mutate(ctx context.Context, sessionID uuid.UUID, fn func(*domain.WizardConfiguration)) (State, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return State{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.launching {
		return State{}, ErrLaunchInProgress
	}

	fn(&sess.cfg)

	if err := s.drafts.Save(ctx, sess.ClientID, sess.cfg); err != nil {
		s.log.Warn("wizard: mirror draft", zap.String("client_id", sess.ClientID.String()), zap.Error(err))
	}

	return s.snapshot(ctx, sess), nil
}

// stepValid evaluates one step's predicate. Caller holds the session lock.
func (s *Service) stepValid(ctx context.Context, sess *Session, step domain.Step) (bool, error) {
	switch step {
	case domain.StepDetails:
		return DetailsValid(sess.cfg), nil
	case domain.StepContacts:
		snap, err := s.tracker.Get(ctx, sess.ClientID)
		if err != nil {
			return false, fmt.Errorf("wizard: quota lookup: %w", err)
		}
		return ContactsValid(sess.cfg, snap.Remaining), nil
	case domain.StepScript:
		return ScriptValid(sess.cfg), nil
	case domain.StepReview:
		// The review gate proper (consents + quota recheck) lives in Launch.
		return true, nil
	default:
		return false, nil
	}
}

// snapshot builds a State. Caller holds the session lock.
func (s *Service) snapshot(ctx context.Context, sess *Session) State {
	state := State{
		SessionID:    sess.ID,
		ClientID:     sess.ClientID,
		Step:         sess.step,
		Config:       sess.cfg,
		Launching:    sess.launching,
		DetailsValid: DetailsValid(sess.cfg),
		ScriptValid:  ScriptValid(sess.cfg),
	}

	if snap, err := s.tracker.Get(ctx, sess.ClientID); err == nil {
		state.Quota = snap
		state.ContactsValid = ContactsValid(sess.cfg, snap.Remaining)
	}

	return state
}

// DetailsValid is the step-1 predicate: a usable name and, for deferred
// launches, a scheduled timestamp.
func DetailsValid(cfg domain.WizardConfiguration) bool {
	if utf8.RuneCountInString(strings.TrimSpace(cfg.Name)) < 3 {
		return false
	}
	if cfg.ScheduleMode == domain.ScheduleLater && cfg.ScheduledAt == nil {
		return false
	}
	return true
}

// ContactsValid is the step-2 predicate: at least one valid contact and
// the valid count within the remaining allowance.
func ContactsValid(cfg domain.WizardConfiguration, remaining int) bool {
	valid := domain.CountValid(cfg.Contacts)
	return valid >= 1 && valid <= remaining
}

// ScriptValid is the step-3 predicate: trimmed script length within bounds.
func ScriptValid(cfg domain.WizardConfiguration) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(cfg.Script))
	return n >= MinScriptLen && n <= MaxScriptLen
}

func validateDetailsInput(input DetailsInput) error {
	if input.ScheduleMode != domain.ScheduleImmediate && input.ScheduleMode != domain.ScheduleLater {
		return fmt.Errorf("%w: unknown schedule mode %q", apperrors.ErrValidation, input.ScheduleMode)
	}
	if input.ScheduleMode == domain.ScheduleLater && input.ScheduledAt != nil && !input.ScheduledAt.After(time.Now()) {
		return fmt.Errorf("%w: scheduled time must be in the future", apperrors.ErrValidation)
	}
	if input.FromHour < 0 || input.FromHour > 23 || input.ToHour < 0 || input.ToHour > 23 {
		return fmt.Errorf("%w: active hours must be between 0 and 23", apperrors.ErrValidation)
	}
	if input.MaxCallsPerDay < 0 {
		return fmt.Errorf("%w: daily call cap cannot be negative", apperrors.ErrValidation)
	}
	if input.Retry.Enabled {
		if input.Retry.MaxAttempts < 1 || input.Retry.MaxAttempts > 5 {
			return fmt.Errorf("%w: retry attempts must be between 1 and 5", apperrors.ErrValidation)
		}
		if input.Retry.Unit != domain.RetryUnitHours && input.Retry.Unit != domain.RetryUnitDays {
			return fmt.Errorf("%w: unknown retry unit %q", apperrors.ErrValidation, input.Retry.Unit)
		}
	}
	return nil
}

func validateScriptInput(input ScriptInput) error {
	if input.SpeakingSpeed != 0 && (input.SpeakingSpeed < 0.8 || input.SpeakingSpeed > 1.5) {
		return fmt.Errorf("%w: speaking speed must be between 0.8 and 1.5", apperrors.ErrValidation)
	}
	if input.VoicemailDetection {
		switch input.VoicemailAction {
		case domain.VoicemailSkip, domain.VoicemailLeaveMessage:
		default:
			return fmt.Errorf("%w: unknown voicemail action %q", apperrors.ErrValidation, input.VoicemailAction)
		}
	}
	return nil
}
