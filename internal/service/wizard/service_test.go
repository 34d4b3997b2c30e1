package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/campaign-console/internal/domain"
	"github.com/acme/campaign-console/internal/repository"
	"github.com/acme/campaign-console/internal/repository/memory"
	"github.com/acme/campaign-console/internal/service/quota"
	apperrors "github.com/acme/campaign-console/pkg/errors"
	"github.com/acme/campaign-console/pkg/logger"
)

type fixedUsage struct {
	mu    sync.Mutex
	usage repository.Usage
}

func (f *fixedUsage) Get(context.Context, uuid.UUID) (repository.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usage, nil
}

func (f *fixedUsage) set(usage repository.Usage) {
	f.mu.Lock()
	f.usage = usage
	f.mu.Unlock()
}

type fakeLauncher struct {
	err          error
	launches     int
	draftSaves   int
	lastCfg      domain.WizardConfiguration
	lastContacts []domain.Contact
}

func (f *fakeLauncher) Launch(_ context.Context, clientID uuid.UUID, cfg domain.WizardConfiguration, validContacts []domain.Contact) (*domain.LaunchRecord, error) {
	f.launches++
	f.lastCfg = cfg
	f.lastContacts = validContacts
	if f.err != nil {
		return nil, f.err
	}
	return &domain.LaunchRecord{
		LaunchID:         uuid.New(),
		CampaignID:       uuid.New(),
		ContactListID:    uuid.New(),
		AgentID:          uuid.New(),
		ContactsInserted: len(validContacts),
		Trigger:          domain.TriggerDelivered,
	}, nil
}

func (f *fakeLauncher) SaveAsDraft(_ context.Context, _ uuid.UUID, cfg domain.WizardConfiguration) (uuid.UUID, error) {
	f.draftSaves++
	f.lastCfg = cfg
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return uuid.New(), nil
}

type testEnv struct {
	svc      *Service
	drafts   *memory.DraftRepository
	launcher *fakeLauncher
	usage    *fixedUsage
	clientID uuid.UUID
}

func newEnv(t *testing.T, allowance, consumed int) *testEnv {
	t.Helper()
	lg, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	drafts := memory.NewDraftRepository()
	launcher := &fakeLauncher{}
	usage := &fixedUsage{usage: repository.Usage{Allowance: allowance, Consumed: consumed}}
	return &testEnv{
		svc:      NewService(drafts, quota.NewTracker(usage), launcher, lg),
		drafts:   drafts,
		launcher: launcher,
		usage:    usage,
		clientID: uuid.New(),
	}
}

func validScript() string {
	return strings.Repeat("call script ", 10) // 120 runes, within bounds
}

// fill walks a fresh session through valid data for all three input steps.
func (e *testEnv) fill(t *testing.T, ctx context.Context, sessionID uuid.UUID) {
	t.Helper()
	if _, err := e.svc.UpdateDetails(ctx, sessionID, DetailsInput{
		Name:         "spring outreach",
		ScheduleMode: domain.ScheduleImmediate,
		FromHour:     9,
		ToHour:       18,
	}); err != nil {
		t.Fatalf("update details: %v", err)
	}
	if _, err := e.svc.AddContacts(ctx, sessionID, []domain.Contact{
		{Phone: "+14155552671", Name: "Ada"},
		{Phone: "not-a-phone"},
	}, domain.ContactTabManual, ""); err != nil {
		t.Fatalf("add contacts: %v", err)
	}
	if _, err := e.svc.UpdateScript(ctx, sessionID, ScriptInput{Script: validScript()}); err != nil {
		t.Fatalf("update script: %v", err)
	}
}

func (e *testEnv) toReview(t *testing.T, ctx context.Context, sessionID uuid.UUID) {
	t.Helper()
	for i := 0; i < 3; i++ {
		if _, err := e.svc.Next(ctx, sessionID); err != nil {
			t.Fatalf("next from step %d: %v", i+1, err)
		}
	}
}

func TestOpenStartsWithDefaults(t *testing.T) {
	env := newEnv(t, 1000, 0)

	state, err := env.svc.Open(context.Background(), env.clientID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if state.Step != domain.StepDetails {
		t.Errorf("step = %d", state.Step)
	}
	if state.Config.ScheduleMode != domain.ScheduleImmediate || state.Config.FromHour != 9 {
		t.Errorf("config not defaulted: %+v", state.Config)
	}
	if state.DetailsValid {
		t.Error("empty name must not validate")
	}
}

func TestOpenResumesDraft(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	cfg := domain.DefaultConfiguration()
	cfg.Name = "resumed campaign"
	if err := env.drafts.Save(ctx, env.clientID, cfg); err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	state, err := env.svc.Open(ctx, env.clientID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if state.Config.Name != "resumed campaign" {
		t.Fatalf("draft not resumed: %q", state.Config.Name)
	}
}

func TestOpenCorruptDraftFallsBack(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	if err := env.drafts.Save(ctx, env.clientID, domain.DefaultConfiguration()); err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	env.drafts.Corrupt(env.clientID)

	state, err := env.svc.Open(ctx, env.clientID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if state.Config.Name != "" || state.Config.ScheduleMode != domain.ScheduleImmediate {
		t.Fatalf("expected defaults, got %+v", state.Config)
	}
}

func TestMutationsMirrorDraft(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	if _, err := env.svc.UpdateDetails(ctx, state.SessionID, DetailsInput{
		Name:         "mirrored",
		ScheduleMode: domain.ScheduleImmediate,
		FromHour:     9,
		ToHour:       18,
	}); err != nil {
		t.Fatalf("update details: %v", err)
	}

	persisted, err := env.drafts.Load(ctx, env.clientID)
	if err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if persisted.Name != "mirrored" {
		t.Fatalf("draft not mirrored: %q", persisted.Name)
	}
}

func TestNextBlockedOnInvalidStep(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)

	// Name too short after trimming.
	if _, err := env.svc.UpdateDetails(ctx, state.SessionID, DetailsInput{
		Name:         "  ab  ",
		ScheduleMode: domain.ScheduleImmediate,
	}); err != nil {
		t.Fatalf("update details: %v", err)
	}

	_, err := env.svc.Next(ctx, state.SessionID)
	if !errors.Is(err, ErrStepInvalid) {
		t.Fatalf("err = %v, want ErrStepInvalid", err)
	}

	// State is untouched.
	after, _ := env.svc.Get(ctx, state.SessionID)
	if after.Step != domain.StepDetails {
		t.Fatalf("step advanced despite invalid gate: %d", after.Step)
	}
}

func TestDeferredScheduleRequiresTimestamp(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	if _, err := env.svc.UpdateDetails(ctx, state.SessionID, DetailsInput{
		Name:         "deferred",
		ScheduleMode: domain.ScheduleLater,
	}); err != nil {
		t.Fatalf("update details: %v", err)
	}

	if _, err := env.svc.Next(ctx, state.SessionID); !errors.Is(err, ErrStepInvalid) {
		t.Fatalf("err = %v, want ErrStepInvalid without timestamp", err)
	}

	at := time.Now().Add(24 * time.Hour)
	if _, err := env.svc.UpdateDetails(ctx, state.SessionID, DetailsInput{
		Name:         "deferred",
		ScheduleMode: domain.ScheduleLater,
		ScheduledAt:  &at,
	}); err != nil {
		t.Fatalf("update details: %v", err)
	}
	if _, err := env.svc.Next(ctx, state.SessionID); err != nil {
		t.Fatalf("next: %v", err)
	}
}

func TestPastScheduleRejected(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	at := time.Now().Add(-time.Hour)
	_, err := env.svc.UpdateDetails(ctx, state.SessionID, DetailsInput{
		Name:         "past",
		ScheduleMode: domain.ScheduleLater,
		ScheduledAt:  &at,
	})
	if err == nil {
		t.Fatal("past timestamp must be rejected")
	}
}

func TestScriptLengthBounds(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	env.fill(t, ctx, state.SessionID)

	// Advance to the script step.
	if _, err := env.svc.Next(ctx, state.SessionID); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := env.svc.Next(ctx, state.SessionID); err != nil {
		t.Fatalf("next: %v", err)
	}

	cases := []struct {
		runes int
		pass  bool
	}{
		{49, false},
		{50, true},
		{2000, true},
		{2001, false},
	}

	for _, tc := range cases {
		script := strings.Repeat("x", tc.runes)
		if _, err := env.svc.UpdateScript(ctx, state.SessionID, ScriptInput{Script: script}); err != nil {
			t.Fatalf("update script: %v", err)
		}

		_, err := env.svc.Next(ctx, state.SessionID)
		if tc.pass {
			if err != nil {
				t.Errorf("script of %d runes should pass: %v", tc.runes, err)
			}
			// Step back for the next case.
			if _, err := env.svc.Back(ctx, state.SessionID); err != nil {
				t.Fatalf("back: %v", err)
			}
		} else if !errors.Is(err, ErrStepInvalid) {
			t.Errorf("script of %d runes: err = %v, want ErrStepInvalid", tc.runes, err)
		}
	}
}

func TestContactsGateAgainstQuota(t *testing.T) {
	// Allowance 1000, consumed 998: remaining 2.
	env := newEnv(t, 1000, 998)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	if _, err := env.svc.UpdateDetails(ctx, state.SessionID, DetailsInput{
		Name:         "quota bound",
		ScheduleMode: domain.ScheduleImmediate,
	}); err != nil {
		t.Fatalf("update details: %v", err)
	}
	if _, err := env.svc.Next(ctx, state.SessionID); err != nil {
		t.Fatalf("next: %v", err)
	}

	contacts := []domain.Contact{
		{Phone: "+14155550001"},
		{Phone: "+14155550002"},
		{Phone: "+14155550003"},
	}
	if _, err := env.svc.AddContacts(ctx, state.SessionID, contacts, domain.ContactTabManual, ""); err != nil {
		t.Fatalf("add contacts: %v", err)
	}

	if _, err := env.svc.Next(ctx, state.SessionID); !errors.Is(err, ErrStepInvalid) {
		t.Fatalf("three valid contacts against remaining 2: err = %v", err)
	}

	if _, err := env.svc.RemoveContact(ctx, state.SessionID, 2); err != nil {
		t.Fatalf("remove contact: %v", err)
	}
	if _, err := env.svc.Next(ctx, state.SessionID); err != nil {
		t.Fatalf("two valid contacts against remaining 2: %v", err)
	}
}

func TestGotoOnlyFromReview(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	env.fill(t, ctx, state.SessionID)

	if _, err := env.svc.Goto(ctx, state.SessionID, domain.StepScript); !errors.Is(err, ErrJumpUnavailable) {
		t.Fatalf("jump from step 1: err = %v", err)
	}

	env.toReview(t, ctx, state.SessionID)

	after, err := env.svc.Goto(ctx, state.SessionID, domain.StepContacts)
	if err != nil {
		t.Fatalf("jump from review: %v", err)
	}
	if after.Step != domain.StepContacts {
		t.Fatalf("step = %d", after.Step)
	}
}

func TestLaunchRequiresBothConsents(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	env.fill(t, ctx, state.SessionID)
	env.toReview(t, ctx, state.SessionID)

	for _, consents := range [][2]bool{{false, false}, {true, false}, {false, true}} {
		_, _, err := env.svc.Launch(ctx, state.SessionID, consents[0], consents[1])
		if !errors.Is(err, ErrConsentRequired) {
			t.Fatalf("consents %v: err = %v", consents, err)
		}
	}
	if env.launcher.launches != 0 {
		t.Fatalf("launcher invoked despite missing consent")
	}
}

func TestLaunchQuotaRecheckedAtSubmit(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	env.fill(t, ctx, state.SessionID)
	env.toReview(t, ctx, state.SessionID)

	// Quota shrinks between reaching Review and submitting.
	env.usage.set(repository.Usage{Allowance: 1000, Consumed: 1000})

	_, _, err := env.svc.Launch(ctx, state.SessionID, true, true)
	if !errors.Is(err, apperrors.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if env.launcher.launches != 0 {
		t.Fatal("launcher invoked despite exhausted quota")
	}
}

func TestLaunchQuotaRecheckDuringContactEdits(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	env.fill(t, ctx, state.SessionID)
	env.toReview(t, ctx, state.SessionID)
	env.usage.set(repository.Usage{Allowance: 1000, Consumed: 1000})

	// A rejected submit must tolerate concurrent contact edits on the
	// same session.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, _, err := env.svc.Launch(ctx, state.SessionID, true, true); err == nil {
				t.Error("launch succeeded with exhausted quota")
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := env.svc.AddContacts(ctx, state.SessionID, []domain.Contact{{Phone: "+14155550099"}}, domain.ContactTabManual, ""); err != nil {
				return
			}
		}
	}()
	wg.Wait()
}

func TestLaunchSuccessResetsSession(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	env.fill(t, ctx, state.SessionID)
	env.toReview(t, ctx, state.SessionID)

	record, after, err := env.svc.Launch(ctx, state.SessionID, true, true)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if record == nil || record.ContactsInserted != 1 {
		t.Fatalf("record = %+v: only the valid contact launches", record)
	}
	if len(env.launcher.lastContacts) != 1 {
		t.Fatalf("launcher got %d contacts, want valid subset of 1", len(env.launcher.lastContacts))
	}

	if after.Step != domain.StepDetails {
		t.Errorf("session not reset to first step: %d", after.Step)
	}
	if after.Config.Name != "" || len(after.Config.Contacts) != 0 {
		t.Errorf("config not reset: %+v", after.Config)
	}

	// Draft is gone: a reload starts fresh.
	persisted, _ := env.drafts.Load(ctx, env.clientID)
	if persisted.Name != "" {
		t.Errorf("draft survived launch: %q", persisted.Name)
	}
}

func TestLaunchFailurePreservesConfiguration(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	env.fill(t, ctx, state.SessionID)
	env.toReview(t, ctx, state.SessionID)

	env.launcher.err = errors.New("insert failed")
	_, after, err := env.svc.Launch(ctx, state.SessionID, true, true)
	if err == nil {
		t.Fatal("expected launch failure")
	}

	if after.Step != domain.StepReview {
		t.Errorf("step = %d, want review preserved", after.Step)
	}
	if after.Config.Name != "spring outreach" {
		t.Errorf("configuration lost on failure: %+v", after.Config)
	}
	if after.Launching {
		t.Error("launching flag not cleared after failure")
	}

	// Retry works once the launcher recovers.
	env.launcher.err = nil
	if _, _, err := env.svc.Launch(ctx, state.SessionID, true, true); err != nil {
		t.Fatalf("retry launch: %v", err)
	}
}

func TestLaunchOnlyFromReview(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	env.fill(t, ctx, state.SessionID)

	if _, _, err := env.svc.Launch(ctx, state.SessionID, true, true); !errors.Is(err, ErrStepInvalid) {
		t.Fatalf("launch from step 1: err = %v", err)
	}
}

func TestSaveAsDraftResetsSession(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	env.fill(t, ctx, state.SessionID)

	campaignID, after, err := env.svc.SaveAsDraft(ctx, state.SessionID)
	if err != nil {
		t.Fatalf("save as draft: %v", err)
	}
	if campaignID == uuid.Nil {
		t.Fatal("no campaign id")
	}
	if env.launcher.draftSaves != 1 {
		t.Fatalf("draft saves = %d", env.launcher.draftSaves)
	}
	if after.Step != domain.StepDetails || after.Config.Name != "" {
		t.Errorf("session not reset: step=%d config=%+v", after.Step, after.Config)
	}
}

func TestSaveAsDraftRequiresName(t *testing.T) {
	env := newEnv(t, 1000, 0)
	ctx := context.Background()

	state, _ := env.svc.Open(ctx, env.clientID)
	if _, _, err := env.svc.SaveAsDraft(ctx, state.SessionID); err == nil {
		t.Fatal("nameless draft must be rejected")
	}
}

func TestUnknownSession(t *testing.T) {
	env := newEnv(t, 1000, 0)

	if _, err := env.svc.Get(context.Background(), uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v", err)
	}
}
