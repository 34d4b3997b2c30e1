package launch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode"

	"github.com/google/uuid"

	"github.com/acme/campaign-console/internal/domain"
	"github.com/acme/campaign-console/internal/repository"
	triggermock "github.com/acme/campaign-console/internal/trigger/mock"
	"github.com/acme/campaign-console/pkg/logger"
)

type fakeLists struct {
	created []*domain.ContactList
	err     error
}

func (f *fakeLists) Create(_ context.Context, list *domain.ContactList) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, list)
	return nil
}

type fakeContacts struct {
	chunks      [][]domain.Contact
	failAtChunk int // 1-based; 0 means never fail
}

func (f *fakeContacts) BulkInsert(_ context.Context, _ uuid.UUID, contacts []domain.Contact) error {
	if f.failAtChunk > 0 && len(f.chunks)+1 == f.failAtChunk {
		return errors.New("insert failed")
	}
	f.chunks = append(f.chunks, contacts)
	return nil
}

func (f *fakeContacts) CountByList(_ context.Context, _ uuid.UUID) (int, error) {
	total := 0
	for _, c := range f.chunks {
		total += len(c)
	}
	return total, nil
}

type fakeCampaigns struct {
	created   []*domain.Campaign
	statuses  map[uuid.UUID]domain.CampaignStatus
	createErr error
}

func (f *fakeCampaigns) Create(_ context.Context, campaign *domain.Campaign) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, campaign)
	return nil
}

func (f *fakeCampaigns) Get(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	for _, c := range f.created {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCampaigns) UpdateStatus(_ context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[uuid.UUID]domain.CampaignStatus)
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeCampaigns) ListByStatus(_ context.Context, status domain.CampaignStatus, _ int) ([]*domain.Campaign, error) {
	var out []*domain.Campaign
	for _, c := range f.created {
		if f.statuses[c.ID] == status {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeAgents struct {
	agent *domain.Agent
	err   error
}

func (f *fakeAgents) ActiveForClient(_ context.Context, _ uuid.UUID) (*domain.Agent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.agent, nil
}

type recordingAudit struct {
	entries []repository.AuditEntry
}

func (r *recordingAudit) Append(_ context.Context, entry repository.AuditEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingAudit) ListByLaunch(_ context.Context, launchID uuid.UUID) ([]repository.AuditEntry, error) {
	var out []repository.AuditEntry
	for _, e := range r.entries {
		if e.LaunchID == launchID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fixture struct {
	lists     *fakeLists
	contacts  *fakeContacts
	campaigns *fakeCampaigns
	agents    *fakeAgents
	trigger   *triggermock.Client
	audit     *recordingAudit
}

func newFixture(t *testing.T, policy TriggerPolicy) (*Orchestrator, *fixture) {
	t.Helper()
	lg, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	f := &fixture{
		lists:     &fakeLists{},
		contacts:  &fakeContacts{},
		campaigns: &fakeCampaigns{},
		agents:    &fakeAgents{agent: &domain.Agent{ID: uuid.New(), Active: true}},
		trigger:   triggermock.NewClient(),
		audit:     &recordingAudit{},
	}

	orch := NewOrchestrator(
		f.lists, f.contacts, f.campaigns, f.agents, f.trigger,
		lg, 500, policy,
		Options{Audit: f.audit},
	)
	return orch, f
}

func launchConfig(n int) (domain.WizardConfiguration, []domain.Contact) {
	cfg := domain.DefaultConfiguration()
	cfg.Name = "quarterly outreach"
	cfg.Script = "hello, this is a call about your extended warranty"
	contacts := make([]domain.Contact, n)
	for i := range contacts {
		contacts[i] = domain.Contact{Phone: fmt.Sprintf("+1415555%04d", i)}
	}
	cfg.Contacts = contacts
	return cfg, contacts
}

func TestLaunchHappyPath(t *testing.T) {
	orch, f := newFixture(t, PolicyBestEffort)
	cfg, contacts := launchConfig(1200)
	clientID := uuid.New()

	record, err := orch.Launch(context.Background(), clientID, cfg, contacts)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	if len(f.lists.created) != 1 {
		t.Fatalf("lists created = %d", len(f.lists.created))
	}
	listName := f.lists.created[0].Name
	if !strings.HasPrefix(listName, cfg.Name+" - ") {
		t.Errorf("list name = %q, want %q date suffix", listName, cfg.Name+" - ")
	}
	for _, r := range listName {
		if r > unicode.MaxASCII {
			t.Errorf("list name %q contains non-ASCII %q", listName, r)
		}
	}
	if len(f.contacts.chunks) != 3 {
		t.Fatalf("chunks = %d, want 3 for 1200 contacts at 500", len(f.contacts.chunks))
	}
	for i, chunk := range f.contacts.chunks {
		if len(chunk) > 500 {
			t.Errorf("chunk %d has %d contacts", i, len(chunk))
		}
	}
	if record.ContactsInserted != 1200 {
		t.Errorf("contacts inserted = %d", record.ContactsInserted)
	}

	if len(f.campaigns.created) != 1 {
		t.Fatalf("campaigns created = %d", len(f.campaigns.created))
	}
	campaign := f.campaigns.created[0]
	if campaign.Status != domain.CampaignStatusRunning {
		t.Errorf("immediate campaign status = %s", campaign.Status)
	}
	if campaign.ContactListID == nil || *campaign.ContactListID != record.ContactListID {
		t.Errorf("campaign not tied to the created list")
	}

	if f.trigger.Calls() != 1 {
		t.Fatalf("trigger calls = %d", f.trigger.Calls())
	}
	if record.Trigger != domain.TriggerDelivered {
		t.Errorf("trigger outcome = %s", record.Trigger)
	}

	entries, _ := f.audit.ListByLaunch(context.Background(), record.LaunchID)
	if len(entries) != 5 {
		t.Fatalf("audit entries = %d, want one per stage", len(entries))
	}
	for i, e := range entries {
		if e.Seq != i+1 {
			t.Errorf("entry %d seq = %d", i, e.Seq)
		}
		if e.Status != "ok" {
			t.Errorf("stage %s status = %s", e.Stage, e.Status)
		}
	}
}

func TestLaunchScheduledCampaignStatus(t *testing.T) {
	orch, f := newFixture(t, PolicyBestEffort)
	cfg, contacts := launchConfig(10)
	cfg.ScheduleMode = domain.ScheduleLater

	if _, err := orch.Launch(context.Background(), uuid.New(), cfg, contacts); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if got := f.campaigns.created[0].Status; got != domain.CampaignStatusScheduled {
		t.Fatalf("status = %s, want scheduled", got)
	}
}

func TestLaunchInsertFailureAbortsWithoutRollback(t *testing.T) {
	orch, f := newFixture(t, PolicyBestEffort)
	f.contacts.failAtChunk = 2
	cfg, contacts := launchConfig(1200)

	_, err := orch.Launch(context.Background(), uuid.New(), cfg, contacts)
	if err == nil {
		t.Fatal("expected launch to fail")
	}

	// The list and the first chunk stay; nothing downstream runs.
	if len(f.lists.created) != 1 {
		t.Errorf("lists created = %d", len(f.lists.created))
	}
	if len(f.contacts.chunks) != 1 || len(f.contacts.chunks[0]) != 500 {
		t.Errorf("surviving chunks = %d", len(f.contacts.chunks))
	}
	if len(f.campaigns.created) != 0 {
		t.Errorf("campaign created despite insert failure")
	}
	if f.trigger.Calls() != 0 {
		t.Errorf("trigger fired despite insert failure")
	}

	// The failed stage is in the audit trail.
	last := f.audit.entries[len(f.audit.entries)-1]
	if last.Stage != StageInsertContacts || last.Status != "failed" {
		t.Errorf("last audit entry = %+v", last)
	}
}

func TestLaunchNoActiveAgent(t *testing.T) {
	orch, f := newFixture(t, PolicyBestEffort)
	f.agents.err = repository.ErrNotFound
	cfg, contacts := launchConfig(5)

	_, err := orch.Launch(context.Background(), uuid.New(), cfg, contacts)
	if !errors.Is(err, ErrNoActiveAgent) {
		t.Fatalf("err = %v, want ErrNoActiveAgent", err)
	}
	if f.trigger.Calls() != 0 {
		t.Errorf("trigger fired without an agent")
	}
	// Campaign record exists already; partial state is intentional.
	if len(f.campaigns.created) != 1 {
		t.Errorf("campaigns created = %d", len(f.campaigns.created))
	}
}

func TestLaunchTriggerFailureBestEffort(t *testing.T) {
	orch, f := newFixture(t, PolicyBestEffort)
	f.trigger.Err = errors.New("engine unreachable")
	cfg, contacts := launchConfig(5)

	record, err := orch.Launch(context.Background(), uuid.New(), cfg, contacts)
	if err != nil {
		t.Fatalf("best-effort launch must succeed, got %v", err)
	}
	if record.Trigger != domain.TriggerFailed {
		t.Errorf("trigger outcome = %s", record.Trigger)
	}
	if got := f.campaigns.statuses[record.CampaignID]; got != domain.CampaignStatusDispatchPending {
		t.Errorf("campaign status = %s, want dispatch_pending", got)
	}
}

func TestLaunchTriggerFailureRequired(t *testing.T) {
	orch, f := newFixture(t, PolicyRequired)
	f.trigger.Err = errors.New("engine unreachable")
	cfg, contacts := launchConfig(5)

	if _, err := orch.Launch(context.Background(), uuid.New(), cfg, contacts); err == nil {
		t.Fatal("required policy must surface trigger failure")
	}
}

func TestSaveAsDraft(t *testing.T) {
	orch, f := newFixture(t, PolicyBestEffort)
	cfg, _ := launchConfig(5)

	campaignID, err := orch.SaveAsDraft(context.Background(), uuid.New(), cfg)
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if campaignID == uuid.Nil {
		t.Fatal("no campaign id returned")
	}

	if len(f.contacts.chunks) != 0 {
		t.Errorf("draft save inserted contacts")
	}
	if f.trigger.Calls() != 0 {
		t.Errorf("draft save fired trigger")
	}
	if got := f.campaigns.created[0].Status; got != domain.CampaignStatusDraft {
		t.Errorf("status = %s, want draft", got)
	}
	if got := f.lists.created[0].Name; got != cfg.Name+" - draft" {
		t.Errorf("draft list name = %q", got)
	}
}

func TestChunkContacts(t *testing.T) {
	cases := []struct {
		n      int
		size   int
		chunks int
	}{
		{0, 500, 0},
		{1, 500, 1},
		{500, 500, 1},
		{501, 500, 2},
		{1499, 500, 3},
	}

	for _, tc := range cases {
		contacts := make([]domain.Contact, tc.n)
		got := chunkContacts(contacts, tc.size)
		if len(got) != tc.chunks {
			t.Errorf("chunkContacts(%d, %d) = %d chunks, want %d", tc.n, tc.size, len(got), tc.chunks)
		}
		total := 0
		for _, c := range got {
			total += len(c)
		}
		if total != tc.n {
			t.Errorf("chunkContacts(%d, %d) lost contacts: %d", tc.n, tc.size, total)
		}
	}
}
