package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/campaign-console/internal/domain"
	"github.com/acme/campaign-console/internal/service/wizard"
)

type openSessionRequest struct {
	ClientID uuid.UUID `json:"client_id"`
}

type detailsRequest struct {
	Name           string     `json:"name"`
	Goal           string     `json:"goal"`
	ScheduleMode   string     `json:"schedule_mode"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
	FromHour       int        `json:"from_hour"`
	ToHour         int        `json:"to_hour"`
	ActiveDays     []int      `json:"active_days"`
	MaxCallsPerDay int        `json:"max_calls_per_day"`
	Retry          struct {
		Enabled     bool   `json:"enabled"`
		MaxAttempts int    `json:"max_attempts"`
		After       int    `json:"after"`
		Unit        string `json:"unit"`
	} `json:"retry"`
}

type scriptRequest struct {
	Script              string   `json:"script"`
	VoiceID             string   `json:"voice_id"`
	LanguageID          string   `json:"language_id"`
	SpeakingSpeed       float64  `json:"speaking_speed"`
	LeadQualification   bool     `json:"lead_qualification"`
	QualifyingQuestions []string `json:"qualifying_questions"`
	CallRecording       bool     `json:"call_recording"`
	VoicemailDetection  bool     `json:"voicemail_detection"`
	VoicemailAction     string   `json:"voicemail_action"`
	VoicemailScript     string   `json:"voicemail_script"`
}

type manualContactRequest struct {
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

type gotoRequest struct {
	Step int `json:"step"`
}

type launchRequest struct {
	ConsentTerms      bool `json:"consent_terms"`
	ConsentCompliance bool `json:"consent_compliance"`
}

type sessionResponse struct {
	SessionID uuid.UUID                  `json:"session_id"`
	ClientID  uuid.UUID                  `json:"client_id"`
	Step      int                        `json:"step"`
	Launching bool                       `json:"launching"`
	Config    domain.WizardConfiguration `json:"config"`

	DetailsValid  bool          `json:"details_valid"`
	ContactsValid bool          `json:"contacts_valid"`
	ScriptValid   bool          `json:"script_valid"`
	Quota         quotaResponse `json:"quota"`
}

type quotaResponse struct {
	Allowance     int  `json:"allowance"`
	Consumed      int  `json:"consumed"`
	Remaining     int  `json:"remaining"`
	ValidContacts int  `json:"valid_contacts,omitempty"`
	WouldExceed   bool `json:"would_exceed"`
}

type uploadResponse struct {
	Added   int             `json:"added"`
	Valid   int             `json:"valid"`
	Invalid int             `json:"invalid"`
	Session sessionResponse `json:"session"`
}

type launchResponse struct {
	LaunchID         uuid.UUID       `json:"launch_id"`
	CampaignID       uuid.UUID       `json:"campaign_id"`
	ContactListID    uuid.UUID       `json:"contact_list_id"`
	AgentID          uuid.UUID       `json:"agent_id"`
	ContactsInserted int             `json:"contacts_inserted"`
	Trigger          string          `json:"trigger"`
	Session          sessionResponse `json:"session"`
}

func toSessionResponse(state wizard.State) sessionResponse {
	return sessionResponse{
		SessionID:     state.SessionID,
		ClientID:      state.ClientID,
		Step:          int(state.Step),
		Launching:     state.Launching,
		Config:        state.Config,
		DetailsValid:  state.DetailsValid,
		ContactsValid: state.ContactsValid,
		ScriptValid:   state.ScriptValid,
		Quota: quotaResponse{
			Allowance: state.Quota.Allowance,
			Consumed:  state.Quota.Consumed,
			Remaining: state.Quota.Remaining,
		},
	}
}

func (h *HandlerSet) openSession(ctx *fiber.Ctx) error {
	var req openSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.ClientID == uuid.Nil {
		return fiber.NewError(http.StatusBadRequest, "client_id is required")
	}

	state, err := h.wizard.Open(ctx.Context(), req.ClientID)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusCreated).JSON(toSessionResponse(state))
}

func (h *HandlerSet) getSession(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	state, err := h.wizard.Get(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toSessionResponse(state))
}

func (h *HandlerSet) updateDetails(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	var req detailsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	days := make([]time.Weekday, 0, len(req.ActiveDays))
	for _, d := range req.ActiveDays {
		if d < 0 || d > 6 {
			return fiber.NewError(http.StatusBadRequest, "active day out of range")
		}
		days = append(days, time.Weekday(d))
	}

	input := wizard.DetailsInput{
		Name:           req.Name,
		Goal:           req.Goal,
		ScheduleMode:   domain.ScheduleMode(req.ScheduleMode),
		ScheduledAt:    req.ScheduledAt,
		FromHour:       req.FromHour,
		ToHour:         req.ToHour,
		ActiveDays:     days,
		MaxCallsPerDay: req.MaxCallsPerDay,
		Retry: domain.RetrySettings{
			Enabled:     req.Retry.Enabled,
			MaxAttempts: req.Retry.MaxAttempts,
			After:       req.Retry.After,
			Unit:        domain.RetryUnit(req.Retry.Unit),
		},
	}

	state, err := h.wizard.UpdateDetails(ctx.Context(), id, input)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toSessionResponse(state))
}

func (h *HandlerSet) updateScript(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	var req scriptRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input := wizard.ScriptInput{
		Script:              req.Script,
		VoiceID:             req.VoiceID,
		LanguageID:          req.LanguageID,
		SpeakingSpeed:       req.SpeakingSpeed,
		LeadQualification:   req.LeadQualification,
		QualifyingQuestions: req.QualifyingQuestions,
		CallRecording:       req.CallRecording,
		VoicemailDetection:  req.VoicemailDetection,
		VoicemailAction:     domain.VoicemailAction(req.VoicemailAction),
		VoicemailScript:     req.VoicemailScript,
	}

	state, err := h.wizard.UpdateScript(ctx.Context(), id, input)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toSessionResponse(state))
}

func (h *HandlerSet) uploadContacts(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "file is required")
	}

	file, err := header.Open()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer file.Close()

	contacts, err := h.ingest.IngestFile(header.Filename, header.Size, file)
	if err != nil {
		return translateError(err)
	}

	state, err := h.wizard.AddContacts(ctx.Context(), id, contacts, domain.ContactTabCSV, header.Filename)
	if err != nil {
		return translateError(err)
	}

	valid := domain.CountValid(contacts)
	return ctx.JSON(uploadResponse{
		Added:   len(contacts),
		Valid:   valid,
		Invalid: len(contacts) - valid,
		Session: toSessionResponse(state),
	})
}

func (h *HandlerSet) addManualContact(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	var req manualContactRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	contact, err := h.ingest.ManualContact(req.Phone, req.Name, req.Email, req.Company)
	if err != nil {
		return translateError(err)
	}

	state, err := h.wizard.AddContacts(ctx.Context(), id, []domain.Contact{contact}, domain.ContactTabManual, "")
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toSessionResponse(state))
}

func (h *HandlerSet) removeContact(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	index, err := ctx.ParamsInt("index")
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid contact index")
	}

	state, err := h.wizard.RemoveContact(ctx.Context(), id, index)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toSessionResponse(state))
}

func (h *HandlerSet) nextStep(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	state, err := h.wizard.Next(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toSessionResponse(state))
}

func (h *HandlerSet) backStep(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	state, err := h.wizard.Back(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toSessionResponse(state))
}

func (h *HandlerSet) gotoStep(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	var req gotoRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	state, err := h.wizard.Goto(ctx.Context(), id, domain.Step(req.Step))
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toSessionResponse(state))
}

func (h *HandlerSet) quotaView(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	view, err := h.wizard.Quota(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(quotaResponse{
		Allowance:     view.Allowance,
		Consumed:      view.Consumed,
		Remaining:     view.Remaining,
		ValidContacts: view.ValidContacts,
		WouldExceed:   view.WouldExceed,
	})
}

func (h *HandlerSet) launchCampaign(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	var req launchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	record, state, err := h.wizard.Launch(ctx.Context(), id, req.ConsentTerms, req.ConsentCompliance)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(launchResponse{
		LaunchID:         record.LaunchID,
		CampaignID:       record.CampaignID,
		ContactListID:    record.ContactListID,
		AgentID:          record.AgentID,
		ContactsInserted: record.ContactsInserted,
		Trigger:          string(record.Trigger),
		Session:          toSessionResponse(state),
	})
}

func (h *HandlerSet) saveDraft(ctx *fiber.Ctx) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}

	campaignID, state, err := h.wizard.SaveAsDraft(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(fiber.Map{
		"campaign_id": campaignID,
		"session":     toSessionResponse(state),
	})
}

func sessionID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusBadRequest, "invalid session id")
	}
	return id, nil
}
