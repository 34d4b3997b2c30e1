package domain

import "time"

// Step identifies a wizard step. Transitions are strictly linear except
// for the Review step's jump-back links.
type Step int

const (
	StepDetails Step = iota + 1
	StepContacts
	StepScript
	StepReview
)

// Valid reports whether the step is one of the four wizard steps.
func (s Step) Valid() bool {
	return s >= StepDetails && s <= StepReview
}

// ScheduleMode selects when a campaign starts calling.
type ScheduleMode string

const (
	ScheduleImmediate ScheduleMode = "immediate"
	ScheduleLater     ScheduleMode = "later"
)

// RetryUnit is the unit of the retry backoff amount.
type RetryUnit string

const (
	RetryUnitHours RetryUnit = "hours"
	RetryUnitDays  RetryUnit = "days"
)

// VoicemailAction selects behaviour when voicemail is detected.
type VoicemailAction string

const (
	VoicemailSkip         VoicemailAction = "skip"
	VoicemailLeaveMessage VoicemailAction = "leave_message"
)

// ContactTab is the active contact input mode.
type ContactTab string

const (
	ContactTabCSV    ContactTab = "csv"
	ContactTabManual ContactTab = "manual"
)

// Contact is a single callable entity targeted by a campaign.
type Contact struct {
	Phone   string `json:"phone"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
}

// Valid reports whether the contact's phone passes the validity rule.
// Validity is a pure function of the phone field.
func (c Contact) Valid() bool {
	return ValidPhone(c.Phone)
}

// CountValid returns the number of contacts with a valid phone.
func CountValid(contacts []Contact) int {
	n := 0
	for _, c := range contacts {
		if c.Valid() {
			n++
		}
	}
	return n
}

// RetrySettings defines the optional retry policy of a campaign.
type RetrySettings struct {
	Enabled     bool      `json:"enabled"`
	MaxAttempts int       `json:"max_attempts"`
	After       int       `json:"after"`
	Unit        RetryUnit `json:"unit"`
}

// WizardConfiguration is the full mutable draft of a campaign under
// construction, grouped by wizard step.
type WizardConfiguration struct {
	// Identity and schedule.
	Name           string         `json:"name"`
	Goal           string         `json:"goal,omitempty"`
	ScheduleMode   ScheduleMode   `json:"schedule_mode"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty"`
	FromHour       int            `json:"from_hour"`
	ToHour         int            `json:"to_hour"`
	ActiveDays     []time.Weekday `json:"active_days"`
	MaxCallsPerDay int            `json:"max_calls_per_day,omitempty"`
	Retry          RetrySettings  `json:"retry"`

	// Contacts.
	Contacts     []Contact  `json:"contacts"`
	ActiveTab    ContactTab `json:"active_tab"`
	LastFileName string     `json:"last_file_name,omitempty"`

	// Script and voice.
	Script              string          `json:"script"`
	VoiceID             string          `json:"voice_id"`
	LanguageID          string          `json:"language_id"`
	SpeakingSpeed       float64         `json:"speaking_speed"`
	LeadQualification   bool            `json:"lead_qualification"`
	QualifyingQuestions []string        `json:"qualifying_questions,omitempty"`
	CallRecording       bool            `json:"call_recording"`
	VoicemailDetection  bool            `json:"voicemail_detection"`
	VoicemailAction     VoicemailAction `json:"voicemail_action"`
	VoicemailScript     string          `json:"voicemail_script,omitempty"`
}

// DefaultConfiguration seeds a fresh wizard draft.
func DefaultConfiguration() WizardConfiguration {
	return WizardConfiguration{
		ScheduleMode: ScheduleImmediate,
		FromHour:     9,
		ToHour:       18,
		ActiveDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		Retry: RetrySettings{
			Enabled:     false,
			MaxAttempts: 3,
			After:       4,
			Unit:        RetryUnitHours,
		},
		ActiveTab:       ContactTabCSV,
		SpeakingSpeed:   1.0,
		VoicemailAction: VoicemailSkip,
	}
}

// ValidContacts returns the subset of contacts with a valid phone.
func (c WizardConfiguration) ValidContacts() []Contact {
	out := make([]Contact, 0, len(c.Contacts))
	for _, contact := range c.Contacts {
		if contact.Valid() {
			out = append(out, contact)
		}
	}
	return out
}
