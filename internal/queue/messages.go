package queue

import (
	"time"

	"github.com/google/uuid"
)

// LaunchEvent reports one stage outcome of a launch attempt. Events carry
// every identifier produced so far so a consumer can reconstruct what was
// created even when the attempt aborted mid-way.
type LaunchEvent struct {
	LaunchID   uuid.UUID `json:"launch_id"`
	ClientID   uuid.UUID `json:"client_id"`
	Seq        int       `json:"seq"`
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	CampaignID uuid.UUID `json:"campaign_id,omitempty"`
	ListID     uuid.UUID `json:"list_id,omitempty"`
	AgentID    uuid.UUID `json:"agent_id,omitempty"`
	Contacts   int       `json:"contacts,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
