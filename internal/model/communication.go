// internal/model/communication.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Communication is one entry in a client's contact history. Broadcast
// attempts are stored with ClientID zero (NULL in the table).
type Communication struct {
	ID          int64       `db:"id" json:"id"`
	ClientID    int64       `db:"client_id" json:"client_id,omitempty"`
	CampaignID  int64       `db:"campaign_id" json:"campaign_id"`
	RunID       uuid.UUID   `db:"run_id" json:"run_id"`
	Channel     ChannelName `db:"channel" json:"channel"`
	Destination string      `db:"destination" json:"destination,omitempty"`
	Success     bool        `db:"success" json:"success"`
	Error       string      `db:"error" json:"error,omitempty"`
	AttemptedAt time.Time   `db:"attempted_at" json:"attempted_at"`
}

// CommunicationFromEvent flattens a published outcome into a history row.
func CommunicationFromEvent(ev OutcomeEvent) Communication {
	return Communication{
		ClientID:    ev.Outcome.ClientID,
		CampaignID:  ev.CampaignID,
		RunID:       ev.RunID,
		Channel:     ev.Outcome.Channel,
		Destination: ev.Outcome.Destination,
		Success:     ev.Outcome.Success,
		Error:       ev.Outcome.Error,
		AttemptedAt: ev.Outcome.AttemptedAt,
	}
}

type ChannelStats struct {
	Channel   ChannelName `json:"channel"`
	Delivered int         `json:"delivered"`
	Failed    int         `json:"failed"`
}

type Summary struct {
	Clients           int                    `json:"clients"`
	CampaignsByStatus map[CampaignStatus]int `json:"campaigns_by_status"`
	Deliveries        []ChannelStats         `json:"deliveries"`
}
