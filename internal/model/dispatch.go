// internal/model/dispatch.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type ChannelName string

const (
	ChannelEmail     ChannelName = "email"
	ChannelSMS       ChannelName = "sms"
	ChannelBroadcast ChannelName = "broadcast"
)

// DeliveryOutcome is the result of one delivery attempt. ClientID is zero for
// broadcast-scoped channels, which are not addressed per client.
type DeliveryOutcome struct {
	ClientID    int64       `json:"client_id,omitempty"`
	Channel     ChannelName `json:"channel"`
	Destination string      `json:"destination,omitempty"`
	Success     bool        `json:"success"`
	Error       string      `json:"error,omitempty"`
	AttemptedAt time.Time   `json:"attempted_at"`
}

// DispatchReport summarises one dispatch run.
type DispatchReport struct {
	RunID       uuid.UUID         `json:"run_id"`
	Campaign    *Campaign         `json:"campaign"`
	Clients     int               `json:"clients"`
	Attempted   int               `json:"attempted"`
	Delivered   int               `json:"delivered"`
	Failed      int               `json:"failed"`
	Outcomes    []DeliveryOutcome `json:"outcomes"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Add records an outcome and keeps the counters in step.
func (r *DispatchReport) Add(o DeliveryOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Attempted++
	if o.Success {
		r.Delivered++
	} else {
		r.Failed++
	}
}

// OutcomeEvent is published for every attempt so history can be recorded
// outside the request path.
type OutcomeEvent struct {
	RunID      uuid.UUID       `json:"run_id"`
	CampaignID int64           `json:"campaign_id"`
	Outcome    DeliveryOutcome `json:"outcome"`
}
