// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending" // claimed by a running dispatch
	CampaignSent      CampaignStatus = "sent"
)

// Dispatchable reports whether a dispatch run may claim a campaign in this status.
func (s CampaignStatus) Dispatchable() bool {
	return s == CampaignDraft || s == CampaignScheduled
}

type Campaign struct {
	ID          int64          `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Message     string         `db:"message" json:"message"`
	ImageURL    string         `db:"image_url" json:"image_url,omitempty"`
	Status      CampaignStatus `db:"status" json:"status"`
	ScheduledAt *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	SentAt      *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}
