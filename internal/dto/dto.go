// Package dto holds the request bodies accepted by the HTTP layer. Each type
// is validated with internal/validation before it reaches a service.
package dto

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// ID accepts an identifier sent either as a JSON number or a numeric string.
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", string(b))
	}
	*id = ID(n)
	return nil
}

// DispatchRequest is the body of POST /campaigns/send. Title and message may
// be sent by older dashboards; the stored campaign is what gets delivered.
type DispatchRequest struct {
	CampaignID ID     `json:"campaign_id" validate:"gt=0"`
	Title      string `json:"title,omitempty" validate:"-"`
	Message    string `json:"message,omitempty" validate:"-"`
}

// ClientInput is used for both create and full update of a client.
type ClientInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
	Industry string `json:"industry" validate:"max=100"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// CampaignInput is used for both create and full update of a campaign.
type CampaignInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Message     string     `json:"message" validate:"required,max=4000"`
	ImageURL    string     `json:"image_url" validate:"omitempty,url"`
	Status      string     `json:"status" validate:"omitempty,oneof=draft scheduled"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}
