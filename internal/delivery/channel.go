// Package delivery implements the outbound channels a campaign is sent
// through. Recipient-scoped channels are called once per client; broadcast
// channels post once per dispatch run.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/unclebandit/crm-dispatch/internal/model"
)

type Scope int

const (
	ScopeRecipient Scope = iota
	ScopeBroadcast
)

func (s Scope) String() string {
	if s == ScopeBroadcast {
		return "broadcast"
	}
	return "recipient"
}

// ErrMissingDestination is returned when a channel is asked to deliver to an
// empty address.
var ErrMissingDestination = errors.New("missing destination")

// Message is the channel-neutral content of a campaign.
type Message struct {
	Subject  string
	Body     string
	ImageURL string
}

func MessageFromCampaign(c *model.Campaign) Message {
	return Message{Subject: c.Title, Body: c.Message, ImageURL: c.ImageURL}
}

// Channel is one way of reaching people.
type Channel interface {
	Name() model.ChannelName
	Scope() Scope
	// Destination returns the address to use for a client, or "" when the
	// client cannot be reached on this channel; Deliver then fails with
	// ErrMissingDestination. Broadcast channels ignore the client and may be
	// called with nil.
	Destination(c *model.Client) string
	Deliver(ctx context.Context, destination string, msg Message) error
}

// DeliveryError ties a provider failure to the channel and address it hit.
type DeliveryError struct {
	Channel     model.ChannelName
	Destination string
	Err         error
}

func (e *DeliveryError) Error() string {
	if e.Destination == "" {
		return fmt.Sprintf("%s: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("%s to %s: %v", e.Channel, e.Destination, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
