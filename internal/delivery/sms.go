package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/unclebandit/crm-dispatch/internal/config"
	"github.com/unclebandit/crm-dispatch/internal/model"
)

// SMSChannel posts text messages to a Twilio-compatible REST gateway.
// Images are not sent over SMS.
type SMSChannel struct {
	client    *resty.Client
	accountID string
	from      string
}

func NewSMSChannel(cfg config.SMSConfig) *SMSChannel {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetBasicAuth(cfg.AccountID, cfg.Token)
	return &SMSChannel{client: client, accountID: cfg.AccountID, from: cfg.From}
}

func (s *SMSChannel) Name() model.ChannelName { return model.ChannelSMS }

func (s *SMSChannel) Scope() Scope { return ScopeRecipient }

func (s *SMSChannel) Destination(c *model.Client) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Phone)
}

func (s *SMSChannel) Deliver(ctx context.Context, to string, msg Message) error {
	if to == "" {
		return ErrMissingDestination
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("account", s.accountID).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.from,
			"Body": smsText(msg),
		}).
		Post("/Accounts/{account}/Messages.json")
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	return nil
}

func smsText(msg Message) string {
	if msg.Subject == "" {
		return msg.Body
	}
	return msg.Subject + ": " + msg.Body
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
