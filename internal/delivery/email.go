package delivery

import (
	"context"
	"fmt"
	"html"
	"strings"

	"gopkg.in/mail.v2"

	"github.com/unclebandit/crm-dispatch/internal/config"
	"github.com/unclebandit/crm-dispatch/internal/model"
)

// Sender is the part of *mail.Dialer the email channel needs.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

type EmailChannel struct {
	sender Sender
	from   string
}

func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.Timeout = cfg.Timeout
	return NewEmailChannelWithSender(dialer, cfg.From)
}

func NewEmailChannelWithSender(s Sender, from string) *EmailChannel {
	return &EmailChannel{sender: s, from: from}
}

func (e *EmailChannel) Name() model.ChannelName { return model.ChannelEmail }

func (e *EmailChannel) Scope() Scope { return ScopeRecipient }

func (e *EmailChannel) Destination(c *model.Client) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Email)
}

// Deliver sends a multipart message: plain text first, HTML with the
// campaign image as the alternative.
func (e *EmailChannel) Deliver(ctx context.Context, to string, msg Message) error {
	if to == "" {
		return ErrMissingDestination
	}

	m := mail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", plainBody(msg))
	m.AddAlternative("text/html", htmlBody(msg))

	// mail.v2 has no context support; the dialer timeout bounds the goroutine.
	errc := make(chan error, 1)
	go func() { errc <- e.sender.DialAndSend(m) }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func plainBody(msg Message) string {
	if msg.ImageURL == "" {
		return msg.Body
	}
	return msg.Body + "\n\n" + msg.ImageURL
}

func htmlBody(msg Message) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString("<h2>" + html.EscapeString(msg.Subject) + "</h2>")
	b.WriteString("<p>" + strings.ReplaceAll(html.EscapeString(msg.Body), "\n", "<br>") + "</p>")
	if msg.ImageURL != "" {
		fmt.Fprintf(&b, `<p><img src="%s" alt="%s" style="max-width:100%%"></p>`,
			html.EscapeString(msg.ImageURL), html.EscapeString(msg.Subject))
	}
	b.WriteString("</body></html>")
	return b.String()
}
