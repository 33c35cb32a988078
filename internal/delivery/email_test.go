package delivery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mail.v2"

	"github.com/unclebandit/crm-dispatch/internal/model"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []*mail.Message
	err   error
	delay time.Duration
}

func (f *fakeSender) DialAndSend(m ...*mail.Message) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m...)
	return f.err
}

func TestEmailDeliverBuildsMultipartMessage(t *testing.T) {
	s := &fakeSender{}
	ch := NewEmailChannelWithSender(s, "crm@example.com")

	err := ch.Deliver(context.Background(), "a@x.com", Message{
		Subject:  "Summer Sale",
		Body:     "50% off",
		ImageURL: "https://cdn.example.com/sale.png",
	})
	require.NoError(t, err)
	require.Len(t, s.sent, 1)

	m := s.sent[0]
	assert.Equal(t, []string{"a@x.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Summer Sale"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.True(t, strings.Contains(raw, "text/html"))
	assert.True(t, strings.Contains(raw, "sale.png"))
}

func TestEmailDeliverWrapsSMTPError(t *testing.T) {
	ch := NewEmailChannelWithSender(&fakeSender{err: errors.New("535 auth failed")}, "crm@example.com")
	err := ch.Deliver(context.Background(), "a@x.com", Message{Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535 auth failed")
}

func TestEmailDeliverRespectsContext(t *testing.T) {
	ch := NewEmailChannelWithSender(&fakeSender{delay: 200 * time.Millisecond}, "crm@example.com")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := ch.Deliver(ctx, "a@x.com", Message{Subject: "s", Body: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmailDestination(t *testing.T) {
	ch := NewEmailChannelWithSender(&fakeSender{}, "crm@example.com")
	assert.Equal(t, "a@x.com", ch.Destination(&model.Client{Email: " a@x.com "}))
	assert.Equal(t, ScopeRecipient, ch.Scope())
	assert.ErrorIs(t, ch.Deliver(context.Background(), "", Message{}), ErrMissingDestination)
}

func TestHTMLBodyEscapes(t *testing.T) {
	out := htmlBody(Message{Subject: "<b>", Body: "a & b"})
	assert.Contains(t, out, "&lt;b&gt;")
	assert.Contains(t, out, "a &amp; b")
	assert.NotContains(t, out, "<img")
}
