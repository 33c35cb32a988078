package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/crm-dispatch/internal/config"
	"github.com/unclebandit/crm-dispatch/internal/model"
)

func TestSMSDeliverPostsForm(t *testing.T) {
	var got http.Header
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC1/Messages.json", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		got = r.Header
		form = map[string]string{"To": r.PostForm.Get("To"), "From": r.PostForm.Get("From"), "Body": r.PostForm.Get("Body")}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ch := NewSMSChannel(config.SMSConfig{BaseURL: srv.URL, AccountID: "AC1", Token: "secret", From: "+15550000"})
	err := ch.Deliver(context.Background(), "+15551212", Message{Subject: "Summer Sale", Body: "50% off", ImageURL: "https://x/img.png"})
	require.NoError(t, err)

	assert.Equal(t, "+15551212", form["To"])
	assert.Equal(t, "+15550000", form["From"])
	assert.Equal(t, "Summer Sale: 50% off", form["Body"])
	assert.NotEmpty(t, got.Get("Authorization"))
}

func TestSMSDeliverGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	ch := NewSMSChannel(config.SMSConfig{BaseURL: srv.URL, AccountID: "AC1", From: "+1"})
	err := ch.Deliver(context.Background(), "+15551212", Message{Body: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestSMSDestinationEmptyPhone(t *testing.T) {
	ch := NewSMSChannel(config.SMSConfig{BaseURL: "http://unused"})
	assert.Equal(t, "", ch.Destination(&model.Client{Phone: ""}))
	assert.Equal(t, "+15551212", ch.Destination(&model.Client{Phone: "+15551212"}))
}

func telegramServer(t *testing.T, calls *[]string, bodies *[]map[string]string, ok bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls = append(*calls, r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*bodies = append(*bodies, body)
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
}

func TestTelegramSendsPhotoWhenImagePresent(t *testing.T) {
	var calls []string
	var bodies []map[string]string
	srv := telegramServer(t, &calls, &bodies, true)
	defer srv.Close()

	ch := NewTelegramChannel(config.BroadcastConfig{BaseURL: srv.URL, BotToken: "T0K", ChatID: "-100"})
	assert.Equal(t, ScopeBroadcast, ch.Scope())
	assert.Equal(t, "-100", ch.Destination(nil))

	err := ch.Deliver(context.Background(), "-100", Message{Subject: "Summer Sale", Body: "50% off", ImageURL: "https://x/img.png"})
	require.NoError(t, err)
	require.Equal(t, []string{"/botT0K/sendPhoto"}, calls)
	assert.Equal(t, "https://x/img.png", bodies[0]["photo"])
	assert.Equal(t, "Summer Sale\n\n50% off", bodies[0]["caption"])
}

func TestTelegramSendsTextWithoutImage(t *testing.T) {
	var calls []string
	var bodies []map[string]string
	srv := telegramServer(t, &calls, &bodies, true)
	defer srv.Close()

	ch := NewTelegramChannel(config.BroadcastConfig{BaseURL: srv.URL, BotToken: "T0K", ChatID: "-100"})
	require.NoError(t, ch.Deliver(context.Background(), "-100", Message{Subject: "s", Body: "b"}))
	assert.Equal(t, []string{"/botT0K/sendMessage"}, calls)
	assert.Equal(t, "-100", bodies[0]["chat_id"])
}

func TestTelegramReportsAPIError(t *testing.T) {
	var calls []string
	var bodies []map[string]string
	srv := telegramServer(t, &calls, &bodies, false)
	defer srv.Close()

	ch := NewTelegramChannel(config.BroadcastConfig{BaseURL: srv.URL, BotToken: "T0K", ChatID: "-100"})
	err := ch.Deliver(context.Background(), "-100", Message{Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
