package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"

	"github.com/unclebandit/crm-dispatch/internal/config"
	"github.com/unclebandit/crm-dispatch/internal/model"
)

const (
	telegramTextLimit    = 4096
	telegramCaptionLimit = 1024
)

// TelegramChannel posts the campaign to one fixed chat through the Bot API.
// It is broadcast-scoped: the dispatcher calls it once per run.
type TelegramChannel struct {
	client *resty.Client
	token  string
	chatID string
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewTelegramChannel(cfg config.BroadcastConfig) *TelegramChannel {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	return &TelegramChannel{client: client, token: cfg.BotToken, chatID: cfg.ChatID}
}

func (t *TelegramChannel) Name() model.ChannelName { return model.ChannelBroadcast }

func (t *TelegramChannel) Scope() Scope { return ScopeBroadcast }

func (t *TelegramChannel) Destination(*model.Client) string { return t.chatID }

// Deliver sends a photo with caption when the campaign has an image and a
// plain text message otherwise.
func (t *TelegramChannel) Deliver(ctx context.Context, chatID string, msg Message) error {
	if chatID == "" {
		return ErrMissingDestination
	}

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}

	method := "sendMessage"
	body := map[string]string{"chat_id": chatID}
	if msg.ImageURL != "" {
		method = "sendPhoto"
		body["photo"] = msg.ImageURL
		body["caption"] = truncate(text, telegramCaptionLimit)
	} else {
		body["text"] = truncate(text, telegramTextLimit)
	}

	var result telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("token", t.token).
		SetPathParam("method", method).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post("/bot{token}/{method}")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("telegram %s: %w", method, ctxErr)
		}
		// transport errors quote the URL, which carries the bot token
		return fmt.Errorf("telegram %s: %s", method, strings.ReplaceAll(err.Error(), t.token, "<token>"))
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram %s returned %d: %s", method, resp.StatusCode(), result.Description)
	}
	return nil
}
