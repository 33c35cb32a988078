package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/crm-dispatch/internal/config"
	"github.com/unclebandit/crm-dispatch/internal/model"
)

func TestFromConfigBuildsEnabledChannels(t *testing.T) {
	cfg := &config.Config{
		Email:     config.EmailConfig{Enabled: true, Host: "smtp.local", Port: 25, From: "crm@x.com"},
		SMS:       config.SMSConfig{Enabled: false},
		Broadcast: config.BroadcastConfig{Enabled: true, BaseURL: "http://tg.local", BotToken: "t", ChatID: "-100"},
	}

	channels := FromConfig(cfg)

	if assert.Len(t, channels, 2) {
		assert.Equal(t, model.ChannelEmail, channels[0].Name())
		assert.Equal(t, ScopeRecipient, channels[0].Scope())
		assert.Equal(t, model.ChannelBroadcast, channels[1].Name())
		assert.Equal(t, ScopeBroadcast, channels[1].Scope())
		assert.Equal(t, "-100", channels[1].Destination(nil))
	}
	for _, ch := range channels {
		assert.IsType(t, &GuardedChannel{}, ch)
	}
}
