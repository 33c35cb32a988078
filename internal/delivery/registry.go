package delivery

import (
	"github.com/unclebandit/crm-dispatch/internal/config"
	"github.com/unclebandit/crm-dispatch/internal/logging"
)

// FromConfig builds every enabled channel, each behind its own guard.
// Recipient channels come first so per-client outcomes lead the report.
func FromConfig(cfg *config.Config) []Channel {
	var channels []Channel
	if cfg.Email.Enabled {
		channels = append(channels, Guard(NewEmailChannel(cfg.Email), cfg.Guard))
	}
	if cfg.SMS.Enabled {
		channels = append(channels, Guard(NewSMSChannel(cfg.SMS), cfg.Guard))
	}
	if cfg.Broadcast.Enabled {
		channels = append(channels, Guard(NewTelegramChannel(cfg.Broadcast), cfg.Guard))
	}

	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = string(ch.Name())
	}
	logging.Info().Strs("channels", names).Msg("delivery channels configured")
	return channels
}
