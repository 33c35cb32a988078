package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/unclebandit/crm-dispatch/internal/logging"
)

// ConfigPathEnvVar overrides where the YAML config file is read from.
const ConfigPathEnvVar = "CONFIG_PATH"

var defaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// Load builds the configuration. Layers, lowest priority first:
// defaults, YAML file, .env file, process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn().Err(err).Msg("could not read .env file")
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_addr":             "server.addr",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit":            "server.rate_limit",

	"db_host":              "database.host",
	"db_port":              "database.port",
	"db_user":              "database.user",
	"db_password":          "database.password",
	"db_name":              "database.name",
	"db_sslmode":           "database.sslmode",
	"db_max_open_conns":    "database.max_open_conns",
	"db_max_idle_conns":    "database.max_idle_conns",
	"db_conn_max_lifetime": "database.conn_max_lifetime",

	"amqp_url":           "amqp.url",
	"amqp_outcome_queue": "amqp.outcome_queue",

	"dispatch_workers":          "dispatch.workers",
	"dispatch_delivery_timeout": "dispatch.delivery_timeout",

	"smtp_enabled":  "email.enabled",
	"smtp_host":     "email.host",
	"smtp_port":     "email.port",
	"smtp_username": "email.username",
	"smtp_password": "email.password",
	"smtp_from":     "email.from",
	"smtp_timeout":  "email.timeout",

	"sms_enabled":    "sms.enabled",
	"sms_base_url":   "sms.base_url",
	"sms_account_id": "sms.account_id",
	"sms_token":      "sms.token",
	"sms_from":       "sms.from",

	"telegram_enabled":  "broadcast.enabled",
	"telegram_base_url": "broadcast.base_url",
	"telegram_token":    "broadcast.bot_token",
	"telegram_chat_id":  "broadcast.chat_id",

	"guard_rate_per_second":  "guard.rate_per_second",
	"guard_burst":            "guard.burst",
	"guard_breaker_failures": "guard.breaker_failures",
	"guard_breaker_timeout":  "guard.breaker_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc maps env names like DB_HOST to koanf paths. Unknown
// variables return "" so koanf skips them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
