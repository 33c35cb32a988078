// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and the process environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration shared by cmd/server and cmd/worker.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	AMQP      AMQPConfig      `koanf:"amqp"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	Email     EmailConfig     `koanf:"email"`
	SMS       SMSConfig       `koanf:"sms"`
	Broadcast BroadcastConfig `koanf:"broadcast"`
	Guard     GuardConfig     `koanf:"guard"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       int           `koanf:"rate_limit"` // requests per minute per IP, 0 disables
}

type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            string        `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"sslmode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// DSN returns the Postgres connection URL.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// AMQPConfig configures RabbitMQ. An empty URL keeps outcome events in process.
type AMQPConfig struct {
	URL          string `koanf:"url"`
	OutcomeQueue string `koanf:"outcome_queue"`
}

type DispatchConfig struct {
	Workers         int           `koanf:"workers"`
	DeliveryTimeout time.Duration `koanf:"delivery_timeout"`
}

type EmailConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from"`
	Timeout  time.Duration `koanf:"timeout"`
}

type SMSConfig struct {
	Enabled   bool   `koanf:"enabled"`
	BaseURL   string `koanf:"base_url"`
	AccountID string `koanf:"account_id"`
	Token     string `koanf:"token"`
	From      string `koanf:"from"`
}

// BroadcastConfig configures the chat-bot channel, which posts once per
// dispatch run to a fixed chat.
type BroadcastConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BaseURL  string `koanf:"base_url"`
	BotToken string `koanf:"bot_token"`
	ChatID   string `koanf:"chat_id"`
}

// GuardConfig bounds how hard each channel may hit its provider.
type GuardConfig struct {
	RatePerSecond   float64       `koanf:"rate_per_second"`
	Burst           int           `koanf:"burst"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute, // dispatch holds the request open for the whole fan-out
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       120,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "crm",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		AMQP: AMQPConfig{
			OutcomeQueue: "campaign_outcomes",
		},
		Dispatch: DispatchConfig{
			Workers:         4,
			DeliveryTimeout: 10 * time.Second,
		},
		Email: EmailConfig{
			Enabled: true,
			Port:    587,
			Timeout: 10 * time.Second,
		},
		SMS: SMSConfig{
			Enabled: true,
		},
		Broadcast: BroadcastConfig{
			BaseURL: "https://api.telegram.org",
		},
		Guard: GuardConfig{
			RatePerSecond:   10,
			Burst:           5,
			BreakerFailures: 5,
			BreakerTimeout:  time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks that every enabled component has what it needs.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Host == "" || c.Database.Name == "" {
		errs = append(errs, errors.New("database host and name are required"))
	}
	if c.Dispatch.Workers < 1 {
		errs = append(errs, fmt.Errorf("dispatch.workers must be at least 1, got %d", c.Dispatch.Workers))
	}
	if c.Dispatch.DeliveryTimeout <= 0 {
		errs = append(errs, errors.New("dispatch.delivery_timeout must be positive"))
	}
	if c.Email.Enabled && (c.Email.Host == "" || c.Email.From == "") {
		errs = append(errs, errors.New("email.host and email.from are required when email is enabled"))
	}
	if c.SMS.Enabled && (c.SMS.BaseURL == "" || c.SMS.From == "") {
		errs = append(errs, errors.New("sms.base_url and sms.from are required when sms is enabled"))
	}
	if c.Broadcast.Enabled && (c.Broadcast.BotToken == "" || c.Broadcast.ChatID == "") {
		errs = append(errs, errors.New("broadcast.bot_token and broadcast.chat_id are required when broadcast is enabled"))
	}
	if !c.Email.Enabled && !c.SMS.Enabled && !c.Broadcast.Enabled {
		errs = append(errs, errors.New("at least one delivery channel must be enabled"))
	}

	return errors.Join(errs...)
}
