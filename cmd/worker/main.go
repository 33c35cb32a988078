// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/unclebandit/crm-dispatch/internal/config"
	"github.com/unclebandit/crm-dispatch/internal/db"
	"github.com/unclebandit/crm-dispatch/internal/logging"
	"github.com/unclebandit/crm-dispatch/internal/queue"
	"github.com/unclebandit/crm-dispatch/internal/repository"
	"github.com/unclebandit/crm-dispatch/internal/service"
)

// The worker consumes dispatch outcome events from RabbitMQ and writes them
// to client_communications.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if cfg.AMQP.URL == "" {
		logging.Fatal().Msg("AMQP_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("database unavailable")
	}
	defer conn.Close()

	q, err := queue.DialAMQP(cfg.AMQP.URL)
	if err != nil {
		logging.Fatal().Err(err).Msg("message broker unavailable")
	}

	worker := service.NewOutcomeWorker(&repository.CommunicationRepository{DB: conn})
	if err := worker.Start(q, cfg.AMQP.OutcomeQueue); err != nil {
		logging.Fatal().Err(err).Str("queue", cfg.AMQP.OutcomeQueue).Msg("failed to register consumer")
	}

	logging.Info().Str("queue", cfg.AMQP.OutcomeQueue).Msg("worker running, waiting for outcome events")
	<-ctx.Done()

	logging.Info().Msg("stopping worker")
	if err := q.Close(); err != nil {
		logging.Warn().Err(err).Msg("broker close")
	}
}
