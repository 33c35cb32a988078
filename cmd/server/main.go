// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/crm-dispatch/internal/config"
	"github.com/unclebandit/crm-dispatch/internal/controller"
	"github.com/unclebandit/crm-dispatch/internal/db"
	"github.com/unclebandit/crm-dispatch/internal/delivery"
	"github.com/unclebandit/crm-dispatch/internal/handler"
	"github.com/unclebandit/crm-dispatch/internal/logging"
	"github.com/unclebandit/crm-dispatch/internal/queue"
	"github.com/unclebandit/crm-dispatch/internal/repository"
	"github.com/unclebandit/crm-dispatch/internal/router"
	"github.com/unclebandit/crm-dispatch/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("database unavailable")
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	clientRepo := &repository.ClientRepository{DB: conn}
	commRepo := &repository.CommunicationRepository{DB: conn}

	// With a broker, history is written by cmd/worker. Without one, an
	// in-process worker records it.
	var q queue.Queue
	if cfg.AMQP.URL != "" {
		aq, err := queue.DialAMQP(cfg.AMQP.URL)
		if err != nil {
			logging.Fatal().Err(err).Msg("message broker unavailable")
		}
		q = aq
	} else {
		mq := queue.NewInMemoryQueue()
		if err := service.NewOutcomeWorker(commRepo).Start(mq, cfg.AMQP.OutcomeQueue); err != nil {
			logging.Fatal().Err(err).Msg("failed to start outcome worker")
		}
		q = mq
	}
	defer func() {
		if err := q.Close(); err != nil {
			logging.Warn().Err(err).Msg("queue close")
		}
	}()

	channels := delivery.FromConfig(cfg)
	dispatcher := service.NewDispatcher(campaignRepo, clientRepo, channels, q, service.DispatcherConfig{
		Workers:         cfg.Dispatch.Workers,
		DeliveryTimeout: cfg.Dispatch.DeliveryTimeout,
		OutcomeTopic:    cfg.AMQP.OutcomeQueue,
	})
	campaignService := &service.CampaignService{CampaignRepo: campaignRepo, CommRepo: commRepo}

	reports := handler.NewCampaignHandler(campaignService,
		&service.AnalyticsService{ClientRepo: clientRepo, CampaignRepo: campaignRepo, CommRepo: commRepo}, conn)
	reports.Breakers = handler.BreakersOf(channels)

	h := router.New(cfg.Server, router.Deps{
		Campaigns: &controller.CampaignController{CampaignService: campaignService, Dispatcher: dispatcher},
		Clients:   &controller.ClientController{ClientService: &service.ClientService{ClientRepo: clientRepo, CommRepo: commRepo}},
		Reports:   reports,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info().Str("addr", server.Addr).Msg("server running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}
