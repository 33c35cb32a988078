package service

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-dispatch/internal/logging"
	"github.com/unclebandit/crm-dispatch/internal/model"
	"github.com/unclebandit/crm-dispatch/internal/queue"
	"github.com/unclebandit/crm-dispatch/internal/repository"
)

// OutcomeWorker turns published outcome events into client contact history.
type OutcomeWorker struct {
	CommRepo repository.CommunicationRepositoryInterface
	log      zerolog.Logger
}

func NewOutcomeWorker(repo repository.CommunicationRepositoryInterface) *OutcomeWorker {
	return &OutcomeWorker{
		CommRepo: repo,
		log:      logging.WithComponent("outcome-worker"),
	}
}

// Start subscribes the worker to topic on q.
func (w *OutcomeWorker) Start(q queue.Queue, topic string) error {
	return q.Subscribe(topic, w.Handle)
}

// Handle records one event. Undecodable payloads are dropped rather than
// retried; storage errors are returned so the queue retries them.
func (w *OutcomeWorker) Handle(ctx context.Context, payload []byte) error {
	var ev model.OutcomeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		w.log.Error().Err(err).Str("payload", string(payload)).Msg("invalid outcome event")
		return nil
	}

	c := model.CommunicationFromEvent(ev)
	if err := w.CommRepo.Append(ctx, &c); err != nil {
		w.log.Warn().Err(err).
			Str("run_id", ev.RunID.String()).
			Int64("client_id", c.ClientID).
			Str("channel", string(c.Channel)).
			Msg("failed to record communication")
		return err
	}
	return nil
}
