// internal/service/dispatcher.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/crm-dispatch/internal/delivery"
	appErrors "github.com/unclebandit/crm-dispatch/internal/errors"
	"github.com/unclebandit/crm-dispatch/internal/logging"
	"github.com/unclebandit/crm-dispatch/internal/metrics"
	"github.com/unclebandit/crm-dispatch/internal/model"
	"github.com/unclebandit/crm-dispatch/internal/queue"
	"github.com/unclebandit/crm-dispatch/internal/repository"
)

const DefaultOutcomeTopic = "campaign_outcomes"

type DispatcherConfig struct {
	Workers         int
	DeliveryTimeout time.Duration
	OutcomeTopic    string
}

// Dispatcher sends a stored campaign to every client over every configured
// channel and records the campaign as sent exactly once.
type Dispatcher struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ClientRepo   repository.ClientRepositoryInterface
	Channels     []delivery.Channel
	Queue        queue.Queue // optional; receives one OutcomeEvent per attempt
	Config       DispatcherConfig
	Now          func() time.Time

	log zerolog.Logger
}

func NewDispatcher(
	campaigns repository.CampaignRepositoryInterface,
	clients repository.ClientRepositoryInterface,
	channels []delivery.Channel,
	q queue.Queue,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if cfg.OutcomeTopic == "" {
		cfg.OutcomeTopic = DefaultOutcomeTopic
	}
	return &Dispatcher{
		CampaignRepo: campaigns,
		ClientRepo:   clients,
		Channels:     channels,
		Queue:        q,
		Config:       cfg,
		Now:          time.Now,
		log:          logging.WithComponent("dispatcher"),
	}
}

// deliveryJob is one channel call: a client on a recipient channel, or the
// single call of a broadcast channel (client nil).
type deliveryJob struct {
	channel     delivery.Channel
	client      *model.Client
	destination string
}

// DispatchCampaign runs one campaign send.
//
// The campaign is claimed (draft/scheduled -> sending) before any delivery,
// so concurrent or repeated requests for the same campaign are rejected
// instead of delivering twice. Per-delivery failures never abort the run;
// they show up in the report. The only status write after deliveries is
// sending -> sent.
func (d *Dispatcher) DispatchCampaign(ctx context.Context, campaignID int64) (*model.DispatchReport, error) {
	start := d.Now()
	if campaignID <= 0 {
		return nil, appErrors.NewValidationError("campaign_id", "campaign_id must be a positive integer")
	}

	campaign, err := d.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	switch campaign.Status {
	case model.CampaignSent:
		metrics.RecordDispatch("rejected", d.Now().Sub(start))
		return nil, appErrors.ErrAlreadySent
	case model.CampaignSending:
		metrics.RecordDispatch("rejected", d.Now().Sub(start))
		return nil, appErrors.ErrDispatchInProgress
	}

	clients, err := d.ClientRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	if len(clients) == 0 {
		metrics.RecordDispatch("rejected", d.Now().Sub(start))
		return nil, appErrors.ErrNoRecipients
	}

	claimed, err := d.CampaignRepo.ClaimForDispatch(ctx, campaign.ID, campaign.Status)
	if err != nil {
		return nil, err
	}
	if !claimed {
		metrics.RecordDispatch("rejected", d.Now().Sub(start))
		return nil, appErrors.ErrDispatchInProgress
	}

	report := &model.DispatchReport{
		RunID:     uuid.New(),
		Campaign:  campaign,
		Clients:   len(clients),
		Outcomes:  []model.DeliveryOutcome{},
		StartedAt: start,
	}
	log := d.log.With().
		Str("run_id", report.RunID.String()).
		Int64("campaign_id", campaign.ID).
		Logger()
	log.Info().Int("clients", len(clients)).Int("channels", len(d.Channels)).Msg("dispatch started")

	d.fanOut(ctx, log, report, campaign, clients)

	// Writes below must happen even if the caller has gone away.
	bg := context.WithoutCancel(ctx)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if err := d.CampaignRepo.ReleaseClaim(bg, campaign.ID, campaign.Status); err != nil {
			log.Error().Err(err).Msg("failed to release dispatch claim")
		}
		d.publish(bg, log, report)
		log.Warn().Err(ctxErr).Int("attempted", report.Attempted).Msg("dispatch aborted")
		metrics.RecordDispatch("aborted", d.Now().Sub(start))
		return nil, fmt.Errorf("%w: %w", appErrors.ErrDispatchAborted, ctxErr)
	}

	sent, err := d.CampaignRepo.MarkSent(bg, campaign.ID, d.Now().UTC())
	report.CompletedAt = d.Now()
	d.publish(bg, log, report)
	if err != nil {
		log.Error().Err(err).
			Int("delivered", report.Delivered).
			Int("failed", report.Failed).
			Msg("deliveries attempted but campaign status not recorded")
		metrics.RecordDispatch("not_recorded", d.Now().Sub(start))
		return nil, &appErrors.PersistenceError{CampaignID: campaign.ID, Report: report, Err: err}
	}
	report.Campaign = sent

	log.Info().
		Int("attempted", report.Attempted).
		Int("delivered", report.Delivered).
		Int("failed", report.Failed).
		Dur("took", report.CompletedAt.Sub(start)).
		Msg("dispatch finished")
	metrics.RecordDispatch("sent", d.Now().Sub(start))
	return report, nil
}

func (d *Dispatcher) plan(clients []model.Client) []deliveryJob {
	jobs := make([]deliveryJob, 0, len(clients)*len(d.Channels))
	for _, ch := range d.Channels {
		if ch.Scope() == delivery.ScopeBroadcast {
			jobs = append(jobs, deliveryJob{channel: ch, destination: ch.Destination(nil)})
		}
	}
	for i := range clients {
		c := &clients[i]
		for _, ch := range d.Channels {
			if ch.Scope() != delivery.ScopeRecipient {
				continue
			}
			// An empty destination is still attempted; the channel rejects it
			// with ErrMissingDestination and it is reported as a failure.
			jobs = append(jobs, deliveryJob{channel: ch, client: c, destination: ch.Destination(c)})
		}
	}
	return jobs
}

// fanOut runs every job on a bounded pool and appends outcomes to the report
// in plan order. Jobs not yet started when ctx is cancelled are skipped.
func (d *Dispatcher) fanOut(ctx context.Context, log zerolog.Logger, report *model.DispatchReport, campaign *model.Campaign, clients []model.Client) {
	jobs := d.plan(clients)
	msg := delivery.MessageFromCampaign(campaign)

	results := make([]*model.DeliveryOutcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(d.Config.Workers)

	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			o := d.attempt(ctx, log, job, msg)
			results[i] = &o
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range results {
		if o != nil {
			report.Add(*o)
		}
	}
}

func (d *Dispatcher) attempt(ctx context.Context, log zerolog.Logger, job deliveryJob, msg delivery.Message) model.DeliveryOutcome {
	attemptCtx, cancel := context.WithTimeout(ctx, d.Config.DeliveryTimeout)
	defer cancel()

	started := d.Now()
	err := safeDeliver(attemptCtx, job, msg)

	outcome := model.DeliveryOutcome{
		Channel:     job.channel.Name(),
		Destination: job.destination,
		Success:     err == nil,
		AttemptedAt: started.UTC(),
	}
	if job.client != nil {
		outcome.ClientID = job.client.ID
	}
	metrics.RecordDelivery(string(outcome.Channel), outcome.Success, d.Now().Sub(started))

	if err != nil {
		derr := &delivery.DeliveryError{Channel: outcome.Channel, Destination: job.destination, Err: err}
		outcome.Error = derr.Error()
		ev := log.Warn().Err(derr).
			Int64("client_id", outcome.ClientID).
			Str("channel", string(outcome.Channel)).
			Str("destination", job.destination)
		if errors.Is(err, delivery.ErrMissingDestination) {
			ev = ev.Str("reason", "client has no address on this channel")
		}
		ev.Msg("delivery failed")
	}
	return outcome
}

// safeDeliver turns a panicking channel into an ordinary failure.
func safeDeliver(ctx context.Context, job deliveryJob, msg delivery.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()
	return job.channel.Deliver(ctx, job.destination, msg)
}

// publish emits one OutcomeEvent per attempt. Failures are logged; the
// dispatch result does not depend on history being recorded.
func (d *Dispatcher) publish(ctx context.Context, log zerolog.Logger, report *model.DispatchReport) {
	if d.Queue == nil {
		return
	}
	campaignID := int64(0)
	if report.Campaign != nil {
		campaignID = report.Campaign.ID
	}
	for _, o := range report.Outcomes {
		payload, err := json.Marshal(model.OutcomeEvent{RunID: report.RunID, CampaignID: campaignID, Outcome: o})
		if err != nil {
			log.Error().Err(err).Msg("encode outcome event")
			continue
		}
		if err := d.Queue.Publish(ctx, d.Config.OutcomeTopic, payload); err != nil {
			if errors.Is(err, queue.ErrNoSubscribers) {
				log.Debug().Msg("no history subscriber, outcome events not published")
				return
			}
			log.Warn().Err(err).Int64("client_id", o.ClientID).Str("channel", string(o.Channel)).
				Msg("failed to publish outcome event")
		}
	}
}
