// internal/handler/campaign_handler.go
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/unclebandit/crm-dispatch/internal/controller"
	"github.com/unclebandit/crm-dispatch/internal/delivery"
	appErrors "github.com/unclebandit/crm-dispatch/internal/errors"
	"github.com/unclebandit/crm-dispatch/internal/logging"
	"github.com/unclebandit/crm-dispatch/internal/model"
	"github.com/unclebandit/crm-dispatch/internal/service"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// BreakerReporter is satisfied by *delivery.GuardedChannel.
type BreakerReporter interface {
	Name() model.ChannelName
	State() gobreaker.State
}

// CampaignHandler serves the read-only reporting endpoints.
type CampaignHandler struct {
	Service   *service.CampaignService
	Analytics *service.AnalyticsService
	DB        Pinger
	Breakers  []BreakerReporter

	log zerolog.Logger
}

func NewCampaignHandler(campaigns *service.CampaignService, analytics *service.AnalyticsService, db Pinger) *CampaignHandler {
	return &CampaignHandler{
		Service:   campaigns,
		Analytics: analytics,
		DB:        db,
		log:       logging.WithComponent("handler"),
	}
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GetCampaignHandlerWithStats returns a campaign and its per-channel delivery counts.
func (h *CampaignHandler) GetCampaignHandlerWithStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		controller.WriteError(w, r, appErrors.NewValidationError("id", "id must be a positive integer"))
		return
	}

	details, err := h.Service.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		controller.WriteError(w, r, err)
		return
	}

	h.log.Debug().Int64("campaign_id", id).Int("channels", len(details.Stats)).Msg("campaign stats served")
	respond(w, http.StatusOK, details)
}

func (h *CampaignHandler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Analytics.Summary(r.Context())
	if err != nil {
		controller.WriteError(w, r, err)
		return
	}
	respond(w, http.StatusOK, summary)
}

// HealthHandler reports 503 when the database does not answer a ping. An open
// channel breaker marks the service degraded but keeps it in rotation.
func (h *CampaignHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.DB.PingContext(ctx); err != nil {
		h.log.Warn().Err(err).Msg("health check failed")
		respond(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "database": err.Error()})
		return
	}

	status := "ok"
	channels := map[string]string{}
	for _, b := range h.Breakers {
		state := b.State()
		channels[string(b.Name())] = state.String()
		if state != gobreaker.StateClosed {
			status = "degraded"
		}
	}
	respond(w, http.StatusOK, map[string]any{"status": status, "channels": channels})
}

// BreakersOf picks the channels that expose circuit breaker state.
func BreakersOf(channels []delivery.Channel) []BreakerReporter {
	var out []BreakerReporter
	for _, ch := range channels {
		if b, ok := ch.(BreakerReporter); ok {
			out = append(out, b)
		}
	}
	return out
}
