// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/crm-dispatch/internal/config"
	"github.com/unclebandit/crm-dispatch/internal/controller"
	"github.com/unclebandit/crm-dispatch/internal/handler"
	"github.com/unclebandit/crm-dispatch/internal/logging"
	"github.com/unclebandit/crm-dispatch/internal/metrics"
)

type Deps struct {
	Campaigns *controller.CampaignController
	Clients   *controller.ClientController
	Reports   *handler.CampaignHandler
}

func New(cfg config.ServerConfig, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         86400,
	}))

	r.Get("/healthz", d.Reports.HealthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
		}

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", d.Campaigns.CreateCampaign)
			r.Get("/", d.Campaigns.ListCampaigns)
			r.Post("/send", d.Campaigns.SendCampaign)
			r.Get("/{id}", d.Campaigns.GetCampaignDetails)
			r.Put("/{id}", d.Campaigns.UpdateCampaign)
			r.Delete("/{id}", d.Campaigns.DeleteCampaign)
			r.Get("/{id}/stats", d.Reports.GetCampaignHandlerWithStats)
			r.Post("/{id}/send", d.Campaigns.SendCampaignByID)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Post("/", d.Clients.CreateClient)
			r.Get("/", d.Clients.ListClients)
			r.Get("/{id}", d.Clients.GetClient)
			r.Put("/{id}", d.Clients.UpdateClient)
			r.Delete("/{id}", d.Clients.DeleteClient)
			r.Get("/{id}/communications", d.Clients.ListCommunications)
		})

		r.Get("/analytics/summary", d.Reports.SummaryHandler)
	})

	return r
}

// requestLogger logs one line per request and records HTTP metrics under the
// matched route pattern, so ids do not blow up label cardinality.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		took := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, route, status, took)

		logging.Info().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("took", took).
			Msg("request")
	})
}
