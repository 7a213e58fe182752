// Package httpapi exposes the ledger over a JSON HTTP API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/openlets/openlets/internal/ledger"
)

// Options configures the router.
type Options struct {
	// DefaultSiteID is used when a request carries no X-Site-ID header.
	DefaultSiteID  int64
	AllowedOrigins []string
	// RequestTimeout cancels a request's context; zero disables it.
	RequestTimeout time.Duration
}

type handler struct {
	svc           *ledger.Service
	logger        *zap.Logger
	defaultSiteID int64
}

// NewRouter builds the API routes on top of svc.
func NewRouter(svc *ledger.Service, opts Options, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{svc: svc, logger: logger, defaultSiteID: opts.DefaultSiteID}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", HeaderPersonID, HeaderSiteID},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/persons", h.createPerson)
		r.Get("/currencies", h.listCurrencies)
		r.Get("/content/{name}", h.getContent)

		r.Group(func(r chi.Router) {
			r.Use(h.requireActor)

			r.Get("/me", h.getMe)
			r.Patch("/me", h.updateMe)
			r.Post("/currencies", h.createCurrency)

			r.Get("/balances", h.listBalances)
			r.Post("/balances/{id}/resolve", h.resolveBalance)

			r.Route("/transactions", func(r chi.Router) {
				r.Post("/", h.propose)
				r.Get("/pending", h.pending)
				r.Get("/recent", h.recent)
				r.Post("/{id}/confirm", h.confirm)
				r.Post("/{id}/reject", h.reject)
				r.Post("/{id}/counter", h.counter)
			})

			r.Get("/transfers", h.transfers)
			r.Get("/notifications", h.notifications)

			r.Get("/exchange-rates", h.listExchangeRates)
			r.Post("/exchange-rates", h.createExchangeRate)
			r.Delete("/exchange-rates/{id}", h.deleteExchangeRate)

			r.Get("/news", h.listNews)
			r.Post("/news", h.postNews)
			r.Put("/content/{name}", h.putContent)

			r.Get("/export", h.export)
		})
	})

	return r
}
