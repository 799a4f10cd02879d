// Package v1 wires the HTTP surface of the cashbook service.
// It keeps handlers thin, delegating business rules to the service layer.
package v1

import (
	"log/slog"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/cashbook/internal/cache"
	"github.com/tinoosan/cashbook/internal/service/balance"
	"github.com/tinoosan/cashbook/internal/service/category"
	"github.com/tinoosan/cashbook/internal/service/record"
)

// Server wires handlers and middleware using Chi.
type Server struct {
	records    record.Service
	categories category.Service
	balances   balance.Service
	store      Store
	idem       *cache.LRU[storedResponse]
	auth       AuthConfig
	now        func() time.Time
	log        *slog.Logger
	rt         *chi.Mux
}

// AuthConfig enables bearer JWT verification when Secret is set.
// Without a secret the X-User-ID header identifies the caller.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type options struct {
	auth     AuthConfig
	now      func() time.Time
	currency string
	idemSize int
	idemTTL  time.Duration
}

// Option configures New.
type Option func(*options)

func WithAuth(a AuthConfig) Option           { return func(o *options) { o.auth = a } }
func WithClock(now func() time.Time) Option  { return func(o *options) { o.now = now } }
func WithDefaultCurrency(code string) Option { return func(o *options) { o.currency = code } }
func WithIdempotency(size int, ttl time.Duration) Option {
	return func(o *options) { o.idemSize, o.idemTTL = size, ttl }
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request logging, panic recovery and store error reports.
func New(store Store, logger *slog.Logger, opts ...Option) *Server {
	o := options{now: time.Now, currency: "USD", idemSize: 10000, idemTTL: 24 * time.Hour}
	for _, fn := range opts {
		fn(&o)
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	cats := category.New(store, store)
	s := &Server{
		records:    record.New(store, store, cats, record.WithClock(o.now)),
		categories: cats,
		balances:   balance.New(store, store, o.currency),
		store:      store,
		idem:       cache.NewLRU[storedResponse](o.idemSize, o.idemTTL),
		auth:       o.auth,
		now:        o.now,
		log:        logger,
		rt:         r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// Categories exposes the registry service, used by dev seeding.
func (s *Server) Categories() category.Service { return s.categories }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	// Health and metrics (unversioned, unauthenticated)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())

	s.rt.Route("/v1", func(r chi.Router) {
		r.Get("/dictionary/categories", s.getCategoryDictionary)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/me", s.me)

			// Daily records and their entries
			r.Route("/records/{date}", func(r chi.Router) {
				r.Get("/", s.getRecord)
				r.With(s.validatePostEntry()).Post("/{kind}", s.postEntry)
				r.Get("/{kind}/by-category", s.groupedByCategory)
				r.With(s.validateMatchEntry()).Post("/{kind}/entries/match", s.matchEntry)
				r.With(s.validatePatchEntry()).Patch("/{kind}/entries/{id}", s.patchEntry)
				r.Delete("/{kind}/entries/{id}", s.deleteEntry)
			})

			// Category registry
			r.Get("/categories/{kind}", s.listCategories)
			r.With(s.validatePostCategory()).Post("/categories/{kind}", s.postCategory)
			r.With(s.validateRenameCategory()).Patch("/categories/{kind}/{name}", s.renameCategory)
			r.Delete("/categories/{kind}/{name}", s.deleteCategory)
			r.Get("/categories/{kind}/{name}/monthly", s.monthlyByCategory)

			// Balance
			r.Get("/balance", s.getBalance)
			r.Get("/settings/initial-balance", s.getInitialBalance)
			r.With(s.validatePutInitialBalance()).Put("/settings/initial-balance", s.putInitialBalance)

			// Reports
			r.Get("/reports/monthly", s.monthlySummary)
			r.Get("/reports/monthly/{month}", s.monthDays)
		})
	})
}
