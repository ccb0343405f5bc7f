package httpserver

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"oracle-gateway/internal/handlers"
	"oracle-gateway/internal/metrics"
	"oracle-gateway/internal/middleware"
)

type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, opts Options, oracleHandler *handlers.OracleHandler, store handlers.Pinger) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 * 1024
	}

	r.Use(metrics.Middleware)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	// the question is the raw body, on / as well as the versioned path
	r.Post("/", oracleHandler.Ask)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/oracle", oracleHandler.Ask)
		r.Get("/answer", oracleHandler.Random)
	})

	r.Get("/healthz", handlers.Healthz)
	r.Get("/readyz", handlers.Readyz(store))

	r.Handle("/metrics", metrics.Handler())
}
