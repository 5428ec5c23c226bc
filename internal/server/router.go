package server

import (
	"context"
	"net/http"
	"time"

	"admissions-gateway/internal/common/errors"
	commonhttp "admissions-gateway/internal/common/http"
	"admissions-gateway/internal/common/logger"
	browsecatalog "admissions-gateway/internal/workers/catalog/browse-catalog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessCheck is one dependency probed by GET /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Dependencies struct {
	Logger         logger.Logger
	AllowedOrigins []string
	Registration   http.Handler
	Catalog        *browsecatalog.Handler
	Readiness      []ReadinessCheck
	ReadyTimeout   time.Duration
}

// NewRouter assembles the public HTTP surface.
func NewRouter(deps Dependencies) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	readyTimeout := deps.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 2 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(commonhttp.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(commonhttp.CORS(deps.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		commonhttp.WriteError(w, errors.NewNotFoundError("route", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		commonhttp.WriteError(w, errors.NewMethodNotAllowedError(r.Method))
	})

	if deps.Registration != nil {
		r.Method(http.MethodPost, "/register", deps.Registration)
	}
	if deps.Catalog != nil {
		deps.Catalog.Routes(r)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		commonhttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/ready", ready(deps.Readiness, readyTimeout))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func ready(checks []ReadinessCheck, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[c.Name] = err.Error()
				continue
			}
			results[c.Name] = "ok"
		}

		body := map[string]interface{}{"status": "ready", "checks": results}
		if status != http.StatusOK {
			body["status"] = "not_ready"
		}
		commonhttp.WriteJSON(w, status, body)
	}
}
