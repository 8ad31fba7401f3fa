// Package httptransport assembles the HTTP surface: shared middleware, bearer
// auth for the API, the operator group and the health and metrics endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rwaledger/internal/platform/metrics"
	"rwaledger/pkg/platform/httputil"
	"rwaledger/pkg/platform/middleware/admin"
	"rwaledger/pkg/platform/middleware/auth"
	"rwaledger/pkg/platform/middleware/metadata"
	request "rwaledger/pkg/platform/middleware/request"
	"rwaledger/pkg/platform/middleware/requesttime"
)

// Routes is implemented by every module handler.
type Routes interface {
	Register(r chi.Router)
}

// AdminRoutes is implemented by handlers with operator endpoints.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

// HealthCheck reports the state of one backing dependency.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Validator      auth.JWTValidator
	AdminToken     string
	RequestTimeout time.Duration

	API    []Routes
	Admin  []AdminRoutes
	Health map[string]HealthCheck
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter wires the middleware chain and mounts every module. Operator
// routes are mounted only when an admin token is configured.
func NewRouter(cfg Config) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/health", healthHandler(cfg.Health))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(timeout))
		r.Use(request.ContentTypeJSON)
		r.Use(auth.RequireAuth(cfg.Validator, cfg.Logger))
		for _, h := range cfg.API {
			h.Register(r)
		}
	})

	if cfg.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(request.Timeout(timeout))
			r.Use(request.ContentTypeJSON)
			r.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
			for _, h := range cfg.Admin {
				h.RegisterAdmin(r)
			}
		})
	} else {
		cfg.Logger.Warn("admin token not configured; operator endpoints are disabled")
	}
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		for name, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
