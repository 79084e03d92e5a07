package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/infra/observability"
	"github.com/burgerhero/burgerhero-bff/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck is a dependency checked by GET /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Config carries everything the router needs.
type Config struct {
	Account      *service.AccountService
	Cookies      *DeviceCookies
	Metrics      *observability.Metrics
	HealthChecks []HealthCheck
	CORSOrigins  []string
	Logger       *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	account := cfg.Account
	metrics := cfg.Metrics
	validate := newValidator()

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(RecoverMiddleware(logger))
	r.Use(middleware.Heartbeat("/ping"))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(cfg.HealthChecks))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/v1/ops/bootstrap", bootstrapStatsHandler(account))

	device := DeviceMiddleware(cfg.Cookies, account, logger)

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(device)

		// =============================================
		// 1. Autenticação
		// =============================================
		r.Post("/auth/sign-in", signInHandler(account, validate, logger))
		r.Post("/auth/sign-up", signUpHandler(account, validate, logger))
		r.Post("/auth/sign-out", signOutHandler(account, logger))

		// =============================================
		// 2. Sessão
		// =============================================
		r.Get("/session", sessionHandler(account))
		r.Post("/session/reset", sessionResetHandler(account, logger))

		// =============================================
		// 3. Perfil
		// =============================================
		r.Patch("/me", updateMeHandler(account, validate, logger))
		r.Post("/me/refresh", refreshMeHandler(account, logger))

		// =============================================
		// 4. Preferências
		// =============================================
		r.Get("/preferences", getPreferencesHandler(account))
		r.Put("/preferences", putPreferencesHandler(account, validate, logger))
		r.Post("/preferences/save", savePreferencesHandler(account, logger))
	})

	// --- Pages ---
	r.Group(func(r chi.Router) {
		r.Use(device)

		r.Get(domain.RouteLanding, pageHandler(account))
		r.Get(domain.RouteSignIn, pageHandler(account))
		r.Get(domain.RoutePlans, pageHandler(account))
		r.Get(domain.RouteCheckout, pageHandler(account))

		r.Route(domain.RouteApp, func(r chi.Router) {
			r.Use(RequireRole(metrics, logger, domain.RoleClient))
			r.Get("/", pageHandler(account))
			r.Get("/*", pageHandler(account))
		})
		r.Route(domain.RouteStaff, func(r chi.Router) {
			r.Use(RequireRole(metrics, logger, domain.RoleStaff))
			r.Get("/", pageHandler(account))
			r.Get("/*", pageHandler(account))
		})
		r.Route(domain.RouteAdmin, func(r chi.Router) {
			r.Use(RequireRole(metrics, logger, domain.RoleAdmin))
			r.Get("/", pageHandler(account))
			r.Get("/*", pageHandler(account))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") {
			writeError(w, http.StatusNotFound, "route not found")
			return
		}
		http.Redirect(w, r, domain.RouteLanding, http.StatusFound)
	})

	return r
}
