package handler

import (
	"fmt"
	"net/http"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/guard"
	"github.com/burgerhero/burgerhero-bff/internal/infra/observability"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequireRole gates a page group. Requests that may not render are
// redirected with 302 to the sign-in page or to the user's role home.
func RequireRole(metrics *observability.Metrics, logger *zap.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dev := DeviceFromContext(r.Context())
			if dev == nil {
				http.Redirect(w, r, domain.RouteSignIn, http.StatusFound)
				return
			}

			snap := dev.Auth.Snapshot()
			decision := guard.Evaluate(snap.IsAuthed, snap.User, roles)
			metrics.IncrGuardDecision(decision.State.String())

			if !decision.Allowed() {
				logger.Debug("guard: redirect",
					zap.String("path", r.URL.Path),
					zap.String("state", decision.State.String()),
					zap.String("location", decision.Redirect),
				)
				http.Redirect(w, r, decision.Redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RecoverMiddleware turns a handler panic into a diagnostic response that
// points the browser at the cache-reset action.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				reqID := middleware.GetReqID(r.Context())
				logger.Error("panic recovered",
					zap.String("path", r.URL.Path),
					zap.String("request_id", reqID),
					zap.String("panic", fmt.Sprint(rec)),
					zap.Stack("stack"),
				)
				writeJSON(w, http.StatusInternalServerError, domain.Diagnostic{
					Error:     "Algo deu errado. Limpe os dados locais e recarregue a página.",
					RequestID: reqID,
					Detail:    fmt.Sprint(rec),
					Recovery:  "POST /v1/session/reset",
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
