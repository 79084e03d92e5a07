package handler

import (
	"net/http"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/service"
)

// ============================================================
// Pages
// ============================================================

// pageHandler renders the page model of the requested route.
func pageHandler(account *service.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dev := DeviceFromContext(r.Context())
		st := account.State(dev)

		writeJSON(w, http.StatusOK, domain.PageModel{
			Route:       r.URL.Path,
			User:        st.User,
			IsAuthed:    st.IsAuthed,
			Home:        st.Home,
			Preferences: account.Preferences(dev),
		})
	}
}

// ============================================================
// Ops
// ============================================================

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "burgerhero-bff", Status: "healthy", LastChecked: now},
		}
		for _, c := range checks {
			start := time.Now()
			err := c.Ping(ctx)
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name:        c.Name,
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func bootstrapStatsHandler(account *service.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, account.BootstrapStats())
	}
}
