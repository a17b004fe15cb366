package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"log/slog"

	"gorm.io/gorm"
)

// Component is the health of one dependency.
type Component struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health represents the health check response structure.
// It includes the overall status, timestamp, and per-dependency health.
type Health struct {
	Status     string               `json:"status"`
	Timestamp  time.Time            `json:"timestamp"`
	DB         Component            `json:"db"`
	Components map[string]Component `json:"components,omitempty"`
}

// Probe checks one extra dependency. A nil error means healthy.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Check returns an HTTP handler that performs health checks on the application.
// It verifies the database connection, then runs every probe. A failing
// database makes the service unavailable; a failing probe only degrades it.
func Check(db *gorm.DB, probes ...Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := Health{
			Status:    "ok",
			Timestamp: time.Now(),
		}

		// Check database connection
		sqlDB, err := db.DB()
		if err != nil {
			health.Status = "unhealthy"
			health.DB = Component{Status: "error", Message: "Failed to get database connection"}
			writeHealth(w, health, http.StatusServiceUnavailable)
			return
		}

		if err := sqlDB.PingContext(ctx); err != nil {
			health.Status = "unhealthy"
			health.DB = Component{Status: "error", Message: "Database ping failed"}
			writeHealth(w, health, http.StatusServiceUnavailable)
			return
		}
		health.DB.Status = "ok"

		if len(probes) > 0 {
			health.Components = make(map[string]Component, len(probes))
		}
		for _, p := range probes {
			if err := p.Check(ctx); err != nil {
				health.Status = "degraded"
				health.Components[p.Name] = Component{Status: "error", Message: err.Error()}
				continue
			}
			health.Components[p.Name] = Component{Status: "ok"}
		}

		writeHealth(w, health, http.StatusOK)
	}
}

// writeHealth writes the health check response to the HTTP response writer.
func writeHealth(w http.ResponseWriter, health Health, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		slog.Error("Failed to encode health response", slog.Any("error", err))
	}
}
