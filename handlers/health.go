package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"storefront-payment-api/utils"
)

// Pinger checks one backing service.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	database Pinger
	redis    Pinger
	started  time.Time
}

func NewHealthHandler(database, redis Pinger) *HealthHandler {
	return &HealthHandler{database: database, redis: redis, started: time.Now()}
}

type healthResponse struct {
	Status    string `json:"status"`
	Time      string `json:"time"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
	Uptime    string `json:"uptime"`
	GoVersion string `json:"go_version"`
}

// Health reports "degraded" rather than failing when a backing service is
// down, so the process is not restarted for someone else's outage.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := healthResponse{
		Status:    "ok",
		Time:      time.Now().Format(time.RFC3339),
		Database:  check(ctx, h.database),
		Redis:     check(ctx, h.redis),
		Uptime:    fmt.Sprintf("%v", time.Since(h.started).Round(time.Second)),
		GoVersion: runtime.Version(),
	}
	if health.Database == "error" || health.Redis == "error" {
		health.Status = "degraded"
	}

	utils.SendJSON(w, http.StatusOK, health)
}

func check(ctx context.Context, ping Pinger) string {
	if ping == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := ping(ctx); err != nil {
		return "error"
	}
	return "connected"
}
