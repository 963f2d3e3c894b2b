package controllers

import (
	"anonbot/internal/models"
	"anonbot/internal/persistence/interfaces"
	"anonbot/internal/providers"
	"anonbot/internal/services"
	"fmt"
	"net/http"
	"time"
)

type HealthController struct {
	service   services.FeedbackServiceInterface
	scheduler interfaces.SchedulerInterface
	clock     providers.Clock
	startTime time.Time
}

type healthResponse struct {
	Status        string      `json:"status"`
	Uptime        string      `json:"uptime"`
	UptimeSeconds float64     `json:"uptime_seconds"`
	Users         int64       `json:"users"`
	BlockedUsers  int64       `json:"blocked_users"`
	Persistence   string      `json:"persistence"`
	Mode          models.Mode `json:"mode"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := hc.clock.Now().Sub(hc.startTime)
	stats := hc.service.AdminGetStats()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Users:         stats.TotalUsers,
		BlockedUsers:  stats.BlockedUsers,
		Persistence:   hc.scheduler.State(),
		Mode:          hc.service.Mode().Mode,
	})
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(service services.FeedbackServiceInterface, scheduler interfaces.SchedulerInterface, clock providers.Clock) *HealthController {
	return &HealthController{
		service:   service,
		scheduler: scheduler,
		clock:     clock,
		startTime: clock.Now(),
	}
}
