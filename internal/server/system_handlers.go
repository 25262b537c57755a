package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/allocator/internal/database"
)

// SystemStatus is the body of GET /api/system/status
type SystemStatus struct {
	Status        string                     `json:"status"`
	StartedAt     time.Time                  `json:"started_at"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	CPUPercent    float64                    `json:"cpu_percent"`
	MemoryPercent float64                    `json:"memory_percent"`
	Goroutines    int                        `json:"goroutines"`
	Databases     map[string]*database.Stats `json:"databases,omitempty"`
}

// SystemHandlers serves process and host status
type SystemHandlers struct {
	log       zerolog.Logger
	startedAt time.Time
	databases map[string]*database.DB
	usage     func() (float64, float64)
}

// NewSystemHandlers creates system handlers. Uptime counts from this call.
func NewSystemHandlers(log zerolog.Logger, databases map[string]*database.DB) *SystemHandlers {
	h := &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		startedAt: time.Now(),
		databases: databases,
	}
	h.usage = h.getSystemStats
	return h
}

// HandleSystemStatus returns uptime, CPU and memory usage, and database sizes
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.usage()

	status := SystemStatus{
		Status:        "ok",
		StartedAt:     h.startedAt.UTC(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
	}

	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		db := h.databases[name]
		if db == nil {
			continue
		}
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
			continue
		}
		if status.Databases == nil {
			status.Databases = make(map[string]*database.Stats)
		}
		status.Databases[name] = stats
	}

	h.writeJSON(w, http.StatusOK, status)
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short interval (100ms) so the request does not block for long
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
