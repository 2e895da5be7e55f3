package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status      string  `json:"status"`
	Portfolio   string  `json:"portfolio"`
	MarketOpen  bool    `json:"market_open"`
	UptimeHours float64 `json:"uptime_hours"`
	CPUPercent  float64 `json:"cpu_percent"`
	RAMPercent  float64 `json:"ram_percent"`
	CheckedAt   string  `json:"checked_at"`
}

// handleSystemStatus returns process and host health alongside market state
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	s.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := s.getSystemStats()

	writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:      "healthy",
		Portfolio:   s.portfolio,
		MarketOpen:  s.market.IsOpenNow(),
		UptimeHours: time.Since(s.startedAt).Hours(),
		CPUPercent:  cpuPercent,
		RAMPercent:  ramPercent,
		CheckedAt:   time.Now().Format(time.RFC3339),
	})
}

// getSystemStats calculates CPU and RAM usage percentages. The CPU sample
// window is kept short so the handler does not block callers.
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
