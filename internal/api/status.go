package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

type StatusResponse struct {
	PID            int32   `json:"pid"`
	MemoryRSS      uint64  `json:"memory_rss"`
	CPU            float64 `json:"cpu_percent"`
	Threads        int32   `json:"threads"`
	Goroutines     int     `json:"goroutines"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
	Subscribers    int     `json:"subscribers"`
	BufferCount    int     `json:"buffer_count"`
	BufferCapacity int     `json:"buffer_capacity"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rb := s.app.Combined()
	resp := StatusResponse{
		PID:            int32(os.Getpid()),
		Goroutines:     runtime.NumGoroutine(),
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
		Subscribers:    s.broker.Len(),
		BufferCount:    rb.Len(),
		BufferCapacity: rb.Cap(),
	}

	// Process figures are best effort; they are zero where unsupported.
	if p, err := process.NewProcess(resp.PID); err == nil {
		cpu, _ := p.CPUPercent()
		mem, _ := p.MemoryInfo()
		threads, _ := p.NumThreads()

		resp.CPU = cpu
		if mem != nil {
			resp.MemoryRSS = mem.RSS
		}
		resp.Threads = threads
	}

	writeJSON(w, resp)
}
