package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const metricsInterval = 7 * time.Second

// SessionCounter reports how many hosted sessions are live.
type SessionCounter interface {
	Len() int
}

// QueueMeter reports the archive backlog.
type QueueMeter interface {
	QueueLength(ctx context.Context) (int64, error)
}

// SystemHandler streams host and Go runtime metrics via SSE.
type SystemHandler struct {
	sessions  SessionCounter
	queue     QueueMeter
	startTime time.Time
	interval  time.Duration
	log       zerolog.Logger
}

func NewSystemHandler(sessions SessionCounter, queue QueueMeter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		sessions:  sessions,
		queue:     queue,
		startTime: time.Now(),
		interval:  metricsInterval,
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// ---------- SSE Endpoint ----------

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Sessions
	LiveSessions  int   `json:"live_sessions"`
	QueueAttempts int64 `json:"queue_attempts"`

	// Go Application
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	StackInuse uint64 `json:"stack_inuse"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.sessions.Len(),
		"uptime":   formatDuration(time.Since(h.startTime)),
	})
}

// SystemMetricsSSE godoc
// GET /api/v1/operator/system/metrics
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Msg("Operator connected to system metrics SSE")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// Send immediately on connect, then every tick
	h.writeMetrics(c)

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Operator disconnected from system metrics SSE")
			return
		case <-ticker.C:
			h.writeMetrics(c)
		}
	}
}

func (h *SystemHandler) writeMetrics(c *gin.Context) {
	m := h.collect(c.Request.Context())
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	m := systemMetrics{
		Timestamp:    time.Now().Unix(),
		Uptime:       formatDuration(time.Since(h.startTime)),
		LiveSessions: h.sessions.Len(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
	}

	// ── Go Runtime ──
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines = runtime.NumGoroutine()
	m.HeapAlloc = ms.HeapAlloc
	m.HeapSys = ms.Sys
	m.StackInuse = ms.StackInuse
	m.NumGC = ms.NumGC

	// ── Archive Queue ──
	if h.queue != nil {
		qctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if n, err := h.queue.QueueLength(qctx); err == nil {
			m.QueueAttempts = n
		} else {
			h.log.Debug().Err(err).Msg("Queue length unavailable")
		}
	}

	return m
}

// ---------- Helpers ----------

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
