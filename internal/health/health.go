// Package health tracks the Agent's own liveness: per-MTP connection
// status, outbound message/error counters, and process uptime, surfaced
// through the debug console's /status endpoint.
package health

import (
	"sync"
	"time"
)

// Config controls the periodic status-timestamp refresh. CheckInterval of
// zero disables the background loop entirely — the counters are still
// updated synchronously by RecordMessage/RecordError/UpdateComponentStatus.
type Config struct {
	CheckInterval time.Duration
}

// Status is a point-in-time snapshot of the Agent's health.
type Status struct {
	Healthy           bool
	Timestamp         time.Time
	UptimeSeconds     int64
	MessagesProcessed int64
	ErrorCount        int64
	LastError         string
	ComponentStatus   map[string]ComponentStatus
}

// ComponentStatus is the last known health of one supervised component
// (one entry per configured MTP).
type ComponentStatus struct {
	Name      string
	Healthy   bool
	Message   string
	LastCheck time.Time
}

// HealthCheck aggregates component status and traffic counters behind a
// mutex so the supervisor and the debug console's status handler can both
// touch it without coordination.
type HealthCheck struct {
	startTime time.Time

	mu     sync.RWMutex
	status Status
}

func New(cfg Config) *HealthCheck {
	h := &HealthCheck{
		startTime: time.Now(),
		status: Status{
			Healthy:         true,
			Timestamp:       time.Now(),
			ComponentStatus: make(map[string]ComponentStatus),
		},
	}
	if cfg.CheckInterval > 0 {
		go h.tick(cfg.CheckInterval)
	}
	return h
}

func (h *HealthCheck) tick(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.Lock()
		h.status.Timestamp = time.Now()
		h.status.UptimeSeconds = int64(time.Since(h.startTime).Seconds())
		h.mu.Unlock()
	}
}

// Status returns a deep copy of the current snapshot.
func (h *HealthCheck) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot := h.status
	snapshot.UptimeSeconds = int64(time.Since(h.startTime).Seconds())
	snapshot.ComponentStatus = make(map[string]ComponentStatus, len(h.status.ComponentStatus))
	for k, v := range h.status.ComponentStatus {
		snapshot.ComponentStatus[k] = v
	}
	return snapshot
}

// UpdateComponentStatus records the latest health of one MTP, then
// recomputes overall health as the AND of every component.
func (h *HealthCheck) UpdateComponentStatus(name string, healthy bool, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.status.ComponentStatus[name] = ComponentStatus{
		Name:      name,
		Healthy:   healthy,
		Message:   message,
		LastCheck: time.Now(),
	}
	h.status.Healthy = true
	for _, c := range h.status.ComponentStatus {
		if !c.Healthy {
			h.status.Healthy = false
			break
		}
	}
}

// RecordMessage increments the outbound-message counter (one per delivered
// heartbeat notify).
func (h *HealthCheck) RecordMessage() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.MessagesProcessed++
}

// RecordError increments the error counter and records err as the most
// recent failure.
func (h *HealthCheck) RecordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.ErrorCount++
	h.status.LastError = err.Error()
}
