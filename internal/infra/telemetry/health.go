package telemetry

import (
	"sort"
	"sync"
	"time"
)

type HealthReport struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks,omitempty"`
}

type HealthCheck struct {
	Name     string    `json:"name"`
	Healthy  bool      `json:"healthy"`
	LastBeat time.Time `json:"lastBeat"`
}

// HealthTracker reports background loops as unhealthy once they stop beating.
type HealthTracker struct {
	mu     sync.RWMutex
	checks map[string]*Heartbeat
	now    func() time.Time
}

type Heartbeat struct {
	tracker *HealthTracker
	name    string
	timeout time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		checks: make(map[string]*Heartbeat),
		now:    time.Now,
	}
}

// Register adds a loop that must beat at least once per timeout.
func (h *HealthTracker) Register(name string, timeout time.Duration) *Heartbeat {
	beat := &Heartbeat{tracker: h, name: name, timeout: timeout, last: h.now()}
	h.mu.Lock()
	h.checks[name] = beat
	h.mu.Unlock()
	return beat
}

func (b *Heartbeat) Beat() {
	if b == nil {
		return
	}
	now := b.tracker.now()
	b.mu.Lock()
	b.last = now
	b.mu.Unlock()
}

// Stop removes the loop from health reporting.
func (b *Heartbeat) Stop() {
	if b == nil {
		return
	}
	b.tracker.mu.Lock()
	if b.tracker.checks[b.name] == b {
		delete(b.tracker.checks, b.name)
	}
	b.tracker.mu.Unlock()
}

func (h *HealthTracker) Report() HealthReport {
	report := HealthReport{Status: "ok"}
	if h == nil {
		return report
	}
	now := h.now()

	h.mu.RLock()
	beats := make([]*Heartbeat, 0, len(h.checks))
	for _, beat := range h.checks {
		beats = append(beats, beat)
	}
	h.mu.RUnlock()
	sort.Slice(beats, func(i, j int) bool { return beats[i].name < beats[j].name })

	for _, beat := range beats {
		beat.mu.Lock()
		last := beat.last
		beat.mu.Unlock()
		healthy := beat.timeout <= 0 || now.Sub(last) <= beat.timeout
		if !healthy {
			report.Status = "unhealthy"
		}
		report.Checks = append(report.Checks, HealthCheck{Name: beat.name, Healthy: healthy, LastBeat: last})
	}
	return report
}
