// Package health aggregates liveness checks of the storage backend and the
// AI adapter.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateUnhealthy HealthState = "unhealthy"
	HealthStateWarning   HealthState = "warning"
	HealthStateUnknown   HealthState = "unknown"
)

// HealthCheck is one probe of a dependency.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) ComponentHealth
}

type ComponentHealth struct {
	Name        string                 `json:"name"`
	Status      HealthState            `json:"status"`
	Message     string                 `json:"message"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

type HealthStatus struct {
	Overall    HealthState                `json:"overall"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
	CheckCount int64                      `json:"check_count"`
}

// Checker runs registered checks in parallel and aggregates the result.
type Checker struct {
	timeout time.Duration
	version string
	logger  *logrus.Logger
	started time.Time

	mutex  sync.RWMutex
	checks map[string]HealthCheck
	last   *HealthStatus
}

// NewChecker creates a checker. Each run is bounded by timeout.
func NewChecker(version string, timeout time.Duration, logger *logrus.Logger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		timeout: timeout,
		version: version,
		logger:  logger,
		started: time.Now(),
		checks:  make(map[string]HealthCheck),
	}
}

func (h *Checker) RegisterCheck(check HealthCheck) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.checks[check.Name()] = check
}

// Names lists the registered checks.
func (h *Checker) Names() []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every check and returns the aggregate. Any unhealthy
// component makes the whole status unhealthy; warnings degrade it to
// warning.
func (h *Checker) Run(ctx context.Context) *HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mutex.RLock()
	checks := make([]HealthCheck, 0, len(h.checks))
	for _, c := range h.checks {
		checks = append(checks, c)
	}
	h.mutex.RUnlock()

	startTime := time.Now()
	results := make(chan ComponentHealth, len(checks))
	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()
			results <- c.Check(ctx)
		}(check)
	}
	wg.Wait()
	close(results)

	overall := HealthStateHealthy
	components := make(map[string]ComponentHealth, len(checks))
	var unhealthy []string
	for result := range results {
		components[result.Name] = result
		switch result.Status {
		case HealthStateUnhealthy:
			overall = HealthStateUnhealthy
			unhealthy = append(unhealthy, result.Name)
		case HealthStateWarning, HealthStateUnknown:
			if overall == HealthStateHealthy {
				overall = HealthStateWarning
			}
		}
	}

	h.mutex.Lock()
	var count int64 = 1
	if h.last != nil {
		count = h.last.CheckCount + 1
	}
	status := &HealthStatus{
		Overall:    overall,
		Timestamp:  startTime,
		Version:    h.version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Components: components,
		CheckCount: count,
	}
	h.last = status
	h.mutex.Unlock()

	if overall != HealthStateHealthy {
		sort.Strings(unhealthy)
		h.logger.WithFields(logrus.Fields{
			"overall_status":       overall,
			"unhealthy_components": unhealthy,
		}).Warn("Health check completed with issues")
	} else {
		h.logger.Debug("Health check completed successfully")
	}
	return status
}

// Start runs the checks every interval until ctx is done.
func (h *Checker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.Run(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// GetStatus returns the last result, running the checks if none exists.
func (h *Checker) GetStatus(ctx context.Context) *HealthStatus {
	h.mutex.RLock()
	last := h.last
	h.mutex.RUnlock()
	if last == nil {
		return h.Run(ctx)
	}
	status := *last
	status.Components = make(map[string]ComponentHealth, len(last.Components))
	for k, v := range last.Components {
		status.Components[k] = v
	}
	return &status
}
