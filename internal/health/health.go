// Package health runs liveness and readiness checks over the runtime's
// backends and reports them in one response.
package health

import (
	"context"
	"sync"
	"time"
)

// Status is the outcome of a check or of the whole response.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one checker.
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Checker probes one backend. Critical checkers gate readiness;
// non-critical ones only degrade the full health report.
type Checker interface {
	Name() string
	Critical() bool
	Check(ctx context.Context) CheckResult
}

// Response is the aggregate of a check run.
type Response struct {
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Uptime    string        `json:"uptime"`
	Checks    []CheckResult `json:"checks,omitempty"`
}

// Registry holds the checker set.
type Registry struct {
	mu        sync.RWMutex
	checkers  []Checker
	version   string
	startTime time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(version string) *Registry {
	return &Registry{version: version, startTime: time.Now()}
}

// Register adds a checker.
func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, c)
}

// Liveness reports process liveness; it never runs checkers.
func (r *Registry) Liveness(ctx context.Context) Response {
	return Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   r.version,
		Uptime:    time.Since(r.startTime).String(),
	}
}

// Readiness runs the critical checkers only.
func (r *Registry) Readiness(ctx context.Context) Response {
	return r.run(ctx, true)
}

// Health runs every checker.
func (r *Registry) Health(ctx context.Context) Response {
	return r.run(ctx, false)
}

func (r *Registry) run(ctx context.Context, criticalOnly bool) Response {
	r.mu.RLock()
	checkers := make([]Checker, 0, len(r.checkers))
	for _, c := range r.checkers {
		if !criticalOnly || c.Critical() {
			checkers = append(checkers, c)
		}
	}
	r.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			start := time.Now()
			res := c.Check(ctx)
			res.Name = c.Name()
			res.Duration = time.Since(start)
			results[i] = res
		}(i, c)
	}
	wg.Wait()

	status := StatusHealthy
	for i := range results {
		switch results[i].Status {
		case StatusUnhealthy:
			if checkers[i].Critical() {
				status = StatusUnhealthy
			} else if status == StatusHealthy {
				status = StatusDegraded
			}
		case StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}

	return Response{
		Status:    status,
		Timestamp: time.Now(),
		Version:   r.version,
		Uptime:    time.Since(r.startTime).String(),
		Checks:    results,
	}
}
