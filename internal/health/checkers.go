package health

import (
	"context"
	"time"
)

// Pinger is anything with connectivity to verify. The datasource
// registry and the SQL drivers satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker probes a Pinger with a bounded timeout.
type PingChecker struct {
	name     string
	pinger   Pinger
	critical bool
	timeout  time.Duration
}

// NewPingChecker wraps a Pinger. A zero timeout defaults to 5s.
func NewPingChecker(name string, p Pinger, critical bool) *PingChecker {
	return &PingChecker{name: name, pinger: p, critical: critical, timeout: 5 * time.Second}
}

func (c *PingChecker) Name() string   { return c.name }
func (c *PingChecker) Critical() bool { return c.critical }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.pinger.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// CheckFunc adapts a function into a Checker.
type CheckFunc struct {
	name     string
	critical bool
	fn       func(ctx context.Context) CheckResult
}

// NewCheckFunc wraps fn as a named checker.
func NewCheckFunc(name string, critical bool, fn func(ctx context.Context) CheckResult) *CheckFunc {
	return &CheckFunc{name: name, critical: critical, fn: fn}
}

func (c *CheckFunc) Name() string                          { return c.name }
func (c *CheckFunc) Critical() bool                        { return c.critical }
func (c *CheckFunc) Check(ctx context.Context) CheckResult { return c.fn(ctx) }
